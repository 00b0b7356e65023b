package builder

import (
	"fmt"
)

// Direction indicates parameter data flow
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
	DirectionInOut
	DirectionScalar
)

// ParamBuilder provides a fluent interface for building kernel parameters
type ParamBuilder struct {
	Spec ParamSpec
}

// ParamSpec describes one kernel argument: a device array bound to a host
// slice, or a scalar
type ParamSpec struct {
	Name      string
	Direction Direction

	// Array is the host side of a device array
	Array []float64
	// Value is the value of a scalar
	Value float64

	// Data movement around a kernel run
	DoCopyTo   bool
	DoCopyBack bool
}

// Input creates a parameter specification for a const input array
func Input(deviceName string) *ParamBuilder {
	return &ParamBuilder{Spec: ParamSpec{Name: deviceName, Direction: DirectionInput}}
}

// Output creates a parameter specification for a non-const output array
func Output(deviceName string) *ParamBuilder {
	return &ParamBuilder{Spec: ParamSpec{Name: deviceName, Direction: DirectionOutput}}
}

// InOut creates a parameter specification for a non-const input/output array
func InOut(deviceName string) *ParamBuilder {
	return &ParamBuilder{Spec: ParamSpec{Name: deviceName, Direction: DirectionInOut}}
}

// Scalar creates a parameter specification for a scalar value
func Scalar(deviceName string) *ParamBuilder {
	return &ParamBuilder{Spec: ParamSpec{Name: deviceName, Direction: DirectionScalar}}
}

// Bind associates a host array with this parameter
func (p *ParamBuilder) Bind(host []float64) *ParamBuilder {
	p.Spec.Array = host
	return p
}

// Set gives a scalar its value
func (p *ParamBuilder) Set(v float64) *ParamBuilder {
	p.Spec.Value = v
	return p
}

// Copy sets bidirectional copy (host→device before, device→host after)
func (p *ParamBuilder) Copy() *ParamBuilder {
	p.Spec.DoCopyTo = true
	p.Spec.DoCopyBack = true
	return p
}

// CopyTo sets host→device copy before kernel execution
func (p *ParamBuilder) CopyTo() *ParamBuilder {
	p.Spec.DoCopyTo = true
	return p
}

// CopyBack sets device→host copy after kernel execution
func (p *ParamBuilder) CopyBack() *ParamBuilder {
	p.Spec.DoCopyBack = true
	return p
}

// NoCopy explicitly disables data movement
func (p *ParamBuilder) NoCopy() *ParamBuilder {
	p.Spec.DoCopyTo = false
	p.Spec.DoCopyBack = false
	return p
}

// Validate checks if the parameter specification is complete and valid
func (p *ParamSpec) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("parameter name cannot be empty")
	}
	if p.Direction == DirectionScalar {
		if p.Array != nil || p.DoCopyTo || p.DoCopyBack {
			return fmt.Errorf("scalar %s cannot be bound to an array", p.Name)
		}
		return nil
	}
	if len(p.Array) == 0 {
		return fmt.Errorf("array %s needs a host binding", p.Name)
	}
	if p.DoCopyBack && p.Direction == DirectionInput {
		return fmt.Errorf("input array %s cannot be copied back", p.Name)
	}
	return nil
}

// IsConst returns whether this parameter should be const in the kernel signature
func (p *ParamSpec) IsConst() bool {
	switch p.Direction {
	case DirectionOutput, DirectionInOut:
		return false
	}
	return true
}

// NeedsCopyTo returns whether this parameter needs host→device copy
func (p *ParamSpec) NeedsCopyTo() bool {
	return p.DoCopyTo && p.Array != nil
}

// NeedsCopyBack returns whether this parameter needs device→host copy
func (p *ParamSpec) NeedsCopyBack() bool {
	return p.DoCopyBack && p.Array != nil
}

// Declaration is the parameter as it appears in a kernel signature
func (p *ParamSpec) Declaration() string {
	c := ""
	if p.IsConst() {
		c = "const "
	}
	if p.Direction == DirectionScalar {
		return c + "real_t " + p.Name
	}
	return c + "real_t* " + p.Name
}
