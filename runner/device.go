package runner

import (
	"context"
	"fmt"
	"sort"
	"unsafe"

	"github.com/notargets/FVOcean/runner/builder"
	"github.com/notargets/gocca"
)

// Device is an accelerator architecture backed by an OCCA device. Compiled
// kernels run on the device against relocated memory; Go kernels launched
// through Launch execute on the Host architecture.
type Device struct {
	*builder.Builder
	Device       *gocca.OCCADevice
	Host         Architecture
	Kernels      map[string]*gocca.OCCAKernel
	PooledMemory map[string]*gocca.OCCAMemory
	lengths      map[string]int
	// owners maps registered names to the first element of their host array
	owners map[string]*float64
}

// NewDevice wraps an OCCA device for a grid described by cfg
func NewDevice(device *gocca.OCCADevice, cfg builder.Config) *Device {
	if device == nil {
		panic("nil OCCA device")
	}
	return &Device{
		Builder:      builder.NewBuilder(cfg),
		Device:       device,
		Host:         NewCPU(0),
		Kernels:      make(map[string]*gocca.OCCAKernel),
		PooledMemory: make(map[string]*gocca.OCCAMemory),
		lengths:      make(map[string]int),
		owners:       make(map[string]*float64),
	}
}

func (d *Device) Name() string {
	return fmt.Sprintf("Device(%s)", d.Device.Mode())
}

// Launch executes a Go kernel on the host architecture
func (d *Device) Launch(ctx context.Context, r IndexRange, kernel Kernel) error {
	return d.Host.Launch(ctx, r, kernel)
}

// Relocate copies host data into the named device array, allocating it on
// first use. The length of a relocated array is fixed.
func (d *Device) Relocate(name string, data []float64) error {
	if len(data) == 0 {
		return fmt.Errorf("cannot relocate empty array %s", name)
	}
	if mem, ok := d.PooledMemory[name]; ok {
		if d.lengths[name] != len(data) {
			return fmt.Errorf("array %s has %d values on device, got %d",
				name, d.lengths[name], len(data))
		}
		mem.CopyFrom(unsafe.Pointer(&data[0]), int64(len(data)*8))
		return nil
	}
	mem := d.Device.Malloc(int64(len(data)*8), unsafe.Pointer(&data[0]), nil)
	if mem == nil {
		return fmt.Errorf("failed to allocate %s on device", name)
	}
	d.PooledMemory[name] = mem
	d.lengths[name] = len(data)
	return nil
}

// Register relocates data under a name owned by that host array. Registering
// the same array again refreshes the device copy; a name already owned by a
// different array, or relocated without registration, is rejected.
func (d *Device) Register(name string, data []float64) error {
	if len(data) == 0 {
		return fmt.Errorf("cannot register empty array %s", name)
	}
	owner, registered := d.owners[name]
	if _, pooled := d.PooledMemory[name]; pooled && (!registered || owner != &data[0]) {
		return fmt.Errorf("array %s is already on the device for another host array", name)
	}
	if err := d.Relocate(name, data); err != nil {
		return err
	}
	d.owners[name] = &data[0]
	return nil
}

// CopyBack copies the named device array into dst
func (d *Device) CopyBack(name string, dst []float64) error {
	mem, ok := d.PooledMemory[name]
	if !ok {
		return fmt.Errorf("array %s not allocated on device", name)
	}
	if d.lengths[name] != len(dst) {
		return fmt.Errorf("array %s has %d values on device, destination holds %d",
			name, d.lengths[name], len(dst))
	}
	mem.CopyTo(unsafe.Pointer(&dst[0]), int64(len(dst)*8))
	return nil
}

// GetMemory returns the device memory handle for an array
func (d *Device) GetMemory(name string) *gocca.OCCAMemory {
	return d.PooledMemory[name]
}

// GetAllocatedArrays lists relocated arrays in name order
func (d *Device) GetAllocatedArrays() []string {
	names := make([]string, 0, len(d.PooledMemory))
	for name := range d.PooledMemory {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildKernel compiles kernelSource behind the grid preamble and registers it
func (d *Device) BuildKernel(kernelSource, kernelName string) (*gocca.OCCAKernel, error) {
	d.GeneratePreamble()

	// Combine preamble with kernel source
	fullSource := d.KernelPreamble + "\n" + kernelSource

	var kernel *gocca.OCCAKernel
	var err error

	if d.Device.Mode() == "OpenMP" {
		// OpenMP builds do not receive -O3 by default
		props := gocca.JsonParse(`{"compiler_flags": "-O3"}`)
		defer props.Free()
		kernel, err = d.Device.BuildKernelFromString(fullSource, kernelName, props)
	} else {
		kernel, err = d.Device.BuildKernelFromString(fullSource, kernelName, nil)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to build kernel %s: %w", kernelName, err)
	}

	if kernel != nil {
		if old, ok := d.Kernels[kernelName]; ok {
			old.Free()
		}
		d.Kernels[kernelName] = kernel
		return kernel, nil
	}

	return nil, fmt.Errorf("kernel build returned nil for %s", kernelName)
}

// RunKernel executes a registered kernel. String arguments name relocated
// arrays; all other arguments pass through to the kernel unchanged.
func (d *Device) RunKernel(name string, args ...interface{}) error {
	kernel, exists := d.Kernels[name]
	if !exists {
		return fmt.Errorf("kernel %s not found", name)
	}

	expanded, err := d.expandKernelArgs(args)
	if err != nil {
		return fmt.Errorf("kernel %s: %w", name, err)
	}

	if err := kernel.RunWithArgs(expanded...); err != nil {
		return fmt.Errorf("kernel %s execution failed: %w", name, err)
	}
	d.Device.Finish()
	return nil
}

// Execute runs a registered kernel with arguments described by params, in
// signature order. Arrays marked CopyTo are relocated before the run, arrays
// not yet on the device are allocated from their host binding, and arrays
// marked CopyBack are copied into their binding afterwards.
func (d *Device) Execute(name string, params ...*builder.ParamBuilder) error {
	args := make([]interface{}, 0, len(params))
	for _, p := range params {
		spec := &p.Spec
		if err := spec.Validate(); err != nil {
			return fmt.Errorf("kernel %s: %w", name, err)
		}
		if spec.Direction == builder.DirectionScalar {
			args = append(args, spec.Value)
			continue
		}
		if _, ok := d.PooledMemory[spec.Name]; spec.NeedsCopyTo() || !ok {
			if err := d.Relocate(spec.Name, spec.Array); err != nil {
				return fmt.Errorf("kernel %s: %w", name, err)
			}
		}
		args = append(args, spec.Name)
	}
	if err := d.RunKernel(name, args...); err != nil {
		return err
	}
	for _, p := range params {
		if p.Spec.NeedsCopyBack() {
			if err := d.CopyBack(p.Spec.Name, p.Spec.Array); err != nil {
				return fmt.Errorf("kernel %s: %w", name, err)
			}
		}
	}
	return nil
}

// expandKernelArgs replaces array names with their device memory
func (d *Device) expandKernelArgs(args []interface{}) ([]interface{}, error) {
	expanded := make([]interface{}, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case string:
			mem, ok := d.PooledMemory[v]
			if !ok {
				return nil, fmt.Errorf("array %s not allocated on device", v)
			}
			expanded = append(expanded, mem)
		case int:
			expanded = append(expanded, int64(v))
		default:
			expanded = append(expanded, arg)
		}
	}
	return expanded, nil
}

// Free releases kernels and device memory; the OCCA device itself stays owned
// by the caller
func (d *Device) Free() {
	for _, kernel := range d.Kernels {
		kernel.Free()
	}
	for _, mem := range d.PooledMemory {
		mem.Free()
	}
	d.Kernels = make(map[string]*gocca.OCCAKernel)
	d.PooledMemory = make(map[string]*gocca.OCCAMemory)
	d.lengths = make(map[string]int)
	d.owners = make(map[string]*float64)
}
