package stencil

import (
	"fmt"

	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
	"gonum.org/v1/gonum/mat"
)

// Symmetric interpolation coefficients on ψ[idx-n .. idx+n-1], keyed by order
var centeredCoefficients = map[int][]float64{
	2: {1. / 2, 1. / 2},
	4: {-1. / 12, 7. / 12, 7. / 12, -1. / 12},
	6: {1. / 60, -8. / 60, 37. / 60, 37. / 60, -8. / 60, 1. / 60},
	8: {-3. / 840, 29. / 840, -139. / 840, 533. / 840, 533. / 840, -139. / 840, 29. / 840, -3. / 840},
	10: {2. / 2520, -23. / 2520, 127. / 2520, -473. / 2520, 1627. / 2520,
		1627. / 2520, -473. / 2520, 127. / 2520, -23. / 2520, 2. / 2520},
}

// Left-biased coefficients ordered far upwind to far downwind, keyed by order
var upwindCoefficients = map[int][]float64{
	1: {1},
	3: {-1. / 6, 5. / 6, 2. / 6},
	5: {2. / 60, -13. / 60, 47. / 60, 27. / 60, -3. / 60},
}

// Centered is a symmetric scheme of even order
type Centered struct {
	order  int
	coeffs []float64
}

// NewCentered returns a centered scheme of order 2, 4, 6, 8 or 10
func NewCentered(order int) (*Centered, error) {
	c, ok := centeredCoefficients[order]
	if !ok {
		return nil, fmt.Errorf("centered scheme: unsupported order %d", order)
	}
	return &Centered{order: order, coeffs: c}, nil
}

func (c *Centered) Order() int { return c.order }

func (c *Centered) RequiredHalo() int { return c.order / 2 }

func (c *Centered) IsUpwind() bool { return false }

func (c *Centered) Symmetric(ψ Reader, a grid.Axis, i, j, k int) float64 {
	var s [MaxOrder + 1]float64
	n := c.order / 2
	gatherSymmetric(s[:2*n], ψ, a, i, j, k, n)
	return dot(c.coeffs, s[:2*n])
}

func (c *Centered) Biased(ψ Reader, a grid.Axis, i, j, k int, _ Bias) float64 {
	return c.Symmetric(ψ, a, i, j, k)
}

func (c *Centered) StaticTables() map[string]mat.Matrix {
	return map[string]mat.Matrix{
		fmt.Sprintf("Centered%dCoeffs", c.order): rowMatrix([][]float64{c.coeffs}),
	}
}

func (c *Centered) OnArchitecture(arch runner.Architecture) ReconstructionScheme {
	relocate(c, arch)
	return c
}

func (c *Centered) String() string { return fmt.Sprintf("Centered%d", c.order) }

// UpwindBiased is a linear one-sided scheme of odd order
type UpwindBiased struct {
	order     int
	coeffs    []float64
	symmetric *Centered
}

// NewUpwindBiased returns an upwind-biased scheme of order 1, 3 or 5
func NewUpwindBiased(order int) (*UpwindBiased, error) {
	c, ok := upwindCoefficients[order]
	if !ok {
		return nil, fmt.Errorf("upwind-biased scheme: unsupported order %d", order)
	}
	sym, err := NewCentered(order + 1)
	if err != nil {
		return nil, err
	}
	return &UpwindBiased{order: order, coeffs: c, symmetric: sym}, nil
}

func (u *UpwindBiased) Order() int { return u.order }

func (u *UpwindBiased) RequiredHalo() int { return (u.order + 1) / 2 }

func (u *UpwindBiased) IsUpwind() bool { return true }

func (u *UpwindBiased) Symmetric(ψ Reader, a grid.Axis, i, j, k int) float64 {
	return u.symmetric.Symmetric(ψ, a, i, j, k)
}

func (u *UpwindBiased) Biased(ψ Reader, a grid.Axis, i, j, k int, bias Bias) float64 {
	var s [MaxOrder]float64
	kw := (u.order + 1) / 2
	gatherBiased(s[:2*kw-1], ψ, a, i, j, k, kw, bias)
	return dot(u.coeffs, s[:2*kw-1])
}

func (u *UpwindBiased) StaticTables() map[string]mat.Matrix {
	return map[string]mat.Matrix{
		fmt.Sprintf("Upwind%dCoeffs", u.order): rowMatrix([][]float64{u.coeffs}),
	}
}

func (u *UpwindBiased) OnArchitecture(arch runner.Architecture) ReconstructionScheme {
	relocate(u, arch)
	return u
}

func (u *UpwindBiased) String() string { return fmt.Sprintf("UpwindBiased%d", u.order) }
