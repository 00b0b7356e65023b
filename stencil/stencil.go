// Package stencil reconstructs face values from cell or edge values along one
// grid axis. Face i along an axis lies between elements i-1 and i of the line.
package stencil

import (
	"fmt"

	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
	"gonum.org/v1/gonum/mat"
)

// Reader is a per-index value source: fields, conditional views or derived
// quantities computed on the fly
type Reader interface {
	At(i, j, k int) float64
}

// ReaderFunc adapts a function to a Reader
type ReaderFunc func(i, j, k int) float64

func (f ReaderFunc) At(i, j, k int) float64 { return f(i, j, k) }

// Bias selects the upwind side of a face
type Bias int8

const (
	// LeftBias takes the upwind element from lower indices (positive velocity)
	LeftBias Bias = 1
	// RightBias takes the upwind element from higher indices
	RightBias Bias = -1
)

// BiasOf returns the upwind side for an advecting velocity u
func BiasOf(u float64) Bias {
	if u > 0 {
		return LeftBias
	}
	return RightBias
}

// MaxOrder is the highest reconstruction order supported
const MaxOrder = 9

// ReconstructionScheme estimates face values from a line of element values
type ReconstructionScheme interface {
	Order() int
	// RequiredHalo is the stencil reach of one reconstruction
	RequiredHalo() int
	IsUpwind() bool
	// Symmetric interpolates ψ to face (i,j,k) along a
	Symmetric(ψ Reader, a grid.Axis, i, j, k int) float64
	// Biased reconstructs ψ at face (i,j,k) along a from the bias side. Schemes
	// that are not upwind return the symmetric value.
	Biased(ψ Reader, a grid.Axis, i, j, k int, bias Bias) float64
	// StaticTables returns the coefficient tables a device kernel embeds
	StaticTables() map[string]mat.Matrix
	// OnArchitecture returns the scheme bound to arch
	OnArchitecture(arch runner.Architecture) ReconstructionScheme
	String() string
}

// IndicatorScheme is a reconstruction whose nonlinear weights can be computed
// from companion quantities instead of the reconstructed one
type IndicatorScheme interface {
	ReconstructionScheme
	BiasedWithIndicator(ψ Reader, indicators []Reader, a grid.Axis, i, j, k int, bias Bias) float64
}

// Interpolate reconstructs ψ at a face advected by u: upwind schemes bias by
// the sign of u, others interpolate symmetrically
func Interpolate(s ReconstructionScheme, ψ Reader, a grid.Axis, i, j, k int, u float64) float64 {
	if s.IsUpwind() {
		return s.Biased(ψ, a, i, j, k, BiasOf(u))
	}
	return s.Symmetric(ψ, a, i, j, k)
}

// gatherSymmetric reads the 2n values ψ[idx-n .. idx+n-1] around face (i,j,k)
func gatherSymmetric(dst []float64, ψ Reader, a grid.Axis, i, j, k, n int) {
	for m := 0; m < 2*n; m++ {
		ii, jj, kk := a.Shift(i, j, k, m-n)
		dst[m] = ψ.At(ii, jj, kk)
	}
}

// gatherBiased reads the 2kw-1 values of a biased stencil ordered from the far
// upwind element to the far downwind element; dst[kw-1] is the element
// immediately upwind of the face
func gatherBiased(dst []float64, ψ Reader, a grid.Axis, i, j, k, kw int, bias Bias) {
	for m := 0; m < 2*kw-1; m++ {
		off := m - kw
		if bias == RightBias {
			off = kw - 1 - m
		}
		ii, jj, kk := a.Shift(i, j, k, off)
		dst[m] = ψ.At(ii, jj, kk)
	}
}

func dot(c, v []float64) float64 {
	s := 0.0
	for n := range c {
		s += c[n] * v[n]
	}
	return s
}

// rowMatrix packs coefficient rows into a dense matrix
func rowMatrix(rows [][]float64) *mat.Dense {
	cols := 0
	for _, r := range rows {
		if len(r) > cols {
			cols = len(r)
		}
	}
	m := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		for j, v := range r {
			m.Set(i, j, v)
		}
	}
	return m
}

// relocate registers a scheme's tables with a device architecture
func relocate(s ReconstructionScheme, arch runner.Architecture) {
	if d, ok := arch.(*runner.Device); ok {
		for name, m := range s.StaticTables() {
			d.AddStaticMatrix(name, m)
		}
	}
}

// ParseScheme builds a scheme from names such as "Centered2", "UpwindBiased3"
// or "WENO5"
func ParseScheme(name string) (ReconstructionScheme, error) {
	var order int
	switch {
	case scan(name, "Centered%d", &order):
		return NewCentered(order)
	case scan(name, "UpwindBiased%d", &order):
		return NewUpwindBiased(order)
	case scan(name, "WENO%d", &order):
		return NewWENO(order)
	}
	return nil, fmt.Errorf("unknown reconstruction scheme %q", name)
}

func scan(name, format string, order *int) bool {
	n, err := fmt.Sscanf(name, format, order)
	return err == nil && n == 1 && fmt.Sprintf(format, *order) == name
}
