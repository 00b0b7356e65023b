package advection

import (
	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/stencil"
)

// Face i along an axis lies between centers i-1 and i.

// toCenter averages a face-located quantity onto the center at (i,j,k) along a
func toCenter(q stencil.Reader, a grid.Axis, i, j, k int) float64 {
	ii, jj, kk := a.Shift(i, j, k, 1)
	return 0.5 * (q.At(i, j, k) + q.At(ii, jj, kk))
}

// toFace averages a center-located quantity onto the face at (i,j,k) along a
func toFace(q stencil.Reader, a grid.Axis, i, j, k int) float64 {
	ii, jj, kk := a.Shift(i, j, k, -1)
	return 0.5 * (q.At(ii, jj, kk) + q.At(i, j, k))
}

// diffCenter differences a face-located quantity across the center at (i,j,k)
func diffCenter(q stencil.Reader, a grid.Axis, i, j, k int) float64 {
	ii, jj, kk := a.Shift(i, j, k, 1)
	return q.At(ii, jj, kk) - q.At(i, j, k)
}

// diffFace differences a center-located quantity across the face at (i,j,k)
func diffFace(q stencil.Reader, a grid.Axis, i, j, k int) float64 {
	ii, jj, kk := a.Shift(i, j, k, -1)
	return q.At(i, j, k) - q.At(ii, jj, kk)
}

// product scales a reader by a grid metric at a fixed location
func product(g grid.Grid, metric func(g grid.Grid, i, j, k int, loc grid.Location) float64,
	loc grid.Location, q stencil.Reader) stencil.Reader {
	return stencil.ReaderFunc(func(i, j, k int) float64 {
		return metric(g, i, j, k, loc) * q.At(i, j, k)
	})
}

func squared(q stencil.Reader) stencil.Reader {
	return stencil.ReaderFunc(func(i, j, k int) float64 {
		v := q.At(i, j, k)
		return v * v
	})
}

// withIndicators computes nonlinear weights from companion quantities
type withIndicators struct {
	stencil.IndicatorScheme
	indicators []stencil.Reader
}

func (w withIndicators) Biased(ψ stencil.Reader, a grid.Axis, i, j, k int, bias stencil.Bias) float64 {
	return w.BiasedWithIndicator(ψ, w.indicators, a, i, j, k, bias)
}

// upwindReconstruct reconstructs ψ at face (i,j,k) along a. Indicators are used
// when the scheme supports them; across names the axis of the transverse pass.
func upwindReconstruct(s stencil.ReconstructionScheme, ψ stencil.Reader, a grid.Axis, i, j, k int,
	bias stencil.Bias, indicators []stencil.Reader, across []grid.Axis) float64 {
	if is, ok := s.(stencil.IndicatorScheme); ok && len(indicators) > 0 {
		s = withIndicators{IndicatorScheme: is, indicators: indicators}
	}
	if len(across) > 0 {
		return stencil.MultiDimensionalBiased(s, ψ, a, across, i, j, k, bias)
	}
	return s.Biased(ψ, a, i, j, k, bias)
}
