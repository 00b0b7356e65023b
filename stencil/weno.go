package stencil

import (
	"fmt"

	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
	"gonum.org/v1/gonum/mat"
)

// DefaultEpsilon regularizes the nonlinear weights α_r = C_r/(β_r+ε)²
const DefaultEpsilon = 1e-6

const maxCandidates = (MaxOrder + 1) / 2

var (
	weno5Coefficients = [][]float64{
		{1. / 3, 5. / 6, -1. / 6},
		{-1. / 6, 5. / 6, 1. / 3},
		{1. / 3, -7. / 6, 11. / 6},
	}
	weno5Optimal = []float64{3. / 10, 6. / 10, 1. / 10}
)

// WENO is a weighted essentially non-oscillatory reconstruction of odd order
// 2k-1 built from k candidate stencils of k elements each
type WENO struct {
	order, kw int
	Epsilon   float64
	// coeffs[r][q] weighs element i-r+q of candidate r
	coeffs [][]float64
	// optimal linear weights C_r
	optimal []float64
	// forms[r] is the row-major k×k smoothness quadratic form of candidate r
	forms     [][]float64
	symmetric *Centered
}

// NewWENO returns a WENO scheme of order 3, 5, 7 or 9. Order 5 uses the
// Jiang-Shu tables; the others are generated.
func NewWENO(order int) (*WENO, error) {
	if order < 3 || order > MaxOrder || order%2 == 0 {
		return nil, fmt.Errorf("WENO scheme: unsupported order %d", order)
	}
	sym, err := NewCentered(order + 1)
	if err != nil {
		return nil, err
	}
	kw := (order + 1) / 2
	w := &WENO{order: order, kw: kw, Epsilon: DefaultEpsilon, symmetric: sym}

	forms, err := SmoothnessForms(kw)
	if err != nil {
		return nil, err
	}
	w.forms = make([][]float64, kw)
	for r, f := range forms {
		w.forms[r] = make([]float64, kw*kw)
		for a := 0; a < kw; a++ {
			for b := 0; b < kw; b++ {
				w.forms[r][a*kw+b] = f.At(a, b)
			}
		}
	}

	if order == 5 {
		w.coeffs, w.optimal = weno5Coefficients, weno5Optimal
		return w, nil
	}
	w.coeffs = make([][]float64, kw)
	for r := range w.coeffs {
		w.coeffs[r] = ENOCoefficients(kw, r)
	}
	if w.optimal, err = OptimalWeights(kw); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *WENO) Order() int { return w.order }

func (w *WENO) RequiredHalo() int { return w.kw }

func (w *WENO) IsUpwind() bool { return true }

// Optimal returns the linear weights C_r
func (w *WENO) Optimal() []float64 { return w.optimal }

func (w *WENO) Symmetric(ψ Reader, a grid.Axis, i, j, k int) float64 {
	return w.symmetric.Symmetric(ψ, a, i, j, k)
}

func (w *WENO) Biased(ψ Reader, a grid.Axis, i, j, k int, bias Bias) float64 {
	var s [MaxOrder]float64
	var β [maxCandidates]float64
	n := 2*w.kw - 1
	gatherBiased(s[:n], ψ, a, i, j, k, w.kw, bias)
	w.smoothness(s[:n], β[:w.kw])
	return w.combine(s[:n], β[:w.kw])
}

// BiasedWithIndicator reconstructs ψ with nonlinear weights from the
// smoothness of the indicator quantities, averaged over the indicators
func (w *WENO) BiasedWithIndicator(ψ Reader, indicators []Reader, a grid.Axis, i, j, k int, bias Bias) float64 {
	if len(indicators) == 0 {
		return w.Biased(ψ, a, i, j, k, bias)
	}
	var s, line [MaxOrder]float64
	var β, βn [maxCandidates]float64
	n := 2*w.kw - 1
	for _, ind := range indicators {
		gatherBiased(line[:n], ind, a, i, j, k, w.kw, bias)
		w.smoothness(line[:n], βn[:w.kw])
		for r := 0; r < w.kw; r++ {
			β[r] += βn[r]
		}
	}
	for r := 0; r < w.kw; r++ {
		β[r] /= float64(len(indicators))
	}
	gatherBiased(s[:n], ψ, a, i, j, k, w.kw, bias)
	return w.combine(s[:n], β[:w.kw])
}

// Weights returns the normalized nonlinear weights for a biased stencil line
// ordered far upwind to far downwind
func (w *WENO) Weights(line []float64) []float64 {
	var β [maxCandidates]float64
	w.smoothness(line, β[:w.kw])
	out := make([]float64, w.kw)
	sum := 0.0
	for r := range out {
		out[r] = w.alpha(r, β[r])
		sum += out[r]
	}
	for r := range out {
		out[r] /= sum
	}
	return out
}

func (w *WENO) smoothness(s, β []float64) {
	if w.kw == 3 {
		v0, v1, v2 := s[0], s[1], s[2]
		β[2] = 13./12*sq(v0-2*v1+v2) + 1./4*sq(v0-4*v1+3*v2)
		v0, v1, v2 = s[1], s[2], s[3]
		β[1] = 13./12*sq(v0-2*v1+v2) + 1./4*sq(v0-v2)
		v0, v1, v2 = s[2], s[3], s[4]
		β[0] = 13./12*sq(v0-2*v1+v2) + 1./4*sq(3*v0-4*v1+v2)
		return
	}
	// The forms annihilate constants, so values are taken relative to the
	// upwind element
	kw := w.kw
	var d [MaxOrder]float64
	for m := 0; m < 2*kw-1; m++ {
		d[m] = s[m] - s[kw-1]
	}
	for r := 0; r < kw; r++ {
		v := d[kw-1-r : 2*kw-1-r]
		f := w.forms[r]
		sum := 0.0
		for a := 0; a < kw; a++ {
			for b := 0; b < kw; b++ {
				sum += v[a] * f[a*kw+b] * v[b]
			}
		}
		β[r] = sum
	}
}

func (w *WENO) alpha(r int, β float64) float64 {
	return w.optimal[r] / sq(β+w.Epsilon)
}

func (w *WENO) combine(s, β []float64) float64 {
	var num, den float64
	for r := 0; r < w.kw; r++ {
		α := w.alpha(r, β[r])
		num += α * dot(w.coeffs[r], s[w.kw-1-r:2*w.kw-1-r])
		den += α
	}
	return num / den
}

func (w *WENO) StaticTables() map[string]mat.Matrix {
	return map[string]mat.Matrix{
		fmt.Sprintf("WENO%dCoeffs", w.order):  rowMatrix(w.coeffs),
		fmt.Sprintf("WENO%dOptimal", w.order): rowMatrix([][]float64{w.optimal}),
		fmt.Sprintf("WENO%dSmooth", w.order):  rowMatrix(w.forms),
	}
}

func (w *WENO) OnArchitecture(arch runner.Architecture) ReconstructionScheme {
	relocate(w, arch)
	return w
}

func (w *WENO) String() string { return fmt.Sprintf("WENO%d", w.order) }

func sq(x float64) float64 { return x * x }
