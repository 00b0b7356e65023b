package stencil

import (
	"math"
	"testing"

	"github.com/notargets/FVOcean/grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cellAverages returns a reader over the exact averages of x^p on unit cells
// [i, i+1]
func cellAverages(p int) Reader {
	return ReaderFunc(func(i, _, _ int) float64 {
		a, b := float64(i), float64(i+1)
		return (math.Pow(b, float64(p+1)) - math.Pow(a, float64(p+1))) / float64(p+1)
	})
}

func periodicLine(values []float64) Reader {
	n := len(values)
	return ReaderFunc(func(i, _, _ int) float64 {
		return values[((i%n)+n)%n]
	})
}

func TestCentered_PolynomialExactness(t *testing.T) {
	for _, order := range []int{2, 4, 6, 8, 10} {
		s, err := NewCentered(order)
		require.NoError(t, err)
		assert.Equal(t, order/2, s.RequiredHalo())
		assert.False(t, s.IsUpwind())
		for p := 0; p < order; p++ {
			// Face 0 lies at x = 0
			got := s.Symmetric(cellAverages(p), grid.X, 0, 0, 0)
			assert.InDelta(t, math.Pow(0, float64(p)), got, 1e-9, "order %d, degree %d", order, p)
		}
	}
}

func TestUpwindBiased_PolynomialExactness(t *testing.T) {
	for _, order := range []int{1, 3, 5} {
		s, err := NewUpwindBiased(order)
		require.NoError(t, err)
		assert.Equal(t, (order+1)/2, s.RequiredHalo())
		for p := 0; p < order; p++ {
			want := 1.0
			for _, bias := range []Bias{LeftBias, RightBias} {
				got := s.Biased(cellAverages(p), grid.Y, 0, 1, 0, bias)
				assert.InDelta(t, want, got, 1e-9, "order %d, degree %d, bias %d", order, p, bias)
			}
		}
	}
}

func TestUpwindBiased_UsesUpwindSide(t *testing.T) {
	s, err := NewUpwindBiased(1)
	require.NoError(t, err)
	step := ReaderFunc(func(i, _, _ int) float64 {
		if i < 4 {
			return 1
		}
		return 2
	})
	assert.Equal(t, 1.0, s.Biased(step, grid.X, 4, 0, 0, LeftBias))
	assert.Equal(t, 2.0, s.Biased(step, grid.X, 4, 0, 0, RightBias))
	assert.Equal(t, 1.0, Interpolate(s, step, grid.X, 4, 0, 0, 0.3))
	assert.Equal(t, 2.0, Interpolate(s, step, grid.X, 4, 0, 0, -0.3))
	// Symmetric interpolation falls back to second order centered
	assert.Equal(t, 1.5, s.Symmetric(step, grid.X, 4, 0, 0))
}

func TestUnsupportedOrders(t *testing.T) {
	_, err := NewCentered(3)
	assert.Error(t, err)
	_, err = NewUpwindBiased(4)
	assert.Error(t, err)
	_, err = NewUpwindBiased(7)
	assert.Error(t, err)
	_, err = NewWENO(6)
	assert.Error(t, err)
	_, err = NewWENO(11)
	assert.Error(t, err)
}

func TestParseScheme(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		halo    int
		upwind  bool
		wantErr bool
	}{
		{"Centered2", "Centered2", 1, false, false},
		{"Centered6", "Centered6", 3, false, false},
		{"UpwindBiased3", "UpwindBiased3", 2, true, false},
		{"WENO5", "WENO5", 3, true, false},
		{"WENO9", "WENO9", 5, true, false},
		{"WENO5x", "", 0, false, true},
		{"Spectral", "", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseScheme(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.String())
			assert.Equal(t, tt.halo, s.RequiredHalo())
			assert.Equal(t, tt.upwind, s.IsUpwind())
		})
	}
}

func TestENOCoefficients_MatchTables(t *testing.T) {
	for r, want := range weno5Coefficients {
		assert.InDeltaSlice(t, want, ENOCoefficients(3, r), 1e-14)
	}
	// The fully upwind-biased stencils of the linear schemes
	for order, want := range upwindCoefficients {
		k := (order + 1) / 2
		assert.InDeltaSlice(t, want, ENOCoefficients(order, k-1), 1e-14, "order %d", order)
	}
}

func TestOptimalWeights(t *testing.T) {
	tests := []struct {
		k    int
		want []float64
	}{
		{3, []float64{3. / 10, 3. / 5, 1. / 10}},
		{4, []float64{4. / 35, 18. / 35, 12. / 35, 1. / 35}},
		{5, []float64{5. / 126, 20. / 63, 10. / 21, 10. / 63, 1. / 126}},
	}
	for _, tt := range tests {
		d, err := OptimalWeights(tt.k)
		require.NoError(t, err)
		assert.InDeltaSlice(t, tt.want, d, 1e-12, "k=%d", tt.k)
		sum := 0.0
		for _, v := range d {
			sum += v
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
}

func TestSmoothnessForms_JiangShu(t *testing.T) {
	forms, err := SmoothnessForms(3)
	require.NoError(t, err)
	want := [][][]float64{
		{{10. / 3, -31. / 6, 11. / 6}, {-31. / 6, 25. / 3, -19. / 6}, {11. / 6, -19. / 6, 4. / 3}},
		{{4. / 3, -13. / 6, 5. / 6}, {-13. / 6, 13. / 3, -13. / 6}, {5. / 6, -13. / 6, 4. / 3}},
		{{4. / 3, -19. / 6, 11. / 6}, {-19. / 6, 25. / 3, -31. / 6}, {11. / 6, -31. / 6, 10. / 3}},
	}
	for r := range want {
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				assert.InDelta(t, want[r][a][b], forms[r].At(a, b), 1e-10, "r=%d (%d,%d)", r, a, b)
			}
		}
	}

	// The generic quadratic forms agree with the explicit formulas
	w, err := NewWENO(5)
	require.NoError(t, err)
	line := []float64{0.3, -1.2, 2.5, 0.7, -0.4}
	var explicit, generic [3]float64
	w.smoothness(line, explicit[:])
	for r := 0; r < 3; r++ {
		v := line[2-r : 5-r]
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				generic[r] += v[a] * forms[r].At(a, b) * v[b]
			}
		}
	}
	assert.InDeltaSlice(t, explicit[:], generic[:], 1e-10)
}

func TestCandidateValues(t *testing.T) {
	for k := 2; k <= 5; k++ {
		for r := 0; r < k; r++ {
			v, err := CandidateValues(k, r)
			require.NoError(t, err)
			assert.InDeltaSlice(t, ENOCoefficients(k, r), v, 1e-9, "k=%d r=%d", k, r)
		}
	}
}

func TestWENO_ConstantFieldUsesOptimalWeights(t *testing.T) {
	for _, order := range []int{3, 5, 7, 9} {
		w, err := NewWENO(order)
		require.NoError(t, err)
		line := make([]float64, order)
		for i := range line {
			line[i] = 4.2
		}
		assert.InDeltaSlice(t, w.Optimal(), w.Weights(line), 1e-14, "WENO%d", order)
		constant := ReaderFunc(func(_, _, _ int) float64 { return 4.2 })
		assert.InDelta(t, 4.2, w.Biased(constant, grid.Z, 0, 0, 7, RightBias), 1e-13)
	}
}

func TestWENO_OptimalCombinationIsUpwindStencil(t *testing.T) {
	for _, order := range []int{3, 5, 7, 9} {
		w, err := NewWENO(order)
		require.NoError(t, err)
		k := (order + 1) / 2
		combined := make([]float64, order)
		for r := 0; r < k; r++ {
			for q, c := range w.coeffs[r] {
				combined[k-1-r+q] += w.optimal[r] * c
			}
		}
		assert.InDeltaSlice(t, ENOCoefficients(order, k-1), combined, 1e-12, "WENO%d", order)
	}
}

func TestWENO_SmoothSinusoidMatchesLinearScheme(t *testing.T) {
	n := 256
	h := 1.0 / float64(n)
	avg := make([]float64, n)
	for i := range avg {
		x0, x1 := float64(i)*h, float64(i+1)*h
		avg[i] = (math.Cos(2*math.Pi*x0) - math.Cos(2*math.Pi*x1)) / (2 * math.Pi * h)
	}
	ψ := periodicLine(avg)
	w, err := NewWENO(5)
	require.NoError(t, err)
	lin, err := NewUpwindBiased(5)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		for _, bias := range []Bias{LeftBias, RightBias} {
			assert.InDelta(t, lin.Biased(ψ, grid.X, i, 0, 0, bias), w.Biased(ψ, grid.X, i, 0, 0, bias), 1e-8)
		}
		assert.InDelta(t, math.Sin(2*math.Pi*float64(i)*h), w.Biased(ψ, grid.X, i, 0, 0, LeftBias), 1e-8)
	}
}

func TestWENO_FavorsSmoothCandidateAtJump(t *testing.T) {
	w, err := NewWENO(5)
	require.NoError(t, err)
	line := []float64{0, 0, 0, 1, 1}
	weights := w.Weights(line)
	assert.InDelta(t, 1.0, weights[2], 1e-9)
	step := ReaderFunc(func(i, _, _ int) float64 {
		if i < 0 {
			return 0
		}
		return 1
	})
	// Face 0 is the jump; the upwind side is constant on each side
	assert.InDelta(t, 0.0, w.Biased(step, grid.X, 0, 0, 0, LeftBias), 1e-9)
	assert.InDelta(t, 1.0, w.Biased(step, grid.X, 0, 0, 0, RightBias), 1e-9)
}

func TestWENO_BiasedWithIndicator(t *testing.T) {
	w, err := NewWENO(5)
	require.NoError(t, err)
	lin, err := NewUpwindBiased(5)
	require.NoError(t, err)
	ψ := ReaderFunc(func(i, _, _ int) float64 {
		if i < 0 {
			return 0
		}
		return 1
	})
	// Indicator equal to the reconstructed quantity reproduces Biased
	assert.InDelta(t, w.Biased(ψ, grid.X, 0, 0, 0, LeftBias),
		w.BiasedWithIndicator(ψ, []Reader{ψ}, grid.X, 0, 0, 0, LeftBias), 1e-15)
	// A smooth indicator selects the optimal linear weights
	flat := ReaderFunc(func(_, _, _ int) float64 { return 3 })
	assert.InDelta(t, lin.Biased(ψ, grid.X, 0, 0, 0, LeftBias),
		w.BiasedWithIndicator(ψ, []Reader{flat, flat}, grid.X, 0, 0, 0, LeftBias), 1e-12)
	assert.Equal(t, w.Biased(ψ, grid.X, 0, 0, 0, LeftBias),
		w.BiasedWithIndicator(ψ, nil, grid.X, 0, 0, 0, LeftBias))
}

func TestMultiDimensionalBiased(t *testing.T) {
	w, err := NewWENO(5)
	require.NoError(t, err)
	sum := 0.0
	for _, v := range multiDimensionalWeights {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-15)

	// Fields constant across the tangential direction are unchanged
	ψ := ReaderFunc(func(i, _, _ int) float64 { return math.Sin(0.3 * float64(i)) })
	assert.InDelta(t, w.Biased(ψ, grid.X, 2, 4, 0, LeftBias),
		MultiDimensionalBiased(w, ψ, grid.X, []grid.Axis{grid.Y}, 2, 4, 0, LeftBias), 1e-14)

	// Line averages of y² along y become point values at the line center
	ψy := ReaderFunc(func(_, j, _ int) float64 {
		y := float64(j)
		return y*y + 1./12
	})
	assert.InDelta(t, 16.0, MultiDimensionalBiased(w, ψy, grid.X, []grid.Axis{grid.Y}, 2, 4, 0, LeftBias), 1e-12)
	assert.Equal(t, w.Biased(ψ, grid.X, 2, 4, 0, RightBias),
		MultiDimensionalBiased(w, ψ, grid.X, nil, 2, 4, 0, RightBias))
}

func TestStaticTables(t *testing.T) {
	w, err := NewWENO(5)
	require.NoError(t, err)
	tables := w.StaticTables()
	require.Contains(t, tables, "WENO5Coeffs")
	require.Contains(t, tables, "WENO5Optimal")
	r, c := tables["WENO5Coeffs"].Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 0.6, tables["WENO5Optimal"].At(0, 1))

	cs, err := NewCentered(4)
	require.NoError(t, err)
	assert.Equal(t, 7./12, cs.StaticTables()["Centered4Coeffs"].At(0, 1))
}
