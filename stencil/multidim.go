package stencil

import (
	"github.com/notargets/FVOcean/grid"
)

// Transverse weights that turn line-averaged face values into point values
var multiDimensionalWeights = [5]float64{9. / 1920, -116. / 1920, 2134. / 1920, -116. / 1920, 9. / 1920}

// MultiDimensionalHalo is the additional reach of the transverse pass
const MultiDimensionalHalo = 2

// MultiDimensionalBiased reconstructs ψ at face (i,j,k) along a and then
// applies a fourth order transverse correction along each axis in across
func MultiDimensionalBiased(s ReconstructionScheme, ψ Reader, a grid.Axis, across []grid.Axis,
	i, j, k int, bias Bias) float64 {
	if len(across) == 0 {
		return s.Biased(ψ, a, i, j, k, bias)
	}
	b, rest := across[0], across[1:]
	sum := 0.0
	for n, wt := range multiDimensionalWeights {
		ii, jj, kk := b.Shift(i, j, k, n-2)
		sum += wt * MultiDimensionalBiased(s, ψ, a, rest, ii, jj, kk, bias)
	}
	return sum
}
