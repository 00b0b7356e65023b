package field

import (
	"math"

	"github.com/notargets/FVOcean/grid"
	"gonum.org/v1/gonum/floats"
)

// values gathers f over its interior, k slowest
func values(f AbstractField) []float64 {
	r := f.Interior()
	out := make([]float64, 0, r.Size())
	for k := r.Kmin; k < r.Kmax; k++ {
		for j := r.Jmin; j < r.Jmax; j++ {
			for i := r.Imin; i < r.Imax; i++ {
				out = append(out, f.At(i, j, k))
			}
		}
	}
	return out
}

// volumes gathers the cell volumes matching values(f)
func volumes(f AbstractField) []float64 {
	r := f.Interior()
	g, loc := f.Grid(), f.Location()
	out := make([]float64, 0, r.Size())
	for k := r.Kmin; k < r.Kmax; k++ {
		for j := r.Jmin; j < r.Jmax; j++ {
			for i := r.Imin; i < r.Imax; i++ {
				out = append(out, g.Volume(i, j, k, loc))
			}
		}
	}
	return out
}

// Sum adds f over its interior
func Sum(f AbstractField) float64 {
	return floats.Sum(values(f))
}

// Maximum is the largest interior value, -Inf for an empty interior
func Maximum(f AbstractField) float64 {
	v := values(f)
	if len(v) == 0 {
		return math.Inf(-1)
	}
	return floats.Max(v)
}

// Minimum is the smallest interior value, +Inf for an empty interior
func Minimum(f AbstractField) float64 {
	v := values(f)
	if len(v) == 0 {
		return math.Inf(1)
	}
	return floats.Min(v)
}

// MaxAbs is the largest interior magnitude
func MaxAbs(f AbstractField) float64 {
	v := values(f)
	m := 0.0
	for _, x := range v {
		m = math.Max(m, math.Abs(x))
	}
	return m
}

// Integral is the volume-weighted interior sum
func Integral(f AbstractField) float64 {
	return floats.Dot(values(f), volumes(f))
}

// SurfaceIntegral is the area-weighted sum of a single-level field over its
// interior, using the z-normal area
func SurfaceIntegral(f AbstractField) float64 {
	r := f.Interior()
	g, loc := f.Grid(), f.Location()
	areas := make([]float64, 0, r.Size())
	for k := r.Kmin; k < r.Kmax; k++ {
		for j := r.Jmin; j < r.Jmax; j++ {
			for i := r.Imin; i < r.Imax; i++ {
				areas = append(areas, grid.Az(g, i, j, k, loc))
			}
		}
	}
	return floats.Dot(values(f), areas)
}
