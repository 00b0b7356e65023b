package model

import (
	"context"
	"fmt"
	"math"

	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
)

// Diagnostics summarizes the model state at one instant
type Diagnostics struct {
	Time      float64
	Iteration int
	MaxSpeed  float64 // max |u|, |v|
	MaxW      float64
	// KineticEnergy is ½∫(u² + v²) dV
	KineticEnergy float64
	// Volume is the displaced volume ∫η dA
	Volume  float64
	MaxEta  float64
	Tracers map[string]float64 // ∫c dV
	// Extrema counts tracer cells outside the initial [min, max] range
	Extrema map[string]int
}

func halfSquare(x float64) float64 { return 0.5 * x * x }

// Diagnose evaluates the summary; bounds, when given, are per-tracer
// [min, max] ranges used to count out-of-range cells
func (m *Model) Diagnose(bounds map[string][2]float64) (Diagnostics, error) {
	d := Diagnostics{
		Time:      m.Clock.Time,
		Iteration: m.Clock.Iteration,
		MaxSpeed:  math.Max(field.MaxAbs(m.Velocities.U), field.MaxAbs(m.Velocities.V)),
		MaxW:      field.MaxAbs(m.Velocities.W),
		Volume:    field.SurfaceIntegral(m.FreeSurface.Displacement()),
		MaxEta:    field.MaxAbs(m.FreeSurface.Displacement()),
		Tracers:   make(map[string]float64),
		Extrema:   make(map[string]int),
	}
	for _, q := range []*field.Field{m.Velocities.U, m.Velocities.V} {
		ke, err := field.NewConditionalOperation(q, field.WithTransform(halfSquare))
		if err != nil {
			return d, err
		}
		d.KineticEnergy += field.Integral(ke)
	}
	for name, c := range m.Tracers {
		d.Tracers[name] = field.Integral(c)
		b, ok := bounds[name]
		if !ok {
			continue
		}
		outside, err := field.NewConditionalOperation(c, field.WithCondition(func(_, _, _ int, v float64) bool {
			return v < b[0] || v > b[1]
		}))
		if err != nil {
			return d, err
		}
		d.Extrema[name] = outside.Count()
	}
	return d, nil
}

func (d Diagnostics) String() string {
	return fmt.Sprintf("iteration %d, t=%.4g: max|u|=%.3e max|w|=%.3e KE=%.6e volume=%.6e max|η|=%.3e",
		d.Iteration, d.Time, d.MaxSpeed, d.MaxW, d.KineticEnergy, d.Volume, d.MaxEta)
}

// CFL returns the advective Courant number max|u|Δt/Δx over the horizontal
// faces and the gravity wave Courant number √(gH)Δt/min Δ
func (m *Model) CFL(dt, gravity float64) (advective, gravityWave float64) {
	g := m.Grid
	nx, ny, nz := g.Size()
	minSpacing := math.Inf(1)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				dx, dy := grid.Dx(g, i, j, k, grid.CCC), grid.Dy(g, i, j, k, grid.CCC)
				minSpacing = math.Min(minSpacing, math.Min(dx, dy))
				advective = math.Max(advective, math.Abs(m.Velocities.U.At(i, j, k))*dt/dx)
				advective = math.Max(advective, math.Abs(m.Velocities.V.At(i, j, k))*dt/dy)
			}
		}
	}
	return advective, math.Sqrt(gravity*g.Depth()) * dt / minSpacing
}

// SetInitialCondition evaluates fn on every distinct point of f. Faces on
// Bounded walls are left at zero.
func SetInitialCondition(ctx context.Context, f *field.Field, fn func(x, y, z float64) float64) error {
	if err := f.SetFunc(ctx, fn); err != nil {
		return err
	}
	f.ZeroBoundaryFaces()
	f.FillHalo()
	return nil
}
