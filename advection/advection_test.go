package advection

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
	"github.com/notargets/FVOcean/stencil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustScheme(t *testing.T, name string) stencil.ReconstructionScheme {
	t.Helper()
	s, err := stencil.ParseScheme(name)
	require.NoError(t, err)
	return s
}

func closedGrid(t *testing.T, n, nz, halo int) grid.Grid {
	t.Helper()
	g, err := grid.NewRectilinearGrid(grid.Config{
		Size:     [3]int{n, n, nz},
		Extent:   [3]float64{1, 1, 1},
		Topology: [3]grid.Topology{grid.Bounded, grid.Bounded, grid.Bounded},
		Halo:     halo,
	})
	require.NoError(t, err)
	return g
}

// streamfunctionVelocities sets a divergence-free (u, v) from a corner
// streamfunction that vanishes on the walls
func streamfunctionVelocities(g grid.Grid, vel field.Velocities) {
	ψ := func(i, j int) float64 {
		x, y := g.Node(grid.X, i, grid.Face), g.Node(grid.Y, j, grid.Face)
		return math.Sin(math.Pi*x)*math.Sin(2*math.Pi*y) + 0.3*math.Sin(2*math.Pi*x)*math.Sin(math.Pi*y)*(1+x)
	}
	r := vel.U.Extent()
	for k := r.Kmin; k < r.Kmax; k++ {
		for j := r.Jmin; j < r.Jmax; j++ {
			for i := r.Imin; i < r.Imax; i++ {
				vel.U.Set(i, j, k, -(ψ(i, j+1)-ψ(i, j))/grid.Dy(g, i, j, k, grid.FCC))
			}
		}
	}
	r = vel.V.Extent()
	for k := r.Kmin; k < r.Kmax; k++ {
		for j := r.Jmin; j < r.Jmax; j++ {
			for i := r.Imin; i < r.Imax; i++ {
				vel.V.Set(i, j, k, (ψ(i+1, j)-ψ(i, j))/grid.Dx(g, i, j, k, grid.CFC))
			}
		}
	}
	vel.FillHalo()
}

func TestCompositeHalo(t *testing.T) {
	assert.Equal(t, 4, CompositeHalo(mustScheme(t, "UpwindBiased5"), mustScheme(t, "Centered2")))
	assert.Equal(t, 4, CompositeHalo(mustScheme(t, "WENO5"), mustScheme(t, "Centered2")))
	assert.Equal(t, 2, CompositeHalo(mustScheme(t, "Centered4")))
	assert.Equal(t, 1, CompositeHalo())
	assert.Equal(t, 6, CompositeHalo(mustScheme(t, "WENO9"), nil))
}

func TestNewVectorInvariant(t *testing.T) {
	weno := mustScheme(t, "WENO5")
	upwind := mustScheme(t, "UpwindBiased5")
	tests := []struct {
		name    string
		opts    []VectorInvariantOption
		halo    int
		wantErr bool
	}{
		{name: "defaults", halo: 1},
		{name: "energy conserving", opts: []VectorInvariantOption{WithVorticityScheme(EnergyConserving{})}, halo: 1},
		{name: "WENO vorticity", opts: []VectorInvariantOption{WithVorticityScheme(weno)}, halo: 4},
		{name: "velocity stencil", opts: []VectorInvariantOption{
			WithVorticityScheme(weno), WithVorticityStencil(VelocityStencil)}, halo: 4},
		{name: "cross and self", opts: []VectorInvariantOption{
			WithVorticityScheme(weno), WithUpwinding(CrossAndSelfUpwinding)}, halo: 4},
		{name: "multi-dimensional", opts: []VectorInvariantOption{
			WithVorticityScheme(weno), WithMultiDimensionalStencil()}, halo: 5},
		{name: "upwind vertical only", opts: []VectorInvariantOption{
			WithVerticalScheme(upwind)}, halo: 4},
		{name: "upwind kinetic energy only", opts: []VectorInvariantOption{
			WithKineticEnergyGradientScheme(upwind)}, halo: 4},
		{name: "nil vorticity", opts: []VectorInvariantOption{WithVorticityScheme(nil)}, wantErr: true},
		{name: "centered vorticity", opts: []VectorInvariantOption{
			WithVorticityScheme(mustScheme(t, "Centered2"))}, wantErr: true},
		{name: "velocity stencil on linear scheme", opts: []VectorInvariantOption{
			WithVorticityScheme(upwind), WithVorticityStencil(VelocityStencil)}, wantErr: true},
		{name: "velocity stencil on conserving scheme", opts: []VectorInvariantOption{
			WithVorticityStencil(VelocityStencil)}, wantErr: true},
		{name: "multi-dimensional on conserving scheme", opts: []VectorInvariantOption{
			WithMultiDimensionalStencil()}, wantErr: true},
		{name: "upwinding without divergence scheme", opts: []VectorInvariantOption{
			WithUpwinding(CrossAndSelfUpwinding)}, wantErr: true},
		{name: "centered divergence scheme", opts: []VectorInvariantOption{
			WithVorticityScheme(weno), WithDivergenceScheme(mustScheme(t, "Centered4"))}, wantErr: true},
		{name: "enstrophy conserving vertical", opts: []VectorInvariantOption{
			WithVerticalScheme(EnstrophyConserving{})}, wantErr: true},
		{name: "enstrophy conserving kinetic energy", opts: []VectorInvariantOption{
			WithKineticEnergyGradientScheme(EnstrophyConserving{})}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vi, err := NewVectorInvariant(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				var ce *ConfigurationError
				assert.True(t, errors.As(err, &ce), "got %T", err)
				assert.NotEmpty(t, ce.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.halo, vi.RequiredHalo())
		})
	}
}

func TestNewVectorInvariant_Defaults(t *testing.T) {
	vi, err := NewVectorInvariant()
	require.NoError(t, err)
	assert.Equal(t, EnstrophyConserving{}, vi.VorticityScheme)
	assert.Equal(t, EnergyConserving{}, vi.VerticalScheme)
	assert.Nil(t, vi.DivergenceScheme)
	assert.Equal(t, EnergyConserving{}, vi.KineticEnergyGradientScheme)
	assert.Equal(t, DefaultUpwinding, vi.Upwinding)

	weno := mustScheme(t, "WENO5")
	vi, err = NewVectorInvariant(WithVorticityScheme(weno))
	require.NoError(t, err)
	assert.Equal(t, weno, vi.VerticalScheme)
	assert.Equal(t, weno, vi.DivergenceScheme)
	assert.Equal(t, weno, vi.KineticEnergyGradientScheme)
	assert.Equal(t, OnlySelfUpwinding, vi.Upwinding)
	assert.Contains(t, vi.String(), "WENO5")
}

func TestParseUpwinding(t *testing.T) {
	u, err := ParseUpwinding("CrossAndSelf")
	require.NoError(t, err)
	assert.Equal(t, CrossAndSelfUpwinding, u)
	u, err = ParseUpwinding("self")
	require.NoError(t, err)
	assert.Equal(t, OnlySelfUpwinding, u)
	u, err = ParseUpwinding("")
	require.NoError(t, err)
	assert.Equal(t, DefaultUpwinding, u)
	_, err = ParseUpwinding("sideways")
	assert.Error(t, err)
}

func TestParseScheme(t *testing.T) {
	s, err := ParseScheme("energy")
	require.NoError(t, err)
	assert.Equal(t, EnergyConserving{}, s)
	s, err = ParseScheme("EnstrophyConserving")
	require.NoError(t, err)
	assert.Equal(t, EnstrophyConserving{}, s)
	s, err = ParseScheme("WENO7")
	require.NoError(t, err)
	assert.Equal(t, "WENO7", s.String())
	_, err = ParseScheme("Spectral")
	assert.Error(t, err)
}

func TestMomentumAdvection_FallsBackOnStretchedGrid(t *testing.T) {
	g, err := grid.NewRectilinearGrid(grid.Config{
		Size:     [3]int{4, 3, 1},
		Faces:    [3][]float64{{0, 1, 3, 6, 10}, {0, 1, 2, 3}, {-1, 0}},
		Topology: [3]grid.Topology{grid.Bounded, grid.Periodic, grid.Bounded},
		Halo:     4,
	})
	require.NoError(t, err)
	vi, err := NewVectorInvariant(WithVorticityScheme(mustScheme(t, "WENO5")))
	require.NoError(t, err)

	log, hook := logtest.NewNullLogger()
	m, err := MomentumAdvection(g, vi, log)
	require.NoError(t, err)
	ff, ok := m.(*FluxForm)
	require.True(t, ok, "got %T", m)
	assert.Equal(t, "WENO5", ff.Scheme.String())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)

	// Conserving vorticity schemes fall back to second order centered
	vi, err = NewVectorInvariant()
	require.NoError(t, err)
	m, err = MomentumAdvection(g, vi, log)
	require.NoError(t, err)
	assert.Equal(t, "FluxForm(Centered2)", m.String())
}

func TestMomentumAdvection_InsufficientHalo(t *testing.T) {
	g := closedGrid(t, 8, 1, 3)
	vi, err := NewVectorInvariant(WithVorticityScheme(mustScheme(t, "WENO5")))
	require.NoError(t, err)
	_, err = MomentumAdvection(g, vi, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, field.ErrInsufficientHalo))
	assert.True(t, IsConfigurationError(err))

	wide, err := g.WithHalo(4)
	require.NoError(t, err)
	m, err := MomentumAdvection(wide, vi, nil)
	require.NoError(t, err)
	assert.IsType(t, &VectorInvariant{}, m)

	_, err = MomentumAdvection(g, nil, nil)
	assert.True(t, IsConfigurationError(err))
}

func TestVectorInvariant_EnergyConservingConservesKineticEnergy(t *testing.T) {
	g := closedGrid(t, 16, 1, 2)
	vel := field.NewVelocities(g)
	streamfunctionVelocities(g, vel)

	vi, err := NewVectorInvariant(WithVorticityScheme(EnergyConserving{}))
	require.NoError(t, err)
	m, err := MomentumAdvection(g, vi, nil)
	require.NoError(t, err)
	gu, gv := vel.U.Similar("Gu"), vel.V.Similar("Gv")
	require.NoError(t, m.Tendencies(context.Background(), vel, gu, gv))

	var dEdt, scale float64
	for _, pair := range [][2]*field.Field{{vel.U, gu}, {vel.V, gv}} {
		q, gq := pair[0], pair[1]
		r := q.Interior()
		for k := r.Kmin; k < r.Kmax; k++ {
			for j := r.Jmin; j < r.Jmax; j++ {
				for i := r.Imin; i < r.Imax; i++ {
					term := g.Volume(i, j, k, q.Location()) * q.At(i, j, k) * gq.At(i, j, k)
					dEdt += term
					scale += math.Abs(term)
				}
			}
		}
	}
	require.Greater(t, scale, 1e-3)
	assert.InDelta(t, 0, dEdt/scale, 1e-12)
}

func TestVectorInvariant_UniformFlowHasNoTendency(t *testing.T) {
	g, err := grid.NewRectilinearGrid(grid.Config{
		Size:     [3]int{10, 8, 2},
		Extent:   [3]float64{1, 1, 1},
		Topology: [3]grid.Topology{grid.Periodic, grid.Periodic, grid.Bounded},
		Halo:     5,
	})
	require.NoError(t, err)
	vel := field.NewVelocities(g)
	vel.U.Fill(0.7)
	vel.V.Fill(-0.4)

	weno := mustScheme(t, "WENO5")
	configs := map[string][]VectorInvariantOption{
		"enstrophy": nil,
		"energy":    {WithVorticityScheme(EnergyConserving{})},
		"weno":      {WithVorticityScheme(weno)},
		"weno velocity stencil cross": {WithVorticityScheme(weno), WithVorticityStencil(VelocityStencil),
			WithUpwinding(CrossAndSelfUpwinding)},
		"weno multi-dimensional": {WithVorticityScheme(weno), WithMultiDimensionalStencil()},
	}
	for name, opts := range configs {
		t.Run(name, func(t *testing.T) {
			vi, err := NewVectorInvariant(opts...)
			require.NoError(t, err)
			gu, gv := vel.U.Similar("Gu"), vel.V.Similar("Gv")
			gu.Fill(1)
			gv.Fill(1)
			require.NoError(t, vi.Tendencies(context.Background(), vel, gu, gv))
			assert.InDelta(t, 0, field.MaxAbs(gu), 1e-12)
			assert.InDelta(t, 0, field.MaxAbs(gv), 1e-12)
		})
	}
}

func TestVectorInvariant_CPUMatchesSerial(t *testing.T) {
	g := closedGrid(t, 12, 3, 5)
	weno := mustScheme(t, "WENO5")
	vi, err := NewVectorInvariant(WithVorticityScheme(weno), WithVorticityStencil(VelocityStencil),
		WithUpwinding(CrossAndSelfUpwinding), WithMultiDimensionalStencil())
	require.NoError(t, err)

	run := func(g grid.Grid) (*field.Field, *field.Field) {
		vel := field.NewVelocities(g)
		streamfunctionVelocities(g, vel)
		require.NoError(t, vel.W.SetFunc(context.Background(), func(x, y, z float64) float64 {
			return 0.1 * math.Sin(math.Pi*x) * math.Cos(math.Pi*y) * math.Sin(math.Pi*z)
		}))
		vel.W.FillHalo()
		m, err := MomentumAdvection(g, vi, nil)
		require.NoError(t, err)
		gu, gv := vel.U.Similar("Gu"), vel.V.Similar("Gv")
		require.NoError(t, m.Tendencies(context.Background(), vel, gu, gv))
		return gu, gv
	}
	su, sv := run(g)
	cu, cv := run(g.OnArchitecture(runner.NewCPU(4)))
	assert.Equal(t, su.Data(), cu.Data())
	assert.Equal(t, sv.Data(), cv.Data())
	assert.Greater(t, field.MaxAbs(su), 0.0)
}

func TestFluxForm_UniformFlowHasNoTendency(t *testing.T) {
	g, err := grid.NewRectilinearGrid(grid.Config{
		Size:     [3]int{6, 6, 3},
		Extent:   [3]float64{1, 2, 3},
		Topology: [3]grid.Topology{grid.Periodic, grid.Periodic, grid.Bounded},
		Halo:     3,
	})
	require.NoError(t, err)
	vel := field.NewVelocities(g)
	vel.U.Fill(1.5)
	vel.V.Fill(0.5)
	for _, name := range []string{"Centered2", "UpwindBiased3", "WENO5"} {
		ff, err := NewFluxForm(mustScheme(t, name))
		require.NoError(t, err)
		m, err := MomentumAdvection(g, ff, nil)
		require.NoError(t, err)
		gu, gv := vel.U.Similar("Gu"), vel.V.Similar("Gv")
		require.NoError(t, m.Tendencies(context.Background(), vel, gu, gv))
		assert.InDelta(t, 0, field.MaxAbs(gu), 1e-12, name)
		assert.InDelta(t, 0, field.MaxAbs(gv), 1e-12, name)
	}
}

func TestFluxForm_ConservesMomentumOnPeriodicDomain(t *testing.T) {
	g, err := grid.NewRectilinearGrid(grid.Config{
		Size:     [3]int{16, 12, 1},
		Extent:   [3]float64{1, 1, 1},
		Topology: [3]grid.Topology{grid.Periodic, grid.Periodic, grid.Bounded},
	})
	require.NoError(t, err)
	vel := field.NewVelocities(g)
	ctx := context.Background()
	require.NoError(t, vel.U.SetFunc(ctx, func(x, y, _ float64) float64 {
		return 1 + math.Sin(2*math.Pi*x)*math.Cos(2*math.Pi*y)
	}))
	require.NoError(t, vel.V.SetFunc(ctx, func(x, y, _ float64) float64 {
		return 0.5 - math.Cos(2*math.Pi*x)*math.Sin(2*math.Pi*y)
	}))
	vel.FillHalo()

	ff, err := NewFluxForm(mustScheme(t, "WENO5"))
	require.NoError(t, err)
	gu, gv := vel.U.Similar("Gu"), vel.V.Similar("Gv")
	require.NoError(t, ff.Tendencies(ctx, vel, gu, gv))
	assert.InDelta(t, 0, field.Integral(gu), 1e-12)
	assert.InDelta(t, 0, field.Integral(gv), 1e-12)
	assert.Greater(t, field.MaxAbs(gu), 1e-3)
}

func periodicLine(t *testing.T, n int) grid.Grid {
	t.Helper()
	g, err := grid.NewRectilinearGrid(grid.Config{
		Size:     [3]int{n, 1, 1},
		Extent:   [3]float64{1, 1, 1},
		Topology: [3]grid.Topology{grid.Periodic, grid.Periodic, grid.Bounded},
		Halo:     3,
	})
	require.NoError(t, err)
	return g
}

func TestTracerAdvection_WENOMatchesLinearFluxForSmoothData(t *testing.T) {
	n := 128
	g := periodicLine(t, n)
	vel := field.NewVelocities(g)
	vel.U.Fill(1)
	c := field.CenterField(g, "c")
	h := 1.0 / float64(n)
	ctx := context.Background()
	// Cell averages of sin(2πx)
	require.NoError(t, c.SetFunc(ctx, func(x, _, _ float64) float64 {
		return (math.Cos(2*math.Pi*(x-h/2)) - math.Cos(2*math.Pi*(x+h/2))) / (2 * math.Pi * h)
	}))
	c.FillHalo()

	tendency := func(name string) *field.Field {
		ta, err := NewTracerAdvection(mustScheme(t, name))
		require.NoError(t, err)
		require.NoError(t, CheckGrid(g, ta, ta.RequiredHalo()))
		gc := c.Similar("Gc")
		require.NoError(t, ta.Tendency(ctx, vel, c, gc))
		return gc
	}
	weno, linear := tendency("WENO5"), tendency("UpwindBiased5")
	r := c.Interior()
	for i := r.Imin; i < r.Imax; i++ {
		assert.InDelta(t, linear.At(i, 0, 0), weno.At(i, 0, 0), 1e-5)
		// -∂x sin(2πx) averaged over the cell
		x := g.Node(grid.X, i, grid.Center)
		exact := -(math.Sin(2*math.Pi*(x+h/2)) - math.Sin(2*math.Pi*(x-h/2))) / h
		assert.InDelta(t, exact, weno.At(i, 0, 0), 1e-5)
	}
	assert.InDelta(t, 0, field.Integral(weno), 1e-12)
}

func TestTracerAdvection_DonorCell(t *testing.T) {
	g := periodicLine(t, 8)
	vel := field.NewVelocities(g)
	c := field.CenterField(g, "c")
	for i := 0; i < 8; i++ {
		c.Set(i, 0, 0, float64(i*i))
		vel.U.Set(i, 0, 0, float64(i%3)-1)
	}
	vel.FillHalo()
	c.FillHalo()
	ta, err := NewTracerAdvection(mustScheme(t, "UpwindBiased1"))
	require.NoError(t, err)
	gc := c.Similar("Gc")
	require.NoError(t, ta.Tendency(context.Background(), vel, c, gc))

	h := 1.0 / 8
	for i := 0; i < 8; i++ {
		flux := func(f int) float64 {
			u := vel.U.At(f, 0, 0)
			if u > 0 {
				return u * c.At(f-1, 0, 0)
			}
			return u * c.At(f, 0, 0)
		}
		assert.InDelta(t, -(flux(i+1)-flux(i))/h, gc.At(i, 0, 0), 1e-12)
	}
}

func TestTracerAdvection_ClosedDomainConservesTracer(t *testing.T) {
	g := closedGrid(t, 10, 4, 3)
	vel := field.NewVelocities(g)
	ctx := context.Background()
	streamfunctionVelocities(g, vel)
	require.NoError(t, vel.W.SetFunc(ctx, func(x, y, z float64) float64 { return 0.2 * x * (1 - y) }))
	vel.W.FillHalo()
	c := field.CenterField(g, "c")
	require.NoError(t, c.SetFunc(ctx, func(x, y, z float64) float64 {
		if x < 0.5 && y > 0.3 {
			return 1
		}
		return z
	}))
	c.FillHalo()
	for _, name := range []string{"Centered2", "UpwindBiased3", "WENO5"} {
		ta, err := NewTracerAdvection(mustScheme(t, name))
		require.NoError(t, err)
		gc := c.Similar("Gc")
		require.NoError(t, ta.Tendency(ctx, vel, c, gc))
		assert.InDelta(t, 0, field.Integral(gc), 1e-12, name)
	}
	_, err := NewTracerAdvection(nil)
	assert.True(t, IsConfigurationError(err))
}
