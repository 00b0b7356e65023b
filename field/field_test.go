package field

import (
	"context"
	"errors"
	"testing"

	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
	"github.com/notargets/FVOcean/runner/builder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGrid(t *testing.T, topo [3]grid.Topology, halo int) grid.Grid {
	t.Helper()
	g, err := grid.NewRectilinearGrid(grid.Config{
		Size:     [3]int{5, 4, 3},
		Extent:   [3]float64{5, 4, 3},
		Topology: topo,
		Halo:     halo,
	})
	require.NoError(t, err)
	return g
}

func fillIndexPattern(f *Field) {
	r := f.Extent()
	for k := r.Kmin; k < r.Kmax; k++ {
		for j := r.Jmin; j < r.Jmax; j++ {
			for i := r.Imin; i < r.Imax; i++ {
				f.Set(i, j, k, float64(100*k+10*j+i)+1)
			}
		}
	}
}

func TestField_Layout(t *testing.T) {
	g := testGrid(t, [3]grid.Topology{grid.Periodic, grid.Bounded, grid.Bounded}, 2)
	u := NewField(g, grid.FCC, "u")

	assert.Len(t, u.Data(), 9*8*7)
	assert.Equal(t, runner.IndexRange{Imin: 0, Imax: 5, Jmin: 0, Jmax: 4, Kmin: 0, Kmax: 3}, u.Interior())

	v := NewField(g, grid.CFC, "v")
	assert.Equal(t, runner.IndexRange{Imin: 0, Imax: 5, Jmin: 1, Jmax: 4, Kmin: 0, Kmax: 3}, v.Interior())
	assert.Equal(t, runner.IndexRange{Imin: 0, Imax: 5, Jmin: 0, Jmax: 5, Kmin: 0, Kmax: 3}, v.Extent())

	v.Set(1, 4, 2, 3.5)
	v.Add(1, 4, 2, 1)
	assert.Equal(t, 4.5, v.At(1, 4, 2))
	assert.Equal(t, 4.5, v.Data()[v.Index(1, 4, 2)])

	s := v.Similar("v2")
	assert.Equal(t, grid.CFC, s.Location())
	assert.Equal(t, 0.0, s.At(1, 4, 2))
	require.NoError(t, s.CopyFrom(v))
	assert.Equal(t, 4.5, s.At(1, 4, 2))

	var sizeErr *SizeMismatchError
	assert.True(t, errors.As(s.CopyFrom(u), &sizeErr))
}

func TestField_FillHalo(t *testing.T) {
	g := testGrid(t, [3]grid.Topology{grid.Periodic, grid.Bounded, grid.Bounded}, 2)

	t.Run("PeriodicWrap", func(t *testing.T) {
		c := CenterField(g, "c")
		fillIndexPattern(c)
		c.FillHalo()
		assert.Equal(t, c.At(4, 1, 1), c.At(-1, 1, 1))
		assert.Equal(t, c.At(3, 1, 1), c.At(-2, 1, 1))
		assert.Equal(t, c.At(0, 2, 0), c.At(5, 2, 0))
		assert.Equal(t, c.At(1, 2, 0), c.At(6, 2, 0))
	})

	t.Run("BoundedCenterEven", func(t *testing.T) {
		c := CenterField(g, "c")
		fillIndexPattern(c)
		c.FillHalo()
		assert.Equal(t, c.At(2, 0, 1), c.At(2, -1, 1))
		assert.Equal(t, c.At(2, 1, 1), c.At(2, -2, 1))
		assert.Equal(t, c.At(2, 3, 1), c.At(2, 4, 1))
		assert.Equal(t, c.At(2, 1, 2), c.At(2, 1, 3))
		// Corner combines both folds
		assert.Equal(t, c.At(4, 0, 0), c.At(-1, -1, -1))
	})

	t.Run("BoundedFaceOdd", func(t *testing.T) {
		v := NewField(g, grid.CFC, "v")
		fillIndexPattern(v)
		v.FillHalo()
		assert.Equal(t, -v.At(2, 1, 1), v.At(2, -1, 1))
		assert.Equal(t, -v.At(2, 2, 1), v.At(2, -2, 1))
		assert.Equal(t, -v.At(2, 3, 1), v.At(2, 5, 1))
		// Boundary faces keep their values
		assert.Equal(t, float64(100+40+2)+1, v.At(2, 4, 1))
	})

	t.Run("HaloWiderThanDomain", func(t *testing.T) {
		narrow, err := grid.NewRectilinearGrid(grid.Config{
			Size:     [3]int{4, 1, 1},
			Extent:   [3]float64{4, 1, 1},
			Topology: [3]grid.Topology{grid.Periodic, grid.Bounded, grid.Bounded},
			Halo:     3,
		})
		require.NoError(t, err)
		c := CenterField(narrow, "c")
		for i := 0; i < 4; i++ {
			c.Set(i, 0, 0, float64(i+1))
		}
		c.FillHalo()
		for j := -3; j <= 3; j++ {
			for k := -3; k <= 3; k++ {
				assert.Equal(t, c.At(1, 0, 0), c.At(1, j, k))
			}
		}
		assert.Equal(t, c.At(1, 0, 0), c.At(-3, 0, 0))
	})
}

func TestHaloConnector_Verify(t *testing.T) {
	topos := [][3]grid.Topology{
		{grid.Periodic, grid.Periodic, grid.Periodic},
		{grid.Bounded, grid.Bounded, grid.Bounded},
		{grid.Periodic, grid.Bounded, grid.Bounded},
	}
	for _, topo := range topos {
		g := testGrid(t, topo, 3)
		for _, loc := range []grid.Location{grid.CCC, grid.FCC, grid.CFC, grid.CCF, grid.FFC} {
			hc := NewHaloConnector(g, loc)
			require.NoError(t, hc.Verify(), "topology %v location %s", topo, loc)

			f := NewField(g, loc, "f")
			interior := len(f.Data()) - len(hc.Place)
			r := f.Extent()
			assert.Equal(t, r.Size(), interior, "topology %v location %s", topo, loc)
		}
	}
}

func TestField_SetFuncAndRelocation(t *testing.T) {
	g := testGrid(t, [3]grid.Topology{grid.Periodic, grid.Periodic, grid.Bounded}, 1)
	c := CenterField(g, "c")
	require.NoError(t, c.SetFunc(context.Background(), func(x, y, z float64) float64 {
		return x + 10*y + 100*z
	}))
	assert.InDelta(t, 0.5+15+50, c.At(0, 1, 0), 1e-12)

	cpu, err := c.OnArchitecture(runner.NewCPU(2))
	require.NoError(t, err)
	assert.Equal(t, "CPU(2)", cpu.Grid().Architecture().Name())
	assert.Equal(t, c.Data(), cpu.Data())
	cpu.Set(0, 0, 0, -1)
	assert.NotEqual(t, -1.0, c.At(0, 0, 0))
}

func TestField_ZeroBoundaryFaces(t *testing.T) {
	g := testGrid(t, [3]grid.Topology{grid.Bounded, grid.Periodic, grid.Bounded}, 1)
	vel := NewVelocities(g)
	for _, f := range []*Field{vel.U, vel.V, vel.W} {
		require.NoError(t, f.SetFunc(context.Background(), func(x, y, z float64) float64 { return 1 }))
		f.ZeroBoundaryFaces()
	}
	for j := 0; j < 4; j++ {
		for k := 0; k < 3; k++ {
			assert.Equal(t, 0.0, vel.U.At(0, j, k))
			assert.Equal(t, 0.0, vel.U.At(5, j, k))
			assert.Equal(t, 1.0, vel.U.At(2, j, k))
		}
	}
	// periodic y keeps every v face
	assert.Equal(t, 1.0, vel.V.At(2, 0, 1))
	assert.Equal(t, 0.0, vel.W.At(2, 1, 0))
	assert.Equal(t, 0.0, vel.W.At(2, 1, 3))
	assert.Equal(t, 1.0, vel.W.At(2, 1, 1))
}

func TestField_OnDevice(t *testing.T) {
	occa, err := runner.CreateDevice(runner.ModeProps("Serial"))
	require.NoError(t, err)
	defer occa.Free()
	d := runner.NewDevice(occa, builder.Config{Nx: 5, Ny: 4, Nz: 3, Halo: 1})
	defer d.Free()

	g := testGrid(t, [3]grid.Topology{grid.Periodic, grid.Periodic, grid.Bounded}, 1)
	first, second := CenterField(g, "c"), CenterField(g, "c")
	first.Fill(1)
	second.Fill(2)

	onDevice, err := first.OnArchitecture(d)
	require.NoError(t, err)
	_, err = second.OnArchitecture(d)
	assert.Error(t, err, "name already holds another field")

	back := make([]float64, len(onDevice.Data()))
	require.NoError(t, d.CopyBack("c", back))
	assert.Equal(t, first.Data(), back)
}

func TestCheckHalo(t *testing.T) {
	g := testGrid(t, [3]grid.Topology{}, 2)
	require.NoError(t, CheckHalo(g, 2))
	err := CheckHalo(g, 3)
	assert.True(t, errors.Is(err, ErrInsufficientHalo))
}

func TestVelocities(t *testing.T) {
	g := testGrid(t, [3]grid.Topology{grid.Periodic, grid.Periodic, grid.Bounded}, 1)
	vel := NewVelocities(g)
	assert.Equal(t, grid.FCC, vel.U.Location())
	assert.Equal(t, grid.CFC, vel.V.Location())
	assert.Equal(t, grid.CCF, vel.W.Location())
	vel.U.Set(4, 0, 0, 2)
	vel.FillHalo()
	assert.Equal(t, 2.0, vel.U.At(-1, 0, 0))
}
