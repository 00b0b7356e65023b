package stencil

import (
	"math"
	"testing"

	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
	"github.com/notargets/FVOcean/runner/builder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceInterpolation_MatchesHost(t *testing.T) {
	occa, err := runner.CreateDevice(runner.ModeProps("Serial"))
	require.NoError(t, err)
	defer occa.Free()
	d := runner.NewDevice(occa, builder.Config{Nx: 16, Ny: 2, Nz: 1})
	defer d.Free()

	psi := make([]float64, 32)
	for n := range psi {
		psi[n] = math.Sin(2*math.Pi*float64(n%16)/16) + float64(n/16)
	}
	for _, order := range []int{2, 4, 6} {
		c, err := NewCentered(order)
		require.NoError(t, err)
		di, err := NewDeviceInterpolation(d, c)
		require.NoError(t, err)
		assert.Contains(t, d.KernelPreamble, "Centered")

		faces := make([]float64, 32)
		require.NoError(t, di.Interpolate(psi, faces))
		for j := 0; j < 2; j++ {
			row := periodicLine(psi[16*j : 16*(j+1)])
			for i := 0; i < 16; i++ {
				assert.InDelta(t, c.Symmetric(row, grid.X, i, 0, 0), faces[i+16*j], 1e-12, "order %d face %d", order, i)
			}
		}
		assert.Error(t, di.Interpolate(psi[:8], faces))
	}
}
