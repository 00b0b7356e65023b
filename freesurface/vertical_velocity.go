package freesurface

import (
	"context"
	"fmt"
	"strings"

	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
)

// Integration selects the boundary the continuity equation is integrated from
type Integration uint8

const (
	// FromBottom starts from w = 0 at the sea floor
	FromBottom Integration = iota
	// FromTop starts from w = ∂η/∂t at the surface
	FromTop
)

func (d Integration) String() string {
	if d == FromTop {
		return "FromTop"
	}
	return "FromBottom"
}

// ParseIntegration converts a configuration name into an Integration
func ParseIntegration(name string) (Integration, error) {
	switch strings.ToLower(name) {
	case "", "bottom", "frombottom":
		return FromBottom, nil
	case "top", "fromtop":
		return FromTop, nil
	}
	return 0, fmt.Errorf("unknown vertical integration %q", name)
}

// DiagnoseVerticalVelocity reconstructs w from u and v by integrating the
// discrete continuity equation Az δz w = -δx(Ax u) - δy(Ay v) column by column.
// FromTop needs the surface tendency dηdt. Halos of u and v must be filled.
func DiagnoseVerticalVelocity(ctx context.Context, vel field.Velocities, from Integration, dηdt *field.Field) error {
	if from == FromTop && dηdt == nil {
		return fmt.Errorf("freesurface: %s integration requires the displacement tendency", from)
	}
	u, v, w := vel.U, vel.V, vel.W
	g := w.Grid()
	nx, ny, nz := g.Size()

	// horizontal convergence of cell (i,j,k) per unit area
	convergence := func(i, j, k int) float64 {
		div := grid.Ax(g, i+1, j, k, grid.FCC)*u.At(i+1, j, k) - grid.Ax(g, i, j, k, grid.FCC)*u.At(i, j, k) +
			grid.Ay(g, i, j+1, k, grid.CFC)*v.At(i, j+1, k) - grid.Ay(g, i, j, k, grid.CFC)*v.At(i, j, k)
		return -div / grid.Az(g, i, j, k, grid.CCC)
	}

	err := g.Architecture().Launch(ctx, runner.NewIndexRange(nx, ny, 1), func(i, j, _ int) {
		if from == FromBottom {
			w.Set(i, j, 0, 0)
			for k := 0; k < nz; k++ {
				w.Set(i, j, k+1, w.At(i, j, k)+convergence(i, j, k))
			}
			return
		}
		w.Set(i, j, nz, dηdt.At(i, j, 0))
		for k := nz - 1; k > 0; k-- {
			w.Set(i, j, k, w.At(i, j, k+1)-convergence(i, j, k))
		}
		w.Set(i, j, 0, 0)
	})
	if err != nil {
		return err
	}
	w.FillHalo()
	return nil
}
