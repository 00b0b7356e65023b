package advection

import (
	"context"
	"fmt"

	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
	"github.com/notargets/FVOcean/stencil"
)

// FluxForm advects momentum as the divergence of momentum fluxes. The advecting
// transport is interpolated symmetrically and the advected velocity is
// reconstructed with Scheme.
type FluxForm struct {
	Scheme stencil.ReconstructionScheme
}

func NewFluxForm(s stencil.ReconstructionScheme) (*FluxForm, error) {
	if s == nil {
		return nil, configErr(nil, "no momentum reconstruction scheme")
	}
	return &FluxForm{Scheme: s}, nil
}

func (f *FluxForm) RequiredHalo() int { return f.Scheme.RequiredHalo() }

func (f *FluxForm) OnArchitecture(arch runner.Architecture) Momentum {
	return &FluxForm{Scheme: f.Scheme.OnArchitecture(arch)}
}

func (f *FluxForm) String() string { return fmt.Sprintf("FluxForm(%s)", f.Scheme) }

func (f *FluxForm) Tendencies(ctx context.Context, vel field.Velocities, gu, gv *field.Field) error {
	g := vel.U.Grid()
	op := fluxFormOperator{s: f.Scheme, g: g, vel: vel,
		axu: product(g, grid.Ax, grid.FCC, vel.U),
		ayv: product(g, grid.Ay, grid.CFC, vel.V),
		azw: product(g, grid.Az, grid.CCF, vel.W),
	}
	arch := g.Architecture()
	if err := arch.Launch(ctx, gu.Interior(), func(i, j, k int) {
		gu.Set(i, j, k, -op.divergence(vel.U, grid.X, i, j, k))
	}); err != nil {
		return err
	}
	return arch.Launch(ctx, gv.Interior(), func(i, j, k int) {
		gv.Set(i, j, k, -op.divergence(vel.V, grid.Y, i, j, k))
	})
}

type fluxFormOperator struct {
	s             stencil.ReconstructionScheme
	g             grid.Grid
	vel           field.Velocities
	axu, ayv, azw stencil.Reader
}

func (op *fluxFormOperator) transport(b grid.Axis) stencil.Reader {
	return [3]stencil.Reader{op.axu, op.ayv, op.azw}[b]
}

// flux is the flux along b of the velocity component q normal to a, evaluated
// at the (i,j,k) point of b between two q points. Along b == a the point is a
// center and q is face-located; otherwise it is an edge.
func (op *fluxFormOperator) flux(q *field.Field, a, b grid.Axis, i, j, k int) float64 {
	if b == a {
		ii, jj, kk := a.Shift(i, j, k, 1)
		û := op.s.Symmetric(op.transport(a), a, ii, jj, kk)
		return û * stencil.Interpolate(op.s, q, a, ii, jj, kk, û)
	}
	if grid.IsBoundaryFace(op.g, b, b.Index(i, j, k)) {
		return 0
	}
	// transport along b is centered along a and is interpolated onto the edge
	û := op.s.Symmetric(op.transport(b), a, i, j, k)
	return û * stencil.Interpolate(op.s, q, b, i, j, k, û)
}

// divergence is (1/V)∇·(U q) at the q point (i,j,k), q normal to a
func (op *fluxFormOperator) divergence(q *field.Field, a grid.Axis, i, j, k int) float64 {
	div := 0.0
	for b := grid.X; b <= grid.Z; b++ {
		if b == a {
			ii, jj, kk := a.Shift(i, j, k, -1)
			div += op.flux(q, a, b, i, j, k) - op.flux(q, a, b, ii, jj, kk)
			continue
		}
		ii, jj, kk := b.Shift(i, j, k, 1)
		div += op.flux(q, a, b, ii, jj, kk) - op.flux(q, a, b, i, j, k)
	}
	return div / op.g.Volume(i, j, k, q.Location())
}
