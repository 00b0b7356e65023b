package advection

import (
	"context"
	"fmt"

	"github.com/ctessum/atmos/advect"
	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
	"github.com/notargets/FVOcean/stencil"
)

var velocityLocations = [3]grid.Location{grid.FCC, grid.CFC, grid.CCF}

// TracerAdvection is the flux-form tracer operator -(1/V)∇·(A u ĉ)
type TracerAdvection struct {
	Scheme stencil.ReconstructionScheme
	// first order upwinding uses the donor-cell flux directly
	donorCell bool
}

func NewTracerAdvection(s stencil.ReconstructionScheme) (*TracerAdvection, error) {
	if s == nil {
		return nil, configErr(nil, "no tracer reconstruction scheme")
	}
	_, donor := s.(*stencil.UpwindBiased)
	return &TracerAdvection{Scheme: s, donorCell: donor && s.Order() == 1}, nil
}

func (t *TracerAdvection) RequiredHalo() int { return t.Scheme.RequiredHalo() }

func (t *TracerAdvection) OnArchitecture(arch runner.Architecture) *TracerAdvection {
	return &TracerAdvection{Scheme: t.Scheme.OnArchitecture(arch), donorCell: t.donorCell}
}

func (t *TracerAdvection) String() string { return fmt.Sprintf("TracerAdvection(%s)", t.Scheme) }

// Flux is the advective flux A u ĉ through face (i,j,k) normal to a. Boundary
// faces of Bounded axes carry no flux.
func (t *TracerAdvection) Flux(vel field.Velocities, c stencil.Reader, g grid.Grid, a grid.Axis, i, j, k int) float64 {
	if grid.IsBoundaryFace(g, a, a.Index(i, j, k)) {
		return 0
	}
	comp := [3]*field.Field{vel.U, vel.V, vel.W}[a]
	u := comp.At(i, j, k)
	area := g.Area(a, i, j, k, velocityLocations[a])
	if t.donorCell {
		ii, jj, kk := a.Shift(i, j, k, -1)
		return area * advect.UpwindFlux(u, c.At(ii, jj, kk), c.At(i, j, k), 1)
	}
	return area * u * stencil.Interpolate(t.Scheme, c, a, i, j, k, u)
}

// Tendency writes -(1/V)∇·(A u ĉ) into gc over the interior of c. Velocity and
// tracer halos must be filled.
func (t *TracerAdvection) Tendency(ctx context.Context, vel field.Velocities, c, gc *field.Field) error {
	g := c.Grid()
	return g.Architecture().Launch(ctx, c.Interior(), func(i, j, k int) {
		div := 0.0
		for a := grid.X; a <= grid.Z; a++ {
			ii, jj, kk := a.Shift(i, j, k, 1)
			div += t.Flux(vel, c, g, a, ii, jj, kk) - t.Flux(vel, c, g, a, i, j, k)
		}
		gc.Set(i, j, k, -div/g.Volume(i, j, k, grid.CCC))
	})
}
