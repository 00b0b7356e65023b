package freesurface

import (
	"context"
	"fmt"

	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
)

// ExplicitFreeSurface corrects the provisional velocities with ∇η^n and then
// steps η with the divergence of the corrected transport. Continuity holds
// exactly; the step is limited by the external gravity wave speed √(gH).
type ExplicitFreeSurface struct {
	*surface
}

func NewExplicitFreeSurface(g grid.Grid, gravity float64, opts ...Option) (*ExplicitFreeSurface, error) {
	s, err := newSurface("Explicit", g, gravity, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	return &ExplicitFreeSurface{surface: s}, nil
}

func (e *ExplicitFreeSurface) Initialize(context.Context, field.Velocities) error { return nil }

func (e *ExplicitFreeSurface) Step(ctx context.Context, vel field.Velocities, dt float64) error {
	if err := checkStep("Explicit", dt); err != nil {
		return err
	}
	if err := e.correct(ctx, vel, e.η, dt); err != nil {
		return err
	}
	if err := e.transport(ctx, vel, e.U, e.V); err != nil {
		return err
	}
	return e.advance(ctx, e.U, e.V, dt)
}

func (e *ExplicitFreeSurface) String() string {
	return fmt.Sprintf("ExplicitFreeSurface{g=%g}", e.Gravity)
}
