package freesurface

import (
	"context"
	"errors"
	"fmt"

	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
	"github.com/sirupsen/logrus"
)

// ImplicitFreeSurface solves
//
//	Az η^{n+1} - gΔt² L(η^{n+1}) = Az η^n - Δt D(U*)
//
// for the displacement and corrects the provisional velocities with
// ∇η^{n+1}. Continuity holds to the solver tolerance.
type ImplicitFreeSurface struct {
	*surface
	Solver Solver

	op       *HelmholtzOperator
	prepared float64 // time step the solver was prepared for
	rhs, x   []float64
}

// NewImplicitFreeSurface prepares solver for g; solver constraints such as
// FFT uniformity are checked here
func NewImplicitFreeSurface(g grid.Grid, gravity float64, solver Solver, opts ...Option) (*ImplicitFreeSurface, error) {
	s, err := newSurface("Implicit", g, gravity, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	if solver == nil {
		return nil, configErr("Implicit", "no solver")
	}
	op := NewHelmholtzOperator(g)
	if err := solver.Prepare(op); err != nil {
		return nil, err
	}
	return &ImplicitFreeSurface{
		surface: s,
		Solver:  solver,
		op:      op,
		rhs:     make([]float64, op.Size()),
		x:       make([]float64, op.Size()),
	}, nil
}

func (m *ImplicitFreeSurface) Initialize(context.Context, field.Velocities) error { return nil }

// Operator exposes the Helmholtz operator at the current time step
func (m *ImplicitFreeSurface) Operator() *HelmholtzOperator { return m.op }

func (m *ImplicitFreeSurface) Step(ctx context.Context, vel field.Velocities, dt float64) error {
	if err := checkStep("Implicit", dt); err != nil {
		return err
	}
	if dt != m.prepared {
		m.op.Scale = m.Gravity * dt * dt
		if err := m.Solver.Prepare(m.op); err != nil {
			return err
		}
		m.prepared = dt
	}

	vel.U.FillHalo()
	vel.V.FillHalo()
	if err := m.transport(ctx, vel, m.U, m.V); err != nil {
		return err
	}
	nx := m.op.Nx
	err := m.arch().Launch(ctx, m.columns(), func(i, j, _ int) {
		c := i + nx*j
		m.rhs[c] = m.op.Area[c]*m.η.At(i, j, 0) - dt*m.divergence(m.U, m.V, i, j)
	})
	if err != nil {
		return err
	}
	gather(m.η, m.x)

	stats, err := m.Solver.Solve(ctx, m.rhs, m.x)
	m.log.WithFields(logrus.Fields{
		"iteration": stats.Iterations,
		"residual":  stats.Residual,
	}).Debug("implicit free surface solve")
	// a non-converged solve still applies its last iterate
	solveErr := err
	if err != nil && !errors.Is(err, ErrNotConverged) {
		return fmt.Errorf("implicit free surface: %w", err)
	}

	err = m.arch().Launch(ctx, m.columns(), func(i, j, _ int) {
		m.dηdt.Set(i, j, 0, (m.x[i+nx*j]-m.η.At(i, j, 0))/dt)
	})
	if err != nil {
		return err
	}
	m.dηdt.FillHalo()
	scatter(m.x, m.η)
	if err := m.correct(ctx, vel, m.η, dt); err != nil {
		return err
	}
	if solveErr != nil {
		return fmt.Errorf("implicit free surface: %w", solveErr)
	}
	return nil
}

func (m *ImplicitFreeSurface) String() string {
	return fmt.Sprintf("ImplicitFreeSurface{g=%g, solver=%s}", m.Gravity, m.Solver)
}
