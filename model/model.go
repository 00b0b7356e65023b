// Package model drives the predict, solve and correct cycle of a hydrostatic
// free-surface flow: advective and Coriolis tendencies, an Adams-Bashforth
// predictor, the free-surface correction and the vertical velocity diagnostic.
package model

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/notargets/FVOcean/advection"
	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/freesurface"
	"github.com/notargets/FVOcean/grid"
	"github.com/sirupsen/logrus"
)

// Timestepper selects the predictor
type Timestepper uint8

const (
	// AdamsBashforth2 is the quasi-second-order AB2 scheme with χ = 0.1
	AdamsBashforth2 Timestepper = iota
	ForwardEuler
)

// ABChi offsets the AB2 weights to damp its computational mode
const ABChi = 0.1

func (ts Timestepper) String() string {
	if ts == ForwardEuler {
		return "ForwardEuler"
	}
	return "AdamsBashforth2"
}

// ParseTimestepper converts a configuration name into a Timestepper
func ParseTimestepper(name string) (Timestepper, error) {
	switch strings.ToLower(name) {
	case "", "ab2", "adamsbashforth2":
		return AdamsBashforth2, nil
	case "euler", "forwardeuler":
		return ForwardEuler, nil
	}
	return 0, fmt.Errorf("unknown timestepper %q", name)
}

// Config describes a Model. Momentum and TracerAdvection may be nil for
// linear dynamics; FreeSurface is required.
type Config struct {
	Grid            grid.Grid
	Momentum        advection.Momentum
	TracerAdvection *advection.TracerAdvection
	Tracers         []string
	FreeSurface     freesurface.FreeSurface
	// Coriolis is the f-plane parameter
	Coriolis            float64
	Timestepper         Timestepper
	VerticalIntegration freesurface.Integration
	Log                 logrus.FieldLogger
}

// Clock tracks model time
type Clock struct {
	Time      float64
	Iteration int
}

// Model owns the prognostic state. It is not safe for concurrent Steps.
type Model struct {
	Grid        grid.Grid
	Velocities  field.Velocities
	Tracers     map[string]*field.Field
	FreeSurface freesurface.FreeSurface
	Clock       Clock

	momentum    advection.Momentum
	tracerAdv   *advection.TracerAdvection
	coriolis    float64
	timestepper Timestepper
	integration freesurface.Integration
	log         logrus.FieldLogger

	// tendencies at the current and previous step
	gu, gv, guPrev, gvPrev *field.Field
	gc, gcPrev             map[string]*field.Field
	initialized            bool
}

// New validates cfg and allocates the model state. The momentum formulation is
// bound to the grid, falling back to flux form where the grid requires it.
func New(cfg Config) (*Model, error) {
	g := cfg.Grid
	if g == nil {
		return nil, fmt.Errorf("model: no grid")
	}
	if cfg.FreeSurface == nil {
		return nil, fmt.Errorf("model: no free surface")
	}
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	m := &Model{
		Grid:        g,
		Velocities:  field.NewVelocities(g),
		Tracers:     make(map[string]*field.Field),
		FreeSurface: cfg.FreeSurface,
		coriolis:    cfg.Coriolis,
		timestepper: cfg.Timestepper,
		integration: cfg.VerticalIntegration,
		log:         log,
		gc:          make(map[string]*field.Field),
		gcPrev:      make(map[string]*field.Field),
	}
	if cfg.Momentum != nil {
		mom, err := advection.MomentumAdvection(g, cfg.Momentum, log)
		if err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
		m.momentum = mom
	}
	if len(cfg.Tracers) > 0 {
		if cfg.TracerAdvection == nil {
			return nil, fmt.Errorf("model: tracers %v need a tracer advection scheme", cfg.Tracers)
		}
		if err := advection.CheckGrid(g, cfg.TracerAdvection, cfg.TracerAdvection.RequiredHalo()); err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
		m.tracerAdv = cfg.TracerAdvection.OnArchitecture(g.Architecture())
	}
	for _, name := range cfg.Tracers {
		if _, dup := m.Tracers[name]; dup {
			return nil, fmt.Errorf("model: tracer %q declared twice", name)
		}
		c := field.CenterField(g, name)
		m.Tracers[name] = c
		m.gc[name] = c.Similar("G" + name)
		m.gcPrev[name] = c.Similar("G" + name + "⁻")
	}
	m.gu, m.gv = m.Velocities.U.Similar("Gu"), m.Velocities.V.Similar("Gv")
	m.guPrev, m.gvPrev = m.Velocities.U.Similar("Gu⁻"), m.Velocities.V.Similar("Gv⁻")
	return m, nil
}

// TracerNames lists the tracers in name order
func (m *Model) TracerNames() []string {
	names := make([]string, 0, len(m.Tracers))
	for name := range m.Tracers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Initialize fills halos, sets the barotropic state of the free surface and
// diagnoses w from the initial velocities. Step calls it on first use.
func (m *Model) Initialize(ctx context.Context) error {
	m.Velocities.FillHalo()
	for _, c := range m.Tracers {
		c.FillHalo()
	}
	m.FreeSurface.Displacement().FillHalo()
	if err := m.FreeSurface.Initialize(ctx, m.Velocities); err != nil {
		return err
	}
	if err := freesurface.DiagnoseVerticalVelocity(ctx, m.Velocities, freesurface.FromBottom, nil); err != nil {
		return err
	}
	m.initialized = true
	return nil
}

// Step advances the model by dt: tendencies, predictor, free-surface
// correction and vertical velocity
func (m *Model) Step(ctx context.Context, dt float64) error {
	if !(dt > 0) {
		return fmt.Errorf("model: time step must be positive, got %g", dt)
	}
	if !m.initialized {
		if err := m.Initialize(ctx); err != nil {
			return err
		}
	}
	if err := m.tendencies(ctx); err != nil {
		return fmt.Errorf("model: tendencies at iteration %d: %w", m.Clock.Iteration, err)
	}
	if err := m.predict(ctx, dt); err != nil {
		return fmt.Errorf("model: predictor at iteration %d: %w", m.Clock.Iteration, err)
	}
	if err := m.FreeSurface.Step(ctx, m.Velocities, dt); err != nil {
		return fmt.Errorf("model: free surface at iteration %d: %w", m.Clock.Iteration, err)
	}
	if err := freesurface.DiagnoseVerticalVelocity(ctx, m.Velocities, m.integration,
		m.FreeSurface.DisplacementTendency()); err != nil {
		return fmt.Errorf("model: vertical velocity at iteration %d: %w", m.Clock.Iteration, err)
	}
	for _, c := range m.Tracers {
		c.FillHalo()
	}

	m.Clock.Time += dt
	m.Clock.Iteration++
	m.log.WithFields(logrus.Fields{
		"iteration": m.Clock.Iteration,
		"time":      m.Clock.Time,
	}).Debug("model step")
	return nil
}

// swap rotates the tendency buffers so the previous tendencies are kept for AB2
func (m *Model) swap() {
	m.gu, m.guPrev = m.guPrev, m.gu
	m.gv, m.gvPrev = m.gvPrev, m.gv
	for name := range m.gc {
		m.gc[name], m.gcPrev[name] = m.gcPrev[name], m.gc[name]
	}
}

func (m *Model) tendencies(ctx context.Context) error {
	m.swap()
	vel := m.Velocities
	vel.FillHalo()
	if m.momentum != nil {
		if err := m.momentum.Tendencies(ctx, vel, m.gu, m.gv); err != nil {
			return err
		}
	} else {
		m.gu.Fill(0)
		m.gv.Fill(0)
	}
	if m.coriolis != 0 {
		if err := m.addCoriolis(ctx); err != nil {
			return err
		}
	}
	for name, c := range m.Tracers {
		c.FillHalo()
		if err := m.tracerAdv.Tendency(ctx, vel, c, m.gc[name]); err != nil {
			return fmt.Errorf("tracer %s: %w", name, err)
		}
	}
	return nil
}

// addCoriolis adds f v̄ to Gu and -f ū to Gv with four-point averages of the
// companion velocity. The averages of a Bounded boundary face read its zero
// value, so the term does no work.
func (m *Model) addCoriolis(ctx context.Context) error {
	u, v, f := m.Velocities.U, m.Velocities.V, m.coriolis
	arch := m.Grid.Architecture()
	if err := arch.Launch(ctx, m.gu.Interior(), func(i, j, k int) {
		vbar := 0.25 * (v.At(i-1, j, k) + v.At(i, j, k) + v.At(i-1, j+1, k) + v.At(i, j+1, k))
		m.gu.Add(i, j, k, f*vbar)
	}); err != nil {
		return err
	}
	return arch.Launch(ctx, m.gv.Interior(), func(i, j, k int) {
		ubar := 0.25 * (u.At(i, j-1, k) + u.At(i+1, j-1, k) + u.At(i, j, k) + u.At(i+1, j, k))
		m.gv.Add(i, j, k, -f*ubar)
	})
}

// predict steps u, v and the tracers with the AB2 (or Euler on the first
// iteration) combination of the tendencies
func (m *Model) predict(ctx context.Context, dt float64) error {
	a, b := 1.0, 0.0
	if m.timestepper == AdamsBashforth2 && m.Clock.Iteration > 0 {
		a, b = 1.5+ABChi, -(0.5 + ABChi)
	}
	arch := m.Grid.Architecture()
	update := func(q, g, gPrev *field.Field) error {
		return arch.Launch(ctx, q.Interior(), func(i, j, k int) {
			q.Add(i, j, k, dt*(a*g.At(i, j, k)+b*gPrev.At(i, j, k)))
		})
	}
	if err := update(m.Velocities.U, m.gu, m.guPrev); err != nil {
		return err
	}
	if err := update(m.Velocities.V, m.gv, m.gvPrev); err != nil {
		return err
	}
	for name, c := range m.Tracers {
		if err := update(c, m.gc[name], m.gcPrev[name]); err != nil {
			return err
		}
	}
	return nil
}

// Run takes n steps of dt, calling callback after each when it is not nil
func (m *Model) Run(ctx context.Context, dt float64, n int, callback func(*Model) error) error {
	for s := 0; s < n; s++ {
		if err := m.Step(ctx, dt); err != nil {
			return err
		}
		if callback != nil {
			if err := callback(m); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Model) String() string {
	mom := "none"
	if m.momentum != nil {
		mom = m.momentum.String()
	}
	return fmt.Sprintf("Model{%v, momentum=%s, free surface=%s, %s, tracers=%v}",
		m.Grid, mom, m.FreeSurface, m.timestepper, m.TracerNames())
}
