// Package freesurface enforces the continuity constraint on provisional
// velocities by evolving the surface displacement η. Explicit, implicit and
// split-explicit variants share the barotropic transport and correction
// operators defined here.
package freesurface

import (
	"context"
	"fmt"

	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
	"github.com/sirupsen/logrus"
)

// FreeSurface advances η once per full step and corrects the horizontal
// velocities so that the depth-integrated flow is consistent with it
type FreeSurface interface {
	// Initialize sets the barotropic state from vel at the start of a run
	Initialize(ctx context.Context, vel field.Velocities) error
	// Step solves for η at the next time level and corrects u and v in place.
	// w is left untouched; diagnose it with DiagnoseVerticalVelocity.
	Step(ctx context.Context, vel field.Velocities, dt float64) error
	Displacement() *field.Field
	// DisplacementTendency holds (η^{n+1} - η^n)/Δt of the last step
	DisplacementTendency() *field.Field
	String() string
}

type options struct {
	log logrus.FieldLogger
}

// Option configures a free surface or solver
type Option func(o *options)

// WithLogger routes solver diagnostics to log
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

func applyOptions(opts []Option) options {
	o := options{log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logrus.StandardLogger()
	}
	return o
}

// surface is the state shared by every variant: η on the surface grid and
// scratch fields for the barotropic transport
type surface struct {
	Gravity float64

	grid grid.Grid
	surf grid.Grid
	η    *field.Field
	dηdt *field.Field
	U, V *field.Field
	log  logrus.FieldLogger
}

func newSurface(name string, g grid.Grid, gravity float64, o options) (*surface, error) {
	if !(gravity > 0) {
		return nil, configErr(name, "gravitational acceleration must be positive, got %g", gravity)
	}
	if g.Topology(grid.Z) != grid.Bounded {
		return nil, configErr(name, "vertical axis must be Bounded, got %s", g.Topology(grid.Z))
	}
	surf := g.Surface()
	return &surface{
		Gravity: gravity,
		grid:    g,
		surf:    surf,
		η:       field.CenterField(surf, "η"),
		dηdt:    field.CenterField(surf, "∂η∂t"),
		U:       field.NewField(surf, grid.FCC, "U"),
		V:       field.NewField(surf, grid.CFC, "V"),
		log:     o.log.WithField("solver", name),
	}, nil
}

func (s *surface) Displacement() *field.Field { return s.η }

func (s *surface) DisplacementTendency() *field.Field { return s.dηdt }

func (s *surface) arch() runner.Architecture { return s.grid.Architecture() }

// columns is the horizontal index range of the surface grid
func (s *surface) columns() runner.IndexRange {
	nx, ny, _ := s.grid.Size()
	return runner.NewIndexRange(nx, ny, 1)
}

// transport integrates vel over depth into U = Σ u Δz and V = Σ v Δz on every
// face, boundary faces included
func (s *surface) transport(ctx context.Context, vel field.Velocities, U, V *field.Field) error {
	g := s.grid
	_, _, nz := g.Size()
	integrate := func(q, Q *field.Field, loc grid.Location) error {
		return s.arch().Launch(ctx, Q.Extent(), func(i, j, _ int) {
			sum := 0.0
			for k := 0; k < nz; k++ {
				sum += q.At(i, j, k) * grid.Dz(g, i, j, k, loc)
			}
			Q.Set(i, j, 0, sum)
		})
	}
	if err := integrate(vel.U, U, grid.FCC); err != nil {
		return err
	}
	if err := integrate(vel.V, V, grid.CFC); err != nil {
		return err
	}
	U.FillHalo()
	V.FillHalo()
	return nil
}

// divergence is the area-integrated transport divergence D(U) of cell (i,j)
func (s *surface) divergence(U, V *field.Field, i, j int) float64 {
	sg := s.surf
	return grid.Dy(sg, i+1, j, 0, grid.FCC)*U.At(i+1, j, 0) - grid.Dy(sg, i, j, 0, grid.FCC)*U.At(i, j, 0) +
		grid.Dx(sg, i, j+1, 0, grid.CFC)*V.At(i, j+1, 0) - grid.Dx(sg, i, j, 0, grid.CFC)*V.At(i, j, 0)
}

// advance sets ∂η/∂t = -D(U)/Az and steps η forward by dt
func (s *surface) advance(ctx context.Context, U, V *field.Field, dt float64) error {
	err := s.arch().Launch(ctx, s.columns(), func(i, j, _ int) {
		tendency := -s.divergence(U, V, i, j) / grid.Az(s.surf, i, j, 0, grid.CCC)
		s.dηdt.Set(i, j, 0, tendency)
		s.η.Add(i, j, 0, dt*tendency)
	})
	if err != nil {
		return err
	}
	s.η.FillHalo()
	s.dηdt.FillHalo()
	return nil
}

// correct subtracts the surface pressure gradient gΔt∇η from u and v at every
// interior face of every level and refreshes their halos
func (s *surface) correct(ctx context.Context, vel field.Velocities, η *field.Field, dt float64) error {
	g, gdt := s.grid, s.Gravity*dt
	η.FillHalo()
	err := s.arch().Launch(ctx, vel.U.Interior(), func(i, j, k int) {
		vel.U.Add(i, j, k, -gdt*(η.At(i, j, 0)-η.At(i-1, j, 0))/grid.Dx(g, i, j, k, grid.FCC))
	})
	if err != nil {
		return err
	}
	err = s.arch().Launch(ctx, vel.V.Interior(), func(i, j, k int) {
		vel.V.Add(i, j, k, -gdt*(η.At(i, j, 0)-η.At(i, j-1, 0))/grid.Dy(g, i, j, k, grid.CFC))
	})
	if err != nil {
		return err
	}
	vel.U.FillHalo()
	vel.V.FillHalo()
	return nil
}

// gather copies the interior of a surface field into a flat vector, i fastest
func gather(f *field.Field, x []float64) {
	nx, ny, _ := f.Grid().Size()
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			x[i+nx*j] = f.At(i, j, 0)
		}
	}
}

// scatter is the inverse of gather; the halo of f is refreshed
func scatter(x []float64, f *field.Field) {
	nx, ny, _ := f.Grid().Size()
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			f.Set(i, j, 0, x[i+nx*j])
		}
	}
	f.FillHalo()
}

func checkStep(name string, dt float64) error {
	if !(dt > 0) {
		return fmt.Errorf("freesurface: %s: time step must be positive, got %g", name, dt)
	}
	return nil
}
