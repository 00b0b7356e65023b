package config

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/notargets/FVOcean/advection"
	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/freesurface"
	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/model"
	"github.com/notargets/FVOcean/runner"
	"github.com/notargets/FVOcean/runner/builder"
	"github.com/notargets/FVOcean/stencil"
	"github.com/sirupsen/logrus"
)

// normalize lower-cases a configuration name and drops separators
func normalize(name string) string {
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(name))
}

// Logger returns a text logger at the configured level
func (c *Config) Logger() (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if c.Run.LogLevel != "" {
		lvl, err := logrus.ParseLevel(c.Run.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		log.SetLevel(lvl)
	}
	return log, nil
}

func openDevice(mode string, cfg builder.Config) (*runner.Device, error) {
	dev, err := runner.CreateDevice(runner.ModeProps(mode))
	if err != nil {
		return nil, err
	}
	return runner.NewDevice(dev, cfg), nil
}

// BuildArchitecture returns the kernel architecture. A device architecture
// must be freed by the caller.
func (c *Config) BuildArchitecture() (runner.Architecture, error) {
	a := c.Architecture
	switch normalize(a.Kind) {
	case "", "serial":
		return runner.Serial{}, nil
	case "cpu":
		return runner.NewCPU(a.Workers), nil
	case "device":
		mode := a.Mode
		if mode == "" {
			mode = "Serial"
		}
		n := c.Grid.Size
		return openDevice(mode, builder.Config{Nx: n[0], Ny: n[1], Nz: n[2], Halo: c.Grid.Halo})
	}
	return nil, fmt.Errorf("config: unknown architecture %q", a.Kind)
}

// BuildGrid constructs the grid on arch
func (c *Config) BuildGrid(arch runner.Architecture) (grid.Grid, error) {
	gc := c.Grid
	cfg := grid.Config{
		Size:         gc.Size,
		Extent:       gc.Extent,
		Origin:       gc.Origin,
		Faces:        [3][]float64{gc.FacesX, gc.FacesY, gc.FacesZ},
		Halo:         gc.Halo,
		Architecture: arch,
	}
	for a, name := range gc.Topology {
		t, err := grid.ParseTopology(name)
		if err != nil {
			return nil, fmt.Errorf("config: grid axis %d: %w", a, err)
		}
		cfg.Topology[a] = t
	}
	g, err := grid.NewRectilinearGrid(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return g, nil
}

// BuildMomentum returns the momentum formulation, or nil for linear dynamics
func (c *Config) BuildMomentum() (advection.Momentum, error) {
	ac := c.Advection
	switch normalize(ac.Momentum) {
	case "", "none":
		return nil, nil
	case "fluxform":
		s, err := stencil.ParseScheme(ac.Scheme)
		if err != nil {
			return nil, fmt.Errorf("config: momentum: %w", err)
		}
		return advection.NewFluxForm(s)
	case "vectorinvariant":
		opts, err := ac.VectorInvariant.options()
		if err != nil {
			return nil, fmt.Errorf("config: vector_invariant: %w", err)
		}
		return advection.NewVectorInvariant(opts...)
	}
	return nil, fmt.Errorf("config: unknown momentum formulation %q", ac.Momentum)
}

func (vc VectorInvariantConfig) options() ([]advection.VectorInvariantOption, error) {
	var opts []advection.VectorInvariantOption
	terms := []struct {
		name string
		with func(advection.Scheme) advection.VectorInvariantOption
	}{
		{vc.Vorticity, advection.WithVorticityScheme},
		{vc.Vertical, advection.WithVerticalScheme},
		{vc.KineticEnergy, advection.WithKineticEnergyGradientScheme},
	}
	for _, t := range terms {
		if t.name == "" {
			continue
		}
		s, err := advection.ParseScheme(t.name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, t.with(s))
	}
	if vc.Divergence != "" {
		s, err := stencil.ParseScheme(vc.Divergence)
		if err != nil {
			return nil, err
		}
		opts = append(opts, advection.WithDivergenceScheme(s))
	}
	u, err := advection.ParseUpwinding(vc.Upwinding)
	if err != nil {
		return nil, err
	}
	opts = append(opts, advection.WithUpwinding(u))
	if vc.VelocityStencil {
		opts = append(opts, advection.WithVorticityStencil(advection.VelocityStencil))
	}
	if vc.MultiDimensional {
		opts = append(opts, advection.WithMultiDimensionalStencil())
	}
	return opts, nil
}

// BuildTracerAdvection returns the tracer scheme, or nil when no tracers are
// declared
func (c *Config) BuildTracerAdvection() (*advection.TracerAdvection, error) {
	if len(c.Advection.Tracers) == 0 {
		return nil, nil
	}
	s, err := stencil.ParseScheme(c.Advection.Tracer)
	if err != nil {
		return nil, fmt.Errorf("config: tracer: %w", err)
	}
	return advection.NewTracerAdvection(s)
}

// Scenario is a model built from a Config together with the devices it holds
type Scenario struct {
	Config *Config
	Model  *model.Model
	Log    logrus.FieldLogger

	devices []*runner.Device
}

// Close frees the device memory and the OCCA devices of the scenario
func (s *Scenario) Close() {
	for _, d := range s.devices {
		d.Free()
		d.Device.Free()
	}
	s.devices = nil
}

// BuildSolver returns the elliptic solver of an implicit free surface
func (s *Scenario) BuildSolver() (freesurface.Solver, error) {
	fc := s.Config.FreeSurface
	switch normalize(fc.Solver) {
	case "", "fft":
		return freesurface.NewFFTSolver(), nil
	case "pcg":
		pcg, err := s.pcg(fc)
		if err != nil {
			return nil, err
		}
		switch normalize(fc.Preconditioner) {
		case "", "jacobi":
		case "fft":
			pcg.Preconditioner = freesurface.NewFFTPreconditioner()
		case "none":
			pcg.Preconditioner = nil
		default:
			return nil, fmt.Errorf("config: unknown preconditioner %q", fc.Preconditioner)
		}
		return pcg, nil
	case "matrix":
		method, err := freesurface.ParseMatrixMethod(fc.Matrix)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		ms := freesurface.NewMatrixSolver(method, freesurface.WithLogger(s.Log))
		if fc.Tolerance > 0 {
			ms.PCG.Tolerance = fc.Tolerance
		}
		if fc.MaxIterations > 0 {
			ms.PCG.MaxIterations = fc.MaxIterations
		}
		return ms, nil
	}
	return nil, fmt.Errorf("config: unknown free surface solver %q", fc.Solver)
}

func (s *Scenario) pcg(fc FreeSurfaceConfig) (*freesurface.PCGSolver, error) {
	pcg := freesurface.NewPCGSolver(freesurface.WithLogger(s.Log))
	if fc.Tolerance > 0 {
		pcg.Tolerance = fc.Tolerance
	}
	if fc.MaxIterations > 0 {
		pcg.MaxIterations = fc.MaxIterations
	}
	if fc.Device != "" {
		n := s.Config.Grid.Size
		dev, err := openDevice(fc.Device, builder.Config{Nx: n[0], Ny: n[1], Nz: 1})
		if err != nil {
			return nil, fmt.Errorf("config: free surface device: %w", err)
		}
		s.devices = append(s.devices, dev)
		pcg.Device = dev
	}
	return pcg, nil
}

// BuildFreeSurface returns the configured barotropic solver on g
func (s *Scenario) BuildFreeSurface(g grid.Grid) (freesurface.FreeSurface, error) {
	fc := s.Config.FreeSurface
	opt := freesurface.WithLogger(s.Log)
	switch normalize(fc.Kind) {
	case "explicit":
		return freesurface.NewExplicitFreeSurface(g, fc.Gravity, opt)
	case "implicit":
		solver, err := s.BuildSolver()
		if err != nil {
			return nil, err
		}
		return freesurface.NewImplicitFreeSurface(g, fc.Gravity, solver, opt)
	case "", "splitexplicit":
		kernel, err := freesurface.ParseAveragingKernel(fc.Averaging)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return freesurface.NewSplitExplicitFreeSurface(g, fc.Gravity, fc.Substeps, kernel, opt)
	}
	return nil, fmt.Errorf("config: unknown free surface %q", fc.Kind)
}

// Build constructs the model the configuration describes. The returned
// scenario must be closed.
func (c *Config) Build(log logrus.FieldLogger) (*Scenario, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	sc := &Scenario{Config: c, Log: log}
	if err := c.build(sc); err != nil {
		sc.Close()
		return nil, err
	}
	return sc, nil
}

func (c *Config) build(sc *Scenario) error {
	arch, err := c.BuildArchitecture()
	if err != nil {
		return err
	}
	if d, ok := arch.(*runner.Device); ok {
		sc.devices = append(sc.devices, d)
	}
	g, err := c.BuildGrid(arch)
	if err != nil {
		return err
	}
	mom, err := c.BuildMomentum()
	if err != nil {
		return err
	}
	tracer, err := c.BuildTracerAdvection()
	if err != nil {
		return err
	}
	fs, err := sc.BuildFreeSurface(g)
	if err != nil {
		return err
	}
	ts, err := model.ParseTimestepper(c.Run.Timestepper)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	integration, err := freesurface.ParseIntegration(c.Run.VerticalIntegration)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	sc.Model, err = model.New(model.Config{
		Grid:                g,
		Momentum:            mom,
		TracerAdvection:     tracer,
		Tracers:             c.Advection.Tracers,
		FreeSurface:         fs,
		Coriolis:            c.Run.Coriolis,
		Timestepper:         ts,
		VerticalIntegration: integration,
		Log:                 sc.Log,
	})
	if err != nil {
		return err
	}
	for name := range c.Initial.Tracers {
		if _, ok := sc.Model.Tracers[name]; !ok {
			return fmt.Errorf("config: initial value for undeclared tracer %q", name)
		}
	}
	return nil
}

// Initialize sets the initial state: the surface bump, the uniform flow on
// the interior faces and the tracer values
func (s *Scenario) Initialize(ctx context.Context) error {
	ic, m := s.Config.Initial, s.Model
	if ic.Amplitude != 0 {
		if !(ic.Width > 0) {
			return fmt.Errorf("config: initial bump width must be positive, got %g", ic.Width)
		}
		w2 := 2 * ic.Width * ic.Width
		if err := model.SetInitialCondition(ctx, m.FreeSurface.Displacement(), func(x, y, _ float64) float64 {
			return ic.Amplitude * math.Exp(-((x-ic.X)*(x-ic.X)+(y-ic.Y)*(y-ic.Y))/w2)
		}); err != nil {
			return err
		}
	}
	arch := m.Grid.Architecture()
	for _, uv := range []struct {
		q *field.Field
		v float64
	}{{m.Velocities.U, ic.U}, {m.Velocities.V, ic.V}} {
		q, v := uv.q, uv.v
		if err := arch.Launch(ctx, q.Interior(), func(i, j, k int) { q.Set(i, j, k, v) }); err != nil {
			return err
		}
		q.FillHalo()
	}
	for name, v := range ic.Tracers {
		m.Tracers[name].Fill(v)
	}
	return m.Initialize(ctx)
}
