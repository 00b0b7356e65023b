package freesurface

import (
	"context"
	"fmt"

	"github.com/notargets/FVOcean/runner"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

const (
	DefaultTolerance     = 1e-10
	DefaultMaxIterations = 500
)

// Stats describes the outcome of one solve
type Stats struct {
	Iterations int
	Residual   float64
}

// Solver solves A x = b for the Helmholtz operator of an implicit free surface.
// Prepare is called whenever the operator scale changes.
type Solver interface {
	Prepare(op *HelmholtzOperator) error
	// Solve overwrites x, using its incoming value as the initial guess where
	// the method is iterative
	Solve(ctx context.Context, rhs, x []float64) (Stats, error)
	String() string
}

// Preconditioner approximates z = A⁻¹ r
type Preconditioner interface {
	Prepare(op *HelmholtzOperator) error
	Precondition(ctx context.Context, r, z []float64) error
	String() string
}

// JacobiPreconditioner divides by the operator diagonal
type JacobiPreconditioner struct {
	inverse []float64
}

func (p *JacobiPreconditioner) Prepare(op *HelmholtzOperator) error {
	p.inverse = op.Diagonal()
	for n, d := range p.inverse {
		if d == 0 {
			return configErr(p.String(), "zero diagonal at %d", n)
		}
		p.inverse[n] = 1 / d
	}
	return nil
}

func (p *JacobiPreconditioner) Precondition(_ context.Context, r, z []float64) error {
	floats.MulTo(z, p.inverse, r)
	return nil
}

func (p *JacobiPreconditioner) String() string { return "Jacobi" }

// PCGSolver is a matrix-free preconditioned conjugate gradient. Convergence is
// ‖r‖ ≤ Tolerance ‖b‖ or MaxIterations reached, whichever comes first; the
// latter returns a *ConvergenceError.
type PCGSolver struct {
	Tolerance     float64
	MaxIterations int
	// Preconditioner is optional
	Preconditioner Preconditioner
	// Device, when set, applies the operator through a compiled kernel
	Device *runner.Device
	Log    logrus.FieldLogger

	op            Operator
	r, z, p, q, b []float64
}

// NewPCGSolver returns a solver with default tolerance and iteration budget
// and a Jacobi preconditioner
func NewPCGSolver(opts ...Option) *PCGSolver {
	o := applyOptions(opts)
	return &PCGSolver{
		Tolerance:      DefaultTolerance,
		MaxIterations:  DefaultMaxIterations,
		Preconditioner: &JacobiPreconditioner{},
		Log:            o.log,
	}
}

// defaults fills an unset tolerance and logger and checks the iteration budget
func (s *PCGSolver) defaults() error {
	if s.Tolerance <= 0 {
		s.Tolerance = DefaultTolerance
	}
	if s.MaxIterations < 1 {
		return configErr(s.String(), "iteration budget must be positive, got %d", s.MaxIterations)
	}
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}
	return nil
}

func (s *PCGSolver) Prepare(op *HelmholtzOperator) error {
	if err := s.defaults(); err != nil {
		return err
	}
	s.op = op
	if s.Device != nil {
		dop, err := NewDeviceOperator(s.Device, op)
		if err != nil {
			return &ConfigurationError{Solver: s.String(), Reason: "device operator", Err: err}
		}
		s.op = dop
	}
	if s.Preconditioner != nil {
		if err := s.Preconditioner.Prepare(op); err != nil {
			return err
		}
	}
	return nil
}

func (s *PCGSolver) Solve(ctx context.Context, rhs, x []float64) (Stats, error) {
	if s.op == nil {
		return Stats{}, fmt.Errorf("freesurface: %s: solve before Prepare", s)
	}
	return s.solve(ctx, s.op, rhs, x)
}

func (s *PCGSolver) alloc(n int) {
	if len(s.r) == n {
		return
	}
	s.r, s.z, s.p, s.q, s.b = make([]float64, n), make([]float64, n), make([]float64, n),
		make([]float64, n), make([]float64, n)
}

func (s *PCGSolver) precondition(ctx context.Context, r, z []float64) error {
	if s.Preconditioner == nil {
		copy(z, r)
		return nil
	}
	return s.Preconditioner.Precondition(ctx, r, z)
}

func (s *PCGSolver) solve(ctx context.Context, a Operator, rhs, x []float64) (Stats, error) {
	n := a.Size()
	if len(rhs) != n || len(x) != n {
		return Stats{}, fmt.Errorf("freesurface: %s: operator size %d, rhs %d, solution %d", s, n, len(rhs), len(x))
	}
	s.alloc(n)
	r, z, p, q := s.r, s.z, s.p, s.q
	copy(s.b, rhs)

	bnorm := floats.Norm(s.b, 2)
	if bnorm == 0 {
		for i := range x {
			x[i] = 0
		}
		return Stats{}, nil
	}

	if err := a.Apply(ctx, x, q); err != nil {
		return Stats{}, err
	}
	floats.SubTo(r, s.b, q)
	residual := floats.Norm(r, 2) / bnorm
	if residual <= s.Tolerance {
		return Stats{Residual: residual}, nil
	}
	if err := s.precondition(ctx, r, z); err != nil {
		return Stats{}, err
	}
	copy(p, z)
	rz := floats.Dot(r, z)

	for it := 1; it <= s.MaxIterations; it++ {
		if err := ctx.Err(); err != nil {
			return Stats{Iterations: it - 1, Residual: residual}, err
		}
		if err := a.Apply(ctx, p, q); err != nil {
			return Stats{Iterations: it - 1, Residual: residual}, err
		}
		α := rz / floats.Dot(p, q)
		floats.AddScaled(x, α, p)
		floats.AddScaled(r, -α, q)
		residual = floats.Norm(r, 2) / bnorm
		s.Log.WithFields(logrus.Fields{
			"solver":    "PCG",
			"iteration": it,
			"residual":  residual,
		}).Trace("pcg iteration")
		if residual <= s.Tolerance {
			return Stats{Iterations: it, Residual: residual}, nil
		}
		if err := s.precondition(ctx, r, z); err != nil {
			return Stats{Iterations: it, Residual: residual}, err
		}
		rzNext := floats.Dot(r, z)
		floats.AddScaledTo(p, z, rzNext/rz, p)
		rz = rzNext
	}

	s.Log.WithFields(logrus.Fields{
		"solver":    "PCG",
		"iteration": s.MaxIterations,
		"residual":  residual,
	}).Warn("pcg did not converge")
	return Stats{Iterations: s.MaxIterations, Residual: residual}, &ConvergenceError{
		Solver:     s.String(),
		Iterations: s.MaxIterations,
		Residual:   residual,
		Tolerance:  s.Tolerance,
	}
}

func (s *PCGSolver) String() string {
	pre := "none"
	if s.Preconditioner != nil {
		pre = s.Preconditioner.String()
	}
	return fmt.Sprintf("PCG(%s)", pre)
}
