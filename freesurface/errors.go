package freesurface

import (
	"errors"
	"fmt"
)

// ErrNotConverged is wrapped by every ConvergenceError
var ErrNotConverged = errors.New("solver did not converge")

// ConfigurationError reports invalid free-surface or solver parameters
type ConfigurationError struct {
	Solver string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("freesurface: %s: %s", e.Solver, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(solver, format string, args ...interface{}) error {
	return &ConfigurationError{Solver: solver, Reason: fmt.Sprintf(format, args...)}
}

// ConvergenceError is returned when an iterative solve exhausts its iteration
// budget. The solution vector holds the last iterate.
type ConvergenceError struct {
	Solver     string
	Iterations int
	Residual   float64
	Tolerance  float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("freesurface: %s: relative residual %.3e above tolerance %.3e after %d iterations",
		e.Solver, e.Residual, e.Tolerance, e.Iterations)
}

func (e *ConvergenceError) Unwrap() error { return ErrNotConverged }
