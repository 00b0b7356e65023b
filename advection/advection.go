// Package advection assembles stencil reconstructions into advective tendencies
// for tracers and momentum on a staggered C-grid.
package advection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
	"github.com/notargets/FVOcean/stencil"
	"github.com/sirupsen/logrus"
)

// ConfigurationError reports an invalid or incompatible scheme combination
type ConfigurationError struct {
	Scheme string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("advection: %s: %s", e.Scheme, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(scheme fmt.Stringer, format string, args ...interface{}) error {
	name := "<nil>"
	if scheme != nil {
		name = scheme.String()
	}
	return &ConfigurationError{Scheme: name, Reason: fmt.Sprintf(format, args...)}
}

// Scheme is a discretization choice for one term of the vector-invariant
// formulation: EnergyConserving, EnstrophyConserving or any
// stencil.ReconstructionScheme
type Scheme interface {
	String() string
}

// EnergyConserving selects the kinetic energy conserving discretization
type EnergyConserving struct{}

func (EnergyConserving) String() string { return "EnergyConserving" }

// EnstrophyConserving selects the enstrophy conserving vorticity flux
type EnstrophyConserving struct{}

func (EnstrophyConserving) String() string { return "EnstrophyConserving" }

// ParseScheme converts a configuration name into a Scheme. The conserving
// discretizations are named "EnergyConserving" and "EnstrophyConserving";
// anything else is a stencil reconstruction name such as "WENO5".
func ParseScheme(name string) (Scheme, error) {
	switch strings.ToLower(name) {
	case "energyconserving", "energy":
		return EnergyConserving{}, nil
	case "enstrophyconserving", "enstrophy":
		return EnstrophyConserving{}, nil
	}
	return stencil.ParseScheme(name)
}

// upwindScheme returns s as an upwind reconstruction when it is one
func upwindScheme(s Scheme) (stencil.ReconstructionScheme, bool) {
	r, ok := s.(stencil.ReconstructionScheme)
	if !ok || !r.IsUpwind() {
		return nil, false
	}
	return r, true
}

// CompositeHalo is the halo required by a scheme composed of the given
// reconstructions: the largest reach, plus one when any is upwind-biased since
// the reconstructed vorticity or divergence itself consumes a halo cell
func CompositeHalo(schemes ...stencil.ReconstructionScheme) int {
	h, upwind := 1, false
	for _, s := range schemes {
		if s == nil {
			continue
		}
		if s.RequiredHalo() > h {
			h = s.RequiredHalo()
		}
		upwind = upwind || s.IsUpwind()
	}
	if upwind {
		h++
	}
	return h
}

// CheckGrid verifies that g carries the halo a scheme needs
func CheckGrid(g grid.Grid, scheme fmt.Stringer, halo int) error {
	if err := field.CheckHalo(g, halo); err != nil {
		return &ConfigurationError{Scheme: scheme.String(), Reason: "grid halo too small", Err: err}
	}
	return nil
}

// IsConfigurationError reports whether err carries a ConfigurationError
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

// Momentum computes the advective tendencies -A of the horizontal velocities
type Momentum interface {
	RequiredHalo() int
	// Tendencies writes -A(u) into gu and -A(v) into gv over their interiors.
	// Velocity halos must be filled.
	Tendencies(ctx context.Context, vel field.Velocities, gu, gv *field.Field) error
	OnArchitecture(arch runner.Architecture) Momentum
	String() string
}

// MomentumAdvection binds a momentum formulation to g. Vector-invariant
// formulations fall back to flux form on grids with non-uniform horizontal
// spacing.
func MomentumAdvection(g grid.Grid, m Momentum, log logrus.FieldLogger) (Momentum, error) {
	if m == nil {
		return nil, configErr(nil, "no momentum formulation")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	if vi, ok := m.(*VectorInvariant); ok && !g.UniformHorizontal() {
		ff, err := NewFluxForm(vi.fallbackScheme())
		if err != nil {
			return nil, err
		}
		log.WithFields(logrus.Fields{
			"requested": vi.String(),
			"using":     ff.String(),
		}).Warn("vector-invariant momentum advection requires uniform horizontal spacing; falling back to flux form")
		m = ff
	}
	if err := CheckGrid(g, m, m.RequiredHalo()); err != nil {
		return nil, err
	}
	return m.OnArchitecture(g.Architecture()), nil
}
