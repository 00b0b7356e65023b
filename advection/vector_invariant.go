package advection

import (
	"context"
	"fmt"
	"strings"

	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
	"github.com/notargets/FVOcean/stencil"
)

// StencilKind selects where an upwind vorticity reconstruction takes its
// smoothness from
type StencilKind uint8

const (
	// DefaultStencil measures the smoothness of the vorticity itself
	DefaultStencil StencilKind = iota
	// VelocityStencil measures the smoothness of the velocity components
	VelocityStencil
)

func (s StencilKind) String() string {
	if s == VelocityStencil {
		return "VelocityStencil"
	}
	return "DefaultStencil"
}

// Upwinding selects how the divergence and kinetic energy fluxes are upwinded
type Upwinding uint8

const (
	// DefaultUpwinding resolves to OnlySelfUpwinding when an upwind divergence
	// or kinetic energy scheme is configured
	DefaultUpwinding Upwinding = iota
	// OnlySelfUpwinding upwinds the self term and interpolates the cross term
	OnlySelfUpwinding
	// CrossAndSelfUpwinding upwinds the sum of both terms, weighted by the
	// smoothness of the self term
	CrossAndSelfUpwinding
)

func (u Upwinding) String() string {
	switch u {
	case OnlySelfUpwinding:
		return "OnlySelfUpwinding"
	case CrossAndSelfUpwinding:
		return "CrossAndSelfUpwinding"
	}
	return "DefaultUpwinding"
}

// ParseUpwinding converts a configuration name into an Upwinding
func ParseUpwinding(name string) (Upwinding, error) {
	switch strings.ToLower(name) {
	case "", "default":
		return DefaultUpwinding, nil
	case "self", "onlyself", "onlyselfupwinding":
		return OnlySelfUpwinding, nil
	case "crossandself", "cross", "crossandselfupwinding":
		return CrossAndSelfUpwinding, nil
	}
	return 0, fmt.Errorf("unknown upwinding %q", name)
}

// VectorInvariant advects momentum as a vorticity flux, a vertical advection
// term and a kinetic energy gradient. Build it with NewVectorInvariant; the
// record is not mutated afterwards.
type VectorInvariant struct {
	VorticityScheme             Scheme
	VorticityStencil            StencilKind
	VerticalScheme              Scheme
	DivergenceScheme            stencil.ReconstructionScheme
	KineticEnergyGradientScheme Scheme
	Upwinding                   Upwinding
	MultiDimensional            bool
}

type VectorInvariantOption func(vi *VectorInvariant)

func WithVorticityScheme(s Scheme) VectorInvariantOption {
	return func(vi *VectorInvariant) { vi.VorticityScheme = s }
}

func WithVorticityStencil(k StencilKind) VectorInvariantOption {
	return func(vi *VectorInvariant) { vi.VorticityStencil = k }
}

func WithVerticalScheme(s Scheme) VectorInvariantOption {
	return func(vi *VectorInvariant) { vi.VerticalScheme = s }
}

func WithDivergenceScheme(s stencil.ReconstructionScheme) VectorInvariantOption {
	return func(vi *VectorInvariant) { vi.DivergenceScheme = s }
}

func WithKineticEnergyGradientScheme(s Scheme) VectorInvariantOption {
	return func(vi *VectorInvariant) { vi.KineticEnergyGradientScheme = s }
}

func WithUpwinding(u Upwinding) VectorInvariantOption {
	return func(vi *VectorInvariant) { vi.Upwinding = u }
}

func WithMultiDimensionalStencil() VectorInvariantOption {
	return func(vi *VectorInvariant) { vi.MultiDimensional = true }
}

// NewVectorInvariant applies opts over the defaults and validates the result.
// The vorticity scheme defaults to EnstrophyConserving. An upwind vorticity
// scheme also becomes the vertical scheme, the vertical scheme the divergence
// scheme, and the divergence scheme the kinetic energy gradient scheme, unless
// set explicitly.
func NewVectorInvariant(opts ...VectorInvariantOption) (*VectorInvariant, error) {
	vi := &VectorInvariant{VorticityScheme: EnstrophyConserving{}}
	for _, opt := range opts {
		opt(vi)
	}

	if vi.VorticityScheme == nil {
		return nil, configErr(vi, "no vorticity scheme")
	}
	vort, vortUpwind := upwindScheme(vi.VorticityScheme)
	switch vi.VorticityScheme.(type) {
	case EnergyConserving, EnstrophyConserving:
	default:
		if !vortUpwind {
			return nil, configErr(vi, "vorticity scheme %s is neither conserving nor upwind-biased", vi.VorticityScheme)
		}
	}
	if vi.VorticityStencil == VelocityStencil {
		if _, ok := vort.(stencil.IndicatorScheme); !ok {
			return nil, configErr(vi, "velocity stencil requires a WENO vorticity scheme, got %s", vi.VorticityScheme)
		}
	}
	if vi.MultiDimensional && !vortUpwind {
		return nil, configErr(vi, "multi-dimensional stencil requires an upwind vorticity scheme, got %s", vi.VorticityScheme)
	}

	if vi.VerticalScheme == nil {
		vi.VerticalScheme = EnergyConserving{}
		if vortUpwind {
			vi.VerticalScheme = vort
		}
	}
	vert, vertUpwind := upwindScheme(vi.VerticalScheme)
	if _, ec := vi.VerticalScheme.(EnergyConserving); !ec && !vertUpwind {
		return nil, configErr(vi, "vertical scheme %s is neither energy conserving nor upwind-biased", vi.VerticalScheme)
	}

	if vi.DivergenceScheme == nil && vertUpwind {
		vi.DivergenceScheme = vert
	}
	if vi.DivergenceScheme != nil && !vi.DivergenceScheme.IsUpwind() {
		return nil, configErr(vi, "divergence scheme %s is not upwind-biased", vi.DivergenceScheme)
	}
	if vi.Upwinding != DefaultUpwinding && vi.DivergenceScheme == nil {
		return nil, configErr(vi, "%s requires an upwind divergence scheme", vi.Upwinding)
	}

	if vi.KineticEnergyGradientScheme == nil {
		vi.KineticEnergyGradientScheme = EnergyConserving{}
		if vi.DivergenceScheme != nil {
			vi.KineticEnergyGradientScheme = vi.DivergenceScheme
		}
	}
	_, keUpwind := upwindScheme(vi.KineticEnergyGradientScheme)
	if _, ec := vi.KineticEnergyGradientScheme.(EnergyConserving); !ec && !keUpwind {
		return nil, configErr(vi, "kinetic energy gradient scheme %s is neither energy conserving nor upwind-biased",
			vi.KineticEnergyGradientScheme)
	}

	if vi.Upwinding == DefaultUpwinding && (vi.DivergenceScheme != nil || keUpwind) {
		vi.Upwinding = OnlySelfUpwinding
	}
	return vi, nil
}

func (vi *VectorInvariant) reconstructions() []stencil.ReconstructionScheme {
	var out []stencil.ReconstructionScheme
	for _, s := range []Scheme{vi.VorticityScheme, vi.VerticalScheme, vi.KineticEnergyGradientScheme} {
		if r, ok := s.(stencil.ReconstructionScheme); ok {
			out = append(out, r)
		}
	}
	if vi.DivergenceScheme != nil {
		out = append(out, vi.DivergenceScheme)
	}
	return out
}

// RequiredHalo is CompositeHalo of the sub-schemes, widened by the transverse
// pass of the multi-dimensional stencil
func (vi *VectorInvariant) RequiredHalo() int {
	h := CompositeHalo(vi.reconstructions()...)
	if vort, ok := upwindScheme(vi.VorticityScheme); ok && vi.MultiDimensional {
		if md := vort.RequiredHalo() + stencil.MultiDimensionalHalo; md > h {
			h = md
		}
	}
	return h
}

// OnArchitecture returns a copy whose reconstructions are bound to arch
func (vi *VectorInvariant) OnArchitecture(arch runner.Architecture) Momentum {
	c := *vi
	relocate := func(s Scheme) Scheme {
		if r, ok := s.(stencil.ReconstructionScheme); ok {
			return r.OnArchitecture(arch)
		}
		return s
	}
	c.VorticityScheme = relocate(vi.VorticityScheme)
	c.VerticalScheme = relocate(vi.VerticalScheme)
	c.KineticEnergyGradientScheme = relocate(vi.KineticEnergyGradientScheme)
	if vi.DivergenceScheme != nil {
		c.DivergenceScheme = vi.DivergenceScheme.OnArchitecture(arch)
	}
	return &c
}

func (vi *VectorInvariant) String() string {
	div := "none"
	if vi.DivergenceScheme != nil {
		div = vi.DivergenceScheme.String()
	}
	s := fmt.Sprintf("VectorInvariant{vorticity=%v, vertical=%v, divergence=%s, ke=%v, %s",
		vi.VorticityScheme, vi.VerticalScheme, div, vi.KineticEnergyGradientScheme, vi.Upwinding)
	if _, ok := upwindScheme(vi.VorticityScheme); ok {
		s += ", " + vi.VorticityStencil.String()
	}
	if vi.MultiDimensional {
		s += ", multi-dimensional"
	}
	return s + "}"
}

// fallbackScheme is the reconstruction used when flux form replaces this
// formulation
func (vi *VectorInvariant) fallbackScheme() stencil.ReconstructionScheme {
	if r, ok := upwindScheme(vi.VorticityScheme); ok {
		return r
	}
	c, _ := stencil.NewCentered(2)
	return c
}

func (vi *VectorInvariant) Tendencies(ctx context.Context, vel field.Velocities, gu, gv *field.Field) error {
	op := newVectorInvariantOperator(vi, vel)
	arch := op.g.Architecture()
	if err := arch.Launch(ctx, gu.Interior(), func(i, j, k int) {
		gu.Set(i, j, k, -op.advection(grid.X, i, j, k))
	}); err != nil {
		return err
	}
	return arch.Launch(ctx, gv.Interior(), func(i, j, k int) {
		gv.Set(i, j, k, -op.advection(grid.Y, i, j, k))
	})
}
