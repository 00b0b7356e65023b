package advection

import (
	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/stencil"
)

// vectorInvariantOperator evaluates the vector-invariant terms for one set of
// velocities. For the u equation a = X and the companion component is v along
// b = Y; the v equation swaps the roles.
type vectorInvariantOperator struct {
	vi  *VectorInvariant
	g   grid.Grid
	vel field.Velocities

	vorticity  stencil.ReconstructionScheme // nil for conserving schemes
	vertical   stencil.ReconstructionScheme // nil for energy conserving
	divergence stencil.ReconstructionScheme
	kinetic    stencil.ReconstructionScheme

	ζ   stencil.Reader
	azw stencil.Reader
}

func newVectorInvariantOperator(vi *VectorInvariant, vel field.Velocities) *vectorInvariantOperator {
	g := vel.U.Grid()
	op := &vectorInvariantOperator{vi: vi, g: g, vel: vel, divergence: vi.DivergenceScheme}
	op.vorticity, _ = upwindScheme(vi.VorticityScheme)
	op.vertical, _ = upwindScheme(vi.VerticalScheme)
	op.kinetic, _ = upwindScheme(vi.KineticEnergyGradientScheme)
	if op.vertical == nil {
		op.vertical = op.divergence
	}
	op.ζ = stencil.ReaderFunc(op.relativeVorticity)
	op.azw = product(g, grid.Az, grid.CCF, vel.W)
	return op
}

// relativeVorticity is the circulation around the ffc cell divided by its area
func (op *vectorInvariantOperator) relativeVorticity(i, j, k int) float64 {
	g, u, v := op.g, op.vel.U, op.vel.V
	dyv := grid.Dy(g, i, j, k, grid.CFC)*v.At(i, j, k) - grid.Dy(g, i-1, j, k, grid.CFC)*v.At(i-1, j, k)
	dxu := grid.Dx(g, i, j, k, grid.FCC)*u.At(i, j, k) - grid.Dx(g, i, j-1, k, grid.FCC)*u.At(i, j-1, k)
	return (dyv - dxu) / grid.Az(g, i, j, k, grid.FFC)
}

// components returns the advected component q normal to a, its companion p
// and the companion axis b
func (op *vectorInvariantOperator) components(a grid.Axis) (q, p *field.Field, b grid.Axis) {
	if a == grid.X {
		return op.vel.U, op.vel.V, grid.Y
	}
	return op.vel.V, op.vel.U, grid.X
}

func (op *vectorInvariantOperator) across(b grid.Axis) []grid.Axis {
	if op.vi.MultiDimensional {
		return []grid.Axis{b}
	}
	return nil
}

// advection is A(q) = horizontal + vertical + kinetic energy gradient at the q
// point (i,j,k)
func (op *vectorInvariantOperator) advection(a grid.Axis, i, j, k int) float64 {
	return op.horizontal(a, i, j, k) + op.verticalAdvection(a, i, j, k) + op.bernoulliHead(a, i, j, k)
}

// horizontal is the vorticity flux: -ζ v for u and +ζ u for v
func (op *vectorInvariantOperator) horizontal(a grid.Axis, i, j, k int) float64 {
	g := op.g
	q, p, b := op.components(a)
	sign := 1.0
	if a == grid.X {
		sign = -1
	}
	Δ := g.Spacing(a, i, j, k, q.Location())
	Δp := product(g, func(g grid.Grid, i, j, k int, loc grid.Location) float64 {
		return g.Spacing(a, i, j, k, loc)
	}, p.Location(), p)

	switch op.vi.VorticityScheme.(type) {
	case EnergyConserving:
		flux := stencil.ReaderFunc(func(i, j, k int) float64 {
			return op.ζ.At(i, j, k) * toFace(Δp, a, i, j, k)
		})
		return sign * toCenter(flux, b, i, j, k) / Δ
	case EnstrophyConserving:
		pc := stencil.ReaderFunc(func(i, j, k int) float64 { return toCenter(Δp, b, i, j, k) })
		return sign * toCenter(op.ζ, b, i, j, k) * toFace(pc, a, i, j, k) / Δ
	}

	pc := stencil.ReaderFunc(func(i, j, k int) float64 { return toCenter(Δp, b, i, j, k) })
	pf := toFace(pc, a, i, j, k) / Δ
	var indicators []stencil.Reader
	if op.vi.VorticityStencil == VelocityStencil {
		indicators = []stencil.Reader{q, stencil.ReaderFunc(func(i, j, k int) float64 {
			return toFace(p, a, i, j, k)
		})}
	}
	// ζ is face-located along b; the q point sits at the center below face +1
	ii, jj, kk := b.Shift(i, j, k, 1)
	ζR := upwindReconstruct(op.vorticity, op.ζ, b, ii, jj, kk, stencil.BiasOf(pf), indicators, op.across(a))
	return sign * pf * ζR
}

// verticalAdvection is w ∂z q, either energy conserving or split into a
// vertical flux divergence plus an upwinded divergence flux q δ
func (op *vectorInvariantOperator) verticalAdvection(a grid.Axis, i, j, k int) float64 {
	g := op.g
	q, _, _ := op.components(a)
	qloc := q.Location()
	edge := qloc.Flip(grid.Z)
	w := stencil.ReaderFunc(func(i, j, k int) float64 { return toFace(op.azw, a, i, j, k) })

	if op.divergence == nil {
		ζw := stencil.ReaderFunc(func(i, j, k int) float64 {
			if grid.IsBoundaryFace(g, grid.Z, k) {
				return 0
			}
			return w.At(i, j, k) * diffFace(q, grid.Z, i, j, k) / g.Spacing(grid.Z, i, j, k, edge)
		})
		return toCenter(ζw, grid.Z, i, j, k) / g.Area(grid.Z, i, j, k, qloc)
	}

	flux := func(k int) float64 {
		if grid.IsBoundaryFace(g, grid.Z, k) {
			return 0
		}
		ŵ := op.vertical.Symmetric(op.azw, a, i, j, k)
		return ŵ * stencil.Interpolate(op.vertical, q, grid.Z, i, j, k, ŵ)
	}
	return (flux(k+1)-flux(k))/g.Volume(i, j, k, qloc) + op.divergenceFlux(a, i, j, k)
}

// divergenceFlux is q δ with the horizontal divergence δ reconstructed at the q
// point upwind of q
func (op *vectorInvariantOperator) divergenceFlux(a grid.Axis, i, j, k int) float64 {
	g := op.g
	q, p, b := op.components(a)
	aq := product(g, func(g grid.Grid, i, j, k int, loc grid.Location) float64 {
		return g.Area(a, i, j, k, loc)
	}, q.Location(), q)
	ap := product(g, func(g grid.Grid, i, j, k int, loc grid.Location) float64 {
		return g.Area(b, i, j, k, loc)
	}, p.Location(), p)
	self := stencil.ReaderFunc(func(i, j, k int) float64 {
		return diffCenter(aq, a, i, j, k) / g.Volume(i, j, k, grid.CCC)
	})
	cross := stencil.ReaderFunc(func(i, j, k int) float64 {
		return diffCenter(ap, b, i, j, k) / g.Volume(i, j, k, grid.CCC)
	})
	qf := q.At(i, j, k)
	return qf * op.upwind(op.divergence, a, b, i, j, k, stencil.BiasOf(qf), self, cross)
}

// upwind reconstructs self + cross at the q point according to the upwinding
// policy
func (op *vectorInvariantOperator) upwind(s stencil.ReconstructionScheme, a, b grid.Axis, i, j, k int,
	bias stencil.Bias, self, cross stencil.Reader) float64 {
	if op.vi.Upwinding == CrossAndSelfUpwinding {
		total := stencil.ReaderFunc(func(i, j, k int) float64 {
			return self.At(i, j, k) + cross.At(i, j, k)
		})
		return upwindReconstruct(s, total, a, i, j, k, bias, []stencil.Reader{self}, op.across(b))
	}
	return upwindReconstruct(s, self, a, i, j, k, bias, nil, op.across(b)) + s.Symmetric(cross, a, i, j, k)
}

// bernoulliHead is the kinetic energy gradient ∂K along a
func (op *vectorInvariantOperator) bernoulliHead(a grid.Axis, i, j, k int) float64 {
	g := op.g
	q, p, b := op.components(a)
	Δ := g.Spacing(a, i, j, k, q.Location())
	q2, p2 := squared(q), squared(p)
	kp := stencil.ReaderFunc(func(i, j, k int) float64 { return 0.5 * toCenter(p2, b, i, j, k) })

	if op.kinetic == nil {
		ke := stencil.ReaderFunc(func(i, j, k int) float64 {
			return 0.5*toCenter(q2, a, i, j, k) + kp.At(i, j, k)
		})
		return diffFace(ke, a, i, j, k) / Δ
	}

	self := stencil.ReaderFunc(func(i, j, k int) float64 {
		return diffCenter(q2, a, i, j, k) / (2 * g.Spacing(a, i, j, k, grid.CCC))
	})
	bias := stencil.BiasOf(q.At(i, j, k))
	if op.vi.Upwinding == CrossAndSelfUpwinding {
		kpf := stencil.ReaderFunc(func(i, j, k int) float64 { return toFace(kp, a, i, j, k) })
		cross := stencil.ReaderFunc(func(i, j, k int) float64 {
			return diffCenter(kpf, a, i, j, k) / g.Spacing(a, i, j, k, grid.CCC)
		})
		return op.upwind(op.kinetic, a, b, i, j, k, bias, self, cross)
	}
	return upwindReconstruct(op.kinetic, self, a, i, j, k, bias, nil, op.across(b)) + diffFace(kp, a, i, j, k)/Δ
}
