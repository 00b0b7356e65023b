package freesurface

import (
	"context"
	"fmt"

	"github.com/notargets/FVOcean/field"
	"github.com/notargets/FVOcean/grid"
	"github.com/sirupsen/logrus"
)

// SplitExplicitFreeSurface sub-cycles the barotropic mode with a
// forward-backward scheme under constant baroclinic forcing. The weighted
// average Ū of the sub-step transports corrects the depth mean of u and v and
// steps η, so volume is conserved exactly.
type SplitExplicitFreeSurface struct {
	*surface
	Substeps int
	Kernel   AveragingKernel

	weights []float64
	depth   float64
	// barotropic state: transport at the previous step and within the cycle
	Un, Vn     *field.Field
	Um, Vm     *field.Field
	Ubar, Vbar *field.Field
	ηm         *field.Field
	Gu, Gv     *field.Field
}

func NewSplitExplicitFreeSurface(g grid.Grid, gravity float64, substeps int, kernel AveragingKernel,
	opts ...Option) (*SplitExplicitFreeSurface, error) {
	s, err := newSurface("SplitExplicit", g, gravity, applyOptions(opts))
	if err != nil {
		return nil, err
	}
	if kernel == nil {
		kernel = MinimalDispersionAveraging{}
	}
	w, err := Weights(kernel, substeps)
	if err != nil {
		return nil, err
	}
	se := &SplitExplicitFreeSurface{
		surface:  s,
		Substeps: substeps,
		Kernel:   kernel,
		weights:  w,
		depth:    g.Depth(),
		ηm:       s.η.Similar("ηm"),
	}
	se.Un, se.Vn = s.U.Similar("Un"), s.V.Similar("Vn")
	se.Um, se.Vm = s.U.Similar("Um"), s.V.Similar("Vm")
	se.Ubar, se.Vbar = s.U.Similar("Ubar"), s.V.Similar("Vbar")
	se.Gu, se.Gv = s.U.Similar("Gu"), s.V.Similar("Gv")
	s.log.WithFields(logrus.Fields{
		"substeps": substeps,
		"kernel":   kernel.String(),
		"cycle":    len(w),
	}).Debug("split-explicit averaging weights")
	return se, nil
}

// Weights returns the normalized averaging weights of the sub-cycle
func (se *SplitExplicitFreeSurface) Weights() []float64 {
	return append([]float64(nil), se.weights...)
}

// Initialize sets the barotropic transport at the current step from vel
func (se *SplitExplicitFreeSurface) Initialize(ctx context.Context, vel field.Velocities) error {
	vel.U.FillHalo()
	vel.V.FillHalo()
	return se.transport(ctx, vel, se.Un, se.Vn)
}

func (se *SplitExplicitFreeSurface) Step(ctx context.Context, vel field.Velocities, dt float64) error {
	if err := checkStep("SplitExplicit", dt); err != nil {
		return err
	}
	vel.U.FillHalo()
	vel.V.FillHalo()
	if err := se.transport(ctx, vel, se.U, se.V); err != nil {
		return err
	}
	arch := se.arch()
	sg := se.surf

	// the baroclinic forcing of the transport is the provisional increment
	if err := arch.Launch(ctx, se.U.Extent(), func(i, j, _ int) {
		se.Gu.Set(i, j, 0, (se.U.At(i, j, 0)-se.Un.At(i, j, 0))/dt)
		se.Um.Set(i, j, 0, se.Un.At(i, j, 0))
		se.Ubar.Set(i, j, 0, 0)
	}); err != nil {
		return err
	}
	if err := arch.Launch(ctx, se.V.Extent(), func(i, j, _ int) {
		se.Gv.Set(i, j, 0, (se.V.At(i, j, 0)-se.Vn.At(i, j, 0))/dt)
		se.Vm.Set(i, j, 0, se.Vn.At(i, j, 0))
		se.Vbar.Set(i, j, 0, 0)
	}); err != nil {
		return err
	}
	se.Um.FillHalo()
	se.Vm.FillHalo()
	if err := se.ηm.CopyFrom(se.η); err != nil {
		return err
	}

	dτ := dt / float64(se.Substeps)
	gH := se.Gravity * se.depth
	for _, a := range se.weights {
		if err := ctx.Err(); err != nil {
			return err
		}
		// forward: η with the old transport
		if err := arch.Launch(ctx, se.columns(), func(i, j, _ int) {
			se.ηm.Add(i, j, 0, -dτ*se.divergence(se.Um, se.Vm, i, j)/grid.Az(sg, i, j, 0, grid.CCC))
		}); err != nil {
			return err
		}
		se.ηm.FillHalo()
		// backward: transport with the new η
		if err := arch.Launch(ctx, se.Um.Interior(), func(i, j, _ int) {
			dηdx := (se.ηm.At(i, j, 0) - se.ηm.At(i-1, j, 0)) / grid.Dx(sg, i, j, 0, grid.FCC)
			se.Um.Add(i, j, 0, dτ*(se.Gu.At(i, j, 0)-gH*dηdx))
			se.Ubar.Add(i, j, 0, a*se.Um.At(i, j, 0))
		}); err != nil {
			return err
		}
		if err := arch.Launch(ctx, se.Vm.Interior(), func(i, j, _ int) {
			dηdy := (se.ηm.At(i, j, 0) - se.ηm.At(i, j-1, 0)) / grid.Dy(sg, i, j, 0, grid.CFC)
			se.Vm.Add(i, j, 0, dτ*(se.Gv.At(i, j, 0)-gH*dηdy))
			se.Vbar.Add(i, j, 0, a*se.Vm.At(i, j, 0))
		}); err != nil {
			return err
		}
		se.Um.FillHalo()
		se.Vm.FillHalo()
	}
	se.Ubar.FillHalo()
	se.Vbar.FillHalo()

	if err := se.correctTransport(ctx, vel); err != nil {
		return err
	}
	if err := se.advance(ctx, se.Ubar, se.Vbar, dt); err != nil {
		return err
	}
	if err := se.Un.CopyFrom(se.Ubar); err != nil {
		return err
	}
	return se.Vn.CopyFrom(se.Vbar)
}

// correctTransport replaces the depth mean of u and v by Ū/H
func (se *SplitExplicitFreeSurface) correctTransport(ctx context.Context, vel field.Velocities) error {
	H := se.depth
	if err := se.arch().Launch(ctx, vel.U.Interior(), func(i, j, k int) {
		vel.U.Add(i, j, k, (se.Ubar.At(i, j, 0)-se.U.At(i, j, 0))/H)
	}); err != nil {
		return err
	}
	if err := se.arch().Launch(ctx, vel.V.Interior(), func(i, j, k int) {
		vel.V.Add(i, j, k, (se.Vbar.At(i, j, 0)-se.V.At(i, j, 0))/H)
	}); err != nil {
		return err
	}
	vel.U.FillHalo()
	vel.V.FillHalo()
	return nil
}

func (se *SplitExplicitFreeSurface) String() string {
	return fmt.Sprintf("SplitExplicitFreeSurface{g=%g, substeps=%d, %s}", se.Gravity, se.Substeps, se.Kernel)
}
