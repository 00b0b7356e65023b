package freesurface

import (
	"fmt"
	"math"
	"strings"
)

// AveragingKernel weights the barotropic sub-steps of a split-explicit step.
// τ is the sub-step time in units of the baroclinic step.
type AveragingKernel interface {
	Weight(τ float64) float64
	// Support is the largest τ with a nonzero weight
	Support() float64
	String() string
}

// ConstantAveraging weights every sub-step of [0, Δt] equally
type ConstantAveraging struct{}

func (ConstantAveraging) Weight(τ float64) float64 {
	if τ > 0 && τ <= 1 {
		return 1
	}
	return 0
}

func (ConstantAveraging) Support() float64 { return 1 }

func (ConstantAveraging) String() string { return "ConstantAveraging" }

// CosineAveraging is a raised cosine centred on τ = 1
type CosineAveraging struct{}

func (CosineAveraging) Weight(τ float64) float64 {
	if τ < 0.5 || τ > 1.5 {
		return 0
	}
	return 1 + math.Cos(2*math.Pi*(τ-1))
}

func (CosineAveraging) Support() float64 { return 1.5 }

func (CosineAveraging) String() string { return "CosineAveraging" }

// MinimalDispersionAveraging is the power-law filter of Shchepetkin and
// McWilliams (2005) with p = 2, q = 4, r = 0.18927
type MinimalDispersionAveraging struct{}

const (
	mdP = 2.0
	mdQ = 4.0
	mdR = 0.18927
)

var mdTau0 = (mdP + 2) * (mdP + mdQ + 2) / ((mdP + 1) * (mdP + mdQ + 1))

func (MinimalDispersionAveraging) Weight(τ float64) float64 {
	if τ <= 0 || τ > mdTau0 {
		return 0
	}
	s := τ / mdTau0
	return math.Pow(s, mdP)*(1-math.Pow(s, mdQ)) - mdR*s
}

func (MinimalDispersionAveraging) Support() float64 { return mdTau0 }

func (MinimalDispersionAveraging) String() string { return "MinimalDispersionAveraging" }

// ParseAveragingKernel converts a configuration name into an AveragingKernel
func ParseAveragingKernel(name string) (AveragingKernel, error) {
	switch strings.ToLower(name) {
	case "", "constant":
		return ConstantAveraging{}, nil
	case "cosine":
		return CosineAveraging{}, nil
	case "minimaldispersion", "minimal_dispersion":
		return MinimalDispersionAveraging{}, nil
	}
	return nil, fmt.Errorf("unknown averaging kernel %q", name)
}

// Weights samples kernel at τ = m/substeps, m = 1, 2, ..., truncates at the
// first non-positive weight after the kernel turns positive, and normalizes
// the samples to sum to 1
func Weights(kernel AveragingKernel, substeps int) ([]float64, error) {
	if substeps < 1 {
		return nil, configErr("SplitExplicit", "substeps must be positive, got %d", substeps)
	}
	if kernel == nil {
		return nil, configErr("SplitExplicit", "no averaging kernel")
	}
	var w []float64
	positive := false
	sum := 0.0
	last := int(math.Ceil(kernel.Support()*float64(substeps))) + 1
	for m := 1; m <= last; m++ {
		a := kernel.Weight(float64(m) / float64(substeps))
		if a > 0 {
			positive = true
		} else if positive {
			break
		}
		w = append(w, a)
		sum += a
	}
	if !(sum > 0) {
		return nil, configErr("SplitExplicit", "%s has no positive weight with %d substeps", kernel, substeps)
	}
	for m := range w {
		w[m] /= sum
	}
	return w, nil
}
