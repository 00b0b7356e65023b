package freesurface

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// FFTSolver diagonalizes the Helmholtz operator of a uniform grid with a 2D
// complex FFT. Periodic axes transform directly; Bounded axes are mirrored to
// twice their length so the zero-flux walls become periodic.
type FFTSolver struct {
	// approximate replaces the coefficients by their means instead of
	// rejecting stretched grids
	approximate bool

	nx, ny   int
	lx, ly   int
	fx, fy   *fourier.CmplxFFT
	gain     float64
	λ        []float64 // eigenvalues, lx x ly
	work     []complex128
	row, col []complex128
	out      []complex128
}

func NewFFTSolver() *FFTSolver { return &FFTSolver{} }

// NewFFTPreconditioner returns an FFT solve of the operator with averaged
// coefficients, usable on stretched grids
func NewFFTPreconditioner() *FFTSolver { return &FFTSolver{approximate: true} }

func (s *FFTSolver) Prepare(op *HelmholtzOperator) error {
	if !op.Uniform && !s.approximate {
		return configErr(s.String(), "FFT diagonalization requires uniform horizontal spacing")
	}
	s.nx, s.ny = op.Nx, op.Ny
	s.lx, s.ly = op.Nx, op.Ny
	if !op.Periodic[0] {
		s.lx *= 2
	}
	if !op.Periodic[1] {
		s.ly *= 2
	}
	s.fx, s.fy = fourier.NewCmplxFFT(s.lx), fourier.NewCmplxFFT(s.ly)
	s.work = make([]complex128, s.lx*s.ly)
	s.row, s.col = make([]complex128, s.lx), make([]complex128, s.ly)
	s.out = make([]complex128, max(s.lx, s.ly))
	s.gain = roundTripGain(s.fx) * roundTripGain(s.fy)

	az := mean(op.Area)
	cx := interiorMean(op.Cx)
	cy := interiorMean(op.Cy)
	s.λ = make([]float64, s.lx*s.ly)
	for my := 0; my < s.ly; my++ {
		φ := 2 * math.Pi * float64(my) / float64(s.ly)
		for mx := 0; mx < s.lx; mx++ {
			θ := 2 * math.Pi * float64(mx) / float64(s.lx)
			s.λ[mx+s.lx*my] = az + op.Scale*(cx*(2-2*math.Cos(θ))+cy*(2-2*math.Cos(φ)))
		}
	}
	return nil
}

// roundTripGain is the factor by which Sequence(Coefficients(x)) scales x
func roundTripGain(f *fourier.CmplxFFT) float64 {
	δ := make([]complex128, f.Len())
	δ[0] = 1
	back := f.Sequence(nil, f.Coefficients(nil, δ))
	return real(back[0])
}

func mean(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	return sum / float64(len(v))
}

// interiorMean averages the nonzero face coefficients
func interiorMean(c []float64) float64 {
	sum, n := 0.0, 0
	for _, x := range c {
		if x != 0 {
			sum += x
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// extend mirrors Bounded axes: index m ≥ n reads n-1-(m-n)
func extend(m, n, l int) int {
	if m < n || l == n {
		return m
	}
	return 2*n - 1 - m
}

func (s *FFTSolver) Solve(ctx context.Context, rhs, x []float64) (Stats, error) {
	if s.λ == nil {
		return Stats{}, fmt.Errorf("freesurface: %s: solve before Prepare", s)
	}
	if len(rhs) != s.nx*s.ny || len(x) != s.nx*s.ny {
		return Stats{}, fmt.Errorf("freesurface: %s: size %dx%d, rhs %d, solution %d", s, s.nx, s.ny, len(rhs), len(x))
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	lx, ly := s.lx, s.ly
	for my := 0; my < ly; my++ {
		j := extend(my, s.ny, ly)
		for mx := 0; mx < lx; mx++ {
			s.work[mx+lx*my] = complex(rhs[extend(mx, s.nx, lx)+s.nx*j], 0)
		}
	}

	s.transform(false)
	for n := range s.work {
		s.work[n] /= complex(s.λ[n], 0)
	}
	s.transform(true)

	for j := 0; j < s.ny; j++ {
		for i := 0; i < s.nx; i++ {
			x[i+s.nx*j] = real(s.work[i+lx*j]) / s.gain
		}
	}
	return Stats{}, nil
}

// transform applies the forward (or inverse) FFT along x then y
func (s *FFTSolver) transform(inverse bool) {
	lx, ly := s.lx, s.ly
	apply := func(f *fourier.CmplxFFT, dst, src []complex128) []complex128 {
		if inverse {
			return f.Sequence(dst, src)
		}
		return f.Coefficients(dst, src)
	}
	for my := 0; my < ly; my++ {
		copy(s.row, s.work[lx*my:lx*(my+1)])
		copy(s.work[lx*my:lx*(my+1)], apply(s.fx, s.out[:lx], s.row))
	}
	for mx := 0; mx < lx; mx++ {
		for my := 0; my < ly; my++ {
			s.col[my] = s.work[mx+lx*my]
		}
		out := apply(s.fy, s.out[:ly], s.col)
		for my := 0; my < ly; my++ {
			s.work[mx+lx*my] = out[my]
		}
	}
}

// Precondition solves the averaged problem
func (s *FFTSolver) Precondition(ctx context.Context, r, z []float64) error {
	_, err := s.Solve(ctx, r, z)
	return err
}

func (s *FFTSolver) String() string {
	if s.approximate {
		return "FFTPreconditioner"
	}
	return "FFT"
}
