package stencil

import (
	"fmt"

	"github.com/notargets/FVOcean/stencil/library/quadrature"
	"gonum.org/v1/gonum/mat"
)

// ENOCoefficients returns the weights c_q that reconstruct the right face of
// element i from the k element averages i-r .. i-r+k-1 (Shu's formula)
func ENOCoefficients(k, r int) []float64 {
	c := make([]float64, k)
	for j := 0; j < k; j++ {
		sum := 0.0
		for m := j + 1; m <= k; m++ {
			num := 0.0
			for l := 0; l <= k; l++ {
				if l == m {
					continue
				}
				prod := 1.0
				for q := 0; q <= k; q++ {
					if q == m || q == l {
						continue
					}
					prod *= float64(r - q + 1)
				}
				num += prod
			}
			den := 1.0
			for l := 0; l <= k; l++ {
				if l != m {
					den *= float64(m - l)
				}
			}
			sum += num / den
		}
		c[j] = sum
	}
	return c
}

// CandidateMatrix places the k candidate stencils of a (2k-1)-point biased
// stencil as columns: M[k-1-r+q][r] = c_{r,q}
func CandidateMatrix(k int) *mat.Dense {
	m := mat.NewDense(2*k-1, k, nil)
	for r := 0; r < k; r++ {
		for q, c := range ENOCoefficients(k, r) {
			m.Set(k-1-r+q, r, c)
		}
	}
	return m
}

// OptimalWeights solves for the linear weights d_r that combine the k
// candidates into the (2k-1)-order upwind stencil
func OptimalWeights(k int) ([]float64, error) {
	if k < 1 {
		return nil, fmt.Errorf("invalid candidate count %d", k)
	}
	target := mat.NewVecDense(2*k-1, ENOCoefficients(2*k-1, k-1))
	var d mat.VecDense
	if err := d.SolveVec(CandidateMatrix(k), target); err != nil {
		return nil, fmt.Errorf("optimal weights for k=%d: %w", k, err)
	}
	out := make([]float64, k)
	for r := range out {
		out[r] = d.AtVec(r)
	}
	return out, nil
}

// candidateBasis returns, for candidate r, the monomial coefficients of the
// polynomials b_q with p(x) = sum_q v_q b_q(x) on element i = [0,1]. p is the
// derivative of the Lagrange interpolant of the primitive through the stencil
// edges x_m = m - r.
func candidateBasis(k, r int) ([][]float64, error) {
	n := k + 1
	v := mat.NewDense(n, n, nil)
	for row := 0; row < n; row++ {
		x := float64(row - r)
		p := 1.0
		for c := 0; c < n; c++ {
			v.Set(row, c, p)
			p *= x
		}
	}
	identity := mat.NewDiagDense(n, nil)
	for i := 0; i < n; i++ {
		identity.SetDiag(i, 1)
	}
	// Column m holds the monomial coefficients of the Lagrange basis L_m
	var lagrange mat.Dense
	if err := lagrange.Solve(v, identity); err != nil {
		return nil, fmt.Errorf("lagrange basis k=%d r=%d: %w", k, r, err)
	}

	basis := make([][]float64, k)
	for q := 0; q < k; q++ {
		coef := make([]float64, k)
		for m := q + 1; m <= k; m++ {
			for c := 0; c < k; c++ {
				coef[c] += float64(c+1) * lagrange.At(c+1, m)
			}
		}
		basis[q] = coef
	}
	return basis, nil
}

// derivativeAt evaluates the l-th derivative of the polynomial with monomial
// coefficients coef at x
func derivativeAt(coef []float64, l int, x float64) float64 {
	sum, xp := 0.0, 1.0
	for c := l; c < len(coef); c++ {
		f := 1.0
		for t := 0; t < l; t++ {
			f *= float64(c - t)
		}
		sum += f * coef[c] * xp
		xp *= x
	}
	return sum
}

// SmoothnessForms returns, per candidate r, the symmetric matrix B_r with
// β_r = vᵀ B_r v = sum_{l=1}^{k-1} ∫_0^1 (p^(l))² dx in element units
func SmoothnessForms(k int) ([]*mat.SymDense, error) {
	xq, wq := quadrature.GaussLegendre(k)
	forms := make([]*mat.SymDense, k)
	for r := 0; r < k; r++ {
		basis, err := candidateBasis(k, r)
		if err != nil {
			return nil, err
		}
		b := mat.NewSymDense(k, nil)
		for a := 0; a < k; a++ {
			for c := a; c < k; c++ {
				sum := 0.0
				for l := 1; l < k; l++ {
					for n := range xq {
						sum += wq[n] * derivativeAt(basis[a], l, xq[n]) * derivativeAt(basis[c], l, xq[n])
					}
				}
				b.SetSym(a, c, sum)
			}
		}
		forms[r] = b
	}
	return forms, nil
}

// CandidateValues evaluates each candidate basis at the right face. They equal
// ENOCoefficients(k, r).
func CandidateValues(k, r int) ([]float64, error) {
	basis, err := candidateBasis(k, r)
	if err != nil {
		return nil, err
	}
	out := make([]float64, k)
	for q, coef := range basis {
		out[q] = derivativeAt(coef, 0, 1)
	}
	return out, nil
}
