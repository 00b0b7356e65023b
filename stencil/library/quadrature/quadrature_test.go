package quadrature

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJacobiGQ_Legendre(t *testing.T) {
	x, w := JacobiGQ(0, 0, 1)
	assert.Len(t, x, 2)
	assert.InDelta(t, -1/math.Sqrt(3), x[0], 1e-14)
	assert.InDelta(t, 1/math.Sqrt(3), x[1], 1e-14)
	assert.InDelta(t, 1.0, w[0], 1e-14)
	assert.InDelta(t, 1.0, w[1], 1e-14)

	x0, w0 := JacobiGQ(0, 0, 0)
	assert.Equal(t, []float64{0}, x0)
	assert.Equal(t, []float64{2}, w0)
}

func TestGaussLegendre_Exactness(t *testing.T) {
	for n := 1; n <= 6; n++ {
		x, w := GaussLegendre(n)
		for p := 0; p <= 2*n-1; p++ {
			sum := 0.0
			for i := range x {
				sum += w[i] * math.Pow(x[i], float64(p))
			}
			if math.Abs(sum-1/float64(p+1)) > 1e-13 {
				t.Errorf("n=%d: integral of x^%d = %.15f, want %.15f", n, p, sum, 1/float64(p+1))
			}
		}
	}
}

func TestJacobiGL(t *testing.T) {
	x := JacobiGL(0, 0, 4)
	assert.Len(t, x, 5)
	assert.Equal(t, -1.0, x[0])
	assert.Equal(t, 1.0, x[4])
	assert.InDelta(t, 0.0, x[2], 1e-14)
	assert.InDelta(t, -math.Sqrt(3.0/7.0), x[1], 1e-14)
}

func TestGamma0(t *testing.T) {
	assert.InDelta(t, 2.0, Gamma0(0, 0), 1e-14)
	assert.InDelta(t, 4.0/3.0, Gamma0(1, 1), 1e-14)
}
