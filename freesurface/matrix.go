package freesurface

import (
	"context"
	"fmt"
	"strings"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// MatrixMethod selects how an assembled MatrixSolver solves
type MatrixMethod uint8

const (
	// Iterative runs conjugate gradients on the CSR matrix
	Iterative MatrixMethod = iota
	// Direct factorizes the matrix with a Cholesky decomposition
	Direct
)

func (m MatrixMethod) String() string {
	if m == Direct {
		return "Direct"
	}
	return "Iterative"
}

// ParseMatrixMethod converts a configuration name into a MatrixMethod
func ParseMatrixMethod(name string) (MatrixMethod, error) {
	switch strings.ToLower(name) {
	case "", "iterative", "cg":
		return Iterative, nil
	case "direct", "cholesky":
		return Direct, nil
	}
	return 0, fmt.Errorf("unknown matrix method %q", name)
}

// MatrixSolver assembles the Helmholtz operator as a sparse matrix. It serves
// grids whose spacing defeats the FFT solver.
type MatrixSolver struct {
	Method MatrixMethod
	// PCG drives the Iterative method
	PCG *PCGSolver

	csr  *sparse.CSR
	chol *mat.Cholesky
	n    int
	b, y *mat.VecDense
}

func NewMatrixSolver(method MatrixMethod, opts ...Option) *MatrixSolver {
	return &MatrixSolver{Method: method, PCG: NewPCGSolver(opts...)}
}

// Assemble accumulates the operator entries into a DOK matrix and converts it
// to CSR
func Assemble(op *HelmholtzOperator) *sparse.CSR {
	n := op.Size()
	dok := sparse.NewDOK(n, n)
	op.Entries(func(row, col int, v float64) {
		dok.Set(row, col, dok.At(row, col)+v)
	})
	return dok.ToCSR()
}

func (s *MatrixSolver) Prepare(op *HelmholtzOperator) error {
	s.n = op.Size()
	s.csr = Assemble(op)
	s.chol = nil
	if s.Method == Direct {
		sym := mat.NewSymDense(s.n, nil)
		s.csr.DoNonZero(func(i, j int, v float64) {
			if i <= j {
				sym.SetSym(i, j, v)
			}
		})
		var chol mat.Cholesky
		if ok := chol.Factorize(sym); !ok {
			return configErr(s.String(), "matrix is not positive definite")
		}
		s.chol = &chol
		s.b, s.y = mat.NewVecDense(s.n, nil), mat.NewVecDense(s.n, nil)
		return nil
	}
	if s.PCG == nil {
		s.PCG = NewPCGSolver()
	}
	if err := s.PCG.defaults(); err != nil {
		return err
	}
	if s.PCG.Preconditioner != nil {
		if err := s.PCG.Preconditioner.Prepare(op); err != nil {
			return err
		}
	}
	s.PCG.op = csrOperator{s.csr}
	return nil
}

func (s *MatrixSolver) Solve(ctx context.Context, rhs, x []float64) (Stats, error) {
	if s.csr == nil {
		return Stats{}, fmt.Errorf("freesurface: %s: solve before Prepare", s)
	}
	if s.Method == Iterative {
		return s.PCG.Solve(ctx, rhs, x)
	}
	if len(rhs) != s.n || len(x) != s.n {
		return Stats{}, fmt.Errorf("freesurface: %s: matrix size %d, rhs %d, solution %d", s, s.n, len(rhs), len(x))
	}
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}
	copy(s.b.RawVector().Data, rhs)
	if err := s.chol.SolveVecTo(s.y, s.b); err != nil {
		return Stats{}, fmt.Errorf("freesurface: %s: %w", s, err)
	}
	copy(x, s.y.RawVector().Data)
	return Stats{}, nil
}

// NonZeros is the number of stored matrix entries after Prepare
func (s *MatrixSolver) NonZeros() int {
	if s.csr == nil {
		return 0
	}
	return s.csr.NNZ()
}

func (s *MatrixSolver) String() string {
	if s.Method == Iterative && s.PCG != nil {
		return fmt.Sprintf("Matrix(%s, %s)", s.Method, s.PCG)
	}
	return fmt.Sprintf("Matrix(%s)", s.Method)
}

// csrOperator adapts a CSR matrix to Operator
type csrOperator struct {
	m *sparse.CSR
}

func (c csrOperator) Size() int {
	r, _ := c.m.Dims()
	return r
}

func (c csrOperator) Apply(ctx context.Context, x, y []float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for i := range y {
		y[i] = 0
	}
	c.m.MulVecTo(y, false, x)
	return nil
}

func (c csrOperator) Diagonal() []float64 {
	d := make([]float64, c.Size())
	for i := range d {
		d[i] = c.m.At(i, i)
	}
	return d
}
