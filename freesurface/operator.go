package freesurface

import (
	"context"
	"fmt"

	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
)

// Operator is a symmetric positive definite linear operator on flat vectors of
// surface cells, i fastest
type Operator interface {
	Size() int
	Apply(ctx context.Context, x, y []float64) error
	Diagonal() []float64
}

// HelmholtzOperator is A η = Az η - Scale L(η), where L is the depth-weighted
// Laplacian Σ_faces c (η_nb - η) with face coefficients c = H Δ⊥/Δ. Boundary
// faces of Bounded axes carry c = 0.
type HelmholtzOperator struct {
	Nx, Ny   int
	Periodic [2]bool
	// Uniform reports constant horizontal spacing
	Uniform bool
	Scale   float64

	// Area is Az per cell; Cx is (Nx+1)xNy with face i west of cell i, Cy is
	// Nx x(Ny+1) with face j south of cell j
	Area   []float64
	Cx, Cy []float64

	arch runner.Architecture
}

// NewHelmholtzOperator builds the coefficients for the surface of g with
// Scale = 0
func NewHelmholtzOperator(g grid.Grid) *HelmholtzOperator {
	nx, ny, _ := g.Size()
	s := g.Surface()
	H := g.Depth()
	op := &HelmholtzOperator{
		Nx: nx, Ny: ny,
		Periodic: [2]bool{g.Topology(grid.X) == grid.Periodic, g.Topology(grid.Y) == grid.Periodic},
		Uniform:  g.UniformHorizontal(),
		Area:     make([]float64, nx*ny),
		Cx:       make([]float64, (nx+1)*ny),
		Cy:       make([]float64, nx*(ny+1)),
		arch:     g.Architecture(),
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			op.Area[i+nx*j] = grid.Az(s, i, j, 0, grid.CCC)
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i <= nx; i++ {
			if grid.IsBoundaryFace(s, grid.X, i) {
				continue
			}
			op.Cx[i+(nx+1)*j] = H * grid.Dy(s, i, j, 0, grid.FCC) / grid.Dx(s, i, j, 0, grid.FCC)
		}
	}
	for j := 0; j <= ny; j++ {
		for i := 0; i < nx; i++ {
			if grid.IsBoundaryFace(s, grid.Y, j) {
				continue
			}
			op.Cy[i+nx*j] = H * grid.Dx(s, i, j, 0, grid.CFC) / grid.Dy(s, i, j, 0, grid.CFC)
		}
	}
	if op.Periodic[0] {
		for j := 0; j < ny; j++ {
			op.Cx[nx+(nx+1)*j] = op.Cx[(nx+1)*j]
		}
	}
	if op.Periodic[1] {
		for i := 0; i < nx; i++ {
			op.Cy[i+nx*ny] = op.Cy[i]
		}
	}
	return op
}

func (op *HelmholtzOperator) Size() int { return op.Nx * op.Ny }

// neighbours returns the west, east, south and north cell indices of (i,j).
// Indices wrap on every axis; on Bounded axes the wrapped neighbour sits
// behind a face with zero coefficient.
func (op *HelmholtzOperator) neighbours(i, j int) (w, e, s, n int) {
	nx, ny := op.Nx, op.Ny
	w = (i+nx-1)%nx + nx*j
	e = (i+1)%nx + nx*j
	s = i + nx*((j+ny-1)%ny)
	n = i + nx*((j+1)%ny)
	return
}

// coefficients returns the west, east, south and north face coefficients
func (op *HelmholtzOperator) coefficients(i, j int) (cw, ce, cs, cn float64) {
	nx := op.Nx
	return op.Cx[i+(nx+1)*j], op.Cx[i+1+(nx+1)*j], op.Cy[i+nx*j], op.Cy[i+nx*(j+1)]
}

func (op *HelmholtzOperator) Apply(ctx context.Context, x, y []float64) error {
	if len(x) != op.Size() || len(y) != op.Size() {
		return fmt.Errorf("helmholtz operator of size %d applied to %d -> %d", op.Size(), len(x), len(y))
	}
	return op.arch.Launch(ctx, runner.NewIndexRange(op.Nx, op.Ny, 1), func(i, j, _ int) {
		c := i + op.Nx*j
		w, e, s, n := op.neighbours(i, j)
		cw, ce, cs, cn := op.coefficients(i, j)
		lap := cw*(x[w]-x[c]) + ce*(x[e]-x[c]) + cs*(x[s]-x[c]) + cn*(x[n]-x[c])
		y[c] = op.Area[c]*x[c] - op.Scale*lap
	})
}

func (op *HelmholtzOperator) Diagonal() []float64 {
	d := make([]float64, op.Size())
	for j := 0; j < op.Ny; j++ {
		for i := 0; i < op.Nx; i++ {
			c := i + op.Nx*j
			w, e, s, n := op.neighbours(i, j)
			cw, ce, cs, cn := op.coefficients(i, j)
			// a periodic axis of one cell couples a cell to itself
			sum := 0.0
			if w != c {
				sum += cw
			}
			if e != c {
				sum += ce
			}
			if s != c {
				sum += cs
			}
			if n != c {
				sum += cn
			}
			d[c] = op.Area[c] + op.Scale*sum
		}
	}
	return d
}

// Entries calls fn for every nonzero entry of the operator, duplicates
// included; callers accumulate
func (op *HelmholtzOperator) Entries(fn func(row, col int, v float64)) {
	for j := 0; j < op.Ny; j++ {
		for i := 0; i < op.Nx; i++ {
			c := i + op.Nx*j
			fn(c, c, op.Area[c])
			w, e, s, n := op.neighbours(i, j)
			cw, ce, cs, cn := op.coefficients(i, j)
			for _, nb := range [4]struct {
				col int
				c   float64
			}{{w, cw}, {e, ce}, {s, cs}, {n, cn}} {
				if nb.c == 0 || nb.col == c {
					continue
				}
				fn(c, c, op.Scale*nb.c)
				fn(c, nb.col, -op.Scale*nb.c)
			}
		}
	}
}

func (op *HelmholtzOperator) String() string {
	return fmt.Sprintf("Helmholtz{%dx%d, scale=%g}", op.Nx, op.Ny, op.Scale)
}
