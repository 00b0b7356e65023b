package field

import (
	"context"
	"errors"
	"fmt"

	"github.com/notargets/FVOcean/grid"
	"github.com/notargets/FVOcean/runner"
)

// ErrInsufficientHalo is returned when a grid's halo is narrower than the stencil
// reach of a scheme applied to its fields
var ErrInsufficientHalo = errors.New("insufficient halo")

// CheckHalo verifies that g carries at least required halo cells
func CheckHalo(g grid.Grid, required int) error {
	if g.Halo() < required {
		return fmt.Errorf("grid halo %d, required %d: %w", g.Halo(), required, ErrInsufficientHalo)
	}
	return nil
}

// AbstractField is anything that can be read per index over a grid location
type AbstractField interface {
	At(i, j, k int) float64
	Location() grid.Location
	Grid() grid.Grid
	Interior() runner.IndexRange
}

// Field is a 3D array of values at a staggered location, padded by the grid's
// halo on every side. Storage is i-fastest.
type Field struct {
	Name string

	grid       grid.Grid
	loc        grid.Location
	n          [3]int
	halo       int
	tx, ty, tz int
	data       []float64
	connector  *HaloConnector
}

// NewField allocates a zeroed field on g at loc
func NewField(g grid.Grid, loc grid.Location, name string) *Field {
	f := &Field{Name: name, grid: g, loc: loc, halo: g.Halo()}
	f.n[0], f.n[1], f.n[2] = g.Size()
	f.tx = f.n[0] + 2*f.halo
	f.ty = f.n[1] + 2*f.halo
	f.tz = f.n[2] + 2*f.halo
	f.data = make([]float64, f.tx*f.ty*f.tz)
	return f
}

// CenterField allocates a tracer-located field
func CenterField(g grid.Grid, name string) *Field { return NewField(g, grid.CCC, name) }

func (f *Field) index(i, j, k int) int {
	return ((k+f.halo)*f.ty+(j+f.halo))*f.tx + (i + f.halo)
}

// Index returns the storage offset of (i,j,k), matching the device IDX macro
func (f *Field) Index(i, j, k int) int { return f.index(i, j, k) }

func (f *Field) At(i, j, k int) float64 { return f.data[f.index(i, j, k)] }

func (f *Field) Set(i, j, k int, v float64) { f.data[f.index(i, j, k)] = v }

func (f *Field) Add(i, j, k int, v float64) { f.data[f.index(i, j, k)] += v }

func (f *Field) Location() grid.Location { return f.loc }

func (f *Field) Grid() grid.Grid { return f.grid }

// Data exposes the padded storage
func (f *Field) Data() []float64 { return f.data }

// Interior is the range of prognostic points. Boundary faces of Bounded axes are
// excluded; they hold boundary values.
func (f *Field) Interior() runner.IndexRange {
	var lo, hi [3]int
	for a := grid.X; a <= grid.Z; a++ {
		hi[a] = f.n[a]
		if f.loc[a] == grid.Face && f.grid.Topology(a) == grid.Bounded {
			lo[a] = 1
		}
	}
	return runner.IndexRange{Imin: lo[0], Imax: hi[0], Jmin: lo[1], Jmax: hi[1], Kmin: lo[2], Kmax: hi[2]}
}

// Extent is the range of every distinct point, boundary faces included
func (f *Field) Extent() runner.IndexRange {
	return runner.IndexRange{
		Imax: grid.Points(f.grid, grid.X, f.loc[grid.X]),
		Jmax: grid.Points(f.grid, grid.Y, f.loc[grid.Y]),
		Kmax: grid.Points(f.grid, grid.Z, f.loc[grid.Z]),
	}
}

// Similar allocates a zeroed field with the same grid and location
func (f *Field) Similar(name string) *Field {
	return NewField(f.grid, f.loc, name)
}

// Fill sets every entry, halo included, to v
func (f *Field) Fill(v float64) {
	for n := range f.data {
		f.data[n] = v
	}
}

// CopyFrom copies all values of src, which must share shape and location
func (f *Field) CopyFrom(src *Field) error {
	if len(src.data) != len(f.data) || src.loc != f.loc {
		return fmt.Errorf("copy %s (%s) into %s (%s): %w",
			src.Name, src.loc, f.Name, f.loc, &SizeMismatchError{
				Expected: [3]int{f.tx, f.ty, f.tz}, Got: [3]int{src.tx, src.ty, src.tz}})
	}
	copy(f.data, src.data)
	return nil
}

// SetFunc evaluates fn at the coordinates of every distinct point, boundary
// faces included
func (f *Field) SetFunc(ctx context.Context, fn func(x, y, z float64) float64) error {
	g := f.grid
	return g.Architecture().Launch(ctx, f.Extent(), func(i, j, k int) {
		f.Set(i, j, k, fn(
			g.Node(grid.X, i, f.loc[grid.X]),
			g.Node(grid.Y, j, f.loc[grid.Y]),
			g.Node(grid.Z, k, f.loc[grid.Z])))
	})
}

// ZeroBoundaryFaces sets the boundary faces of Bounded face axes to zero, the
// no-flux value of a wall-normal velocity
func (f *Field) ZeroBoundaryFaces() {
	e := f.Extent()
	for a := grid.X; a <= grid.Z; a++ {
		if f.loc[a] != grid.Face || f.grid.Topology(a) != grid.Bounded {
			continue
		}
		for k := e.Kmin; k < e.Kmax; k++ {
			for j := e.Jmin; j < e.Jmax; j++ {
				for i := e.Imin; i < e.Imax; i++ {
					if grid.IsBoundaryFace(f.grid, a, a.Index(i, j, k)) {
						f.Set(i, j, k, 0)
					}
				}
			}
		}
	}
}

// FillHalo refreshes halo entries from interior values according to the
// topology of each axis
func (f *Field) FillHalo() {
	if f.connector == nil {
		f.connector = NewHaloConnector(f.grid, f.loc)
	}
	f.connector.Apply(f.data)
}

// OnArchitecture returns a copy of f on a grid bound to arch. Device
// architectures also receive the data under the field's name, which must not
// already hold another field.
func (f *Field) OnArchitecture(arch runner.Architecture) (*Field, error) {
	c := NewField(f.grid.OnArchitecture(arch), f.loc, f.Name)
	copy(c.data, f.data)
	if d, ok := arch.(*runner.Device); ok {
		if err := d.Register(f.Name, c.data); err != nil {
			return nil, fmt.Errorf("relocating field %s: %w", f.Name, err)
		}
	}
	return c, nil
}

// Velocities groups the three staggered velocity components
type Velocities struct {
	U, V, W *Field
}

// NewVelocities allocates u at fcc, v at cfc and w at ccf
func NewVelocities(g grid.Grid) Velocities {
	return Velocities{
		U: NewField(g, grid.FCC, "u"),
		V: NewField(g, grid.CFC, "v"),
		W: NewField(g, grid.CCF, "w"),
	}
}

func (v Velocities) FillHalo() {
	v.U.FillHalo()
	v.V.FillHalo()
	v.W.FillHalo()
}
