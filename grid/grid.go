package grid

import (
	"fmt"

	"github.com/notargets/FVOcean/runner"
)

// Topology describes how an axis closes at its ends
type Topology uint8

const (
	Periodic Topology = iota
	Bounded
)

func (t Topology) String() string {
	switch t {
	case Periodic:
		return "Periodic"
	case Bounded:
		return "Bounded"
	}
	return fmt.Sprintf("Topology(%d)", uint8(t))
}

// ParseTopology converts a configuration name into a Topology
func ParseTopology(name string) (Topology, error) {
	switch name {
	case "periodic", "Periodic":
		return Periodic, nil
	case "bounded", "Bounded":
		return Bounded, nil
	}
	return 0, fmt.Errorf("unknown topology %q", name)
}

// Axis identifies a grid direction
type Axis uint8

const (
	X Axis = iota
	Y
	Z
)

var axisNames = [3]string{"x", "y", "z"}

func (a Axis) String() string {
	if a <= Z {
		return axisNames[a]
	}
	return fmt.Sprintf("Axis(%d)", uint8(a))
}

// Shift offsets the index triple by n along axis a
func (a Axis) Shift(i, j, k, n int) (int, int, int) {
	switch a {
	case X:
		return i + n, j, k
	case Y:
		return i, j + n, k
	}
	return i, j, k + n
}

// Index picks the component of (i,j,k) along axis a
func (a Axis) Index(i, j, k int) int {
	switch a {
	case X:
		return i
	case Y:
		return j
	}
	return k
}

// LocationType is the position of a quantity along one axis of a cell
type LocationType uint8

const (
	Center LocationType = iota
	Face
)

// Flip exchanges Center and Face
func (l LocationType) Flip() LocationType {
	if l == Center {
		return Face
	}
	return Center
}

// Location is the staggered position of a quantity, one LocationType per axis
type Location [3]LocationType

var (
	CCC = Location{Center, Center, Center} // tracers, pressure, η
	FCC = Location{Face, Center, Center}   // u
	CFC = Location{Center, Face, Center}   // v
	CCF = Location{Center, Center, Face}   // w
	FFC = Location{Face, Face, Center}     // vertical vorticity
	FCF = Location{Face, Center, Face}
	CFF = Location{Center, Face, Face}
)

// Flip returns the location with axis a exchanged between Center and Face
func (l Location) Flip(a Axis) Location {
	l[a] = l[a].Flip()
	return l
}

func (l Location) String() string {
	b := make([]byte, 3)
	for a, lt := range l {
		if lt == Center {
			b[a] = 'c'
		} else {
			b[a] = 'f'
		}
	}
	return string(b)
}

// Grid provides geometric metrics for a staggered finite-volume mesh. Metric
// queries accept any index within the halo.
type Grid interface {
	// Size is the number of cells along each axis
	Size() (nx, ny, nz int)
	Halo() int
	Topology(a Axis) Topology

	// Spacing is the grid spacing along a at (i,j,k) and location loc
	Spacing(a Axis, i, j, k int, loc Location) float64
	// Area is the area of the face normal to a at (i,j,k) and location loc
	Area(a Axis, i, j, k int, loc Location) float64
	Volume(i, j, k int, loc Location) float64
	// Node is the coordinate of index idx along a at location lt
	Node(a Axis, idx int, lt LocationType) float64

	// Depth is the total vertical extent of a column
	Depth() float64
	// UniformHorizontal reports whether Δx and Δy are constant
	UniformHorizontal() bool

	Architecture() runner.Architecture
	// OnArchitecture returns a copy of the grid bound to arch
	OnArchitecture(arch runner.Architecture) Grid
	// WithHalo returns a copy of the grid with halo width h; h must be at
	// least 1
	WithHalo(h int) (Grid, error)
	// Surface returns the single-layer grid spanning the full column depth
	Surface() Grid
}

// Points returns the number of distinct points of location lt along an axis of n
// cells: bounded axes carry one extra face.
func Points(g Grid, a Axis, lt LocationType) int {
	n := [3]int{}
	n[0], n[1], n[2] = g.Size()
	if lt == Face && g.Topology(a) == Bounded {
		return n[a] + 1
	}
	return n[a]
}

// IsBoundaryFace reports whether face index idx along a lies on a Bounded
// domain edge
func IsBoundaryFace(g Grid, a Axis, idx int) bool {
	if g.Topology(a) != Bounded {
		return false
	}
	n := [3]int{}
	n[0], n[1], n[2] = g.Size()
	return idx <= 0 || idx >= n[a]
}

func Dx(g Grid, i, j, k int, loc Location) float64 { return g.Spacing(X, i, j, k, loc) }
func Dy(g Grid, i, j, k int, loc Location) float64 { return g.Spacing(Y, i, j, k, loc) }
func Dz(g Grid, i, j, k int, loc Location) float64 { return g.Spacing(Z, i, j, k, loc) }
func Ax(g Grid, i, j, k int, loc Location) float64 { return g.Area(X, i, j, k, loc) }
func Ay(g Grid, i, j, k int, loc Location) float64 { return g.Area(Y, i, j, k, loc) }
func Az(g Grid, i, j, k int, loc Location) float64 { return g.Area(Z, i, j, k, loc) }
