package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/notargets/FVOcean/runner"
)

// ErrInvalidHalo is returned for a halo narrower than one cell
var ErrInvalidHalo = errors.New("halo must be at least 1")

// DefaultHalo is used when a Config leaves Halo unset
const DefaultHalo = 3

// Config describes a RectilinearGrid. Per axis either Extent (uniform spacing
// from Origin) or Faces (len = Size+1, strictly increasing) is used.
type Config struct {
	Size         [3]int
	Extent       [3]float64
	Origin       [3]float64
	Faces        [3][]float64
	Topology     [3]Topology
	Halo         int
	Architecture runner.Architecture
}

// RectilinearGrid is a Cartesian grid with independent spacing per axis
type RectilinearGrid struct {
	n     [3]int
	halo  int
	topo  [3]Topology
	faces [3][]float64 // interior face coordinates, len n+1

	// Halo-extended tables indexed by idx+pad
	pad     int
	dc, df  [3][]float64 // spacing at centers and faces
	xc, xf  [3][]float64 // coordinates of centers and faces
	uniform [3]bool
	arch    runner.Architecture
}

// NewRectilinearGrid validates cfg and builds the metric tables
func NewRectilinearGrid(cfg Config) (*RectilinearGrid, error) {
	g := &RectilinearGrid{
		n:    cfg.Size,
		halo: cfg.Halo,
		topo: cfg.Topology,
		arch: cfg.Architecture,
	}
	if g.halo == 0 {
		g.halo = DefaultHalo
	}
	if g.halo < 1 {
		return nil, fmt.Errorf("got %d: %w", g.halo, ErrInvalidHalo)
	}
	if g.arch == nil {
		g.arch = runner.Serial{}
	}
	for a := X; a <= Z; a++ {
		n := cfg.Size[a]
		if n < 1 {
			return nil, fmt.Errorf("axis %s: size must be positive, got %d", a, n)
		}
		faces := cfg.Faces[a]
		if faces == nil {
			if !(cfg.Extent[a] > 0) {
				return nil, fmt.Errorf("axis %s: extent must be positive, got %g", a, cfg.Extent[a])
			}
			faces = make([]float64, n+1)
			for i := range faces {
				faces[i] = cfg.Origin[a] + cfg.Extent[a]*float64(i)/float64(n)
			}
		} else {
			if len(faces) != n+1 {
				return nil, fmt.Errorf("axis %s: %d faces given for %d cells", a, len(faces), n)
			}
			faces = append([]float64(nil), faces...)
			for i := 1; i < len(faces); i++ {
				if !(faces[i] > faces[i-1]) {
					return nil, fmt.Errorf("axis %s: faces must be strictly increasing at %d", a, i)
				}
			}
		}
		g.faces[a] = faces
	}
	g.build()
	return g, nil
}

// MustRectilinearGrid is NewRectilinearGrid that panics on error
func MustRectilinearGrid(cfg Config) *RectilinearGrid {
	g, err := NewRectilinearGrid(cfg)
	if err != nil {
		panic(err)
	}
	return g
}

// fold maps an out-of-range cell index into [0,n) for the given topology
func fold(idx, n int, topo Topology) int {
	if topo == Periodic {
		return ((idx % n) + n) % n
	}
	m := ((idx % (2 * n)) + 2*n) % (2 * n)
	if m >= n {
		m = 2*n - 1 - m
	}
	return m
}

func (g *RectilinearGrid) build() {
	g.pad = g.halo + 1
	for a := X; a <= Z; a++ {
		n := g.n[a]
		width := make([]float64, n)
		for i := 0; i < n; i++ {
			width[i] = g.faces[a][i+1] - g.faces[a][i]
		}
		size := n + 2*g.pad + 1
		dc := make([]float64, size)
		df := make([]float64, size)
		xc := make([]float64, size)
		xf := make([]float64, size)
		for idx := -g.pad; idx < n+g.pad+1; idx++ {
			dc[idx+g.pad] = width[fold(idx, n, g.topo[a])]
		}
		for idx := -g.pad + 1; idx < n+g.pad+1; idx++ {
			df[idx+g.pad] = 0.5 * (dc[idx+g.pad-1] + dc[idx+g.pad])
		}
		df[0] = dc[0]

		// Coordinates extend outward from the interior faces
		xf[g.pad] = g.faces[a][0]
		for idx := 1; idx < n+g.pad+1; idx++ {
			xf[idx+g.pad] = xf[idx+g.pad-1] + dc[idx+g.pad-1]
		}
		for idx := -1; idx >= -g.pad; idx-- {
			xf[idx+g.pad] = xf[idx+g.pad+1] - dc[idx+g.pad]
		}
		for idx := -g.pad; idx < n+g.pad; idx++ {
			xc[idx+g.pad] = xf[idx+g.pad] + 0.5*dc[idx+g.pad]
		}

		g.dc[a], g.df[a], g.xc[a], g.xf[a] = dc, df, xc, xf

		g.uniform[a] = true
		for i := 1; i < n; i++ {
			if math.Abs(width[i]-width[0]) > 1e-12*math.Abs(width[0]) {
				g.uniform[a] = false
				break
			}
		}
	}
}

func (g *RectilinearGrid) Size() (nx, ny, nz int) { return g.n[0], g.n[1], g.n[2] }

func (g *RectilinearGrid) Halo() int { return g.halo }

func (g *RectilinearGrid) Topology(a Axis) Topology { return g.topo[a] }

func (g *RectilinearGrid) delta(a Axis, idx int, lt LocationType) float64 {
	if lt == Center {
		return g.dc[a][idx+g.pad]
	}
	return g.df[a][idx+g.pad]
}

func (g *RectilinearGrid) Spacing(a Axis, i, j, k int, loc Location) float64 {
	return g.delta(a, a.Index(i, j, k), loc[a])
}

func (g *RectilinearGrid) Area(a Axis, i, j, k int, loc Location) float64 {
	area := 1.0
	for b := X; b <= Z; b++ {
		if b != a {
			area *= g.delta(b, b.Index(i, j, k), loc[b])
		}
	}
	return area
}

func (g *RectilinearGrid) Volume(i, j, k int, loc Location) float64 {
	return g.delta(X, i, loc[X]) * g.delta(Y, j, loc[Y]) * g.delta(Z, k, loc[Z])
}

func (g *RectilinearGrid) Node(a Axis, idx int, lt LocationType) float64 {
	if lt == Center {
		return g.xc[a][idx+g.pad]
	}
	return g.xf[a][idx+g.pad]
}

func (g *RectilinearGrid) Depth() float64 {
	return g.faces[Z][g.n[Z]] - g.faces[Z][0]
}

func (g *RectilinearGrid) UniformHorizontal() bool {
	return g.uniform[X] && g.uniform[Y]
}

// Uniform reports whether spacing along a is constant
func (g *RectilinearGrid) Uniform(a Axis) bool { return g.uniform[a] }

func (g *RectilinearGrid) Architecture() runner.Architecture { return g.arch }

func (g *RectilinearGrid) OnArchitecture(arch runner.Architecture) Grid {
	c := *g
	c.arch = arch
	return &c
}

func (g *RectilinearGrid) WithHalo(h int) (Grid, error) {
	if h < 1 {
		return nil, fmt.Errorf("got %d: %w", h, ErrInvalidHalo)
	}
	if h == g.halo {
		return g, nil
	}
	c := &RectilinearGrid{n: g.n, halo: h, topo: g.topo, faces: g.faces, arch: g.arch}
	c.build()
	return c, nil
}

func (g *RectilinearGrid) Surface() Grid {
	c := &RectilinearGrid{n: g.n, halo: g.halo, topo: g.topo, faces: g.faces, arch: g.arch}
	c.n[Z] = 1
	c.topo[Z] = Bounded
	c.faces[Z] = []float64{g.faces[Z][0], g.faces[Z][g.n[Z]]}
	c.build()
	return c
}

func (g *RectilinearGrid) String() string {
	return fmt.Sprintf("RectilinearGrid{%dx%dx%d, halo=%d, topology=(%s, %s, %s), arch=%s}",
		g.n[0], g.n[1], g.n[2], g.halo, g.topo[0], g.topo[1], g.topo[2], g.arch.Name())
}
