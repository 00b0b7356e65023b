package field

import (
	"fmt"

	"github.com/notargets/FVOcean/grid"
)

// HaloConnector holds pick and place indices that fill a field's halo from its
// interior. Place[n] receives Sign[n] * data[Pick[n]].
type HaloConnector struct {
	Pick  []int
	Place []int
	Sign  []float64

	// Storage extents
	tx, ty, tz int
	halo       int
}

// foldAxis maps a storage index along one axis onto a valid point. Bounded
// centers mirror with even symmetry, bounded faces with odd symmetry about the
// boundary faces, periodic axes wrap.
func foldAxis(idx, n int, topo grid.Topology, lt grid.LocationType) (src int, sign float64) {
	if topo == grid.Periodic {
		return ((idx % n) + n) % n, 1
	}
	m := ((idx % (2 * n)) + 2*n) % (2 * n)
	if lt == grid.Center {
		if m >= n {
			m = 2*n - 1 - m
		}
		return m, 1
	}
	if m > n {
		return 2*n - m, -1
	}
	return m, 1
}

// NewHaloConnector builds the pick/place lists for a field at loc on g
func NewHaloConnector(g grid.Grid, loc grid.Location) *HaloConnector {
	var n [3]int
	n[0], n[1], n[2] = g.Size()
	h := g.Halo()
	hc := &HaloConnector{
		tx: n[0] + 2*h, ty: n[1] + 2*h, tz: n[2] + 2*h,
		halo: h,
	}
	var points [3]int
	for a := grid.X; a <= grid.Z; a++ {
		points[a] = grid.Points(g, a, loc[a])
	}
	index := func(i, j, k int) int {
		return ((k+h)*hc.ty+(j+h))*hc.tx + (i + h)
	}

	for k := -h; k < n[2]+h; k++ {
		for j := -h; j < n[1]+h; j++ {
			for i := -h; i < n[0]+h; i++ {
				idx := [3]int{i, j, k}
				valid := true
				for a := range idx {
					if idx[a] < 0 || idx[a] >= points[a] {
						valid = false
					}
				}
				if valid {
					continue
				}
				var src [3]int
				sign := 1.0
				for a := grid.X; a <= grid.Z; a++ {
					s, sg := foldAxis(idx[a], n[a], g.Topology(a), loc[a])
					src[a] = s
					sign *= sg
				}
				hc.Pick = append(hc.Pick, index(src[0], src[1], src[2]))
				hc.Place = append(hc.Place, index(i, j, k))
				hc.Sign = append(hc.Sign, sign)
			}
		}
	}
	return hc
}

// Apply fills the halo of data in place
func (hc *HaloConnector) Apply(data []float64) {
	for n, place := range hc.Place {
		data[place] = hc.Sign[n] * data[hc.Pick[n]]
	}
}

// Verify checks that every pick reads a non-halo entry and places are unique
func (hc *HaloConnector) Verify() error {
	if len(hc.Pick) != len(hc.Place) || len(hc.Pick) != len(hc.Sign) {
		return fmt.Errorf("pick/place/sign lengths differ: %d/%d/%d",
			len(hc.Pick), len(hc.Place), len(hc.Sign))
	}
	placed := make(map[int]bool, len(hc.Place))
	for _, p := range hc.Place {
		if placed[p] {
			return fmt.Errorf("storage index %d placed twice", p)
		}
		placed[p] = true
	}
	for n, p := range hc.Pick {
		if placed[p] {
			return fmt.Errorf("pick %d reads halo entry %d", n, p)
		}
	}
	return nil
}
