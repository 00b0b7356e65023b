package runner

import (
	"context"
	"fmt"
)

// IndexRange is a half-open box of grid indices [Imin,Imax) x [Jmin,Jmax) x [Kmin,Kmax)
type IndexRange struct {
	Imin, Imax int
	Jmin, Jmax int
	Kmin, Kmax int
}

// NewIndexRange returns the range [0,nx) x [0,ny) x [0,nz)
func NewIndexRange(nx, ny, nz int) IndexRange {
	return IndexRange{Imax: nx, Jmax: ny, Kmax: nz}
}

// Extent returns the number of indices along each axis
func (r IndexRange) Extent() (ni, nj, nk int) {
	ni, nj, nk = r.Imax-r.Imin, r.Jmax-r.Jmin, r.Kmax-r.Kmin
	if ni < 0 {
		ni = 0
	}
	if nj < 0 {
		nj = 0
	}
	if nk < 0 {
		nk = 0
	}
	return
}

// Size is the total number of indices in the range
func (r IndexRange) Size() int {
	ni, nj, nk := r.Extent()
	return ni * nj * nk
}

// Empty reports whether the range holds no index
func (r IndexRange) Empty() bool { return r.Size() == 0 }

// Rows is the number of (j,k) rows; each row spans the full i extent
func (r IndexRange) Rows() int {
	_, nj, nk := r.Extent()
	return nj * nk
}

// Row maps a flattened row number back to its (j,k) pair
func (r IndexRange) Row(row int) (j, k int) {
	_, nj, _ := r.Extent()
	return r.Jmin + row%nj, r.Kmin + row/nj
}

func (r IndexRange) String() string {
	return fmt.Sprintf("[%d:%d, %d:%d, %d:%d]", r.Imin, r.Imax, r.Jmin, r.Jmax, r.Kmin, r.Kmax)
}

// Kernel is a per-index computation. A kernel writes only the output location
// of its own index; reads of neighbouring indices must stay inside the halo.
type Kernel func(i, j, k int)

// Architecture executes per-index kernels over index ranges
type Architecture interface {
	Name() string
	Launch(ctx context.Context, r IndexRange, kernel Kernel) error
}

// Serial runs kernels in index order on the calling goroutine
type Serial struct{}

func (Serial) Name() string { return "Serial" }

// Launch visits every index of r with i fastest
func (Serial) Launch(ctx context.Context, r IndexRange, kernel Kernel) error {
	if r.Empty() {
		return nil
	}
	for k := r.Kmin; k < r.Kmax; k++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for j := r.Jmin; j < r.Jmax; j++ {
			for i := r.Imin; i < r.Imax; i++ {
				kernel(i, j, k)
			}
		}
	}
	return nil
}
