package runner

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/notargets/FVOcean/partitions"
	"golang.org/x/sync/errgroup"
)

// CPU runs kernels on a pool of goroutines. The rows of each launched range are
// split into partitions, one per worker.
type CPU struct {
	Workers  int
	Strategy partitions.PartitionStrategy

	mu      sync.Mutex
	layouts map[int]*partitions.PartitionLayout
}

// NewCPU creates a CPU architecture; workers < 1 selects GOMAXPROCS
func NewCPU(workers int) *CPU {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &CPU{
		Workers:  workers,
		Strategy: partitions.BlockPartition,
		layouts:  make(map[int]*partitions.PartitionLayout),
	}
}

func (c *CPU) Name() string {
	return fmt.Sprintf("CPU(%d)", c.Workers)
}

// layout returns the cached partition layout for a row count
func (c *CPU) layout(rows int) (*partitions.PartitionLayout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layouts == nil {
		c.layouts = make(map[int]*partitions.PartitionLayout)
	}
	if l, ok := c.layouts[rows]; ok {
		return l, nil
	}
	l, err := partitions.NewWorkLayout(rows, c.Workers, c.Strategy)
	if err != nil {
		return nil, err
	}
	c.layouts[rows] = l
	return l, nil
}

// Launch runs kernel over r. Partitions are processed concurrently; the first
// error or a cancelled context stops the remaining work.
func (c *CPU) Launch(ctx context.Context, r IndexRange, kernel Kernel) error {
	if r.Empty() {
		return nil
	}
	layout, err := c.layout(r.Rows())
	if err != nil {
		return fmt.Errorf("partitioning %v: %w", r, err)
	}
	if layout.NumPartitions == 1 {
		return Serial{}.Launch(ctx, r, kernel)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range layout.Partitions {
		rows := p.Rows
		g.Go(func() error {
			for _, row := range rows {
				if err := gctx.Err(); err != nil {
					return err
				}
				j, k := r.Row(row)
				for i := r.Imin; i < r.Imax; i++ {
					kernel(i, j, k)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
