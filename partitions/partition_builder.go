package partitions

import (
	"fmt"
	"math"
)

// PartitionBuilder constructs partitions over the rows of an index range
type PartitionBuilder struct {
	TotalRows int

	// Partitioning parameters
	TargetPartitionSize int // Desired rows per partition
	MaxPartitions       int // Upper bound, usually the worker count; 0 means unbounded
	Strategy            PartitionStrategy
}

// PartitionStrategy defines how rows are grouped
type PartitionStrategy int

const (
	BlockPartition PartitionStrategy = iota // Consecutive rows
	RoundRobin                              // Distribute cyclically
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round-robin"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

// NewWorkLayout splits totalRows among at most workers partitions
func NewWorkLayout(totalRows, workers int, strategy PartitionStrategy) (*PartitionLayout, error) {
	if workers < 1 {
		workers = 1
	}
	pb := &PartitionBuilder{
		TotalRows:           totalRows,
		TargetPartitionSize: int(math.Ceil(float64(totalRows) / float64(workers))),
		MaxPartitions:       workers,
		Strategy:            strategy,
	}
	return pb.BuildPartitions()
}

// BuildPartitions creates a partition layout for the configured row count
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	if pb.TotalRows < 0 {
		return nil, fmt.Errorf("invalid row count %d", pb.TotalRows)
	}

	numPartitions := pb.calculateNumPartitions()

	rToP := pb.partitionRows(numPartitions)

	partitions := pb.createPartitions(rToP, numPartitions)

	rowsPartMax := pb.calculateRowsPartMax(partitions)
	for i := range partitions {
		partitions[i].MaxRows = rowsPartMax
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		RowsPartMax:   rowsPartMax,
		TotalRows:     pb.TotalRows,
		NumPartitions: numPartitions,
		RToP:          rToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// calculateNumPartitions determines the partition count
func (pb *PartitionBuilder) calculateNumPartitions() int {
	target := pb.TargetPartitionSize
	if target < 1 {
		target = 1
	}
	numPartitions := int(math.Ceil(float64(pb.TotalRows) / float64(target)))

	if pb.MaxPartitions > 0 && numPartitions > pb.MaxPartitions {
		numPartitions = pb.MaxPartitions
	}
	// Ensure at least one partition
	if numPartitions < 1 {
		numPartitions = 1
	}

	return numPartitions
}

// partitionRows assigns rows to partitions
func (pb *PartitionBuilder) partitionRows(numPartitions int) []int {
	rToP := make([]int, pb.TotalRows)

	switch pb.Strategy {
	case RoundRobin:
		for r := 0; r < pb.TotalRows; r++ {
			rToP[r] = r % numPartitions
		}

	default:
		// Block partitioning spreads the remainder over the leading partitions
		base := pb.TotalRows / numPartitions
		extra := pb.TotalRows % numPartitions
		r := 0
		for p := 0; p < numPartitions; p++ {
			n := base
			if p < extra {
				n++
			}
			for c := 0; c < n; c++ {
				rToP[r] = p
				r++
			}
		}
	}

	return rToP
}

// createPartitions builds partition structures from row assignments
func (pb *PartitionBuilder) createPartitions(rToP []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)

	for i := range partitions {
		partitions[i] = Partition{
			ID:   i,
			Rows: make([]int, 0, pb.TotalRows/numPartitions+1),
		}
	}

	for row, part := range rToP {
		partitions[part].Rows = append(partitions[part].Rows, row)
		partitions[part].NumRows++
	}

	return partitions
}

// calculateRowsPartMax finds maximum rows across all partitions
func (pb *PartitionBuilder) calculateRowsPartMax(partitions []Partition) int {
	rowsPartMax := 0
	for _, p := range partitions {
		if p.NumRows > rowsPartMax {
			rowsPartMax = p.NumRows
		}
	}
	return rowsPartMax
}
