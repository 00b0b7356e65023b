package partitions

import (
	"fmt"
)

// Partition represents a collection of index-range rows that execute together
// as one unit of work on a single worker
type Partition struct {
	// Unique identifier for this partition
	ID int

	// Row membership
	Rows    []int // Flattened (j,k) row indices in this partition
	NumRows int   // Actual number of active rows
	MaxRows int   // Largest partition size, uniform across the layout
}

// PartitionLayout manages the complete decomposition of an index range
type PartitionLayout struct {
	// All partitions of the range
	Partitions []Partition

	// Global sizing information
	RowsPartMax   int // max(NumRows) across all partitions
	TotalRows     int // Sum of all rows across partitions
	NumPartitions int // Total number of partitions

	// Row to partition mapping
	RToP []int // Length TotalRows: row r belongs to partition RToP[r]
}

// GetPartition returns the partition containing row r
func (pl *PartitionLayout) GetPartition(row int) int {
	if row < 0 || row >= len(pl.RToP) {
		return -1
	}
	return pl.RToP[row]
}

// ValidateLayout checks partition consistency
func (pl *PartitionLayout) ValidateLayout() error {
	actualMax := 0
	total := 0
	for _, p := range pl.Partitions {
		if p.NumRows > actualMax {
			actualMax = p.NumRows
		}
		if p.MaxRows != pl.RowsPartMax {
			return fmt.Errorf("partition %d: MaxRows %d != RowsPartMax %d",
				p.ID, p.MaxRows, pl.RowsPartMax)
		}
		if len(p.Rows) != p.NumRows {
			return fmt.Errorf("partition %d: %d rows listed, NumRows %d",
				p.ID, len(p.Rows), p.NumRows)
		}
		total += p.NumRows
	}
	if actualMax != pl.RowsPartMax {
		return fmt.Errorf("computed RowsPartMax %d != stored RowsPartMax %d",
			actualMax, pl.RowsPartMax)
	}
	if total != pl.TotalRows {
		return fmt.Errorf("partitions hold %d rows, layout has %d", total, pl.TotalRows)
	}
	return nil
}
