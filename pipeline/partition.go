package pipeline

import "github.com/pkg/errors"

// ErrPartition is returned when the hidden width cannot be split evenly between the workers.
var ErrPartition = errors.New("worker count does not divide the hidden width")

// Partition returns the range [start, end) of hidden units that worker id of workers owns.
// The ranges are only disjoint and complete when workers divides width; see CheckPartition.
func Partition(width, workers, id int) (start, end int) {
	size := width / workers
	return id * size, (id + 1) * size
}

// CheckPartition reports whether width hidden units can be split between workers.
func CheckPartition(width, workers int) error {
	if workers < 1 || width%workers != 0 {
		return errors.Wrapf(ErrPartition, "%d workers for %d hidden units", workers, width)
	}
	return nil
}
