package masker

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/voxelai/parcpak/internal/models"
)

// Compute reduces the voxel values of one region to a single number.
// Variance and standard deviation are population statistics. An empty
// region yields 0.
func Compute(kind models.StatKind, values []float64) (float64, error) {
	if err := kind.Validate(); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, nil
	}

	switch kind {
	case models.StatSum:
		return floats.Sum(values), nil
	case models.StatMean:
		return stat.Mean(values, nil), nil
	case models.StatMedian:
		return median(values), nil
	case models.StatMinimum:
		return floats.Min(values), nil
	case models.StatMaximum:
		return floats.Max(values), nil
	case models.StatVariance:
		return stat.PopVariance(values, nil), nil
	case models.StatStandardDeviation:
		return stat.PopStdDev(values, nil), nil
	}
	return 0, fmt.Errorf("%w: metric %q", models.ErrInvalidArgument, string(kind))
}

// median averages the two middle values for even-length input
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
