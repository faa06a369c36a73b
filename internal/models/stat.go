package models

import (
	"fmt"
	"strings"
)

// StatKind selects the per-region reduction applied by a masker
type StatKind string

const (
	StatSum               StatKind = "sum"
	StatMean              StatKind = "mean"
	StatMedian            StatKind = "median"
	StatMinimum           StatKind = "minimum"
	StatMaximum           StatKind = "maximum"
	StatVariance          StatKind = "variance"
	StatStandardDeviation StatKind = "standard_deviation"
)

// StatKinds lists every supported statistic
var StatKinds = []StatKind{
	StatSum,
	StatMean,
	StatMedian,
	StatMinimum,
	StatMaximum,
	StatVariance,
	StatStandardDeviation,
}

// ParseStatKind returns the StatKind named by s. Unknown names are an
// ErrInvalidArgument; there is no default.
func ParseStatKind(s string) (StatKind, error) {
	k := StatKind(s)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Validate reports whether k is a supported statistic
func (k StatKind) Validate() error {
	for _, known := range StatKinds {
		if k == known {
			return nil
		}
	}
	names := make([]string, len(StatKinds))
	for i, known := range StatKinds {
		names[i] = string(known)
	}
	return fmt.Errorf("%w: metric %q (must be one of: %s)", ErrInvalidArgument, string(k), strings.Join(names, ", "))
}
