// Package twogroup computes the per-probe statistics behind synthetic matrix
// columns. Every test compares the sample values of two groups for one probe.
package twogroup

import (
	"fmt"
	"math"

	"exprview/domain/matrix"
)

// Result is the outcome of one two-group comparison
type Result struct {
	// Value is the column value: a p-value for tests, a difference otherwise
	Value     float64 `json:"value"`
	Statistic float64 `json:"statistic"`
	N1        int     `json:"n1"`
	N2        int     `json:"n2"`
	// Valid is false when the data cannot support the statistic; such cells
	// are absent in the matrix
	Valid bool `json:"valid"`
}

// Summary renders a result for tooltips and logs
func (r Result) Summary(name string) string {
	if !r.Valid {
		return fmt.Sprintf("%s: insufficient data (n1=%d, n2=%d)", name, r.N1, r.N2)
	}
	return fmt.Sprintf("%s: value=%.4g, statistic=%.4g (n1=%d, n2=%d)", name, r.Value, r.Statistic, r.N1, r.N2)
}

// Test is one two-group statistic
type Test interface {
	Name() string
	Kind() matrix.TestKind
	Description() string
	Compute(a, b []float64) Result
}

// Battery holds the available tests keyed by kind
type Battery struct {
	tests []Test
}

// NewBattery creates the standard battery: Welch t-test, Mann-Whitney U test
// and mean difference
func NewBattery() *Battery {
	return &Battery{
		tests: []Test{
			NewWelchTTest(),
			NewMannWhitneyUTest(),
			NewMeanDifference(),
		},
	}
}

// ForKind looks up the test computing a kind
func (b *Battery) ForKind(kind matrix.TestKind) (Test, bool) {
	for _, t := range b.tests {
		if t.Kind() == kind {
			return t, true
		}
	}
	return nil, false
}

// Kinds lists the supported kinds
func (b *Battery) Kinds() []matrix.TestKind {
	kinds := make([]matrix.TestKind, len(b.tests))
	for i, t := range b.tests {
		kinds[i] = t.Kind()
	}
	return kinds
}

// finite drops NaN and infinite values: missing samples are stored as NaN
func finite(data []float64) []float64 {
	out := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func clampP(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
