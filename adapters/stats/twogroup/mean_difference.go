package twogroup

import (
	"exprview/domain/matrix"

	"github.com/montanaflynn/stats"
)

// MeanDifference is the difference of group means. On fold values it is the
// fold-change difference between the groups.
type MeanDifference struct{}

// NewMeanDifference creates a new mean difference statistic
func NewMeanDifference() *MeanDifference {
	return &MeanDifference{}
}

func (d *MeanDifference) Name() string          { return "mean_difference" }
func (d *MeanDifference) Kind() matrix.TestKind { return matrix.MeanDifference }

func (d *MeanDifference) Description() string {
	return "Mean of the first group minus mean of the second group"
}

// Compute needs at least one value per group
func (d *MeanDifference) Compute(a, b []float64) Result {
	a, b = finite(a), finite(b)
	r := Result{N1: len(a), N2: len(b)}
	mean1, err := stats.Mean(a)
	if err != nil {
		return r
	}
	mean2, err := stats.Mean(b)
	if err != nil {
		return r
	}
	r.Value = mean1 - mean2
	r.Statistic = r.Value
	r.Valid = true
	return r
}
