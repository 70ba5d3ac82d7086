package twogroup

import (
	"math"

	"exprview/domain/matrix"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// WelchTTest compares group means without assuming equal variances
type WelchTTest struct{}

// NewWelchTTest creates a new Welch's t-test
func NewWelchTTest() *WelchTTest {
	return &WelchTTest{}
}

func (t *WelchTTest) Name() string          { return "welch_ttest" }
func (t *WelchTTest) Kind() matrix.TestKind { return matrix.TTest }

func (t *WelchTTest) Description() string {
	return "Two-sided Welch's t-test p-value for a difference between group means"
}

// Compute needs at least two values per group and a non-zero standard error
func (t *WelchTTest) Compute(a, b []float64) Result {
	a, b = finite(a), finite(b)
	r := Result{N1: len(a), N2: len(b)}
	if len(a) < 2 || len(b) < 2 {
		return r
	}

	n1, n2 := float64(len(a)), float64(len(b))
	mean1, var1 := stat.MeanVariance(a, nil)
	mean2, var2 := stat.MeanVariance(b, nil)

	// Welch's t-statistic: t = (mean1 - mean2) / sqrt(var1/n1 + var2/n2)
	se2 := var1/n1 + var2/n2
	if se2 <= 0 || math.IsNaN(se2) {
		return r
	}
	tStat := (mean1 - mean2) / math.Sqrt(se2)

	// Welch-Satterthwaite degrees of freedom
	df := se2 * se2 / ((var1/n1)*(var1/n1)/(n1-1) + (var2/n2)*(var2/n2)/(n2-1))
	if math.IsNaN(df) || df <= 0 {
		return r
	}

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	r.Value = clampP(2 * dist.Survival(math.Abs(tStat)))
	r.Statistic = tStat
	r.Valid = !math.IsNaN(r.Value)
	return r
}
