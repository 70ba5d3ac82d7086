package twogroup

import (
	"math"
	"sort"

	"exprview/domain/matrix"

	"gonum.org/v1/gonum/stat/distuv"
)

// MannWhitneyUTest is the rank-sum test, evaluated with the tie-corrected
// normal approximation
type MannWhitneyUTest struct{}

// NewMannWhitneyUTest creates a new Mann-Whitney U test
func NewMannWhitneyUTest() *MannWhitneyUTest {
	return &MannWhitneyUTest{}
}

func (u *MannWhitneyUTest) Name() string          { return "mann_whitney_u" }
func (u *MannWhitneyUTest) Kind() matrix.TestKind { return matrix.UTest }

func (u *MannWhitneyUTest) Description() string {
	return "Two-sided Mann-Whitney U test p-value for a shift between group distributions"
}

// Compute needs at least one value per group. The statistic reported is the
// larger of U1 and U2.
func (u *MannWhitneyUTest) Compute(a, b []float64) Result {
	a, b = finite(a), finite(b)
	r := Result{N1: len(a), N2: len(b)}
	if len(a) == 0 || len(b) == 0 {
		return r
	}

	n1, n2 := float64(len(a)), float64(len(b))
	n := n1 + n2
	ranks, tieTerm := rankAll(a, b)

	r1 := 0.0
	for i := range a {
		r1 += ranks[i]
	}
	u1 := r1 - n1*(n1+1)/2
	u2 := n1*n2 - u1
	uMax := math.Max(u1, u2)

	mu := n1 * n2 / 2
	variance := n1 * n2 / 12 * ((n + 1) - tieTerm/(n*(n-1)))
	r.Statistic = uMax
	r.Valid = true
	if variance <= 0 || math.IsNaN(variance) {
		// every value tied: no evidence of a shift
		r.Value = 1
		return r
	}

	z := (uMax - mu) / math.Sqrt(variance)
	r.Value = clampP(2 * distuv.UnitNormal.Survival(math.Abs(z)))
	return r
}

// rankAll assigns average ranks over the pooled values (a first, then b) and
// returns the tie correction term sum(t^3 - t)
func rankAll(a, b []float64) ([]float64, float64) {
	type entry struct {
		value float64
		index int
	}
	pooled := make([]entry, 0, len(a)+len(b))
	for i, v := range a {
		pooled = append(pooled, entry{v, i})
	}
	for i, v := range b {
		pooled = append(pooled, entry{v, len(a) + i})
	}
	sort.Slice(pooled, func(i, j int) bool { return pooled[i].value < pooled[j].value })

	ranks := make([]float64, len(pooled))
	tieTerm := 0.0
	for i := 0; i < len(pooled); {
		j := i
		for j+1 < len(pooled) && pooled[j+1].value == pooled[i].value {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[pooled[k].index] = avg
		}
		if t := float64(j - i + 1); t > 1 {
			tieTerm += t*t*t - t
		}
		i = j + 1
	}
	return ranks, tieTerm
}
