package engine

import (
	"fmt"

	"exprview/adapters/stats/twogroup"
	"exprview/domain/core"
	"exprview/domain/matrix"
)

// SyntheticEngine derives two-group columns from data columns
type SyntheticEngine struct {
	battery *twogroup.Battery
}

// NewSyntheticEngine creates a synthetic column engine over a test battery
func NewSyntheticEngine(battery *twogroup.Battery) *SyntheticEngine {
	if battery == nil {
		battery = twogroup.NewBattery()
	}
	return &SyntheticEngine{battery: battery}
}

// Column computes the synthetic column comparing data columns a and b. Both
// must be distinct data column indices.
func (s *SyntheticEngine) Column(m *matrix.ManagedMatrix, kind matrix.TestKind, a, b int) (matrix.Column, error) {
	numData := m.NumDataColumns()
	switch {
	case a == b:
		return matrix.Column{}, core.NewInvalidColumnSelectionError(a, b, numData, "please select two different groups")
	case a < 0 || a >= numData || b < 0 || b >= numData:
		return matrix.Column{}, core.NewInvalidColumnSelectionError(a, b, numData, "both columns must be data columns")
	}
	test, ok := s.battery.ForKind(kind)
	if !ok {
		return matrix.Column{}, fmt.Errorf("%w: %q", core.ErrUnknownTestKind, kind)
	}

	colA, err := m.ColumnData(a)
	if err != nil {
		return matrix.Column{}, err
	}
	colB, err := m.ColumnData(b)
	if err != nil {
		return matrix.Column{}, err
	}

	values := make([]matrix.ExpressionValue, m.NumLoadedRows())
	for r := range values {
		res := test.Compute(sampleRow(colA, r), sampleRow(colB, r))
		if !res.Valid {
			values[r] = matrix.AbsentValue()
			continue
		}
		values[r] = matrix.PresentValue(res.Value)
	}

	return matrix.Column{
		Info: matrix.ColumnInfo{
			Name:           fmt.Sprintf("%s %s vs %s", kind.Title(), colA.Info.Name, colB.Info.Name),
			Hint:           test.Description(),
			IsPValue:       kind.IsPValue(),
			DefaultSortAsc: true,
			Synthetic: &matrix.SyntheticSpec{
				Kind:   kind,
				GroupA: colA.Info.Group,
				GroupB: colB.Info.Group,
			},
		},
		Filter: matrix.DefaultFilter(kind.IsPValue()),
		Values: values,
	}, nil
}

// Add appends the synthetic column comparing a and b
func (s *SyntheticEngine) Add(m *matrix.ManagedMatrix, kind matrix.TestKind, a, b int) (*matrix.ManagedMatrix, error) {
	c, err := s.Column(m, kind, a, b)
	if err != nil {
		return nil, err
	}
	return m.WithSyntheticColumn(c)
}

// RemoveAll drops every synthetic column. With none present it returns m.
func (s *SyntheticEngine) RemoveAll(m *matrix.ManagedMatrix) *matrix.ManagedMatrix {
	return m.WithoutSyntheticColumns()
}

// Reapply re-derives synthetic columns from their specs after a rebuild,
// resolving groups by name. Specs whose groups no longer exist are skipped
// and returned.
func (s *SyntheticEngine) Reapply(m *matrix.ManagedMatrix, specs []matrix.SyntheticSpec) (*matrix.ManagedMatrix, []matrix.SyntheticSpec, error) {
	var skipped []matrix.SyntheticSpec
	for _, spec := range specs {
		a, b := m.IndexOfGroup(spec.GroupA), m.IndexOfGroup(spec.GroupB)
		if a < 0 || b < 0 {
			skipped = append(skipped, spec)
			continue
		}
		next, err := s.Add(m, spec.Kind, a, b)
		if err != nil {
			return nil, skipped, err
		}
		m = next
	}
	return m, skipped, nil
}

// sampleRow returns the per-sample values of a data column at a row, or nil
// when the column carries none
func sampleRow(c matrix.Column, r int) []float64 {
	if r < 0 || r >= len(c.SampleValues) {
		return nil
	}
	return c.SampleValues[r]
}
