package engine

import (
	"context"

	"exprview/domain/matrix"
)

// NamedFilter is a column filter addressed by column name
type NamedFilter struct {
	Column string              `json:"column"`
	Filter matrix.ColumnFilter `json:"filter"`
}

// Checkpoint is the reproducible part of an engine state: enough to rebuild
// the same view through the normal build path
type Checkpoint struct {
	Request   BuildRequest           `json:"request"`
	Selection []string               `json:"selection,omitempty"`
	Synthetic []matrix.SyntheticSpec `json:"synthetic,omitempty"`
	Filters   []NamedFilter          `json:"filters,omitempty"`
	// SortColumn is empty when rows are in build order
	SortColumn    string `json:"sort_column,omitempty"`
	SortAscending bool   `json:"sort_ascending"`
}

// Checkpoint captures the current state
func (e *Engine) Checkpoint() (Checkpoint, error) {
	s, err := e.load()
	if err != nil {
		return Checkpoint{}, err
	}
	m := s.matrix
	cp := Checkpoint{
		Request:   s.request,
		Selection: m.SelectedProbes(),
		Synthetic: m.SyntheticSpecs(),
	}
	info := m.Info()
	for _, c := range info.Columns {
		if c.Filter.Active {
			cp.Filters = append(cp.Filters, NamedFilter{Column: c.Name, Filter: c.Filter})
		}
	}
	if key, asc := m.SortKey(); key.Kind == matrix.SortByMatrixColumn {
		cp.SortColumn = info.ColumnName(key.Column)
		cp.SortAscending = asc
	}
	return cp, nil
}

// Restore rebuilds the matrix from a checkpoint and reapplies selection,
// synthetic columns, filters and sort before swapping the result in. Parts
// that no longer resolve, such as a synthetic column over a removed group, are
// skipped with a warning.
func (e *Engine) Restore(ctx context.Context, cp Checkpoint) (matrix.ManagedMatrixInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, st, err := e.builder.Build(ctx, cp.Request)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	if len(cp.Selection) > 0 {
		m, _, _ = m.WithSelectedProbes(cp.Selection)
	}

	m, skipped, err := e.synthetic.Reapply(m, cp.Synthetic)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	for _, spec := range skipped {
		e.logger.Warn("Skipping %s column over %q and %q: group not found", spec.Kind, spec.GroupA, spec.GroupB)
	}

	info := m.Info()
	for _, nf := range cp.Filters {
		col := columnIndex(info, nf.Column)
		if col < 0 {
			e.logger.Warn("Skipping filter on unknown column %q", nf.Column)
			continue
		}
		f := nf.Filter
		next, _, err := m.WithColumnFilter(col, &f)
		if err != nil {
			e.logger.Warn("Skipping filter on column %q: %v", nf.Column, err)
			continue
		}
		m = next
	}
	if col := columnIndex(info, cp.SortColumn); col >= 0 {
		if next, _, err := m.WithSort(matrix.MatrixColumn(col), cp.SortAscending); err == nil {
			m = next
		}
	}

	e.current.Store(&state{matrix: m, request: cp.Request, stats: st})
	return m.Info(), nil
}

func columnIndex(info matrix.ManagedMatrixInfo, name string) int {
	if name == "" {
		return -1
	}
	for _, c := range info.Columns {
		if c.Name == name {
			return c.Index
		}
	}
	return -1
}
