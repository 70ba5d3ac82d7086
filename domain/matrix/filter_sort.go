package matrix

import (
	"fmt"
	"math"
	"sort"

	"exprview/domain/core"
)

// WithColumnFilter sets or, with a nil filter, clears the filter of a column
// and recomputes the view. A filter without a type gets the column's default
// predicate. Setting an identical filter returns the receiver with a fresh
// result.
func (m *ManagedMatrix) WithColumnFilter(column int, filter *ColumnFilter) (*ManagedMatrix, RecomputeResult, error) {
	if err := m.checkColumn(column); err != nil {
		return nil, RecomputeResult{}, err
	}

	next := m.columns[column].Filter.AsInactive()
	if filter != nil {
		f := *filter
		if f.Type == "" {
			f.Type = DefaultFilter(m.columns[column].Info.IsPValue).Type
		}
		if err := f.Validate(); err != nil {
			return nil, RecomputeResult{}, err
		}
		next = f
	}
	if next == m.columns[column].Filter {
		return m, m.result(), nil
	}

	n := m.clone()
	n.columns[column].Filter = next
	n.recompute()
	return n, n.result(), nil
}

// WithSort sets the global sort key and recomputes the view
func (m *ManagedMatrix) WithSort(key SortKey, ascending bool) (*ManagedMatrix, RecomputeResult, error) {
	if key.Kind == "" {
		key.Kind = SortByMatrixColumn
	}
	if key.Kind != SortByMatrixColumn {
		return nil, RecomputeResult{}, fmt.Errorf("%w: unsupported sort key kind %q", core.ErrInvalidInput, key.Kind)
	}
	if err := m.checkColumn(key.Column); err != nil {
		return nil, RecomputeResult{}, err
	}
	if key == m.sortKey && ascending == m.sortAsc {
		return m, m.result(), nil
	}

	n := m.clone()
	n.sortKey = key
	n.sortAsc = ascending
	n.recompute()
	return n, n.result(), nil
}

// WithSelectedProbes restricts the visible rows to the given probes, keeping
// build order among them. An empty list selects every loaded row. Probes that
// are not loaded are ignored; their count is returned.
func (m *ManagedMatrix) WithSelectedProbes(probes []string) (*ManagedMatrix, RecomputeResult, int) {
	n := m.clone()
	missing := 0
	if len(probes) == 0 {
		n.selection = nil
	} else {
		index := make(map[string]int, len(m.rows))
		for i, r := range m.rows {
			index[r.Probe] = i
		}
		picked := make(map[int]bool, len(probes))
		for _, p := range probes {
			i, ok := index[p]
			if !ok {
				missing++
				continue
			}
			picked[i] = true
		}
		n.selection = make([]int, 0, len(picked))
		for i := range m.rows {
			if picked[i] {
				n.selection = append(n.selection, i)
			}
		}
	}
	n.recompute()
	return n, n.result(), missing
}

// SelectedProbes lists the probe selection in build order, or nil when every
// loaded row is selected
func (m *ManagedMatrix) SelectedProbes() []string {
	if m.selection == nil {
		return nil
	}
	probes := make([]string, len(m.selection))
	for i, r := range m.selection {
		probes[i] = m.rows[r].Probe
	}
	return probes
}

// ActiveFilters counts columns with an active filter
func (m *ManagedMatrix) ActiveFilters() int {
	n := 0
	for _, c := range m.columns {
		if c.Filter.Active {
			n++
		}
	}
	return n
}

func (m *ManagedMatrix) result() RecomputeResult {
	active := m.ActiveFilters()
	return RecomputeResult{
		VisibleRows:   len(m.view),
		ActiveFilters: active,
		Empty:         len(m.view) == 0 && active > 0,
	}
}

// recompute rebuilds the filtered, sorted view from scratch. A row is visible
// iff every active filter accepts it. Rows are then ordered by the sort
// column with absent values ranked as the minimum, ties keeping build order.
func (m *ManagedMatrix) recompute() {
	candidates := m.selection
	if candidates == nil {
		candidates = make([]int, len(m.rows))
		for i := range candidates {
			candidates[i] = i
		}
	}

	var filtered []*Column
	for i := range m.columns {
		if m.columns[i].Filter.Active {
			filtered = append(filtered, &m.columns[i])
		}
	}

	view := make([]int, 0, len(candidates))
	for _, r := range candidates {
		keep := true
		for _, c := range filtered {
			if !c.Filter.Accepts(c.Values[r]) {
				keep = false
				break
			}
		}
		if keep {
			view = append(view, r)
		}
	}

	if m.sortKey.Kind == SortByMatrixColumn && m.sortKey.Column >= 0 && m.sortKey.Column < len(m.columns) {
		values := m.columns[m.sortKey.Column].Values
		asc := m.sortAsc
		sort.SliceStable(view, func(i, j int) bool {
			a, b := sortValue(values[view[i]]), sortValue(values[view[j]])
			if a == b {
				return false
			}
			if asc {
				return a < b
			}
			return a > b
		})
	}
	m.view = view
}

// sortValue maps absent cells to the minimum possible value
func sortValue(v ExpressionValue) float64 {
	if !v.Present || math.IsNaN(v.Value) {
		return math.Inf(-1)
	}
	return v.Value
}
