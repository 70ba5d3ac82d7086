package matrix

import (
	"fmt"

	"exprview/domain/core"
)

// Column is one entry of the column table. Values holds one cell per loaded
// row. Data columns additionally keep the per-sample values the cell was
// averaged from, which two-group statistics and individual-sample downloads
// read.
type Column struct {
	Info   ColumnInfo
	Filter ColumnFilter
	Values []ExpressionValue

	// SampleIDs names the samples behind SampleValues, in order
	SampleIDs []string
	// SampleValues[row][i] is the value of SampleIDs[i]; NaN when missing
	SampleValues [][]float64
}

// ManagedMatrix is the engine's immutable matrix state
type ManagedMatrix struct {
	valueType ValueType
	rows      []Annotation
	columns   []Column
	numData   int
	dropped   int

	// selection restricts visible rows to a subset of loaded rows (nil: all)
	selection []int
	// sortKey is the zero SortKey until a sort is applied
	sortKey SortKey
	sortAsc bool
	view    []int
}

// New assembles a matrix from data columns. Column value slices must all have
// len(rows) entries. Rows keep the given order until a sort key is set.
func New(valueType ValueType, rows []Annotation, columns []Column, droppedProbes int) (*ManagedMatrix, error) {
	for i, c := range columns {
		if len(c.Values) != len(rows) {
			return nil, fmt.Errorf("column %d (%s) has %d values for %d rows", i, c.Info.Name, len(c.Values), len(rows))
		}
		if c.Info.Synthetic != nil {
			return nil, fmt.Errorf("column %d (%s): synthetic columns cannot be part of the base matrix", i, c.Info.Name)
		}
	}
	cols := make([]Column, len(columns))
	copy(cols, columns)
	for i := range cols {
		if cols[i].Info.Handle.String() == "" {
			cols[i].Info.Handle = core.NewColumnHandle()
		}
	}

	m := &ManagedMatrix{
		valueType: valueType,
		rows:      rows,
		columns:   cols,
		numData:   len(cols),
		dropped:   droppedProbes,
	}
	m.recompute()
	return m, nil
}

// clone makes a shallow copy whose column table can be modified without
// affecting the receiver
func (m *ManagedMatrix) clone() *ManagedMatrix {
	c := *m
	c.columns = make([]Column, len(m.columns))
	copy(c.columns, m.columns)
	return &c
}

func (m *ManagedMatrix) ValueType() ValueType { return m.valueType }
func (m *ManagedMatrix) NumColumns() int      { return len(m.columns) }
func (m *ManagedMatrix) NumDataColumns() int  { return m.numData }

// NumSyntheticColumns counts the columns after the data columns
func (m *ManagedMatrix) NumSyntheticColumns() int { return len(m.columns) - m.numData }

// NumRows is the number of visible rows under the current filters and selection
func (m *ManagedMatrix) NumRows() int { return len(m.view) }

// NumLoadedRows is the number of rows built, before selection and filters
func (m *ManagedMatrix) NumLoadedRows() int { return len(m.rows) }

// DroppedProbes counts requested probes that produced no row
func (m *ManagedMatrix) DroppedProbes() int { return m.dropped }

// SortKey returns the active sort key and direction. The zero SortKey means
// rows are in build order.
func (m *ManagedMatrix) SortKey() (SortKey, bool) { return m.sortKey, m.sortAsc }

// Column returns the metadata of a column
func (m *ManagedMatrix) Column(i int) (ColumnInfo, error) {
	if err := m.checkColumn(i); err != nil {
		return ColumnInfo{}, err
	}
	return m.columns[i].Info, nil
}

// ColumnData exposes a column's full entry. Callers must not modify it.
func (m *ManagedMatrix) ColumnData(i int) (Column, error) {
	if err := m.checkColumn(i); err != nil {
		return Column{}, err
	}
	return m.columns[i], nil
}

// ColumnFilter returns the filter of a column
func (m *ManagedMatrix) ColumnFilter(i int) (ColumnFilter, error) {
	if err := m.checkColumn(i); err != nil {
		return ColumnFilter{}, err
	}
	return m.columns[i].Filter, nil
}

// IndexOf resolves a column handle to its current index, or -1
func (m *ManagedMatrix) IndexOf(h core.ColumnHandle) int {
	for i, c := range m.columns {
		if c.Info.Handle == h {
			return i
		}
	}
	return -1
}

// IndexOfGroup resolves the data column built from a group, or -1
func (m *ManagedMatrix) IndexOfGroup(group string) int {
	for i := 0; i < m.numData; i++ {
		if m.columns[i].Info.Group == group {
			return i
		}
	}
	return -1
}

// Annotations returns the loaded rows in build order. Callers must not modify it.
func (m *ManagedMatrix) Annotations() []Annotation { return m.rows }

// View returns the visible row indices in display order. Callers must not
// modify it.
func (m *ManagedMatrix) View() []int { return m.view }

func (m *ManagedMatrix) checkColumn(i int) error {
	if i < 0 || i >= len(m.columns) {
		return core.NewColumnOutOfRangeError(i, len(m.columns))
	}
	return nil
}

// WithSyntheticColumn appends a derived column at the tail. Filters and sort
// are kept; the new column starts with its default, inactive filter.
func (m *ManagedMatrix) WithSyntheticColumn(c Column) (*ManagedMatrix, error) {
	if c.Info.Synthetic == nil {
		return nil, fmt.Errorf("%w: column %q is not synthetic", core.ErrInvalidInput, c.Info.Name)
	}
	if len(c.Values) != len(m.rows) {
		return nil, fmt.Errorf("%w: synthetic column has %d values for %d rows", core.ErrInvalidInput, len(c.Values), len(m.rows))
	}
	if c.Info.Handle.String() == "" {
		c.Info.Handle = core.NewColumnHandle()
	}
	c.Filter = c.Filter.AsInactive()

	n := m.clone()
	n.columns = append(n.columns, c)
	n.recompute()
	return n, nil
}

// WithoutSyntheticColumns drops every column after the data columns. With no
// synthetic columns present it returns the receiver unchanged. A sort key on a
// removed column falls back to build order.
func (m *ManagedMatrix) WithoutSyntheticColumns() *ManagedMatrix {
	if m.NumSyntheticColumns() == 0 {
		return m
	}
	n := m.clone()
	n.columns = n.columns[:n.numData:n.numData]
	if n.sortKey.Kind != "" && n.sortKey.Column >= n.numData {
		n.sortKey = SortKey{}
		n.sortAsc = false
	}
	n.recompute()
	return n
}

// SyntheticSpecs lists the derivations of the current synthetic columns in
// column order
func (m *ManagedMatrix) SyntheticSpecs() []SyntheticSpec {
	specs := make([]SyntheticSpec, 0, m.NumSyntheticColumns())
	for _, c := range m.columns[m.numData:] {
		if c.Info.Synthetic != nil {
			specs = append(specs, *c.Info.Synthetic)
		}
	}
	return specs
}
