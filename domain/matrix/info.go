package matrix

import (
	"exprview/domain/core"
)

// ColumnMeta is the read-only description of one column
type ColumnMeta struct {
	Index int `json:"index"`
	ColumnInfo
	Filter ColumnFilter `json:"filter"`
}

// ManagedMatrixInfo is a metadata snapshot of a matrix. It never carries row
// data; rows are fetched separately through windowed reads.
type ManagedMatrixInfo struct {
	ValueType           ValueType    `json:"value_type"`
	NumColumns          int          `json:"num_columns"`
	NumDataColumns      int          `json:"num_data_columns"`
	NumSyntheticColumns int          `json:"num_synthetic_columns"`
	NumRows             int          `json:"num_rows"`
	NumLoadedRows       int          `json:"num_loaded_rows"`
	Columns             []ColumnMeta `json:"columns"`
	SortKey             SortKey      `json:"sort_key"`
	SortAscending       bool         `json:"sort_ascending"`

	// Empty: active filters leave no visible rows
	Empty bool `json:"empty"`
	// Degraded: the build produced no rows at all, typically because the
	// value source had no data for the selection
	Degraded      bool             `json:"degraded"`
	DroppedProbes int              `json:"dropped_probes"`
	Fingerprint   core.Fingerprint `json:"fingerprint"`
}

// Info snapshots the matrix metadata
func (m *ManagedMatrix) Info() ManagedMatrixInfo {
	cols := make([]ColumnMeta, len(m.columns))
	for i, c := range m.columns {
		cols[i] = ColumnMeta{Index: i, ColumnInfo: c.Info, Filter: c.Filter}
	}
	res := m.result()
	return ManagedMatrixInfo{
		ValueType:           m.valueType,
		NumColumns:          len(m.columns),
		NumDataColumns:      m.numData,
		NumSyntheticColumns: m.NumSyntheticColumns(),
		NumRows:             len(m.view),
		NumLoadedRows:       len(m.rows),
		Columns:             cols,
		SortKey:             m.sortKey,
		SortAscending:       m.sortAsc,
		Empty:               res.Empty,
		Degraded:            len(m.rows) == 0,
		DroppedProbes:       m.dropped,
		Fingerprint:         m.Fingerprint(),
	}
}

// Fingerprint digests everything that determines the visible content: value
// type, column names and filters, and the visible probes in order
func (m *ManagedMatrix) Fingerprint() core.Fingerprint {
	h := core.NewHasher().AddString(string(m.valueType)).AddInt(len(m.columns))
	for _, c := range m.columns {
		h.AddString(c.Info.Name).AddBool(c.Filter.Active).AddString(string(c.Filter.Type)).AddFloat(c.Filter.Threshold)
	}
	h.AddInt(len(m.view))
	for _, r := range m.view {
		h.AddString(m.rows[r].Probe)
	}
	return h.Sum()
}

// ColumnName returns a column's name, or "" when out of range
func (i ManagedMatrixInfo) ColumnName(column int) string {
	if column < 0 || column >= len(i.Columns) {
		return ""
	}
	return i.Columns[column].Name
}

// IsPValueColumn reports whether a column holds p-values
func (i ManagedMatrixInfo) IsPValueColumn(column int) bool {
	if column < 0 || column >= len(i.Columns) {
		return false
	}
	return i.Columns[column].IsPValue
}

// ColumnFilter returns a column's filter
func (i ManagedMatrixInfo) ColumnFilter(column int) ColumnFilter {
	if column < 0 || column >= len(i.Columns) {
		return ColumnFilter{}
	}
	return i.Columns[column].Filter
}

// HasPValueColumns reports whether any column holds p-values
func (i ManagedMatrixInfo) HasPValueColumns() bool {
	for _, c := range i.Columns {
		if c.IsPValue {
			return true
		}
	}
	return false
}
