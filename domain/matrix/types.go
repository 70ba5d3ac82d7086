// Package matrix is the managed expression matrix: a probe by column table of
// values with per-column metadata and filters, a global sort order and the
// filtered, sorted view that windowed reads are served from.
//
// A ManagedMatrix value is immutable. Every mutation returns a new matrix that
// shares unchanged column data with its predecessor, so a reader holding the
// old value keeps seeing a consistent state.
package matrix

import (
	"fmt"
	"strings"

	"exprview/domain/core"
)

// ValueType selects the value representation fixed at build time
type ValueType string

const (
	Absolute ValueType = "Absolute"
	Folds    ValueType = "Folds"
)

// ParseValueType accepts the canonical names case-insensitively
func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "absolute":
		return Absolute, nil
	case "folds", "fold", "":
		return Folds, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownValueType, s)
}

// ExpressionValue is one cell. Absent is distinct from zero: an absent cell
// always carries Value 0 so it can be serialized.
type ExpressionValue struct {
	Value   float64 `json:"value"`
	Present bool    `json:"present"`
	Tooltip string  `json:"tooltip,omitempty"`
}

// PresentValue wraps a measured value
func PresentValue(v float64) ExpressionValue {
	return ExpressionValue{Value: v, Present: true}
}

// AbsentValue is the cell used when nothing contributed a value
func AbsentValue() ExpressionValue {
	return ExpressionValue{}
}

// Annotation describes a probe independent of any matrix column
type Annotation struct {
	Probe       string   `json:"probe"`
	Title       string   `json:"title,omitempty"`
	GeneIDs     []string `json:"gene_ids,omitempty"`
	GeneSymbols []string `json:"gene_symbols,omitempty"`
}

// ExpressionRow is one probe with one value per matrix column
type ExpressionRow struct {
	Annotation
	Values []ExpressionValue `json:"values"`
}

// Value returns the cell of a column
func (r ExpressionRow) Value(column int) ExpressionValue {
	if column < 0 || column >= len(r.Values) {
		return AbsentValue()
	}
	return r.Values[column]
}

// TestKind names a two-group statistic a synthetic column can hold
type TestKind string

const (
	TTest          TestKind = "TTest"
	UTest          TestKind = "UTest"
	MeanDifference TestKind = "MeanDifference"
)

// ParseTestKind accepts the canonical names and common spellings
func ParseTestKind(s string) (TestKind, error) {
	switch strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)) {
	case "ttest":
		return TTest, nil
	case "utest", "mannwhitney":
		return UTest, nil
	case "meandifference", "foldchangedifference", "meandiff":
		return MeanDifference, nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownTestKind, s)
}

// IsPValue reports whether the statistic is a p-value
func (k TestKind) IsPValue() bool {
	return k == TTest || k == UTest
}

// Title is the column title prefix used for a statistic
func (k TestKind) Title() string {
	switch k {
	case TTest:
		return "p-value (t)"
	case UTest:
		return "p-value (u)"
	case MeanDifference:
		return "Fold-change difference"
	}
	return string(k)
}

// SyntheticSpec records how a synthetic column was derived, enough to
// re-derive it after a rebuild
type SyntheticSpec struct {
	Kind   TestKind `json:"kind"`
	GroupA string   `json:"group_a"`
	GroupB string   `json:"group_b"`
}

// ColumnInfo is the metadata of one column
type ColumnInfo struct {
	Handle core.ColumnHandle `json:"handle"`
	Name   string            `json:"name"`
	Hint   string            `json:"hint,omitempty"`
	// Group names the group a data column was built from. It is a lookup key
	// into the session's groups, never an owning reference.
	Group          string         `json:"group,omitempty"`
	IsPValue       bool           `json:"is_p_value"`
	DefaultSortAsc bool           `json:"default_sort_asc"`
	Synthetic      *SyntheticSpec `json:"synthetic,omitempty"`
}

// SortKind tags the variant of a SortKey
type SortKind string

const (
	SortByMatrixColumn SortKind = "matrix_column"
)

// SortKey selects the single column driving row order
type SortKey struct {
	Kind   SortKind `json:"kind"`
	Column int      `json:"column"`
}

// MatrixColumn creates a sort key over a matrix column index
func MatrixColumn(column int) SortKey {
	return SortKey{Kind: SortByMatrixColumn, Column: column}
}

// RecomputeResult reports the outcome of a filter or sort change
type RecomputeResult struct {
	VisibleRows   int `json:"visible_rows"`
	ActiveFilters int `json:"active_filters"`
	// Empty is set when active filters leave no rows. The engine never relaxes
	// filters by itself; callers decide.
	Empty bool `json:"empty"`
}
