package matrix

import (
	"encoding/json"
	"fmt"
	"math"

	"exprview/domain/core"
)

// FilterType selects the acceptance predicate of a column filter
type FilterType string

const (
	// AbsGreaterThan keeps |v| >= threshold
	AbsGreaterThan FilterType = "AbsGreaterThan"
	// GreaterThan keeps v >= threshold
	GreaterThan FilterType = "GreaterThan"
	// LowerThan keeps v < threshold
	LowerThan FilterType = "LowerThan"
	// AbsLowerThan keeps |v| < threshold
	AbsLowerThan FilterType = "AbsLowerThan"
)

// ParseFilterType validates a filter type name
func ParseFilterType(s string) (FilterType, error) {
	switch FilterType(s) {
	case AbsGreaterThan, GreaterThan, LowerThan, AbsLowerThan:
		return FilterType(s), nil
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnknownFilterType, s)
}

// ColumnFilter is a per-column numeric acceptance predicate. An inactive
// filter accepts every row.
type ColumnFilter struct {
	Active    bool       `json:"active"`
	Type      FilterType `json:"type"`
	Threshold float64    `json:"threshold"`
}

// UnmarshalJSON accepts "min" as an alias of "threshold"
func (f *ColumnFilter) UnmarshalJSON(data []byte) error {
	var raw struct {
		Active    bool       `json:"active"`
		Type      FilterType `json:"type"`
		Threshold *float64   `json:"threshold"`
		Min       *float64   `json:"min"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = ColumnFilter{Active: raw.Active, Type: raw.Type}
	switch {
	case raw.Threshold != nil:
		f.Threshold = *raw.Threshold
	case raw.Min != nil:
		f.Threshold = *raw.Min
	}
	return nil
}

// DefaultFilter is the inactive filter a new column starts with. P-value
// columns filter for small values, data columns for large magnitudes.
func DefaultFilter(isPValue bool) ColumnFilter {
	if isPValue {
		return ColumnFilter{Type: LowerThan, Threshold: 0.05}
	}
	return ColumnFilter{Type: AbsGreaterThan, Threshold: 1}
}

// AsInactive returns the filter with the same bounds, switched off
func (f ColumnFilter) AsInactive() ColumnFilter {
	f.Active = false
	return f
}

// Validate checks that an active filter is usable
func (f ColumnFilter) Validate() error {
	if _, err := ParseFilterType(string(f.Type)); err != nil {
		return err
	}
	if math.IsNaN(f.Threshold) || math.IsInf(f.Threshold, 0) {
		return fmt.Errorf("%w: filter threshold must be finite", core.ErrInvalidInput)
	}
	return nil
}

// Accepts applies the predicate. Absent values never pass an active filter.
func (f ColumnFilter) Accepts(v ExpressionValue) bool {
	if !f.Active {
		return true
	}
	if !v.Present {
		return false
	}
	switch f.Type {
	case AbsGreaterThan:
		return math.Abs(v.Value) >= f.Threshold
	case GreaterThan:
		return v.Value >= f.Threshold
	case LowerThan:
		return v.Value < f.Threshold
	case AbsLowerThan:
		return math.Abs(v.Value) < f.Threshold
	}
	return false
}
