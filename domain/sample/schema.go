package sample

import (
	"fmt"
	"sort"
	"strings"
)

// DataSchema describes how samples are classified in a particular dataset:
// which attributes form the condition triple and which values mark controls.
type DataSchema struct {
	// MajorParameter drives compound lists and group majors
	MajorParameter string `toml:"major" json:"major"`
	// MediumParameter forms the columns of the time/dose grid and decides control status
	MediumParameter string `toml:"medium" json:"medium"`
	// MinorParameter forms the sub-columns of the time/dose grid
	MinorParameter string `toml:"minor" json:"minor"`
	TimeParameter  string `toml:"time" json:"time"`

	ControlValues []string            `toml:"control_values" json:"control_values"`
	SortedValues  map[string][]string `toml:"sorted_values" json:"sorted_values,omitempty"`
	Titles        map[string]string   `toml:"titles" json:"titles,omitempty"`
}

// DefaultSchema returns the toxicogenomics schema used when no schema file is configured
func DefaultSchema() DataSchema {
	return DataSchema{
		MajorParameter:  "compound_name",
		MediumParameter: "dose_level",
		MinorParameter:  "exposure_time",
		TimeParameter:   "exposure_time",
		ControlValues:   []string{"Control"},
		SortedValues: map[string][]string{
			"dose_level":    {"Control", "Low", "Middle", "High"},
			"exposure_time": {"2 hr", "3 hr", "6 hr", "8 hr", "9 hr", "24 hr", "4 day", "8 day", "15 day", "29 day"},
		},
		Titles: map[string]string{
			"compound_name": "Compound",
			"dose_level":    "Dose level",
			"exposure_time": "Exposure time",
		},
	}
}

// Validate checks that the triple parameters are named and distinct
func (s DataSchema) Validate() error {
	params := map[string]string{
		"major":  s.MajorParameter,
		"medium": s.MediumParameter,
		"minor":  s.MinorParameter,
	}
	seen := make(map[string]string)
	for _, role := range []string{"major", "medium", "minor"} {
		p := strings.TrimSpace(params[role])
		if p == "" {
			return fmt.Errorf("schema: %s parameter is required", role)
		}
		if other, dup := seen[p]; dup {
			return fmt.Errorf("schema: parameter %q used as both %s and %s", p, other, role)
		}
		seen[p] = role
	}
	return nil
}

// IsControlValue reports whether a medium-parameter value denotes a control
func (s DataSchema) IsControlValue(value string) bool {
	for _, c := range s.ControlValues {
		if c == value {
			return true
		}
	}
	return false
}

// IsSelectionControl reports whether a unit is a control unit
func (s DataSchema) IsSelectionControl(u Unit) bool {
	return s.IsControlValue(u.Medium)
}

// Title returns a human-readable parameter title
func (s DataSchema) Title(parameter string) string {
	if t, ok := s.Titles[parameter]; ok {
		return t
	}
	return parameter
}

// TripleOf extracts a sample's condition triple
func (s DataSchema) TripleOf(smp Sample) Triple {
	return Triple{
		Major:  smp.Get(s.MajorParameter),
		Medium: smp.Get(s.MediumParameter),
		Minor:  smp.Get(s.MinorParameter),
	}
}

// Sort orders parameter values by their natural order. Values unknown to the
// schema follow the known ones in lexical order.
func (s DataSchema) Sort(parameter string, values []string) {
	rank := s.ranks(parameter)
	sort.SliceStable(values, func(i, j int) bool {
		return lessByRank(rank, values[i], values[j])
	})
}

func (s DataSchema) ranks(parameter string) map[string]int {
	ordered := s.SortedValues[parameter]
	rank := make(map[string]int, len(ordered))
	for i, v := range ordered {
		rank[v] = i
	}
	return rank
}

func lessByRank(rank map[string]int, a, b string) bool {
	ra, okA := rank[a]
	rb, okB := rank[b]
	switch {
	case okA && okB:
		return ra < rb
	case okA:
		return true
	case okB:
		return false
	default:
		return a < b
	}
}
