// Package sample holds the biological side of the data model: raw samples,
// the experimental schema that classifies them, and the units and groups
// assembled from them.
package sample

import (
	"sort"
	"strconv"
	"strings"
)

// Attribute is one named experimental condition value of a sample
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Sample is one raw biological measurement instance. Attributes keep the order
// they were supplied in. A Sample is never mutated after creation.
type Sample struct {
	ID         string      `json:"id"`
	Attributes []Attribute `json:"attributes"`
}

// NewSample creates a sample with attributes in the given order. Later
// duplicates of an attribute name are ignored.
func NewSample(id string, attrs ...Attribute) Sample {
	seen := make(map[string]bool, len(attrs))
	kept := make([]Attribute, 0, len(attrs))
	for _, a := range attrs {
		if seen[a.Name] {
			continue
		}
		seen[a.Name] = true
		kept = append(kept, a)
	}
	return Sample{ID: id, Attributes: kept}
}

// FromMap creates a sample whose attributes are ordered by name
func FromMap(id string, attrs map[string]string) Sample {
	names := make([]string, 0, len(attrs))
	for k := range attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	list := make([]Attribute, len(names))
	for i, n := range names {
		list[i] = Attribute{Name: n, Value: attrs[n]}
	}
	return Sample{ID: id, Attributes: list}
}

// Get returns the value of a parameter, or "" when the sample lacks it
func (s Sample) Get(parameter string) string {
	v, _ := s.Lookup(parameter)
	return v
}

// Lookup returns the value of a parameter and whether it is present
func (s Sample) Lookup(parameter string) (string, bool) {
	for _, a := range s.Attributes {
		if a.Name == parameter {
			return a.Value, true
		}
	}
	return "", false
}

// Float parses a numeric attribute
func (s Sample) Float(parameter string) (float64, bool) {
	v, ok := s.Lookup(parameter)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// IDs projects sample identifiers, preserving order
func IDs(samples []Sample) []string {
	ids := make([]string, len(samples))
	for i, s := range samples {
		ids[i] = s.ID
	}
	return ids
}

func sortByID(samples []Sample) {
	sort.SliceStable(samples, func(i, j int) bool { return samples[i].ID < samples[j].ID })
}
