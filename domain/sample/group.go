package sample

import (
	"fmt"
	"sort"
	"strings"

	"exprview/domain/core"
)

// GroupColors is the palette group colors are drawn from
var GroupColors = []string{"Yellow", "Salmon", "BlueViolet", "Chocolate", "Chartreuse", "Gold"}

// NormalizeColor returns the color if it belongs to the palette, otherwise the
// first palette color. Stored selections with retired colors stay loadable.
func NormalizeColor(color string) string {
	for _, c := range GroupColors {
		if c == color {
			return color
		}
	}
	return GroupColors[0]
}

// Group is a user-named matrix column built from units. Its samples are
// exactly the union of its units' samples.
type Group struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Units []Unit `json:"units"`
}

// GroupSpec describes a group to build, either from raw samples or from
// pre-formed units
type GroupSpec struct {
	Name    string
	Color   string
	Samples []Sample
	Units   []Unit
	// RequireSamples makes an empty selection an error instead of an empty group
	RequireSamples bool
}

// BuildGroup assembles a group. Raw samples are aggregated into units; units,
// when given, are used as they are. An empty selection yields a group with no
// units unless RequireSamples is set.
func BuildGroup(schema DataSchema, spec GroupSpec) (Group, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return Group{}, fmt.Errorf("%w: group name is required", core.ErrInvalidInput)
	}

	units := spec.Units
	if len(units) == 0 {
		units = FormUnits(schema, spec.Samples)
	} else if len(spec.Samples) > 0 {
		units = FormUnits(schema, append(CollectSamples(units), spec.Samples...))
	}

	g := Group{Name: name, Color: NormalizeColor(spec.Color), Units: units}
	if spec.RequireSamples && len(g.Samples()) == 0 {
		return Group{}, fmt.Errorf("%w: group %q", core.ErrEmptySelection, name)
	}
	if g.Units == nil {
		g.Units = []Unit{}
	}
	return g, nil
}

// Samples returns the union of the group's unit samples
func (g Group) Samples() []Sample {
	return CollectSamples(g.Units)
}

// TreatedSamples returns samples of non-control units
func (g Group) TreatedSamples() []Sample {
	var r []Sample
	for _, u := range g.Units {
		r = append(r, u.Treated...)
	}
	return r
}

// ControlSamples returns samples of control units
func (g Group) ControlSamples() []Sample {
	var r []Sample
	for _, u := range g.Units {
		r = append(r, u.Control...)
	}
	return r
}

// MeasuredSamples returns the samples a group's column value is averaged
// over: the treated samples, or every sample when the group has no treated
// samples at all.
func (g Group) MeasuredSamples() []Sample {
	if treated := g.TreatedSamples(); len(treated) > 0 {
		return treated
	}
	return g.Samples()
}

// Collect returns the distinct values of a parameter across the group's samples
func (g Group) Collect(parameter string) []string {
	return distinct(g.Samples(), parameter)
}

// CollectMajors returns the distinct major-parameter values across a group's
// samples
func CollectMajors(g Group, schema DataSchema) []string {
	majors := g.Collect(schema.MajorParameter)
	schema.Sort(schema.MajorParameter, majors)
	return majors
}

// CollectAll returns the distinct values of a parameter across several groups
func CollectAll(groups []Group, parameter string) []string {
	var all []Sample
	for _, g := range groups {
		all = append(all, g.Samples()...)
	}
	return distinct(all, parameter)
}

// Triples lists the group's non-control condition triples joined by sep. A
// limit of -1 lists all; when the limit cuts the list short "..." is appended.
func (g Group) Triples(schema DataSchema, limit int, sep string) string {
	var triples []string
	seen := make(map[Triple]bool)
	stopped := false
	for _, u := range g.Units {
		if schema.IsSelectionControl(u) || seen[u.Triple] {
			continue
		}
		if limit != -1 && len(triples) >= limit {
			stopped = true
			break
		}
		seen[u.Triple] = true
		triples = append(triples, u.Triple.String())
	}
	r := strings.Join(triples, sep)
	if stopped {
		return r + "..."
	}
	return r
}

// FindGroup looks up a group by name
func FindGroup(groups []Group, name string) (Group, bool) {
	for _, g := range groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

func distinct(samples []Sample, parameter string) []string {
	set := make(map[string]bool)
	for _, s := range samples {
		if v, ok := s.Lookup(parameter); ok {
			set[v] = true
		}
	}
	r := make([]string, 0, len(set))
	for v := range set {
		r = append(r, v)
	}
	sort.Strings(r)
	return r
}
