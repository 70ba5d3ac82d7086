package sample

import (
	"sort"
)

// Triple is the major/medium/minor condition of a sample
type Triple struct {
	Major  string `json:"major"`
	Medium string `json:"medium"`
	Minor  string `json:"minor"`
}

// String renders the triple the way column hints display it
func (t Triple) String() string {
	return t.Major + "/" + t.Medium + "/" + t.Minor
}

// Unit is the set of samples sharing one condition triple, partitioned into
// treated and control samples. Units are rebuilt, never patched.
type Unit struct {
	Triple
	Treated []Sample `json:"treated"`
	Control []Sample `json:"control"`
}

// Samples returns all samples of the unit, treated first
func (u Unit) Samples() []Sample {
	all := make([]Sample, 0, len(u.Treated)+len(u.Control))
	all = append(all, u.Treated...)
	return append(all, u.Control...)
}

func (u Unit) TreatedCount() int { return len(u.Treated) }
func (u Unit) ControlCount() int { return len(u.Control) }

// IsControl reports whether the unit holds only control samples
func (u Unit) IsControl() bool {
	return len(u.Control) > 0 && len(u.Treated) == 0
}

// FormUnits partitions samples by condition triple. A sample is control iff
// the schema's control predicate holds for the unit's medium value. Samples
// repeated by ID are counted once. The result is sorted by triple, so the
// same input set always yields the same units regardless of input order.
func FormUnits(schema DataSchema, samples []Sample) []Unit {
	if len(samples) == 0 {
		return []Unit{}
	}

	byTriple := make(map[Triple][]Sample)
	seen := make(map[string]bool, len(samples))
	for _, s := range samples {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		t := schema.TripleOf(s)
		byTriple[t] = append(byTriple[t], s)
	}

	units := make([]Unit, 0, len(byTriple))
	for t, members := range byTriple {
		sortByID(members)
		u := Unit{Triple: t}
		if schema.IsControlValue(t.Medium) {
			u.Control = members
			u.Treated = []Sample{}
		} else {
			u.Treated = members
			u.Control = []Sample{}
		}
		units = append(units, u)
	}

	SortUnits(schema, units)
	return units
}

// SortUnits orders units by major, medium and minor value using the schema's
// natural value order
func SortUnits(schema DataSchema, units []Unit) {
	major := schema.ranks(schema.MajorParameter)
	medium := schema.ranks(schema.MediumParameter)
	minor := schema.ranks(schema.MinorParameter)
	sort.SliceStable(units, func(i, j int) bool {
		a, b := units[i].Triple, units[j].Triple
		if a.Major != b.Major {
			return lessByRank(major, a.Major, b.Major)
		}
		if a.Medium != b.Medium {
			return lessByRank(medium, a.Medium, b.Medium)
		}
		return lessByRank(minor, a.Minor, b.Minor)
	})
}

// CollectSamples flattens units into their samples, in unit order
func CollectSamples(units []Unit) []Sample {
	var all []Sample
	for _, u := range units {
		all = append(all, u.Samples()...)
	}
	return all
}
