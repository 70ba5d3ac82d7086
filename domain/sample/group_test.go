package sample

import (
	"errors"
	"testing"

	"exprview/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGroup_FromSamples(t *testing.T) {
	schema := DefaultSchema()
	g, err := BuildGroup(schema, GroupSpec{Name: "APAP", Color: "Salmon", Samples: fixtureSamples()[:4]})
	require.NoError(t, err)

	assert.Equal(t, "Salmon", g.Color)
	assert.Len(t, g.Samples(), 4)
	assert.ElementsMatch(t, []string{"s1", "s2", "s4"}, IDs(g.TreatedSamples()))
	assert.ElementsMatch(t, []string{"s3"}, IDs(g.ControlSamples()))
	assert.ElementsMatch(t, []string{"s1", "s2", "s4"}, IDs(g.MeasuredSamples()))
}

func TestBuildGroup_EmptySelection(t *testing.T) {
	schema := DefaultSchema()

	g, err := BuildGroup(schema, GroupSpec{Name: "empty"})
	require.NoError(t, err)
	assert.NotNil(t, g.Units)
	assert.Empty(t, g.Samples())

	_, err = BuildGroup(schema, GroupSpec{Name: "empty", RequireSamples: true})
	assert.True(t, errors.Is(err, core.ErrEmptySelection))
}

func TestBuildGroup_RequiresName(t *testing.T) {
	_, err := BuildGroup(DefaultSchema(), GroupSpec{Name: "  "})
	assert.True(t, errors.Is(err, core.ErrInvalidInput))
}

func TestBuildGroup_UnknownColorReplaced(t *testing.T) {
	g, err := BuildGroup(DefaultSchema(), GroupSpec{Name: "g", Color: "Mauve"})
	require.NoError(t, err)
	assert.Equal(t, GroupColors[0], g.Color)
}

func TestBuildGroup_FromUnits(t *testing.T) {
	schema := DefaultSchema()
	units := FormUnits(schema, fixtureSamples())
	g, err := BuildGroup(schema, GroupSpec{Name: "all", Units: units})
	require.NoError(t, err)
	assert.Equal(t, units, g.Units)
	assert.Len(t, g.Samples(), len(fixtureSamples()))
}

func TestMeasuredSamples_ControlOnlyGroup(t *testing.T) {
	schema := DefaultSchema()
	controls := []Sample{fixtureSamples()[2], fixtureSamples()[6]}
	g, err := BuildGroup(schema, GroupSpec{Name: "controls", Samples: controls})
	require.NoError(t, err)
	assert.Empty(t, g.TreatedSamples())
	assert.ElementsMatch(t, []string{"s3", "s7"}, IDs(g.MeasuredSamples()))
}

func TestCollectMajors(t *testing.T) {
	schema := DefaultSchema()
	g, err := BuildGroup(schema, GroupSpec{Name: "mixed", Samples: fixtureSamples()})
	require.NoError(t, err)
	assert.Equal(t, []string{"acetaminophen", "aspirin"}, CollectMajors(g, schema))

	empty, err := BuildGroup(schema, GroupSpec{Name: "none"})
	require.NoError(t, err)
	assert.Empty(t, CollectMajors(empty, schema))
}

func TestCollectAll(t *testing.T) {
	schema := DefaultSchema()
	g1, _ := BuildGroup(schema, GroupSpec{Name: "a", Samples: fixtureSamples()[:2]})
	g2, _ := BuildGroup(schema, GroupSpec{Name: "b", Samples: fixtureSamples()[4:6]})
	assert.Equal(t, []string{"24 hr", "6 hr"}, CollectAll([]Group{g1, g2}, "exposure_time"))
}

func TestGroupTriples(t *testing.T) {
	schema := DefaultSchema()
	g, err := BuildGroup(schema, GroupSpec{Name: "mixed", Samples: fixtureSamples()})
	require.NoError(t, err)

	assert.Equal(t, "acetaminophen/Low/24 hr, acetaminophen/High/24 hr, aspirin/High/6 hr", g.Triples(schema, -1, ", "))
	assert.Equal(t, "acetaminophen/Low/24 hr...", g.Triples(schema, 1, ", "))
}

func TestFindGroup(t *testing.T) {
	g, _ := BuildGroup(DefaultSchema(), GroupSpec{Name: "x"})
	found, ok := FindGroup([]Group{g}, "x")
	assert.True(t, ok)
	assert.Equal(t, "x", found.Name)
	_, ok = FindGroup([]Group{g}, "y")
	assert.False(t, ok)
}
