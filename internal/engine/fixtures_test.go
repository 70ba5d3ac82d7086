package engine

import (
	"context"
	"testing"

	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/domain/sample"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockValueSource is a testify mock of ports.ValueSource
type MockValueSource struct {
	mock.Mock
}

func (m *MockValueSource) Values(ctx context.Context, valueType matrix.ValueType, sampleIDs []string, probes []string) (map[string]map[string]float64, error) {
	args := m.Called(ctx, valueType, sampleIDs, probes)
	values, _ := args.Get(0).(map[string]map[string]float64)
	return values, args.Error(1)
}

// memoryData is an in-memory platform and value source
type memoryData struct {
	probes []string
	// values[probe][sample]
	values map[string]map[string]float64
	// unavailable probes make the whole fetch fail as unavailable
	unavailable map[string]bool
}

func (d *memoryData) Probes(ctx context.Context) ([]string, error) {
	return d.probes, nil
}

func (d *memoryData) Annotations(ctx context.Context, probes []string) (map[string]matrix.Annotation, error) {
	known := make(map[string]bool, len(d.probes))
	for _, p := range d.probes {
		known[p] = true
	}
	out := make(map[string]matrix.Annotation)
	for _, p := range probes {
		if known[p] {
			out[p] = matrix.Annotation{Probe: p, Title: "title " + p, GeneSymbols: []string{"G" + p}}
		}
	}
	return out, nil
}

func (d *memoryData) Values(ctx context.Context, valueType matrix.ValueType, sampleIDs []string, probes []string) (map[string]map[string]float64, error) {
	out := make(map[string]map[string]float64)
	for _, p := range probes {
		if d.unavailable[p] {
			return nil, core.NewUpstreamError("memory", context.DeadlineExceeded)
		}
		vals, ok := d.values[p]
		if !ok {
			continue
		}
		row := make(map[string]float64)
		for _, id := range sampleIDs {
			if v, ok := vals[id]; ok {
				row[id] = v
			}
		}
		out[p] = row
	}
	return out, nil
}

func treated(id, compound string) sample.Sample {
	return sample.NewSample(id,
		sample.Attribute{Name: "compound_name", Value: compound},
		sample.Attribute{Name: "dose_level", Value: "High"},
		sample.Attribute{Name: "exposure_time", Value: "24 hr"},
	)
}

func control(id, compound string) sample.Sample {
	return sample.NewSample(id,
		sample.Attribute{Name: "compound_name", Value: compound},
		sample.Attribute{Name: "dose_level", Value: "Control"},
		sample.Attribute{Name: "exposure_time", Value: "24 hr"},
	)
}

func group(t *testing.T, name string, samples ...sample.Sample) sample.Group {
	t.Helper()
	g, err := sample.BuildGroup(sample.DefaultSchema(), sample.GroupSpec{Name: name, Samples: samples})
	require.NoError(t, err)
	return g
}

// scenarioData: 3 probes, G1 = a1..a3, G2 = b1..b3.
//   - p1 separates the groups strongly (t-test p < 0.05)
//   - p2 has identical groups (p = 1)
//   - p3 differs mildly (p ≈ 0.29)
func scenarioData() *memoryData {
	return &memoryData{
		probes: []string{"p1", "p2", "p3"},
		values: map[string]map[string]float64{
			"p1": {"a1": 1, "a2": 2, "a3": 3, "b1": 10, "b2": 11, "b3": 12, "c1": 100},
			"p2": {"a1": 1, "a2": 2, "a3": 3, "b1": 1, "b2": 2, "b3": 3, "c1": 100},
			"p3": {"a1": 1, "a2": 2, "a3": 3, "b1": 2, "b2": 3, "b3": 4, "c1": 100},
		},
	}
}

func scenarioGroups(t *testing.T) []sample.Group {
	return []sample.Group{
		group(t, "G1", treated("a1", "x"), treated("a2", "x"), treated("a3", "x"), control("c1", "x")),
		group(t, "G2", treated("b1", "y"), treated("b2", "y"), treated("b3", "y")),
	}
}

func newScenarioEngine(t *testing.T, data *memoryData) *Engine {
	t.Helper()
	b := NewBuilder(data, data, sample.DefaultSchema(), BuilderOptions{FetchChunkSize: 2})
	return New(b, nil)
}

func rowProbes(rows []matrix.ExpressionRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Probe
	}
	return out
}
