package testkit

import (
	"context"
	"testing"

	"exprview/domain/matrix"
	"exprview/domain/sample"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() ExpressionGeneratorConfig {
	cfg := DefaultExpressionConfig()
	cfg.ProbeCount = 20
	cfg.MissingRate = 0
	return cfg
}

func TestGenerate_Layout(t *testing.T) {
	ctx := context.Background()
	cfg := smallConfig()
	ds := NewExpressionDataGenerator(cfg).Generate()

	samples, err := ds.Samples(ctx)
	require.NoError(t, err)
	assert.Len(t, samples, len(cfg.Compounds)*len(cfg.DoseLevels)*len(cfg.Times)*cfg.Replicates)

	probes, err := ds.Probes(ctx)
	require.NoError(t, err)
	assert.Len(t, probes, cfg.ProbeCount)

	units := sample.FormUnits(sample.DefaultSchema(), samples)
	assert.Len(t, units, len(cfg.Compounds)*len(cfg.DoseLevels)*len(cfg.Times))
}

func TestGenerate_Deterministic(t *testing.T) {
	ctx := context.Background()
	a := NewExpressionDataGenerator(smallConfig()).Generate()
	b := NewExpressionDataGenerator(smallConfig()).Generate()

	samples, _ := a.Samples(ctx)
	probes, _ := a.Probes(ctx)
	ids := sample.IDs(samples)

	va, err := a.Values(ctx, matrix.Folds, ids, probes)
	require.NoError(t, err)
	vb, err := b.Values(ctx, matrix.Folds, ids, probes)
	require.NoError(t, err)
	assert.Equal(t, va, vb)
}

func TestGenerate_ControlFoldsCenterOnZero(t *testing.T) {
	ctx := context.Background()
	ds := NewExpressionDataGenerator(smallConfig()).Generate()
	samples, _ := ds.Samples(ctx)
	probes, _ := ds.Probes(ctx)

	var controls []string
	for _, s := range samples {
		if s.Get("dose_level") == "Control" && s.Get("compound_name") == "aspirin" && s.Get("exposure_time") == "24 hr" {
			controls = append(controls, s.ID)
		}
	}
	require.Len(t, controls, 3)

	values, err := ds.Values(ctx, matrix.Folds, controls, probes[:1])
	require.NoError(t, err)
	sum := 0.0
	for _, v := range values[probes[0]] {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-9)
}

func TestDataset_OfflineAndUnknown(t *testing.T) {
	ctx := context.Background()
	ds := NewDataset()
	ds.AddProbe("p1", "Probe one")
	ds.AddSample(sample.NewSample("s1"))
	ds.SetValue(matrix.Absolute, "p1", "s1", 3)

	ann, err := ds.Annotations(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Len(t, ann, 1)

	v, err := ds.Values(ctx, matrix.Absolute, []string{"s1"}, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]map[string]float64{"p1": {"s1": 3}}, v)

	ds.SetOffline(true)
	_, err = ds.Values(ctx, matrix.Absolute, []string{"s1"}, []string{"p1"})
	assert.Error(t, err)
}

func TestTestKit_Group(t *testing.T) {
	kit := NewTestKitWithConfig(smallConfig())
	g, err := kit.Group("APAP high", "acetaminophen", "High", "24 hr")
	require.NoError(t, err)
	assert.Len(t, g.TreatedSamples(), 3)
	assert.Len(t, g.ControlSamples(), 3)

	_, err = kit.Group("none", "caffeine", "High", "24 hr")
	assert.Error(t, err)
}
