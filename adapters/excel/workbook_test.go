package excel

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"exprview/domain/matrix"
	"exprview/domain/sample"
	"exprview/internal/engine"
	"exprview/internal/testkit"
	"exprview/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func treated(id, compound string) sample.Sample {
	return sample.NewSample(id,
		sample.Attribute{Name: "compound_name", Value: compound},
		sample.Attribute{Name: "dose_level", Value: "High"},
		sample.Attribute{Name: "exposure_time", Value: "24 hr"},
	)
}

func smallDataset() *testkit.Dataset {
	ds := testkit.NewDataset()
	for _, s := range []sample.Sample{treated("a1", "aspirin"), treated("a2", "aspirin"), treated("b1", "caffeine")} {
		ds.AddSample(s)
	}
	ds.AddProbe("p1", "first probe")
	ds.AddProbe("p2", "second probe")
	ds.SetValue(matrix.Folds, "p1", "a1", 1)
	ds.SetValue(matrix.Folds, "p1", "a2", 3)
	ds.SetValue(matrix.Folds, "p1", "b1", -1)
	ds.SetValue(matrix.Folds, "p2", "a1", 0.5)
	ds.SetValue(matrix.Absolute, "p1", "a1", 10)
	return ds
}

func TestWorkbookRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultWorkbookConfig(filepath.Join(t.TempDir(), "dataset.xlsx"))
	require.NoError(t, WriteDatasetWorkbook(ctx, smallDataset(), cfg))

	ds, err := LoadWorkbook(cfg)
	require.NoError(t, err)

	samples, err := ds.Samples(ctx)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, "a1", samples[0].ID)
	assert.Equal(t, "aspirin", samples[0].Get("compound_name"))
	assert.Equal(t, "24 hr", samples[2].Get("exposure_time"))

	probes, err := ds.Probes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, probes)

	ann, err := ds.Annotations(ctx, []string{"p1", "missing"})
	require.NoError(t, err)
	assert.Len(t, ann, 1)
	assert.Equal(t, "first probe", ann["p1"].Title)

	folds, err := ds.Values(ctx, matrix.Folds, []string{"a1", "a2", "b1"}, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a1": 1, "a2": 3, "b1": -1}, folds["p1"])
	assert.Equal(t, map[string]float64{"a1": 0.5}, folds["p2"])

	abs, err := ds.Values(ctx, matrix.Absolute, []string{"a1"}, []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, 10.0, abs["p1"]["a1"])
}

func TestLoadWorkbookRequiresSamplesSheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	_, err := LoadWorkbook(DefaultWorkbookConfig(path))
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"A", "B"}, splitList(" A ; B ;", ";"))
	assert.Nil(t, splitList("  ", ";"))
}

func buildMatrix(t *testing.T, ds *testkit.Dataset) *matrix.ManagedMatrix {
	t.Helper()
	ctx := context.Background()
	schema := sample.DefaultSchema()
	samples, err := ds.Samples(ctx)
	require.NoError(t, err)

	g1, err := sample.BuildGroup(schema, sample.GroupSpec{Name: "G1", Samples: samples[:2]})
	require.NoError(t, err)
	g2, err := sample.BuildGroup(schema, sample.GroupSpec{Name: "G2", Samples: samples[2:]})
	require.NoError(t, err)

	b := engine.NewBuilder(ds, ds, schema, engine.BuilderOptions{})
	m, _, err := b.Build(ctx, engine.BuildRequest{Groups: []sample.Group{g1, g2}, ValueType: matrix.Folds})
	require.NoError(t, err)
	return m
}

func TestExportAveragedView(t *testing.T) {
	m := buildMatrix(t, smallDataset())
	e := NewExporter()
	var buf bytes.Buffer
	require.NoError(t, e.Export(&buf, m, ports.ExportOptions{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(matrixSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Probe", "Title", "Gene symbols", "G1", "G2"}, rows[0])
	assert.Equal(t, "p1", rows[1][0])
	assert.Equal(t, "2", rows[1][3])
	assert.Equal(t, "-1", rows[1][4])
	// p2 has no value for G2: the trailing cell stays empty
	assert.Equal(t, "0.5", rows[2][3])
	assert.Len(t, rows[2], 4)

	cols, err := f.GetRows(columnsSheet)
	require.NoError(t, err)
	assert.Len(t, cols, 3)
	assert.Equal(t, "G1", cols[1][0])

	assert.Equal(t, "expression_matrix.xlsx", e.FileName(ports.ExportOptions{}))
	assert.Equal(t, xlsxContentType, e.ContentType())
}

func TestExportIndividualSamples(t *testing.T) {
	m := buildMatrix(t, smallDataset())
	var buf bytes.Buffer
	require.NoError(t, NewExporter().Export(&buf, m, ports.ExportOptions{IndividualSamples: true}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(matrixSheet)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.ElementsMatch(t, []string{"G1: a1", "G1: a2", "G2: b1"}, rows[0][3:])
	assert.Equal(t, "expression_matrix_samples.xlsx", NewExporter().FileName(ports.ExportOptions{IndividualSamples: true}))
}
