package app_test

import (
	"context"
	"io"
	"testing"

	"exprview/adapters/blob"
	"exprview/adapters/excel"
	"exprview/app"
	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	kit *testkit.TestKit
	svc *app.MatrixService
}

func newFixture(t *testing.T, withDownloads bool) *fixture {
	t.Helper()
	cfg := testkit.DefaultExpressionConfig()
	cfg.ProbeCount = 20
	cfg.MissingRate = 0
	kit := testkit.NewTestKitWithConfig(cfg)

	f := &fixture{kit: kit}
	if !withDownloads {
		f.svc = app.NewMatrixService(kit.SessionManager(), kit.Dataset, nil, nil)
		return f
	}
	store, err := blob.NewLocalStore(t.TempDir(), "/downloads", 0)
	require.NoError(t, err)
	f.svc = app.NewMatrixService(kit.SessionManager(), kit.Dataset, excel.NewExporter(), store)
	return f
}

// ids lists the sample ids of one compound/dose/time cell
func (f *fixture) ids(t *testing.T, compound, dose, time string) []string {
	t.Helper()
	samples, err := f.kit.Dataset.Samples(context.Background())
	require.NoError(t, err)
	var out []string
	for _, s := range samples {
		if s.Get("compound_name") == compound && s.Get("dose_level") == dose && s.Get("exposure_time") == time {
			out = append(out, s.ID)
		}
	}
	require.NotEmpty(t, out)
	return out
}

func (f *fixture) load(t *testing.T) core.SessionID {
	t.Helper()
	id := f.svc.OpenSession()
	info, err := f.svc.LoadMatrix(context.Background(), id, app.LoadRequest{
		Groups: []app.GroupRequest{
			{Name: "High", Color: "Gold", SampleIDs: f.ids(t, "aspirin", "High", "24 hr")},
			{Name: "Low", SampleIDs: f.ids(t, "aspirin", "Low", "24 hr")},
		},
		ValueType: "absolute",
	})
	require.NoError(t, err)
	require.Equal(t, 20, info.NumRows)
	return id
}

func TestLoadMatrixAndReadRows(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t)

	info, err := f.svc.Info(id)
	require.NoError(t, err)
	assert.Equal(t, matrix.Absolute, info.ValueType)
	assert.Equal(t, 2, info.NumDataColumns)
	assert.Equal(t, "High", info.Columns[0].Name)

	rows, total, err := f.svc.MatrixRows(id, 0, 5, matrix.SortKey{}, false)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
	assert.Equal(t, 20, total)

	rows, _, err = f.svc.MatrixRows(id, 0, 20, matrix.MatrixColumn(0), true)
	require.NoError(t, err)
	for i := 1; i < len(rows); i++ {
		assert.LessOrEqual(t, rows[i-1].Values[0].Value, rows[i].Values[0].Value)
	}

	groups, err := f.svc.Groups(id)
	require.NoError(t, err)
	assert.Equal(t, "Gold", groups[0].Color)

	majors, err := f.svc.Majors(id)
	require.NoError(t, err)
	assert.Equal(t, []string{"aspirin"}, majors)
}

func TestLoadMatrixRejectsBadInput(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.svc.LoadMatrix(ctx, core.NewSessionID(), app.LoadRequest{})
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	id := f.svc.OpenSession()
	_, err = f.svc.LoadMatrix(ctx, id, app.LoadRequest{
		Groups: []app.GroupRequest{{Name: "G", SampleIDs: []string{"no-such-sample"}}},
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = f.svc.LoadMatrix(ctx, id, app.LoadRequest{ValueType: "ratio"})
	assert.ErrorIs(t, err, core.ErrUnknownValueType)

	_, err = f.svc.LoadMatrix(ctx, id, app.LoadRequest{
		Groups: []app.GroupRequest{{Name: "G", RequireSamples: true}},
	})
	assert.ErrorIs(t, err, core.ErrEmptySelection)

	_, err = f.svc.Info(id)
	assert.ErrorIs(t, err, core.ErrNoMatrixLoaded)
}

func TestTwoGroupTestsAndFilters(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t)

	_, err := f.svc.AddTwoGroupTest(id, "bogus", 0, 1)
	assert.ErrorIs(t, err, core.ErrUnknownTestKind)

	info, err := f.svc.AddTwoGroupTest(id, "t-test", 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, info.NumSyntheticColumns)
	assert.True(t, info.Columns[2].IsPValue)

	_, err = f.svc.AddTwoGroupTest(id, "utest", 1, 1)
	assert.ErrorIs(t, err, core.ErrInvalidColumnSelection)

	info, err = f.svc.SetColumnFilter(id, 0, &matrix.ColumnFilter{Active: true, Type: matrix.GreaterThan, Threshold: 1e9})
	require.NoError(t, err)
	assert.True(t, info.Empty)
	assert.Equal(t, 0, info.NumRows)

	info, err = f.svc.SetColumnFilter(id, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 20, info.NumRows)

	info, err = f.svc.RemoveTwoGroupTests(id)
	require.NoError(t, err)
	assert.Equal(t, 0, info.NumSyntheticColumns)

	_, err = f.svc.SetColumnFilter(id, 7, nil)
	assert.ErrorIs(t, err, core.ErrColumnOutOfRange)
}

func TestSelectProbesAndColorScale(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t)

	info, err := f.svc.SelectProbes(id, []string{"1370000_at", "1370003_at", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, 2, info.NumRows)

	scale, err := f.svc.ColorScale(id, 0)
	require.NoError(t, err)
	assert.True(t, scale.Valid)
	assert.LessOrEqual(t, scale.Min, scale.Max)

	_, err = f.svc.ColorScale(id, 5)
	assert.ErrorIs(t, err, core.ErrColumnOutOfRange)
}

func TestPrepareDownloadReusesHandle(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	id := f.load(t)

	d1, err := f.svc.PrepareDownload(ctx, id, false)
	require.NoError(t, err)
	d2, err := f.svc.PrepareDownload(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, d1.ID, d2.ID)

	d3, err := f.svc.PrepareDownload(ctx, id, true)
	require.NoError(t, err)
	assert.NotEqual(t, d1.ID, d3.ID)

	_, err = f.svc.SelectProbes(id, []string{"1370001_at"})
	require.NoError(t, err)
	d4, err := f.svc.PrepareDownload(ctx, id, false)
	require.NoError(t, err)
	assert.NotEqual(t, d1.ID, d4.ID)

	rc, name, err := f.svc.OpenDownload(ctx, d1.ID.String())
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.NotEmpty(t, body)
	assert.Equal(t, "expression_matrix.xlsx", name)
	assert.Equal(t, "expression_matrix.xlsx", d1.Name)

	_, _, err = f.svc.OpenDownload(ctx, "not-an-id")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestPrepareDownloadAfterRegroupingIsNew(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	id := f.load(t)
	before, _, err := f.svc.MatrixRows(id, 0, 1, matrix.SortKey{}, false)
	require.NoError(t, err)

	d1, err := f.svc.PrepareDownload(ctx, id, false)
	require.NoError(t, err)

	_, err = f.svc.LoadMatrix(ctx, id, app.LoadRequest{
		Groups: []app.GroupRequest{
			{Name: "High", Color: "Gold", SampleIDs: f.ids(t, "aspirin", "Low", "24 hr")},
			{Name: "Low", SampleIDs: f.ids(t, "aspirin", "High", "24 hr")},
		},
		ValueType: "absolute",
	})
	require.NoError(t, err)
	after, _, err := f.svc.MatrixRows(id, 0, 1, matrix.SortKey{}, false)
	require.NoError(t, err)
	require.Equal(t, before[0].Probe, after[0].Probe)
	assert.Equal(t, before[0].Values[0].Value, after[0].Values[1].Value)

	d2, err := f.svc.PrepareDownload(ctx, id, false)
	require.NoError(t, err)
	assert.NotEqual(t, d1.ID, d2.ID, "same column names over different samples is a new download")
}

func TestPrepareDownloadWithoutStore(t *testing.T) {
	f := newFixture(t, false)
	id := f.load(t)
	_, err := f.svc.PrepareDownload(context.Background(), id, false)
	assert.ErrorIs(t, err, core.ErrPrecondition)
}

func TestSaveAndResume(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	id := f.load(t)

	_, err := f.svc.AddTwoGroupTest(id, "MeanDifference", 0, 1)
	require.NoError(t, err)
	before, err := f.svc.Info(id)
	require.NoError(t, err)

	snap, err := f.svc.Save(ctx, id)
	require.NoError(t, err)
	assert.Len(t, snap.Groups, 2)

	require.NoError(t, f.svc.CloseSession(id))
	assert.Empty(t, f.svc.Sessions())

	after, err := f.svc.Resume(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.Fingerprint, after.Fingerprint)
	assert.Equal(t, []core.SessionID{id}, f.svc.Sessions())
}

func TestUnitsAndReport(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	units, err := f.svc.Units(ctx, []string{"aspirin"})
	require.NoError(t, err)
	assert.Len(t, units, 8)
	for _, u := range units {
		assert.Equal(t, "aspirin", u.Triple.Major)
	}

	all, err := f.svc.Units(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 24)

	id := f.load(t)
	md, err := f.svc.Report(id, false)
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Session "+id.String())
	assert.Contains(t, string(md), "| Requested probes | 20 |")

	html, err := f.svc.Report(id, true)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<table>")
}
