package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/domain/sample"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEngine_Scenario(t *testing.T) {
	ctx := context.Background()
	e := newScenarioEngine(t, scenarioData())

	info, err := e.LoadMatrix(ctx, BuildRequest{Groups: scenarioGroups(t), Probes: []string{"p1", "p2", "p3"}, ValueType: matrix.Folds})
	require.NoError(t, err)
	assert.Equal(t, 2, info.NumDataColumns)
	assert.Equal(t, 3, info.NumRows)

	info, err = e.AddTwoGroupTest(matrix.TTest, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, info.NumColumns)
	assert.True(t, info.Columns[2].IsPValue)
	assert.True(t, info.Columns[2].DefaultSortAsc)
	assert.Equal(t, "p-value (t) G1 vs G2", info.Columns[2].Name)

	info, err = e.SetColumnFilter(2, &matrix.ColumnFilter{Active: true, Type: matrix.LowerThan, Threshold: 0.05})
	require.NoError(t, err)
	assert.Equal(t, 1, info.NumRows)
	assert.False(t, info.Empty)

	rows, total, err := e.MatrixRows(0, 10, matrix.SortKey{}, false)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "p1", rows[0].Probe)
	assert.Less(t, rows[0].Values[2].Value, 0.05)
}

func TestEngine_GroupValuesAverageTreatedSamples(t *testing.T) {
	e := newScenarioEngine(t, scenarioData())
	_, err := e.LoadMatrix(context.Background(), BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Absolute})
	require.NoError(t, err)

	rows, err := e.Rows(0, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, rowProbes(rows))
	// the control sample c1 does not contribute to G1
	assert.Equal(t, matrix.PresentValue(2), rows[0].Values[0])
	assert.Equal(t, matrix.PresentValue(11), rows[0].Values[1])

	m, err := e.Matrix()
	require.NoError(t, err)
	col, err := m.ColumnData(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3"}, col.SampleIDs)
	assert.Equal(t, "x/High/24 hr", col.Info.Hint)
	assert.Equal(t, "G1", col.Info.Group)
}

func TestEngine_UnknownProbesDroppedInRequestOrder(t *testing.T) {
	e := newScenarioEngine(t, scenarioData())
	info, err := e.LoadMatrix(context.Background(), BuildRequest{
		Groups:    scenarioGroups(t),
		Probes:    []string{"p3", "nope", "p1", "p3"},
		ValueType: matrix.Folds,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, info.NumRows)
	assert.Equal(t, 1, info.DroppedProbes)

	rows, err := e.Rows(0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3", "p1"}, rowProbes(rows))

	st, err := e.LastBuild()
	require.NoError(t, err)
	assert.Equal(t, 1, st.Unknown)
	assert.Equal(t, 0, st.Unavailable)
}

func TestEngine_MissingValuesAreAbsent(t *testing.T) {
	data := scenarioData()
	data.values["p2"] = map[string]float64{"a1": 4}
	e := newScenarioEngine(t, data)

	groups := append(scenarioGroups(t), group(t, "Empty"))
	_, err := e.LoadMatrix(context.Background(), BuildRequest{Groups: groups, ValueType: matrix.Folds})
	require.NoError(t, err)

	rows, err := e.Rows(0, 3)
	require.NoError(t, err)
	assert.Equal(t, matrix.PresentValue(4), rows[1].Values[0])
	assert.False(t, rows[1].Values[1].Present)
	for _, r := range rows {
		assert.False(t, r.Values[2].Present, "empty group yields an absent column")
	}
}

func TestEngine_UnavailableValuesOmitRows(t *testing.T) {
	data := scenarioData()
	data.unavailable = map[string]bool{"p3": true}
	e := newScenarioEngine(t, data)

	// chunk size 2: [p1 p2] succeeds, [p3] is unavailable
	info, err := e.LoadMatrix(context.Background(), BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.NoError(t, err)
	assert.Equal(t, 2, info.NumRows)
	assert.Equal(t, 1, info.DroppedProbes)
	assert.False(t, info.Degraded)

	data.unavailable = map[string]bool{"p1": true, "p3": true}
	info, err = e.LoadMatrix(context.Background(), BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.NoError(t, err)
	assert.True(t, info.Degraded)
	assert.Equal(t, 0, info.NumRows)
	assert.Equal(t, 3, info.DroppedProbes)
}

func TestEngine_FetchFailureLeavesStateUnchanged(t *testing.T) {
	data := scenarioData()
	values := new(MockValueSource)
	values.On("Values", mock.Anything, matrix.Folds, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset")).Once()
	values.On("Values", mock.Anything, matrix.Folds, mock.Anything, mock.Anything).
		Return(data.values, nil)

	e := New(NewBuilder(values, data, sample.DefaultSchema(), BuilderOptions{}), nil)

	_, err := e.LoadMatrix(context.Background(), BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.Error(t, err)
	assert.False(t, e.Loaded())

	info, err := e.LoadMatrix(context.Background(), BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.NoError(t, err)
	assert.Equal(t, 3, info.NumRows)
	values.AssertNumberOfCalls(t, "Values", 2)
}

func TestEngine_RejectsDuplicateGroupNames(t *testing.T) {
	e := newScenarioEngine(t, scenarioData())
	g := scenarioGroups(t)
	_, err := e.LoadMatrix(context.Background(), BuildRequest{Groups: []sample.Group{g[0], g[0]}})
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestEngine_NoMatrixLoaded(t *testing.T) {
	e := newScenarioEngine(t, scenarioData())
	_, err := e.Info()
	assert.ErrorIs(t, err, core.ErrNoMatrixLoaded)
	_, err = e.Rows(0, 10)
	assert.ErrorIs(t, err, core.ErrNoMatrixLoaded)
	_, err = e.AddTwoGroupTest(matrix.TTest, 0, 1)
	assert.ErrorIs(t, err, core.ErrNoMatrixLoaded)
	_, err = e.RemoveTwoGroupTests()
	assert.ErrorIs(t, err, core.ErrNoMatrixLoaded)
	_, err = e.Checkpoint()
	assert.ErrorIs(t, err, core.ErrNoMatrixLoaded)
	assert.Nil(t, e.Groups())
}

func TestEngine_InvalidColumnSelection(t *testing.T) {
	e := newScenarioEngine(t, scenarioData())
	_, err := e.LoadMatrix(context.Background(), BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.NoError(t, err)
	_, err = e.AddTwoGroupTest(matrix.TTest, 0, 1)
	require.NoError(t, err)
	before, err := e.Info()
	require.NoError(t, err)

	for _, pair := range [][2]int{{0, 0}, {0, 2}, {-1, 1}, {1, 5}} {
		_, err := e.AddTwoGroupTest(matrix.UTest, pair[0], pair[1])
		assert.ErrorIs(t, err, core.ErrInvalidColumnSelection, "pair %v", pair)
	}
	_, err = e.AddTwoGroupTest("Anova", 0, 1)
	assert.ErrorIs(t, err, core.ErrUnknownTestKind)

	after, err := e.Info()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestEngine_SyntheticRoundTripAndRebuild(t *testing.T) {
	ctx := context.Background()
	e := newScenarioEngine(t, scenarioData())
	base, err := e.LoadMatrix(ctx, BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.NoError(t, err)

	_, err = e.AddTwoGroupTest(matrix.UTest, 1, 0)
	require.NoError(t, err)
	info, err := e.AddTwoGroupTest(matrix.MeanDifference, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, info.NumColumns)
	assert.Equal(t, 2, info.NumSyntheticColumns)
	assert.False(t, info.Columns[3].IsPValue)

	rows, err := e.Rows(0, 1)
	require.NoError(t, err)
	assert.Equal(t, -9.0, rows[0].Values[3].Value)

	info, err = e.RemoveTwoGroupTests()
	require.NoError(t, err)
	assert.Equal(t, base.Columns, info.Columns)
	assert.Equal(t, base.Fingerprint, info.Fingerprint)

	again, err := e.RemoveTwoGroupTests()
	require.NoError(t, err)
	assert.Equal(t, info, again)

	_, err = e.AddTwoGroupTest(matrix.TTest, 0, 1)
	require.NoError(t, err)
	info, err = e.LoadMatrix(ctx, BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.NoError(t, err)
	assert.Equal(t, 0, info.NumSyntheticColumns)
}

func TestEngine_EmptyFilterIsReportedAndCanBeRelaxed(t *testing.T) {
	e := newScenarioEngine(t, scenarioData())
	_, err := e.LoadMatrix(context.Background(), BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.NoError(t, err)

	f := matrix.ColumnFilter{Active: true, Type: matrix.GreaterThan, Threshold: 1000}
	info, err := e.SetColumnFilter(1, &f)
	require.NoError(t, err)
	assert.True(t, info.Empty)
	assert.Equal(t, 0, info.NumRows)

	relaxed := f.AsInactive()
	info, err = e.SetColumnFilter(1, &relaxed)
	require.NoError(t, err)
	assert.False(t, info.Empty)
	assert.Equal(t, 3, info.NumRows)
	assert.Equal(t, 1000.0, info.Columns[1].Filter.Threshold)

	_, err = e.SetColumnFilter(9, nil)
	assert.ErrorIs(t, err, core.ErrColumnOutOfRange)
}

func TestEngine_MatrixRowsAppliesSort(t *testing.T) {
	e := newScenarioEngine(t, scenarioData())
	_, err := e.LoadMatrix(context.Background(), BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.NoError(t, err)

	rows, total, err := e.MatrixRows(0, 10, matrix.MatrixColumn(1), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3", "p1"}, rowProbes(rows))
	assert.Equal(t, 3, total)

	m1, err := e.Matrix()
	require.NoError(t, err)
	rows, total, err = e.MatrixRows(1, 1, matrix.MatrixColumn(1), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"p3"}, rowProbes(rows))
	assert.Equal(t, 3, total, "total counts the whole view, not the window")
	m2, err := e.Matrix()
	require.NoError(t, err)
	assert.Same(t, m1, m2, "unchanged sort key does not produce a new state")

	rows, _, err = e.MatrixRows(0, 10, matrix.MatrixColumn(1), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p3", "p2"}, rowProbes(rows))

	_, _, err = e.MatrixRows(0, 10, matrix.MatrixColumn(7), false)
	assert.ErrorIs(t, err, core.ErrColumnOutOfRange)
}

func TestEngine_SelectProbes(t *testing.T) {
	e := newScenarioEngine(t, scenarioData())
	_, err := e.LoadMatrix(context.Background(), BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.NoError(t, err)

	info, err := e.SelectProbes([]string{"p3", "p1", "zz"})
	require.NoError(t, err)
	assert.Equal(t, 2, info.NumRows)
	assert.Equal(t, 3, info.NumLoadedRows)
	rows, err := e.Rows(0, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p3"}, rowProbes(rows))

	info, err = e.SelectProbes(nil)
	require.NoError(t, err)
	assert.Equal(t, 3, info.NumRows)
}

func TestEngine_CheckpointRestore(t *testing.T) {
	ctx := context.Background()
	data := scenarioData()
	e := newScenarioEngine(t, data)
	_, err := e.LoadMatrix(ctx, BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.NoError(t, err)
	_, err = e.AddTwoGroupTest(matrix.TTest, 0, 1)
	require.NoError(t, err)
	_, err = e.SetColumnFilter(2, &matrix.ColumnFilter{Active: true, Type: matrix.LowerThan, Threshold: 0.5})
	require.NoError(t, err)
	_, err = e.SelectProbes([]string{"p1", "p3"})
	require.NoError(t, err)
	_, err = e.SetSort(matrix.MatrixColumn(2), true)
	require.NoError(t, err)
	want, err := e.Info()
	require.NoError(t, err)

	cp, err := e.Checkpoint()
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p3"}, cp.Selection)
	assert.Equal(t, "p-value (t) G1 vs G2", cp.SortColumn)
	require.Len(t, cp.Filters, 1)

	restored := newScenarioEngine(t, data)
	got, err := restored.Restore(ctx, cp)
	require.NoError(t, err)
	assert.Equal(t, want.Fingerprint, got.Fingerprint)
	assert.Equal(t, want.NumRows, got.NumRows)
	assert.Equal(t, want.SortKey, got.SortKey)
}

func TestEngine_RestoreSkipsUnresolvableSynthetic(t *testing.T) {
	e := newScenarioEngine(t, scenarioData())
	info, err := e.Restore(context.Background(), Checkpoint{
		Request:    BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds},
		Synthetic:  []matrix.SyntheticSpec{{Kind: matrix.TTest, GroupA: "G1", GroupB: "Gone"}},
		SortColumn: "missing",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, info.NumSyntheticColumns)
	assert.Equal(t, matrix.SortKey{}, info.SortKey)
}

// TestEngine_ConcurrentReadsSeeWholeStates toggles a filter while readers
// page through the view. Every read must match either the filtered or the
// unfiltered state.
func TestEngine_ConcurrentReadsSeeWholeStates(t *testing.T) {
	e := newScenarioEngine(t, scenarioData())
	_, err := e.LoadMatrix(context.Background(), BuildRequest{Groups: scenarioGroups(t), ValueType: matrix.Folds})
	require.NoError(t, err)

	on := matrix.ColumnFilter{Active: true, Type: matrix.GreaterThan, Threshold: 5}
	var wg sync.WaitGroup
	done := make(chan struct{})
	bad := make(chan []string, 8)

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				rows, err := e.Rows(0, 10)
				if err != nil {
					continue
				}
				probes := rowProbes(rows)
				if len(probes) != 1 && len(probes) != 3 {
					select {
					case bad <- probes:
					default:
					}
				}
			}
		}()
	}

	for i := 0; i < 200; i++ {
		if i%2 == 0 {
			_, err = e.SetColumnFilter(1, &on)
		} else {
			_, err = e.SetColumnFilter(1, nil)
		}
		require.NoError(t, err)
	}
	close(done)
	wg.Wait()
	close(bad)

	for probes := range bad {
		t.Errorf("torn read: %v", probes)
	}
}
