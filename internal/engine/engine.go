package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/domain/sample"
	"exprview/internal"
	"exprview/internal/metrics"
)

// state is one immutable engine generation. Readers load it atomically and
// never see a partially applied mutation.
type state struct {
	matrix  *matrix.ManagedMatrix
	request BuildRequest
	stats   BuildStats
}

// Engine serves the matrix operations of one session. Mutations are
// serialized by a mutex and computed off the current state into a new one,
// which is then swapped in. Reads take no lock.
type Engine struct {
	mu        sync.Mutex
	current   atomic.Pointer[state]
	builder   *Builder
	synthetic *SyntheticEngine
	logger    *internal.Logger
}

// New creates an engine with no matrix loaded
func New(builder *Builder, synthetic *SyntheticEngine) *Engine {
	if synthetic == nil {
		synthetic = NewSyntheticEngine(nil)
	}
	return &Engine{
		builder:   builder,
		synthetic: synthetic,
		logger:    internal.DefaultLogger.WithComponent("engine"),
	}
}

func (e *Engine) load() (*state, error) {
	s := e.current.Load()
	if s == nil {
		return nil, core.ErrNoMatrixLoaded
	}
	return s, nil
}

// swap installs a new matrix generation; callers hold e.mu
func (e *Engine) swap(prev *state, m *matrix.ManagedMatrix) *state {
	next := &state{matrix: m, request: prev.request, stats: prev.stats}
	e.current.Store(next)
	return next
}

// Loaded reports whether a matrix has been built
func (e *Engine) Loaded() bool {
	return e.current.Load() != nil
}

// Matrix returns the current immutable matrix
func (e *Engine) Matrix() (*matrix.ManagedMatrix, error) {
	s, err := e.load()
	if err != nil {
		return nil, err
	}
	return s.matrix, nil
}

// Snapshot returns the current matrix and the build request it came from,
// both read from one generation
func (e *Engine) Snapshot() (*matrix.ManagedMatrix, BuildRequest, error) {
	s, err := e.load()
	if err != nil {
		return nil, BuildRequest{}, err
	}
	return s.matrix, s.request, nil
}

// Request returns the build request of the current matrix
func (e *Engine) Request() (BuildRequest, error) {
	s, err := e.load()
	if err != nil {
		return BuildRequest{}, err
	}
	return s.request, nil
}

// Groups returns the groups the current matrix was built from
func (e *Engine) Groups() []sample.Group {
	s := e.current.Load()
	if s == nil {
		return nil
	}
	return s.request.Groups
}

// LastBuild returns the statistics of the last full build
func (e *Engine) LastBuild() (BuildStats, error) {
	s, err := e.load()
	if err != nil {
		return BuildStats{}, err
	}
	return s.stats, nil
}

// Info snapshots the current matrix metadata
func (e *Engine) Info() (matrix.ManagedMatrixInfo, error) {
	s, err := e.load()
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	return s.matrix.Info(), nil
}

// LoadMatrix rebuilds the matrix from scratch. Synthetic columns, filters,
// sort and probe selection are all reset.
func (e *Engine) LoadMatrix(ctx context.Context, req BuildRequest) (matrix.ManagedMatrixInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prev := e.current.Load(); prev != nil && prev.request.Fingerprint() == req.Fingerprint() {
		e.logger.Debug("Reloading unchanged selection of %d groups", len(req.Groups))
	}

	m, st, err := e.builder.Build(ctx, req)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	e.current.Store(&state{matrix: m, request: req, stats: st})
	e.logger.Info("Loaded matrix: %d rows x %d columns (%s)", m.NumLoadedRows(), m.NumColumns(), req.ValueType)
	return m.Info(), nil
}

// Rows reads a window of the current view without changing any state
func (e *Engine) Rows(offset, length int) ([]matrix.ExpressionRow, error) {
	s, err := e.load()
	if err != nil {
		return nil, err
	}
	rows, _ := window(s, offset, length)
	return rows, nil
}

// MatrixRows applies the sort key if it differs from the current one, then
// reads a window. A zero sort key leaves the order unchanged. The returned
// total is the number of visible rows of the generation the window was read
// from.
func (e *Engine) MatrixRows(offset, length int, key matrix.SortKey, ascending bool) ([]matrix.ExpressionRow, int, error) {
	s, err := e.load()
	if err != nil {
		return nil, 0, err
	}
	if key.Kind == "" {
		rows, total := window(s, offset, length)
		return rows, total, nil
	}
	if cur, asc := s.matrix.SortKey(); cur == key && asc == ascending {
		rows, total := window(s, offset, length)
		return rows, total, nil
	}

	e.mu.Lock()
	s, err = e.load()
	if err != nil {
		e.mu.Unlock()
		return nil, 0, err
	}
	m, _, err := s.matrix.WithSort(key, ascending)
	if err != nil {
		e.mu.Unlock()
		return nil, 0, err
	}
	if m != s.matrix {
		s = e.swap(s, m)
		metrics.IncRecompute(metrics.OpSort)
	}
	e.mu.Unlock()

	rows, total := window(s, offset, length)
	return rows, total, nil
}

func window(s *state, offset, length int) ([]matrix.ExpressionRow, int) {
	rows := s.matrix.Rows(offset, length)
	metrics.AddRowsServed(len(rows))
	return rows, s.matrix.NumRows()
}

// SetSort applies a sort key and reports the recomputed view
func (e *Engine) SetSort(key matrix.SortKey, ascending bool) (matrix.RecomputeResult, error) {
	var res matrix.RecomputeResult
	err := e.mutate(metrics.OpSort, func(m *matrix.ManagedMatrix) (*matrix.ManagedMatrix, error) {
		next, r, err := m.WithSort(key, ascending)
		res = r
		return next, err
	})
	return res, err
}

// SelectProbes restricts the visible rows to a probe subset of the loaded
// matrix. An empty list selects every loaded row.
func (e *Engine) SelectProbes(probes []string) (matrix.ManagedMatrixInfo, error) {
	return e.mutateInfo(metrics.OpSelect, func(m *matrix.ManagedMatrix) (*matrix.ManagedMatrix, error) {
		next, _, missing := m.WithSelectedProbes(probes)
		if missing > 0 {
			e.logger.Debug("Probe selection: %d of %d probes are not loaded", missing, len(probes))
		}
		return next, nil
	})
}

// AddTwoGroupTest appends a synthetic column comparing data columns a and b
func (e *Engine) AddTwoGroupTest(kind matrix.TestKind, a, b int) (matrix.ManagedMatrixInfo, error) {
	return e.mutateInfo(metrics.OpAddTest, func(m *matrix.ManagedMatrix) (*matrix.ManagedMatrix, error) {
		return e.synthetic.Add(m, kind, a, b)
	})
}

// RemoveTwoGroupTests drops all synthetic columns; a no-op when there are none
func (e *Engine) RemoveTwoGroupTests() (matrix.ManagedMatrixInfo, error) {
	return e.mutateInfo(metrics.OpRemoveAll, func(m *matrix.ManagedMatrix) (*matrix.ManagedMatrix, error) {
		return e.synthetic.RemoveAll(m), nil
	})
}

// SetColumnFilter sets or, with a nil filter, clears the filter of a column.
// A filter that leaves no rows is applied as is and reported through the
// Empty flag of the returned info.
func (e *Engine) SetColumnFilter(column int, filter *matrix.ColumnFilter) (matrix.ManagedMatrixInfo, error) {
	return e.mutateInfo(metrics.OpFilter, func(m *matrix.ManagedMatrix) (*matrix.ManagedMatrix, error) {
		next, _, err := m.WithColumnFilter(column, filter)
		return next, err
	})
}

func (e *Engine) mutateInfo(op string, fn func(*matrix.ManagedMatrix) (*matrix.ManagedMatrix, error)) (matrix.ManagedMatrixInfo, error) {
	var info matrix.ManagedMatrixInfo
	err := e.mutate(op, func(m *matrix.ManagedMatrix) (*matrix.ManagedMatrix, error) {
		next, err := fn(m)
		if err != nil {
			return nil, err
		}
		info = next.Info()
		return next, nil
	})
	return info, err
}

// mutate runs fn against the current matrix under the writer lock and swaps
// in the result. On error nothing changes.
func (e *Engine) mutate(op string, fn func(*matrix.ManagedMatrix) (*matrix.ManagedMatrix, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.load()
	if err != nil {
		return err
	}
	next, err := fn(s.matrix)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if next != s.matrix {
		e.swap(s, next)
	}
	metrics.IncRecompute(op)
	return nil
}
