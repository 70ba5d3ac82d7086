// Package session keeps the table of open matrix sessions. Each session owns
// one engine; the manager bounds concurrent builds across sessions and moves
// session state to and from a snapshot repository.
package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/domain/sample"
	"exprview/internal"
	"exprview/internal/engine"
	"exprview/internal/metrics"
	"exprview/ports"

	"golang.org/x/sync/semaphore"
)

const defaultMaxConcurrentBuilds = 4

// Session is one open matrix session
type Session struct {
	ID        core.SessionID
	Engine    *engine.Engine
	CreatedAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
}

// LastUsed returns when the session last served an operation
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// Options configures a Manager
type Options struct {
	MaxConcurrentBuilds int64
	Schema              sample.DataSchema
	// Snapshots is optional; without it Save and Resume fail
	Snapshots ports.SnapshotRepository
}

// Manager owns the open sessions
type Manager struct {
	mu        sync.RWMutex
	sessions  map[core.SessionID]*Session
	newEngine func() *engine.Engine
	builds    *semaphore.Weighted
	schema    sample.DataSchema
	snapshots ports.SnapshotRepository
	logger    *internal.Logger
}

// NewManager creates a session manager. newEngine is called once per session.
func NewManager(newEngine func() *engine.Engine, opts Options) *Manager {
	if opts.MaxConcurrentBuilds <= 0 {
		opts.MaxConcurrentBuilds = defaultMaxConcurrentBuilds
	}
	return &Manager{
		sessions:  make(map[core.SessionID]*Session),
		newEngine: newEngine,
		builds:    semaphore.NewWeighted(opts.MaxConcurrentBuilds),
		schema:    opts.Schema,
		snapshots: opts.Snapshots,
		logger:    internal.DefaultLogger.WithComponent("session"),
	}
}

// Schema returns the data schema sessions classify samples with
func (m *Manager) Schema() sample.DataSchema {
	return m.schema
}

// Create opens a new, empty session
func (m *Manager) Create() *Session {
	return m.add(core.NewSessionID())
}

func (m *Manager) add(id core.SessionID) *Session {
	now := time.Now()
	s := &Session{ID: id, Engine: m.newEngine(), CreatedAt: now, lastUsed: now}

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SetSessionsActive(n)
	m.logger.Debug("Opened session %s", id)
	return s
}

// Get looks up an open session
func (m *Manager) Get(id core.SessionID) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	s.touch()
	return s, nil
}

// Close disposes of a session. Closing an unknown session is an error.
func (m *Manager) Close(id core.SessionID) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	metrics.SetSessionsActive(n)
	m.logger.Debug("Closed session %s", id)
	return nil
}

// List returns the open sessions, oldest first
func (m *Manager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Len is the number of open sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Load builds a session's matrix, waiting for a build slot first
func (m *Manager) Load(ctx context.Context, s *Session, req engine.BuildRequest) (matrix.ManagedMatrixInfo, error) {
	if err := m.builds.Acquire(ctx, 1); err != nil {
		return matrix.ManagedMatrixInfo{}, fmt.Errorf("failed to acquire build slot: %w", err)
	}
	defer m.builds.Release(1)
	return s.Engine.LoadMatrix(ctx, req)
}

// Save stores a session's snapshot
func (m *Manager) Save(ctx context.Context, id core.SessionID) (Snapshot, error) {
	if m.snapshots == nil {
		return Snapshot{}, fmt.Errorf("%w: no snapshot store configured", core.ErrPrecondition)
	}
	s, err := m.Get(id)
	if err != nil {
		return Snapshot{}, err
	}
	cp, err := s.Engine.Checkpoint()
	if err != nil {
		return Snapshot{}, err
	}
	snap := NewSnapshot(id, cp)
	payload, err := EncodeSnapshot(snap)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode snapshot: %w", err)
	}
	record := ports.SnapshotRecord{SessionID: id, Version: snap.Version, Payload: payload, UpdatedAt: snap.SavedAt}
	if err := m.snapshots.SaveSnapshot(ctx, record); err != nil {
		return Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	m.logger.Info("Saved snapshot of session %s (%d groups, %d synthetic columns)", id, len(snap.Groups), len(snap.Synthetic))
	return snap, nil
}

// Resume reopens a stored session under its original id and rebuilds its
// matrix. An already open session is returned as is.
func (m *Manager) Resume(ctx context.Context, id core.SessionID) (*Session, matrix.ManagedMatrixInfo, error) {
	if s, err := m.Get(id); err == nil {
		info, err := s.Engine.Info()
		return s, info, err
	}
	if m.snapshots == nil {
		return nil, matrix.ManagedMatrixInfo{}, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}

	record, err := m.snapshots.LoadSnapshot(ctx, id)
	if err != nil {
		return nil, matrix.ManagedMatrixInfo{}, err
	}
	if record.Version != SnapshotVersion {
		return nil, matrix.ManagedMatrixInfo{}, fmt.Errorf("%w: %d", core.ErrUnsupportedSnapshot, record.Version)
	}
	snap, err := DecodeSnapshot(record.Payload)
	if err != nil {
		return nil, matrix.ManagedMatrixInfo{}, err
	}
	cp, err := snap.Checkpoint(m.schema)
	if err != nil {
		return nil, matrix.ManagedMatrixInfo{}, err
	}

	if err := m.builds.Acquire(ctx, 1); err != nil {
		return nil, matrix.ManagedMatrixInfo{}, fmt.Errorf("failed to acquire build slot: %w", err)
	}
	defer m.builds.Release(1)

	s := m.add(id)
	info, err := s.Engine.Restore(ctx, cp)
	if err != nil {
		_ = m.Close(id)
		return nil, matrix.ManagedMatrixInfo{}, err
	}
	m.logger.Info("Resumed session %s: %d rows", id, info.NumRows)
	return s, info, nil
}

// Saved lists stored snapshots, most recent first. Without a snapshot store
// the list is empty.
func (m *Manager) Saved(ctx context.Context, limit int) ([]SavedSession, error) {
	if m.snapshots == nil {
		return []SavedSession{}, nil
	}
	records, err := m.snapshots.ListSnapshots(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]SavedSession, 0, len(records))
	for _, r := range records {
		out = append(out, SavedSession{SessionID: r.SessionID, Version: r.Version, UpdatedAt: r.UpdatedAt})
	}
	return out, nil
}

// Forget deletes a stored snapshot
func (m *Manager) Forget(ctx context.Context, id core.SessionID) error {
	if m.snapshots == nil {
		return nil
	}
	return m.snapshots.DeleteSnapshot(ctx, id)
}

// Expire closes sessions idle for longer than maxIdle and returns their ids.
// Nothing calls this on its own; the owner of the manager decides when.
func (m *Manager) Expire(maxIdle time.Duration) []core.SessionID {
	cutoff := time.Now().Add(-maxIdle)
	var closed []core.SessionID
	for _, s := range m.List() {
		if s.LastUsed().Before(cutoff) {
			if m.Close(s.ID) == nil {
				closed = append(closed, s.ID)
			}
		}
	}
	return closed
}
