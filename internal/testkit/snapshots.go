package testkit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"exprview/domain/core"
	"exprview/ports"
)

// SnapshotStore is an in-memory ports.SnapshotRepository
type SnapshotStore struct {
	mu      sync.Mutex
	records map[core.SessionID]ports.SnapshotRecord
}

// NewSnapshotStore creates an empty in-memory snapshot store
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{records: make(map[core.SessionID]ports.SnapshotRecord)}
}

func (s *SnapshotStore) SaveSnapshot(ctx context.Context, record ports.SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Payload = append([]byte(nil), record.Payload...)
	s.records[record.SessionID] = record
	return nil
}

func (s *SnapshotStore) LoadSnapshot(ctx context.Context, sessionID core.SessionID) (*ports.SnapshotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSnapshotNotFound, sessionID)
	}
	return &r, nil
}

func (s *SnapshotStore) DeleteSnapshot(ctx context.Context, sessionID core.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	return nil
}

func (s *SnapshotStore) ListSnapshots(ctx context.Context, limit int) ([]ports.SnapshotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ports.SnapshotRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
