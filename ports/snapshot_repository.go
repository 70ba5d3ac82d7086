package ports

import (
	"context"
	"time"

	"exprview/domain/core"
)

// SnapshotRecord is a stored session snapshot. Payload is the versioned JSON
// document; Version is duplicated so stores can reject documents they cannot
// read without decoding them.
type SnapshotRecord struct {
	SessionID core.SessionID `json:"session_id" db:"session_id"`
	Version   int            `json:"version" db:"version"`
	Payload   []byte         `json:"payload" db:"payload"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// SnapshotRepository persists session snapshots across process restarts
type SnapshotRepository interface {
	SaveSnapshot(ctx context.Context, record SnapshotRecord) error
	// LoadSnapshot returns core.ErrSnapshotNotFound when nothing is stored
	LoadSnapshot(ctx context.Context, sessionID core.SessionID) (*SnapshotRecord, error)
	DeleteSnapshot(ctx context.Context, sessionID core.SessionID) error
	ListSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error)
}
