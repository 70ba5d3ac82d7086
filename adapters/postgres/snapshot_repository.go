package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"exprview/domain/core"
	"exprview/ports"

	"github.com/jmoiron/sqlx"
)

// SnapshotRepository implements ports.SnapshotRepository for PostgreSQL
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new PostgreSQL snapshot repository
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// SaveSnapshot inserts or replaces the snapshot of a session
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, record ports.SnapshotRecord) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO session_snapshots (session_id, version, payload, updated_at)
		VALUES (:session_id, :version, :payload, :updated_at)
		ON CONFLICT (session_id) DO UPDATE
		SET version = EXCLUDED.version, payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at
	`, record)
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", record.SessionID, err)
	}
	return nil
}

// LoadSnapshot retrieves the snapshot of a session
func (r *SnapshotRepository) LoadSnapshot(ctx context.Context, sessionID core.SessionID) (*ports.SnapshotRecord, error) {
	var record ports.SnapshotRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT session_id, version, payload, updated_at
		FROM session_snapshots
		WHERE session_id = $1
	`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrSnapshotNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// DeleteSnapshot removes the snapshot of a session, if any
func (r *SnapshotRepository) DeleteSnapshot(ctx context.Context, sessionID core.SessionID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE session_id = $1`, sessionID)
	return err
}

// ListSnapshots returns snapshots, most recently updated first
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, limit int) ([]ports.SnapshotRecord, error) {
	query := `
		SELECT session_id, version, payload, updated_at
		FROM session_snapshots
		ORDER BY updated_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	var records []ports.SnapshotRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, err
	}
	return records, nil
}
