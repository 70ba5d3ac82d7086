// Package sqlite keeps session snapshots in a single-file SQLite database
// for deployments without PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"exprview/adapters/db/migrations"
	"exprview/domain/core"
	"exprview/ports"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// SnapshotStore implements ports.SnapshotRepository on SQLite
type SnapshotStore struct {
	db   *sqlx.DB
	path string
}

// NewSnapshotStore opens (creating if needed) the database at path and
// applies pending migrations
func NewSnapshotStore(ctx context.Context, path string) (*SnapshotStore, error) {
	if path == "" {
		path = "exprview.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	files, err := fs.Sub(migrationFiles, "sql")
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := migrations.NewMigrator(db.DB, files, migrations.SQLite).Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return &SnapshotStore{db: db, path: path}, nil
}

// Close releases the database
func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

type snapshotRow struct {
	SessionID string `db:"session_id"`
	Version   int    `db:"version"`
	Payload   []byte `db:"payload"`
	UpdatedAt string `db:"updated_at"`
}

// timeLayout is fixed width so text order is time order
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func (r snapshotRow) record() (ports.SnapshotRecord, error) {
	t, err := time.Parse(timeLayout, r.UpdatedAt)
	if err != nil {
		return ports.SnapshotRecord{}, fmt.Errorf("snapshot %s: bad timestamp %q: %w", r.SessionID, r.UpdatedAt, err)
	}
	return ports.SnapshotRecord{SessionID: core.SessionID(r.SessionID), Version: r.Version, Payload: r.Payload, UpdatedAt: t}, nil
}

// SaveSnapshot inserts or replaces the snapshot of a session
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, record ports.SnapshotRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_snapshots (session_id, version, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE
		SET version = excluded.version, payload = excluded.payload, updated_at = excluded.updated_at
	`, record.SessionID.String(), record.Version, record.Payload, record.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save snapshot %s: %w", record.SessionID, err)
	}
	return nil
}

// LoadSnapshot retrieves the snapshot of a session
func (s *SnapshotStore) LoadSnapshot(ctx context.Context, sessionID core.SessionID) (*ports.SnapshotRecord, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row, `
		SELECT session_id, version, payload, updated_at
		FROM session_snapshots
		WHERE session_id = ?
	`, sessionID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrSnapshotNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	rec, err := row.record()
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteSnapshot removes the snapshot of a session, if any
func (s *SnapshotStore) DeleteSnapshot(ctx context.Context, sessionID core.SessionID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_snapshots WHERE session_id = ?`, sessionID.String())
	return err
}

// ListSnapshots returns snapshots, most recently updated first
func (s *SnapshotStore) ListSnapshots(ctx context.Context, limit int) ([]ports.SnapshotRecord, error) {
	query := `SELECT session_id, version, payload, updated_at FROM session_snapshots ORDER BY updated_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]ports.SnapshotRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
