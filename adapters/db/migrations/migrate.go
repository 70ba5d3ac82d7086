// Package migrations applies versioned SQL schema files to a database.
//
// Files are named <version>_<name>.sql (or .up.sql) with an optional
// <version>_<name>.down.sql counterpart. Versions sort lexically, so they
// should be zero padded.
package migrations

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"exprview/internal"
)

// Dialect selects the placeholder syntax of the target database
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) bind(n int) string {
	if d == SQLite {
		return "?"
	}
	return fmt.Sprintf("$%d", n)
}

// Migrator handles database schema migrations
type Migrator struct {
	db      *sql.DB
	files   fs.FS
	dialect Dialect
	logger  *internal.Logger
}

// NewMigrator creates a migrator applying the .sql files at the root of files
func NewMigrator(db *sql.DB, files fs.FS, dialect Dialect) *Migrator {
	return &Migrator{db: db, files: files, dialect: dialect, logger: internal.DefaultLogger.WithComponent("migrations")}
}

// MigrationFile represents a migration file
type MigrationFile struct {
	Version  string
	Name     string
	Path     string
	DownPath string
}

// MigrationStatus is one line of Status
type MigrationStatus struct {
	Version string `json:"version"`
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
	// Modified: the file changed after it was applied
	Modified bool `json:"modified"`
}

func (m *Migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// Up executes all pending migrations and returns how many were applied
func (m *Migrator) Up(ctx context.Context) (int, error) {
	if err := m.ensureTable(ctx); err != nil {
		return 0, err
	}
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	files, err := m.findMigrationFiles()
	if err != nil {
		return 0, fmt.Errorf("failed to find migration files: %w", err)
	}

	n := 0
	for _, file := range files {
		if _, ok := applied[file.Version]; ok {
			continue
		}
		if err := m.applyMigration(ctx, file); err != nil {
			return n, fmt.Errorf("failed to apply migration %s: %w", file.Version, err)
		}
		m.logger.Info("Applied migration %s_%s", file.Version, file.Name)
		n++
	}
	return n, nil
}

// Down rolls back the last applied migration, running its down file when
// there is one, and returns its version
func (m *Migrator) Down(ctx context.Context) (string, error) {
	if err := m.ensureTable(ctx); err != nil {
		return "", err
	}
	var version string
	err := m.db.QueryRowContext(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("no migrations to roll back")
	}
	if err != nil {
		return "", fmt.Errorf("failed to get last migration: %w", err)
	}

	files, err := m.findMigrationFiles()
	if err != nil {
		return "", err
	}
	var down string
	for _, f := range files {
		if f.Version == version {
			down = f.DownPath
		}
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if down != "" {
		body, err := fs.ReadFile(m.files, down)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", down, err)
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return "", fmt.Errorf("failed to execute %s: %w", down, err)
		}
	} else {
		m.logger.Warn("Migration %s has no down file; only its record is removed", version)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = "+m.dialect.bind(1), version); err != nil {
		return "", fmt.Errorf("failed to remove migration record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	m.logger.Info("Rolled back migration %s", version)
	return version, nil
}

// Status lists every migration file with whether it has been applied
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.appliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	files, err := m.findMigrationFiles()
	if err != nil {
		return nil, err
	}

	out := make([]MigrationStatus, 0, len(files))
	for _, f := range files {
		st := MigrationStatus{Version: f.Version, Name: f.Name}
		if sum, ok := applied[f.Version]; ok {
			st.Applied = true
			body, err := fs.ReadFile(m.files, f.Path)
			if err != nil {
				return nil, err
			}
			st.Modified = sum != calculateChecksum(body)
		}
		out = append(out, st)
	}
	return out, nil
}

// appliedMigrations returns applied versions with their checksums
func (m *Migrator) appliedMigrations(ctx context.Context) (map[string]string, error) {
	rows, err := m.db.QueryContext(ctx, "SELECT version, checksum FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]string)
	for rows.Next() {
		var version, checksum string
		if err := rows.Scan(&version, &checksum); err != nil {
			return nil, err
		}
		applied[version] = checksum
	}
	return applied, rows.Err()
}

// calculateChecksum computes SHA256 checksum of migration content
func calculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}

// findMigrationFiles discovers migration files, sorted by version
func (m *Migrator) findMigrationFiles() ([]MigrationFile, error) {
	entries, err := fs.ReadDir(m.files, ".")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*MigrationFile)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		// 001_initial_schema.sql
		parts := strings.SplitN(e.Name(), "_", 2)
		if len(parts) < 2 {
			continue
		}
		version := parts[0]
		f, ok := byVersion[version]
		if !ok {
			f = &MigrationFile{Version: version}
			byVersion[version] = f
		}
		switch {
		case strings.HasSuffix(parts[1], ".down.sql"):
			f.DownPath = e.Name()
		default:
			f.Path = e.Name()
			f.Name = strings.TrimSuffix(strings.TrimSuffix(parts[1], ".sql"), ".up")
		}
	}

	files := make([]MigrationFile, 0, len(byVersion))
	for _, f := range byVersion {
		if f.Path == "" {
			return nil, fmt.Errorf("migration %s has a down file but no up file", f.Version)
		}
		files = append(files, *f)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].Version < files[j].Version
	})
	return files, nil
}

// applyMigration executes a single migration file in a transaction
func (m *Migrator) applyMigration(ctx context.Context, file MigrationFile) error {
	body, err := fs.ReadFile(m.files, file.Path)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO schema_migrations (version, checksum) VALUES (%s, %s)", m.dialect.bind(1), m.dialect.bind(2)),
		file.Version, calculateChecksum(body))
	if err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}
