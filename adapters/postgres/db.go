// Package postgres holds the PostgreSQL adapters: an expression dataset
// (samples, probes and values) and the session snapshot repository.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"exprview/adapters/db/migrations"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

// Migrations returns the schema files of this adapter
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "sql")
	if err != nil {
		panic(err)
	}
	return sub
}

// Open connects to PostgreSQL and checks the connection
func Open(ctx context.Context, url string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// NewMigrator returns a migrator over this adapter's schema
func NewMigrator(db *sqlx.DB) *migrations.Migrator {
	return migrations.NewMigrator(db.DB, Migrations(), migrations.Postgres)
}
