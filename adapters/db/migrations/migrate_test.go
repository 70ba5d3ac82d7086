package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrations.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testFiles() fstest.MapFS {
	return fstest.MapFS{
		"001_create_a.sql":      {Data: []byte("CREATE TABLE a (id INTEGER);")},
		"001_create_a.down.sql": {Data: []byte("DROP TABLE a;")},
		"002_create_b.up.sql":   {Data: []byte("CREATE TABLE b (id INTEGER); CREATE INDEX b_id ON b (id);")},
		"README.txt":            {Data: []byte("not a migration")},
	}
}

func TestUpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := NewMigrator(db, testFiles(), SQLite)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = db.ExecContext(ctx, "INSERT INTO b (id) VALUES (1)")
	assert.NoError(t, err)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.Equal(t, MigrationStatus{Version: "001", Name: "create_a", Applied: true}, status[0])
	assert.Equal(t, MigrationStatus{Version: "002", Name: "create_b", Applied: true}, status[1])
}

func TestDownRunsDownFile(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := NewMigrator(db, testFiles(), SQLite)
	_, err := m.Up(ctx)
	require.NoError(t, err)

	version, err := m.Down(ctx)
	require.NoError(t, err)
	assert.Equal(t, "002", version)

	version, err = m.Down(ctx)
	require.NoError(t, err)
	assert.Equal(t, "001", version)
	_, err = db.ExecContext(ctx, "INSERT INTO a (id) VALUES (1)")
	assert.Error(t, err)

	_, err = m.Down(ctx)
	assert.Error(t, err)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status[0].Applied)
}

func TestStatusDetectsModifiedFiles(t *testing.T) {
	ctx := context.Background()
	files := testFiles()
	m := NewMigrator(openDB(t), files, SQLite)
	_, err := m.Up(ctx)
	require.NoError(t, err)

	files["001_create_a.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE a (id INTEGER, name TEXT);")}
	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status[0].Modified)
	assert.False(t, status[1].Modified)
}

func TestFailedMigrationIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	files := fstest.MapFS{
		"001_ok.sql":     {Data: []byte("CREATE TABLE ok (id INTEGER);")},
		"002_broken.sql": {Data: []byte("CREATE TABLE nope (")},
	}
	m := NewMigrator(openDB(t), files, SQLite)

	n, err := m.Up(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, n)

	status, err := m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status[0].Applied)
	assert.False(t, status[1].Applied)
}

func TestDownFileWithoutUpFile(t *testing.T) {
	files := fstest.MapFS{"003_orphan.down.sql": {Data: []byte("SELECT 1;")}}
	_, err := NewMigrator(openDB(t), files, SQLite).Up(context.Background())
	assert.Error(t, err)
}

func TestDialectBind(t *testing.T) {
	assert.Equal(t, "$2", Postgres.bind(2))
	assert.Equal(t, "?", SQLite.bind(2))
}
