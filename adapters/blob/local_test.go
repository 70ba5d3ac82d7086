package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"exprview/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutOpen(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "/downloads/", time.Hour)
	require.NoError(t, err)

	id := core.NewDownloadID()
	d, err := store.Put(ctx, id, "matrix.xlsx", "application/octet-stream", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.Equal(t, "/downloads/"+id.String()+"/matrix.xlsx", d.URL)
	assert.False(t, d.Expired(time.Now()))
	assert.True(t, d.Expired(time.Now().Add(2*time.Hour)))

	rc, name, err := store.Open(ctx, id)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, "matrix.xlsx", name)
}

func TestLocalStore_NameIsConfinedToItsDirectory(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStore(base, "/downloads", 0)
	require.NoError(t, err)

	id := core.NewDownloadID()
	d, err := store.Put(context.Background(), id, "../../escape.csv", "text/csv", strings.NewReader("x"))
	require.NoError(t, err)
	assert.Equal(t, "escape.csv", d.Name)
	assert.True(t, d.ExpiresAt.IsZero())
	_, err = os.Stat(filepath.Join(base, id.String(), "escape.csv"))
	assert.NoError(t, err)
}

func TestLocalStore_OpenUnknown(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/downloads", 0)
	require.NoError(t, err)

	_, _, err = store.Open(context.Background(), core.NewDownloadID())
	assert.ErrorIs(t, err, core.ErrDownloadNotFound)

	_, _, err = store.Open(context.Background(), core.DownloadID("../etc"))
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestLocalStore_CleanupExpired(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	store, err := NewLocalStore(base, "/downloads", 0)
	require.NoError(t, err)

	old := core.NewDownloadID()
	_, err = store.Put(ctx, old, "old.csv", "text/csv", strings.NewReader("x"))
	require.NoError(t, err)
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(base, old.String()), past, past))

	fresh := core.NewDownloadID()
	_, err = store.Put(ctx, fresh, "new.csv", "text/csv", strings.NewReader("y"))
	require.NoError(t, err)

	removed, err := store.CleanupExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	_, _, err = store.Open(ctx, old)
	assert.ErrorIs(t, err, core.ErrDownloadNotFound)
	_, _, err = store.Open(ctx, fresh)
	assert.NoError(t, err)
}
