// Package blob provides the stores prepared downloads are written to: a local
// directory served by the HTTP layer, and an S3 bucket with presigned URLs.
package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"exprview/domain/core"
	"exprview/ports"
)

// LocalStore keeps downloads under a base directory as <id>/<name> and hands
// out URLs below a public prefix, e.g. /downloads/<id>
type LocalStore struct {
	basePath  string
	urlPrefix string
	ttl       time.Duration
}

// NewLocalStore creates a local download store. A zero ttl keeps downloads
// until CleanupExpired is called with an explicit age.
func NewLocalStore(basePath, urlPrefix string, ttl time.Duration) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalStore{
		basePath:  basePath,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		ttl:       ttl,
	}, nil
}

// Put writes a download to disk
func (s *LocalStore) Put(ctx context.Context, id core.DownloadID, name, contentType string, body io.Reader) (ports.Download, error) {
	if _, err := core.ParseDownloadID(id.String()); err != nil {
		return ports.Download{}, err
	}
	name = cleanName(name)
	dir := filepath.Join(s.basePath, id.String())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ports.Download{}, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	filePath := filepath.Join(dir, name)
	f, err := os.Create(filePath)
	if err != nil {
		return ports.Download{}, fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return ports.Download{}, fmt.Errorf("failed to write file %s: %w", filePath, err)
	}
	if err := f.Close(); err != nil {
		return ports.Download{}, fmt.Errorf("failed to write file %s: %w", filePath, err)
	}

	d := ports.Download{
		ID:   id,
		Name: name,
		URL:  s.urlPrefix + "/" + path.Join(id.String(), name),
	}
	if s.ttl > 0 {
		d.ExpiresAt = time.Now().Add(s.ttl)
	}
	return d, nil
}

// Open returns the stored file and its name
func (s *LocalStore) Open(ctx context.Context, id core.DownloadID) (io.ReadCloser, string, error) {
	if _, err := core.ParseDownloadID(id.String()); err != nil {
		return nil, "", err
	}
	dir := filepath.Join(s.basePath, id.String())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", core.ErrDownloadNotFound, id)
		}
		return nil, "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, "", fmt.Errorf("failed to open download %s: %w", id, err)
		}
		return f, e.Name(), nil
	}
	return nil, "", fmt.Errorf("%w: %s", core.ErrDownloadNotFound, id)
}

// CleanupExpired removes downloads older than the given age
func (s *LocalStore) CleanupExpired(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return 0, fmt.Errorf("failed to list downloads: %w", err)
	}
	removed := 0
	for _, e := range entries {
		info, err := e.Info()
		if err != nil || !e.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.basePath, e.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove expired download %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

func cleanName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "download"
	}
	return name
}
