package ports

import (
	"context"
	"io"
	"time"

	"exprview/domain/core"
	"exprview/domain/matrix"
)

// Download is the opaque handle returned by prepareDownload
type Download struct {
	ID        core.DownloadID `json:"id"`
	Name      string          `json:"name"`
	URL       string          `json:"url"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
}

// Expired reports whether the handle can no longer be served
func (d Download) Expired(now time.Time) bool {
	return !d.ExpiresAt.IsZero() && !now.Before(d.ExpiresAt)
}

// DownloadStore keeps prepared export files and hands out URLs for them
type DownloadStore interface {
	Put(ctx context.Context, id core.DownloadID, name string, contentType string, body io.Reader) (Download, error)
	// Open returns the stored file and its name, or core.ErrDownloadNotFound
	// for unknown ids
	Open(ctx context.Context, id core.DownloadID) (io.ReadCloser, string, error)
}

// ExportOptions selects the layout of an exported matrix
type ExportOptions struct {
	// IndividualSamples writes one column per sample instead of one per group
	IndividualSamples bool
}

// MatrixExporter writes the visible rows of a matrix, in view order, to a file
type MatrixExporter interface {
	Export(w io.Writer, m *matrix.ManagedMatrix, opts ExportOptions) error
	// FileName returns the download name for an export
	FileName(opts ExportOptions) string
	ContentType() string
}
