package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/domain/sample"
	"exprview/internal"
	"exprview/internal/engine"
	"exprview/internal/report"
	"exprview/internal/session"
	"exprview/ports"
)

// GroupRequest names a group and the samples it is built from
type GroupRequest struct {
	Name      string   `json:"name"`
	Color     string   `json:"color,omitempty"`
	SampleIDs []string `json:"sample_ids"`
	// RequireSamples rejects a group whose selection is empty
	RequireSamples bool `json:"require_samples,omitempty"`
}

// LoadRequest is the input of LoadMatrix
type LoadRequest struct {
	Groups []GroupRequest `json:"groups"`
	// Probes restricts the matrix to these probes; empty means the whole platform
	Probes    []string `json:"probes,omitempty"`
	ValueType string   `json:"value_type,omitempty"`
}

type preparedDownload struct {
	session  core.SessionID
	download ports.Download
}

// MatrixService is the operation table of the matrix engine, independent of
// any transport. Every session scoped operation resolves the session first
// and fails with core.ErrSessionNotFound for unknown ids.
type MatrixService struct {
	sessions  *session.Manager
	catalog   ports.SampleCatalog
	exporter  ports.MatrixExporter
	downloads ports.DownloadStore
	logger    *internal.Logger

	mu       sync.Mutex
	prepared map[core.Fingerprint]preparedDownload
}

// NewMatrixService creates the service. exporter and downloads may be nil,
// in which case PrepareDownload fails as a precondition.
func NewMatrixService(sessions *session.Manager, catalog ports.SampleCatalog, exporter ports.MatrixExporter, downloads ports.DownloadStore) *MatrixService {
	return &MatrixService{
		sessions:  sessions,
		catalog:   catalog,
		exporter:  exporter,
		downloads: downloads,
		logger:    internal.DefaultLogger.WithComponent("matrix-service"),
		prepared:  make(map[core.Fingerprint]preparedDownload),
	}
}

// Schema returns the data schema samples are classified with
func (s *MatrixService) Schema() sample.DataSchema {
	return s.sessions.Schema()
}

// OpenSession creates an empty session
func (s *MatrixService) OpenSession() core.SessionID {
	return s.sessions.Create().ID
}

// CloseSession disposes of a session and forgets its prepared downloads
func (s *MatrixService) CloseSession(id core.SessionID) error {
	if err := s.sessions.Close(id); err != nil {
		return err
	}
	s.forgetDownloads(id)
	return nil
}

// ExpireIdle closes sessions idle for longer than maxIdle, forgets their
// prepared downloads and returns how many sessions were closed
func (s *MatrixService) ExpireIdle(maxIdle time.Duration) int {
	closed := s.sessions.Expire(maxIdle)
	for _, id := range closed {
		s.forgetDownloads(id)
	}
	return len(closed)
}

func (s *MatrixService) forgetDownloads(id core.SessionID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.prepared {
		if p.session == id {
			delete(s.prepared, k)
		}
	}
}

// Sessions lists the open session ids, oldest first
func (s *MatrixService) Sessions() []core.SessionID {
	open := s.sessions.List()
	ids := make([]core.SessionID, len(open))
	for i, sess := range open {
		ids[i] = sess.ID
	}
	return ids
}

// Samples lists the samples groups can be defined over
func (s *MatrixService) Samples(ctx context.Context) ([]sample.Sample, error) {
	return s.catalog.Samples(ctx)
}

// Units aggregates the catalog into units. When majors is not empty only
// samples with one of those major values are included.
func (s *MatrixService) Units(ctx context.Context, majors []string) ([]sample.Unit, error) {
	samples, err := s.catalog.Samples(ctx)
	if err != nil {
		return nil, err
	}
	schema := s.Schema()
	if len(majors) > 0 {
		keep := make(map[string]bool, len(majors))
		for _, m := range majors {
			keep[m] = true
		}
		filtered := samples[:0:0]
		for _, smp := range samples {
			if keep[smp.Get(schema.MajorParameter)] {
				filtered = append(filtered, smp)
			}
		}
		samples = filtered
	}
	return sample.FormUnits(schema, samples), nil
}

// LoadMatrix resolves the requested groups against the sample catalog and
// rebuilds the session's matrix
func (s *MatrixService) LoadMatrix(ctx context.Context, id core.SessionID, req LoadRequest) (matrix.ManagedMatrixInfo, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	valueType, err := matrix.ParseValueType(req.ValueType)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	groups, err := s.resolveGroups(ctx, req.Groups)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	info, err := s.sessions.Load(ctx, sess, engine.BuildRequest{Groups: groups, Probes: req.Probes, ValueType: valueType})
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	s.forgetDownloads(id)
	return info, nil
}

func (s *MatrixService) resolveGroups(ctx context.Context, reqs []GroupRequest) ([]sample.Group, error) {
	all, err := s.catalog.Samples(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]sample.Sample, len(all))
	for _, smp := range all {
		byID[smp.ID] = smp
	}

	schema := s.Schema()
	groups := make([]sample.Group, 0, len(reqs))
	for _, r := range reqs {
		picked := make([]sample.Sample, 0, len(r.SampleIDs))
		for _, sid := range r.SampleIDs {
			smp, ok := byID[sid]
			if !ok {
				return nil, fmt.Errorf("%w: group %q: unknown sample %q", core.ErrInvalidInput, r.Name, sid)
			}
			picked = append(picked, smp)
		}
		g, err := sample.BuildGroup(schema, sample.GroupSpec{
			Name:           r.Name,
			Color:          r.Color,
			Samples:        picked,
			RequireSamples: r.RequireSamples,
		})
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

// MatrixRows reads a window of the view and the visible row count it was
// read against. A non-zero sort key different from the current one re-sorts
// first.
func (s *MatrixService) MatrixRows(id core.SessionID, offset, length int, key matrix.SortKey, ascending bool) ([]matrix.ExpressionRow, int, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, 0, err
	}
	return sess.Engine.MatrixRows(offset, length, key, ascending)
}

// ColorScale computes the heatmap scale of a column over the visible rows
func (s *MatrixService) ColorScale(id core.SessionID, column int) (matrix.ColorScale, error) {
	m, err := s.matrix(id)
	if err != nil {
		return matrix.ColorScale{}, err
	}
	if column < 0 || column >= m.NumColumns() {
		return matrix.ColorScale{}, core.NewColumnOutOfRangeError(column, m.NumColumns())
	}
	return matrix.ColumnColorScale(m.AllRows(), column), nil
}

// SelectProbes restricts the visible rows to a probe subset
func (s *MatrixService) SelectProbes(id core.SessionID, probes []string) (matrix.ManagedMatrixInfo, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	return sess.Engine.SelectProbes(probes)
}

// AddTwoGroupTest appends a synthetic column comparing two data columns
func (s *MatrixService) AddTwoGroupTest(id core.SessionID, kind string, a, b int) (matrix.ManagedMatrixInfo, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	k, err := matrix.ParseTestKind(kind)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	return sess.Engine.AddTwoGroupTest(k, a, b)
}

// RemoveTwoGroupTests drops every synthetic column
func (s *MatrixService) RemoveTwoGroupTests(id core.SessionID) (matrix.ManagedMatrixInfo, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	return sess.Engine.RemoveTwoGroupTests()
}

// SetColumnFilter replaces a column's filter; nil clears it
func (s *MatrixService) SetColumnFilter(id core.SessionID, column int, filter *matrix.ColumnFilter) (matrix.ManagedMatrixInfo, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	return sess.Engine.SetColumnFilter(column, filter)
}

// Info returns the session's matrix metadata
func (s *MatrixService) Info(id core.SessionID) (matrix.ManagedMatrixInfo, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	return sess.Engine.Info()
}

// Groups returns the groups the session's matrix was built from
func (s *MatrixService) Groups(id core.SessionID) ([]sample.Group, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Engine.Groups(), nil
}

// Majors lists the distinct major values across the session's groups, in
// schema order
func (s *MatrixService) Majors(id core.SessionID) ([]string, error) {
	groups, err := s.Groups(id)
	if err != nil {
		return nil, err
	}
	schema := s.Schema()
	majors := sample.CollectAll(groups, schema.MajorParameter)
	schema.Sort(schema.MajorParameter, majors)
	return majors, nil
}

func (s *MatrixService) matrix(id core.SessionID) (*matrix.ManagedMatrix, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	return sess.Engine.Matrix()
}

// PrepareDownload exports the current view and returns a handle to it.
// Preparing the same state twice returns the same handle while it is valid.
func (s *MatrixService) PrepareDownload(ctx context.Context, id core.SessionID, individualSamples bool) (ports.Download, error) {
	if s.exporter == nil || s.downloads == nil {
		return ports.Download{}, fmt.Errorf("%w: downloads are not configured", core.ErrPrecondition)
	}
	sess, err := s.sessions.Get(id)
	if err != nil {
		return ports.Download{}, err
	}
	m, req, err := sess.Engine.Snapshot()
	if err != nil {
		return ports.Download{}, err
	}
	key := downloadKey(id, m, req, individualSamples)

	now := time.Now()
	s.mu.Lock()
	for k, p := range s.prepared {
		if p.download.Expired(now) {
			delete(s.prepared, k)
		}
	}
	p, ok := s.prepared[key]
	s.mu.Unlock()
	if ok {
		s.logger.Debug("Reusing download %s for session %s", p.download.ID, id)
		return p.download, nil
	}

	opts := ports.ExportOptions{IndividualSamples: individualSamples}
	var buf bytes.Buffer
	if err := s.exporter.Export(&buf, m, opts); err != nil {
		return ports.Download{}, fmt.Errorf("export matrix: %w", err)
	}
	d, err := s.downloads.Put(ctx, core.NewDownloadID(), s.exporter.FileName(opts), s.exporter.ContentType(), &buf)
	if err != nil {
		return ports.Download{}, err
	}

	s.mu.Lock()
	s.prepared[key] = preparedDownload{session: id, download: d}
	s.mu.Unlock()
	s.logger.Info("Prepared download %s for session %s (%d rows)", d.ID, id, m.NumRows())
	return d, nil
}

// downloadKey identifies everything an export depends on: the build input
// with its group composition, the synthetic derivations and the view
func downloadKey(id core.SessionID, m *matrix.ManagedMatrix, req engine.BuildRequest, individualSamples bool) core.Fingerprint {
	h := core.NewHasher().
		AddString(id.String()).
		AddString(req.Fingerprint().String()).
		AddString(m.Fingerprint().String())
	for _, g := range req.Groups {
		h.AddString(g.Color)
	}
	for _, spec := range m.SyntheticSpecs() {
		h.AddString(string(spec.Kind)).AddString(spec.GroupA).AddString(spec.GroupB)
	}
	return h.AddBool(individualSamples).Sum()
}

// OpenDownload streams a prepared file and returns its name
func (s *MatrixService) OpenDownload(ctx context.Context, downloadID string) (io.ReadCloser, string, error) {
	if s.downloads == nil {
		return nil, "", fmt.Errorf("%w: downloads are not configured", core.ErrPrecondition)
	}
	did, err := core.ParseDownloadID(downloadID)
	if err != nil {
		return nil, "", err
	}
	return s.downloads.Open(ctx, did)
}

// Save stores the session's reproducible state
func (s *MatrixService) Save(ctx context.Context, id core.SessionID) (session.Snapshot, error) {
	return s.sessions.Save(ctx, id)
}

// Resume reopens a saved session
func (s *MatrixService) Resume(ctx context.Context, id core.SessionID) (matrix.ManagedMatrixInfo, error) {
	_, info, err := s.sessions.Resume(ctx, id)
	if err != nil {
		return matrix.ManagedMatrixInfo{}, err
	}
	s.forgetDownloads(id)
	return info, nil
}

// SavedSessions lists stored snapshots, most recent first
func (s *MatrixService) SavedSessions(ctx context.Context, limit int) ([]session.SavedSession, error) {
	return s.sessions.Saved(ctx, limit)
}

// ForgetSession deletes a session's stored snapshot. The live session, if
// any, is not affected.
func (s *MatrixService) ForgetSession(ctx context.Context, id core.SessionID) error {
	return s.sessions.Forget(ctx, id)
}

// Report renders the session's matrix summary as Markdown, or HTML when
// asHTML is set
func (s *MatrixService) Report(id core.SessionID, asHTML bool) ([]byte, error) {
	sess, err := s.sessions.Get(id)
	if err != nil {
		return nil, err
	}
	info, err := sess.Engine.Info()
	if err != nil {
		return nil, err
	}
	in := report.Input{
		Title:  fmt.Sprintf("Session %s", id),
		Info:   info,
		Groups: sess.Engine.Groups(),
		Schema: s.Schema(),
	}
	if st, err := sess.Engine.LastBuild(); err == nil {
		in.Requested = st.Requested
		in.Unavailable = st.Unavailable
	}
	if asHTML {
		return report.HTML(in), nil
	}
	return report.Markdown(in), nil
}
