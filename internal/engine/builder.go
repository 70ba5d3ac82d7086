// Package engine holds the stateful side of the matrix: building a matrix from
// groups and a value source, deriving two-group columns, and the single-writer
// session engine that serves every matrix operation.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/domain/sample"
	"exprview/internal"
	"exprview/internal/metrics"
	"exprview/ports"

	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"
)

const (
	defaultFetchParallelism = 4
	defaultFetchChunkSize   = 500
	hintTripleLimit         = 3
)

// BuildRequest is everything a full matrix build depends on
type BuildRequest struct {
	Groups    []sample.Group   `json:"groups"`
	Probes    []string         `json:"probes"`
	ValueType matrix.ValueType `json:"value_type"`
}

// Fingerprint identifies the request content: group names and samples, probe
// list and value type
func (r BuildRequest) Fingerprint() core.Fingerprint {
	h := core.NewHasher().AddString(string(r.ValueType)).AddInt(len(r.Groups))
	for _, g := range r.Groups {
		h.AddString(g.Name).AddStrings(sample.IDs(g.Samples()))
	}
	return h.AddStrings(r.Probes).Sum()
}

// BuildStats describes how a build went
type BuildStats struct {
	Requested int `json:"requested"`
	Rows      int `json:"rows"`
	// Unknown probes are not on the platform
	Unknown int `json:"unknown"`
	// Unavailable probes are known but the value source had no data for them
	Unavailable int           `json:"unavailable"`
	Elapsed     time.Duration `json:"elapsed"`
}

// Dropped is the number of requested probes without a row
func (s BuildStats) Dropped() int {
	return s.Unknown + s.Unavailable
}

// BuilderOptions tunes value fetching
type BuilderOptions struct {
	// FetchParallelism bounds concurrent ValueSource calls
	FetchParallelism int
	// FetchChunkSize is the number of probes per ValueSource call
	FetchChunkSize int
}

// Builder produces the initial matrix for a set of groups and probes
type Builder struct {
	values   ports.ValueSource
	platform ports.Platform
	schema   sample.DataSchema
	opts     BuilderOptions
	logger   *internal.Logger
}

// NewBuilder creates a matrix builder
func NewBuilder(values ports.ValueSource, platform ports.Platform, schema sample.DataSchema, opts BuilderOptions) *Builder {
	if opts.FetchParallelism <= 0 {
		opts.FetchParallelism = defaultFetchParallelism
	}
	if opts.FetchChunkSize <= 0 {
		opts.FetchChunkSize = defaultFetchChunkSize
	}
	return &Builder{
		values:   values,
		platform: platform,
		schema:   schema,
		opts:     opts,
		logger:   internal.DefaultLogger.WithComponent("builder"),
	}
}

// Build fetches values and assembles a matrix with one data column per group
// and one row per requested probe, in request order. An empty probe list
// means every platform probe. Probes unknown to the platform, or for which the
// value source has nothing, are dropped and counted rather than failing the
// build.
func (b *Builder) Build(ctx context.Context, req BuildRequest) (*matrix.ManagedMatrix, BuildStats, error) {
	start := time.Now()
	var st BuildStats

	if err := checkGroupNames(req.Groups); err != nil {
		return nil, st, err
	}

	probes := dedupe(req.Probes)
	if len(probes) == 0 {
		all, err := b.platform.Probes(ctx)
		if err != nil {
			return nil, st, fmt.Errorf("list platform probes: %w", err)
		}
		probes = dedupe(all)
	}
	st.Requested = len(probes)

	annotations, err := b.platform.Annotations(ctx, probes)
	if err != nil {
		return nil, st, fmt.Errorf("load probe annotations: %w", err)
	}
	known := make([]string, 0, len(probes))
	for _, p := range probes {
		if _, ok := annotations[p]; ok {
			known = append(known, p)
		}
	}
	st.Unknown = len(probes) - len(known)

	measured := make([][]string, len(req.Groups))
	var sampleIDs []string
	seen := make(map[string]bool)
	for i, g := range req.Groups {
		measured[i] = sample.IDs(g.MeasuredSamples())
		for _, id := range measured[i] {
			if !seen[id] {
				seen[id] = true
				sampleIDs = append(sampleIDs, id)
			}
		}
	}

	values, err := b.fetch(ctx, req.ValueType, sampleIDs, known)
	if err != nil {
		return nil, st, err
	}

	rows := make([]matrix.Annotation, 0, len(known))
	rowValues := make([]map[string]float64, 0, len(known))
	for _, p := range known {
		v, ok := values[p]
		if !ok {
			st.Unavailable++
			continue
		}
		rows = append(rows, annotations[p])
		rowValues = append(rowValues, v)
	}
	st.Rows = len(rows)

	columns := make([]matrix.Column, len(req.Groups))
	for i, g := range req.Groups {
		columns[i] = b.column(g, measured[i], rowValues)
	}

	m, err := matrix.New(req.ValueType, rows, columns, st.Dropped())
	if err != nil {
		return nil, st, err
	}
	st.Elapsed = time.Since(start)
	metrics.ObserveBuild(string(req.ValueType), st.Elapsed, st.Dropped())

	if st.Rows == 0 {
		b.logger.Warn("No data available for %d requested probes over %d groups", st.Requested, len(req.Groups))
	} else if st.Dropped() > 0 {
		b.logger.Info("Built %d rows, dropped %d probes (%d unknown, %d unavailable)", st.Rows, st.Dropped(), st.Unknown, st.Unavailable)
	}
	b.logger.Debug("Matrix build took %s", st.Elapsed)
	return m, st, nil
}

// fetch loads values chunk by chunk with bounded parallelism. A chunk the
// source reports unavailable contributes no rows; any other failure aborts.
func (b *Builder) fetch(ctx context.Context, valueType matrix.ValueType, sampleIDs, probes []string) (map[string]map[string]float64, error) {
	out := make(map[string]map[string]float64, len(probes))
	if len(probes) == 0 {
		return out, nil
	}
	if len(sampleIDs) == 0 {
		// nothing to fetch: every known probe gets a row of absent cells
		for _, p := range probes {
			out[p] = map[string]float64{}
		}
		return out, nil
	}

	chunks := chunk(probes, b.opts.FetchChunkSize)
	results := make([]map[string]map[string]float64, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.FetchParallelism)
	for i, c := range chunks {
		g.Go(func() error {
			vals, err := b.values.Values(gctx, valueType, sampleIDs, c)
			if err != nil {
				if core.IsUpstreamError(err) {
					b.logger.Warn("Value source unavailable for %d probes: %v", len(c), err)
					return nil
				}
				return fmt.Errorf("fetch values: %w", err)
			}
			results[i] = vals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range results {
		for p, v := range r {
			out[p] = v
		}
	}
	return out, nil
}

// column averages each row over the group's measured samples. A row where
// no sample has a value is absent.
func (b *Builder) column(g sample.Group, sampleIDs []string, rowValues []map[string]float64) matrix.Column {
	c := matrix.Column{
		Info: matrix.ColumnInfo{
			Name:           g.Name,
			Hint:           g.Triples(b.schema, hintTripleLimit, ", "),
			Group:          g.Name,
			DefaultSortAsc: false,
		},
		Filter:       matrix.DefaultFilter(false),
		Values:       make([]matrix.ExpressionValue, len(rowValues)),
		SampleIDs:    sampleIDs,
		SampleValues: make([][]float64, len(rowValues)),
	}

	present := make([]float64, 0, len(sampleIDs))
	for r, vals := range rowValues {
		perSample := make([]float64, len(sampleIDs))
		present = present[:0]
		for i, id := range sampleIDs {
			v, ok := vals[id]
			if !ok || math.IsNaN(v) {
				perSample[i] = math.NaN()
				continue
			}
			perSample[i] = v
			present = append(present, v)
		}
		c.SampleValues[r] = perSample

		mean, err := stats.Mean(present)
		if err != nil {
			c.Values[r] = matrix.AbsentValue()
			continue
		}
		c.Values[r] = matrix.PresentValue(mean)
	}
	return c
}

func checkGroupNames(groups []sample.Group) error {
	seen := make(map[string]bool, len(groups))
	for _, g := range groups {
		if g.Name == "" {
			return fmt.Errorf("%w: group name is required", core.ErrInvalidInput)
		}
		if seen[g.Name] {
			return fmt.Errorf("%w: duplicate group name %q", core.ErrInvalidInput, g.Name)
		}
		seen[g.Name] = true
	}
	return nil
}

// dedupe drops repeated probes, keeping first occurrences in order
func dedupe(probes []string) []string {
	seen := make(map[string]bool, len(probes))
	out := make([]string, 0, len(probes))
	for _, p := range probes {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func chunk(items []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
