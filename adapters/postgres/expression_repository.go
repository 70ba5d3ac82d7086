package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/domain/sample"
	"exprview/internal"
	"exprview/ports"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ExpressionRepository serves samples, probes and values from PostgreSQL.
// It implements ports.Dataset.
type ExpressionRepository struct {
	db     *sqlx.DB
	logger *internal.Logger
}

// NewExpressionRepository creates a new PostgreSQL expression repository
func NewExpressionRepository(db *sqlx.DB) *ExpressionRepository {
	return &ExpressionRepository{db: db, logger: internal.DefaultLogger.WithComponent("postgres")}
}

type sampleRow struct {
	ID         string `db:"id"`
	Attributes []byte `db:"attributes"`
}

type probeRow struct {
	Probe       string         `db:"probe"`
	Title       string         `db:"title"`
	GeneIDs     pq.StringArray `db:"gene_ids"`
	GeneSymbols pq.StringArray `db:"gene_symbols"`
}

type valueRow struct {
	Probe    string  `db:"probe"`
	SampleID string  `db:"sample_id"`
	Value    float64 `db:"value"`
}

// Samples lists every sample in insertion order
func (r *ExpressionRepository) Samples(ctx context.Context) ([]sample.Sample, error) {
	var rows []sampleRow
	if err := r.db.SelectContext(ctx, &rows, `SELECT id, attributes FROM samples ORDER BY position`); err != nil {
		return nil, core.NewUpstreamError("postgres", err)
	}
	out := make([]sample.Sample, 0, len(rows))
	for _, row := range rows {
		var attrs []sample.Attribute
		if err := json.Unmarshal(row.Attributes, &attrs); err != nil {
			return nil, fmt.Errorf("sample %s: decode attributes: %w", row.ID, err)
		}
		out = append(out, sample.NewSample(row.ID, attrs...))
	}
	return out, nil
}

// Probes lists every probe in insertion order
func (r *ExpressionRepository) Probes(ctx context.Context) ([]string, error) {
	var probes []string
	if err := r.db.SelectContext(ctx, &probes, `SELECT probe FROM probes ORDER BY position`); err != nil {
		return nil, core.NewUpstreamError("postgres", err)
	}
	return probes, nil
}

// Annotations describes the known probes among those requested
func (r *ExpressionRepository) Annotations(ctx context.Context, probes []string) (map[string]matrix.Annotation, error) {
	var rows []probeRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT probe, title, gene_ids, gene_symbols
		FROM probes
		WHERE probe = ANY($1)
	`, pq.Array(probes))
	if err != nil {
		return nil, core.NewUpstreamError("postgres", err)
	}
	out := make(map[string]matrix.Annotation, len(rows))
	for _, row := range rows {
		out[row.Probe] = matrix.Annotation{
			Probe:       row.Probe,
			Title:       row.Title,
			GeneIDs:     []string(row.GeneIDs),
			GeneSymbols: []string(row.GeneSymbols),
		}
	}
	return out, nil
}

// Values returns the stored values of the requested samples and probes.
// Probes without a stored value for any of the samples are left out.
func (r *ExpressionRepository) Values(ctx context.Context, valueType matrix.ValueType, sampleIDs []string, probes []string) (map[string]map[string]float64, error) {
	out := make(map[string]map[string]float64)
	if len(sampleIDs) == 0 || len(probes) == 0 {
		return out, nil
	}

	var rows []valueRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT probe, sample_id, value
		FROM expression_values
		WHERE value_type = $1 AND probe = ANY($2) AND sample_id = ANY($3)
	`, string(valueType), pq.Array(probes), pq.Array(sampleIDs))
	if err != nil {
		return nil, core.NewUpstreamError("postgres", err)
	}
	for _, row := range rows {
		values, ok := out[row.Probe]
		if !ok {
			values = make(map[string]float64)
			out[row.Probe] = values
		}
		values[row.SampleID] = row.Value
	}
	return out, nil
}

// ImportStats counts what ImportDataset wrote
type ImportStats struct {
	Samples int `json:"samples"`
	Probes  int `json:"probes"`
	Values  int `json:"values"`
}

// ImportDataset copies a dataset into the database in one transaction.
// Existing rows with the same keys are overwritten.
func (r *ExpressionRepository) ImportDataset(ctx context.Context, ds ports.Dataset) (ImportStats, error) {
	var st ImportStats
	samples, err := ds.Samples(ctx)
	if err != nil {
		return st, err
	}
	probes, err := ds.Probes(ctx)
	if err != nil {
		return st, err
	}
	annotations, err := ds.Annotations(ctx, probes)
	if err != nil {
		return st, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return st, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range samples {
		attrs, err := json.Marshal(s.Attributes)
		if err != nil {
			return st, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO samples (id, attributes) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET attributes = EXCLUDED.attributes
		`, s.ID, attrs)
		if err != nil {
			return st, fmt.Errorf("insert sample %s: %w", s.ID, err)
		}
		st.Samples++
	}

	for _, p := range probes {
		a := annotations[p]
		_, err = tx.ExecContext(ctx, `
			INSERT INTO probes (probe, title, gene_ids, gene_symbols) VALUES ($1, $2, $3, $4)
			ON CONFLICT (probe) DO UPDATE
			SET title = EXCLUDED.title, gene_ids = EXCLUDED.gene_ids, gene_symbols = EXCLUDED.gene_symbols
		`, p, a.Title, pq.Array(a.GeneIDs), pq.Array(a.GeneSymbols))
		if err != nil {
			return st, fmt.Errorf("insert probe %s: %w", p, err)
		}
		st.Probes++
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO expression_values (value_type, probe, sample_id, value) VALUES ($1, $2, $3, $4)
		ON CONFLICT (value_type, probe, sample_id) DO UPDATE SET value = EXCLUDED.value
	`)
	if err != nil {
		return st, err
	}
	defer stmt.Close()

	ids := sample.IDs(samples)
	for _, vt := range []matrix.ValueType{matrix.Absolute, matrix.Folds} {
		values, err := ds.Values(ctx, vt, ids, probes)
		if core.IsUpstreamError(err) {
			r.logger.Warn("Skipping %s values: %v", vt, err)
			continue
		}
		if err != nil {
			return st, err
		}
		for probe, row := range values {
			for sid, v := range row {
				if _, err := stmt.ExecContext(ctx, string(vt), probe, sid, v); err != nil {
					return st, fmt.Errorf("insert %s value %s/%s: %w", vt, probe, sid, err)
				}
				st.Values++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return st, err
	}
	r.logger.Info("Imported %d samples, %d probes, %d values", st.Samples, st.Probes, st.Values)
	return st, nil
}
