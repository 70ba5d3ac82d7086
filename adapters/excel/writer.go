package excel

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/internal"
	"exprview/ports"

	"github.com/xuri/excelize/v2"
)

const (
	matrixSheet  = "matrix"
	columnsSheet = "columns"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Exporter writes a matrix view as an xlsx workbook. It implements
// ports.MatrixExporter.
type Exporter struct {
	logger *internal.Logger
}

// NewExporter creates a workbook exporter
func NewExporter() *Exporter {
	return &Exporter{logger: internal.DefaultLogger.WithComponent("excel")}
}

// FileName is the download name for a view export
func (e *Exporter) FileName(opts ports.ExportOptions) string {
	if opts.IndividualSamples {
		return "expression_matrix_samples.xlsx"
	}
	return "expression_matrix.xlsx"
}

// ContentType is the MIME type of the produced file
func (e *Exporter) ContentType() string { return xlsxContentType }

type exportColumn struct {
	header string
	// column is the matrix column the values come from
	column int
	// sample is the index into SampleIDs, or -1 for the averaged cell
	sample int
}

// Export writes the rows of the current view, filtered and sorted, with one
// column per matrix column. With IndividualSamples every data column is
// expanded into one column per contributing sample.
func (e *Exporter) Export(w io.Writer, m *matrix.ManagedMatrix, opts ports.ExportOptions) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", matrixSheet); err != nil {
		return err
	}

	cols, data, err := exportColumns(m, opts)
	if err != nil {
		return err
	}

	sw, err := f.NewStreamWriter(matrixSheet)
	if err != nil {
		return err
	}
	header := []interface{}{"Probe", "Title", "Gene symbols"}
	for _, c := range cols {
		header = append(header, c.header)
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	view := m.View()
	for i, loaded := range view {
		row := make([]interface{}, 0, len(header))
		a := m.Annotations()[loaded]
		row = append(row, a.Probe, a.Title, strings.Join(a.GeneSymbols, ", "))
		for _, c := range cols {
			row = append(row, cellValue(data[c.column], loaded, c.sample))
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}

	if err := writeColumnSheet(f, m); err != nil {
		return err
	}
	e.logger.Debug("Exported %d rows, %d columns (individual samples: %v)", len(view), len(cols), opts.IndividualSamples)
	return f.Write(w)
}

func exportColumns(m *matrix.ManagedMatrix, opts ports.ExportOptions) ([]exportColumn, []matrix.Column, error) {
	data := make([]matrix.Column, m.NumColumns())
	var cols []exportColumn
	for i := 0; i < m.NumColumns(); i++ {
		c, err := m.ColumnData(i)
		if err != nil {
			return nil, nil, err
		}
		data[i] = c
		if opts.IndividualSamples && c.Info.Synthetic == nil {
			for s, id := range c.SampleIDs {
				cols = append(cols, exportColumn{header: fmt.Sprintf("%s: %s", c.Info.Name, id), column: i, sample: s})
			}
			continue
		}
		cols = append(cols, exportColumn{header: c.Info.Name, column: i, sample: -1})
	}
	return cols, data, nil
}

// cellValue returns nil for absent cells so they stay empty in the sheet
func cellValue(c matrix.Column, loaded, sample int) interface{} {
	if sample < 0 {
		v := c.Values[loaded]
		if !v.Present {
			return nil
		}
		return v.Value
	}
	if loaded >= len(c.SampleValues) || sample >= len(c.SampleValues[loaded]) {
		return nil
	}
	v := c.SampleValues[loaded][sample]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func writeColumnSheet(f *excelize.File, m *matrix.ManagedMatrix) error {
	if _, err := f.NewSheet(columnsSheet); err != nil {
		return err
	}
	rows := [][]interface{}{{"Column", "Group", "Description", "Samples", "Filter"}}
	for i := 0; i < m.NumColumns(); i++ {
		c, err := m.ColumnData(i)
		if err != nil {
			return err
		}
		filter := ""
		if c.Filter.Active {
			filter = fmt.Sprintf("%s %g", c.Filter.Type, c.Filter.Threshold)
		}
		rows = append(rows, []interface{}{c.Info.Name, c.Info.Group, c.Info.Hint, strings.Join(c.SampleIDs, ", "), filter})
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(columnsSheet, cell, &r); err != nil {
			return err
		}
	}
	return nil
}

// WriteDatasetWorkbook writes ds in the layout LoadWorkbook reads. A value
// representation the dataset cannot serve is left out.
func WriteDatasetWorkbook(ctx context.Context, ds ports.Dataset, cfg WorkbookConfig) error {
	samples, err := ds.Samples(ctx)
	if err != nil {
		return err
	}
	probes, err := ds.Probes(ctx)
	if err != nil {
		return err
	}
	annotations, err := ds.Annotations(ctx, probes)
	if err != nil {
		return err
	}
	sep := cfg.ListSeparator
	if sep == "" {
		sep = ";"
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", cfg.SamplesSheet); err != nil {
		return err
	}

	// samples: union of attribute names in first-seen order
	var attrNames []string
	seen := make(map[string]bool)
	for _, s := range samples {
		for _, a := range s.Attributes {
			if !seen[a.Name] {
				seen[a.Name] = true
				attrNames = append(attrNames, a.Name)
			}
		}
	}
	sampleRows := [][]interface{}{append([]interface{}{"sample_id"}, toCells(attrNames)...)}
	sampleIDs := make([]string, len(samples))
	for i, s := range samples {
		sampleIDs[i] = s.ID
		row := []interface{}{s.ID}
		for _, name := range attrNames {
			row = append(row, s.Get(name))
		}
		sampleRows = append(sampleRows, row)
	}
	if err := writeRows(f, cfg.SamplesSheet, sampleRows); err != nil {
		return err
	}

	probeRows := [][]interface{}{{"probe", "title", "gene_ids", "gene_symbols"}}
	for _, p := range probes {
		a := annotations[p]
		probeRows = append(probeRows, []interface{}{p, a.Title, strings.Join(a.GeneIDs, sep), strings.Join(a.GeneSymbols, sep)})
	}
	if _, err := f.NewSheet(cfg.ProbesSheet); err != nil {
		return err
	}
	if err := writeRows(f, cfg.ProbesSheet, probeRows); err != nil {
		return err
	}

	for _, vs := range []struct {
		valueType matrix.ValueType
		name      string
	}{{matrix.Absolute, cfg.AbsoluteSheet}, {matrix.Folds, cfg.FoldsSheet}} {
		values, err := ds.Values(ctx, vs.valueType, sampleIDs, probes)
		if core.IsUpstreamError(err) {
			continue
		}
		if err != nil {
			return err
		}
		rows := [][]interface{}{append([]interface{}{"probe"}, toCells(sampleIDs)...)}
		for _, p := range probes {
			row := []interface{}{p}
			for _, id := range sampleIDs {
				if v, ok := values[p][id]; ok {
					row = append(row, v)
				} else {
					row = append(row, nil)
				}
			}
			rows = append(rows, row)
		}
		if _, err := f.NewSheet(vs.name); err != nil {
			return err
		}
		if err := writeRows(f, vs.name, rows); err != nil {
			return err
		}
	}
	return f.SaveAs(cfg.Path)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return err
		}
	}
	return nil
}

func toCells(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
