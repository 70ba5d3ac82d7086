package excel

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/domain/sample"
)

// WorkbookDataset is an expression dataset read once from a workbook and
// served from memory. It implements ports.Dataset.
type WorkbookDataset struct {
	samples     []sample.Sample
	probes      []string
	annotations map[string]matrix.Annotation
	// values[valueType][probe][sample]
	values map[matrix.ValueType]map[string]map[string]float64
}

// LoadWorkbook reads a workbook laid out as described by cfg: a samples sheet
// (sample_id plus one column per attribute), a probes sheet (probe, title,
// gene_ids, gene_symbols) and one value sheet per representation whose first
// column is the probe and whose remaining headers are sample ids.
func LoadWorkbook(cfg WorkbookConfig) (*WorkbookDataset, error) {
	reader := NewDataReader(cfg.Path)
	sheets, err := reader.ReadSheets(cfg.SamplesSheet, cfg.ProbesSheet, cfg.AbsoluteSheet, cfg.FoldsSheet)
	if err != nil {
		return nil, err
	}

	samplesSheet, ok := sheets[cfg.SamplesSheet]
	if !ok {
		return nil, fmt.Errorf("workbook %s has no %q sheet", cfg.Path, cfg.SamplesSheet)
	}
	ds := &WorkbookDataset{
		annotations: make(map[string]matrix.Annotation),
		values:      make(map[matrix.ValueType]map[string]map[string]float64),
	}
	if err := ds.readSamples(samplesSheet); err != nil {
		return nil, err
	}

	sep := cfg.ListSeparator
	if sep == "" {
		sep = ";"
	}
	if probes, ok := sheets[cfg.ProbesSheet]; ok {
		ds.readProbes(probes, sep)
	}

	valueSheets := []struct {
		valueType matrix.ValueType
		name      string
	}{{matrix.Absolute, cfg.AbsoluteSheet}, {matrix.Folds, cfg.FoldsSheet}}
	for _, vs := range valueSheets {
		valueType, name := vs.valueType, vs.name
		sheet, ok := sheets[name]
		if !ok {
			continue
		}
		vals, err := readValues(name, sheet)
		if err != nil {
			return nil, err
		}
		ds.values[valueType] = vals
		// probes without an annotation row are still part of the platform
		for _, row := range sheet.Cells {
			if len(row) > 0 && row[0] != "" {
				ds.addProbe(matrix.Annotation{Probe: row[0]})
			}
		}
	}
	if len(ds.values) == 0 {
		return nil, fmt.Errorf("workbook %s has neither %q nor %q sheet", cfg.Path, cfg.AbsoluteSheet, cfg.FoldsSheet)
	}
	return ds, nil
}

func (ds *WorkbookDataset) readSamples(sheet *SheetData) error {
	if len(sheet.Headers) == 0 || !strings.EqualFold(sheet.Headers[0], "sample_id") {
		return fmt.Errorf("samples sheet must start with a sample_id column")
	}
	seen := make(map[string]bool)
	for _, row := range sheet.Cells {
		id := row[0]
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		attrs := make([]sample.Attribute, 0, len(row)-1)
		for j := 1; j < len(row); j++ {
			if sheet.Headers[j] == "" || row[j] == "" {
				continue
			}
			attrs = append(attrs, sample.Attribute{Name: sheet.Headers[j], Value: row[j]})
		}
		ds.samples = append(ds.samples, sample.NewSample(id, attrs...))
	}
	return nil
}

func (ds *WorkbookDataset) readProbes(sheet *SheetData, sep string) {
	for _, row := range sheet.Rows {
		probe := row["probe"]
		if probe == "" {
			continue
		}
		ds.addProbe(matrix.Annotation{
			Probe:       probe,
			Title:       row["title"],
			GeneIDs:     splitList(row["gene_ids"], sep),
			GeneSymbols: splitList(row["gene_symbols"], sep),
		})
	}
}

func (ds *WorkbookDataset) addProbe(a matrix.Annotation) {
	if _, ok := ds.annotations[a.Probe]; ok {
		return
	}
	ds.annotations[a.Probe] = a
	ds.probes = append(ds.probes, a.Probe)
}

func readValues(name string, sheet *SheetData) (map[string]map[string]float64, error) {
	out := make(map[string]map[string]float64, len(sheet.Cells))
	for i, row := range sheet.Cells {
		probe := row[0]
		if probe == "" {
			continue
		}
		vals := make(map[string]float64, len(row)-1)
		for j := 1; j < len(row); j++ {
			if row[j] == "" || sheet.Headers[j] == "" {
				continue
			}
			v, err := strconv.ParseFloat(row[j], 64)
			if err != nil {
				return nil, fmt.Errorf("sheet %s row %d column %s: %w", name, i+2, sheet.Headers[j], err)
			}
			vals[sheet.Headers[j]] = v
		}
		out[probe] = vals
	}
	return out, nil
}

func splitList(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Samples lists the workbook samples in sheet order
func (ds *WorkbookDataset) Samples(ctx context.Context) ([]sample.Sample, error) {
	return append([]sample.Sample(nil), ds.samples...), nil
}

// Probes lists the platform probes in sheet order
func (ds *WorkbookDataset) Probes(ctx context.Context) ([]string, error) {
	return append([]string(nil), ds.probes...), nil
}

// Annotations describes the known probes among those requested
func (ds *WorkbookDataset) Annotations(ctx context.Context, probes []string) (map[string]matrix.Annotation, error) {
	out := make(map[string]matrix.Annotation, len(probes))
	for _, p := range probes {
		if a, ok := ds.annotations[p]; ok {
			out[p] = a
		}
	}
	return out, nil
}

// Values serves the values of one representation. A representation the
// workbook has no sheet for is unavailable.
func (ds *WorkbookDataset) Values(ctx context.Context, valueType matrix.ValueType, sampleIDs []string, probes []string) (map[string]map[string]float64, error) {
	source, ok := ds.values[valueType]
	if !ok {
		return nil, core.NewUpstreamError("workbook", fmt.Errorf("no %s values", valueType))
	}
	out := make(map[string]map[string]float64, len(probes))
	for _, p := range probes {
		vals, ok := source[p]
		if !ok {
			continue
		}
		row := make(map[string]float64, len(sampleIDs))
		for _, id := range sampleIDs {
			if v, ok := vals[id]; ok {
				row[id] = v
			}
		}
		out[p] = row
	}
	return out, nil
}
