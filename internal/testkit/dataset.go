package testkit

import (
	"context"
	"sync"

	"exprview/domain/core"
	"exprview/domain/matrix"
	"exprview/domain/sample"
)

// Dataset is an in-memory expression store implementing ports.Dataset
type Dataset struct {
	mu          sync.RWMutex
	samples     []sample.Sample
	probes      []string
	annotations map[string]matrix.Annotation
	absolute    map[string]map[string]float64
	folds       map[string]map[string]float64
	offline     bool
}

func newDataset() *Dataset {
	return &Dataset{
		annotations: make(map[string]matrix.Annotation),
		absolute:    make(map[string]map[string]float64),
		folds:       make(map[string]map[string]float64),
	}
}

// NewDataset creates an empty dataset to fill by hand
func NewDataset() *Dataset {
	return newDataset()
}

// AddSample registers a sample
func (d *Dataset) AddSample(s sample.Sample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.samples = append(d.samples, s)
}

// AddProbe registers a probe with its annotation
func (d *Dataset) AddProbe(probe, title string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addProbe(probe, title, "", "")
}

// SetValue stores one value of a representation
func (d *Dataset) SetValue(valueType matrix.ValueType, probe, sampleID string, v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if valueType == matrix.Absolute {
		d.setAbsolute(probe, sampleID, v)
		return
	}
	d.setFold(probe, sampleID, v)
}

// SetOffline makes every value fetch fail as unavailable
func (d *Dataset) SetOffline(offline bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offline = offline
}

func (d *Dataset) addProbe(probe, title, geneID, symbol string) {
	if _, ok := d.annotations[probe]; ok {
		return
	}
	a := matrix.Annotation{Probe: probe, Title: title}
	if geneID != "" {
		a.GeneIDs = []string{geneID}
	}
	if symbol != "" {
		a.GeneSymbols = []string{symbol}
	}
	d.probes = append(d.probes, probe)
	d.annotations[probe] = a
}

func (d *Dataset) setAbsolute(probe, sampleID string, v float64) {
	if d.absolute[probe] == nil {
		d.absolute[probe] = make(map[string]float64)
	}
	d.absolute[probe][sampleID] = v
}

func (d *Dataset) setFold(probe, sampleID string, v float64) {
	if d.folds[probe] == nil {
		d.folds[probe] = make(map[string]float64)
	}
	d.folds[probe][sampleID] = v
}

func (d *Dataset) deleteValue(probe, sampleID string) {
	delete(d.absolute[probe], sampleID)
	delete(d.folds[probe], sampleID)
}

// Samples lists every sample
func (d *Dataset) Samples(ctx context.Context) ([]sample.Sample, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]sample.Sample(nil), d.samples...), nil
}

// Probes lists every probe in registration order
func (d *Dataset) Probes(ctx context.Context) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.probes...), nil
}

// Annotations describes the known probes among those requested
func (d *Dataset) Annotations(ctx context.Context, probes []string) (map[string]matrix.Annotation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]matrix.Annotation, len(probes))
	for _, p := range probes {
		if a, ok := d.annotations[p]; ok {
			out[p] = a
		}
	}
	return out, nil
}

// Values returns the stored values of the requested samples and probes
func (d *Dataset) Values(ctx context.Context, valueType matrix.ValueType, sampleIDs []string, probes []string) (map[string]map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.offline {
		return nil, core.NewUpstreamError("testkit", context.DeadlineExceeded)
	}

	source := d.folds
	if valueType == matrix.Absolute {
		source = d.absolute
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
