package ports

import (
	"context"

	"exprview/domain/matrix"
	"exprview/domain/sample"
)

// ValueSource supplies raw per-sample expression values. It is the only I/O
// bound collaborator of a matrix build.
type ValueSource interface {
	// Values returns probe -> sample id -> value for the requested samples and
	// probes. A probe the source has no data for is left out of the outer
	// map; a sample without a value is left out of the inner map. Failures to
	// reach the backing store wrap core.ErrUpstreamUnavailable.
	Values(ctx context.Context, valueType matrix.ValueType, sampleIDs []string, probes []string) (map[string]map[string]float64, error)
}

// Platform is the probe universe of a dataset
type Platform interface {
	// Probes lists every probe in platform order
	Probes(ctx context.Context) ([]string, error)
	// Annotations describes the requested probes. Probes unknown to the
	// platform are left out of the result.
	Annotations(ctx context.Context, probes []string) (map[string]matrix.Annotation, error)
}

// SampleCatalog lists the samples groups can be defined over
type SampleCatalog interface {
	Samples(ctx context.Context) ([]sample.Sample, error)
}

// Dataset bundles the read side of an expression store
type Dataset interface {
	ValueSource
	Platform
	SampleCatalog
}
