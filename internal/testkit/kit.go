package testkit

import (
	"context"
	"fmt"

	"exprview/domain/sample"
	"exprview/internal/engine"
	"exprview/internal/session"
)

// TestKit wires a generated dataset into engines and sessions for tests and
// the demo mode of the server
type TestKit struct {
	Dataset   *Dataset
	Schema    sample.DataSchema
	Snapshots *SnapshotStore
}

// NewTestKit creates a test kit over the default generated dataset
func NewTestKit() *TestKit {
	return NewTestKitWithConfig(DefaultExpressionConfig())
}

// NewTestKitWithConfig creates a test kit over a generated dataset
func NewTestKitWithConfig(cfg ExpressionGeneratorConfig) *TestKit {
	return &TestKit{
		Dataset:   NewExpressionDataGenerator(cfg).Generate(),
		Schema:    sample.DefaultSchema(),
		Snapshots: NewSnapshotStore(),
	}
}

// Builder returns a matrix builder over the dataset
func (t *TestKit) Builder() *engine.Builder {
	return engine.NewBuilder(t.Dataset, t.Dataset, t.Schema, engine.BuilderOptions{})
}

// NewEngine returns a fresh engine over the dataset
func (t *TestKit) NewEngine() *engine.Engine {
	return engine.New(t.Builder(), nil)
}

// SessionManager returns a manager whose sessions use the dataset and the
// in-memory snapshot store
func (t *TestKit) SessionManager() *session.Manager {
	return session.NewManager(t.NewEngine, session.Options{Schema: t.Schema, Snapshots: t.Snapshots})
}

// Group builds a group from the samples matching a compound, dose and time.
// Matching control samples of the same compound and time are included, the
// way a user selecting a cell of the dose/time grid gets them.
func (t *TestKit) Group(name, compound, dose, time string) (sample.Group, error) {
	samples, err := t.Dataset.Samples(context.Background())
	if err != nil {
		return sample.Group{}, err
	}
	var picked []sample.Sample
	for _, s := range samples {
		if s.Get(t.Schema.MajorParameter) != compound || s.Get(t.Schema.MinorParameter) != time {
			continue
		}
		medium := s.Get(t.Schema.MediumParameter)
		if medium == dose || t.Schema.IsControlValue(medium) {
			picked = append(picked, s)
		}
	}
	if len(picked) == 0 {
		return sample.Group{}, fmt.Errorf("no samples for %s/%s/%s", compound, dose, time)
	}
	return sample.BuildGroup(t.Schema, sample.GroupSpec{Name: name, Samples: picked, RequireSamples: true})
}

// MustGroup is Group for tests with known-good arguments
func (t *TestKit) MustGroup(name, compound, dose, time string) sample.Group {
	g, err := t.Group(name, compound, dose, time)
	if err != nil {
		panic(err)
	}
	return g
}
