package testkit

import (
	"fmt"
	"math"
	"math/rand"

	"exprview/domain/sample"
)

// ExpressionGeneratorConfig configures the synthetic expression dataset
type ExpressionGeneratorConfig struct {
	Compounds  []string `json:"compounds"`
	DoseLevels []string `json:"dose_levels"`
	Times      []string `json:"times"`
	Replicates int      `json:"replicates"`
	ProbeCount int      `json:"probe_count"`
	// ResponsiveFraction of probes react to treatment, scaled by dose
	ResponsiveFraction float64 `json:"responsive_fraction"`
	// Noise is the standard deviation of per-sample noise in log2 units
	Noise float64 `json:"noise"`
	// MissingRate is the probability that a sample has no value for a probe
	MissingRate float64 `json:"missing_rate"`
	Seed        int64   `json:"seed"`
}

// DefaultExpressionConfig returns a small toxicogenomics-style layout: three
// compounds, control plus three doses, two time points and three replicates
func DefaultExpressionConfig() ExpressionGeneratorConfig {
	return ExpressionGeneratorConfig{
		Compounds:          []string{"acetaminophen", "aspirin", "valproic acid"},
		DoseLevels:         []string{"Control", "Low", "Middle", "High"},
		Times:              []string{"6 hr", "24 hr"},
		Replicates:         3,
		ProbeCount:         200,
		ResponsiveFraction: 0.1,
		Noise:              0.25,
		MissingRate:        0.01,
		Seed:               42,
	}
}

var doseFactor = map[string]float64{"Low": 0.5, "Middle": 1, "High": 2}

// ExpressionDataGenerator produces deterministic datasets for a seed
type ExpressionDataGenerator struct {
	config ExpressionGeneratorConfig
	rng    *rand.Rand
}

// NewExpressionDataGenerator creates a new expression data generator
func NewExpressionDataGenerator(config ExpressionGeneratorConfig) *ExpressionDataGenerator {
	return &ExpressionDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds the dataset. Absolute values are log2 intensities; fold
// values are log2 ratios against the mean of the matching control samples
// (same compound and time).
func (g *ExpressionDataGenerator) Generate() *Dataset {
	cfg := g.config
	ds := newDataset()

	for i := 0; i < cfg.ProbeCount; i++ {
		probe := fmt.Sprintf("%d_at", 1370000+i)
		ds.addProbe(probe, fmt.Sprintf("Gene %d", i+1), fmt.Sprintf("%d", 24000+i), fmt.Sprintf("G%d", i+1))
	}

	baseline := make([]float64, cfg.ProbeCount)
	effect := make([]map[string]float64, cfg.ProbeCount)
	for i := range baseline {
		baseline[i] = 6 + g.rng.Float64()*6
		effect[i] = make(map[string]float64)
		if g.rng.Float64() < cfg.ResponsiveFraction {
			for _, c := range cfg.Compounds {
				sign := 1.0
				if g.rng.Intn(2) == 0 {
					sign = -1
				}
				effect[i][c] = sign * (1 + g.rng.Float64()*2)
			}
		}
	}

	for _, compound := range cfg.Compounds {
		for _, t := range cfg.Times {
			var controls, treated []sample.Sample
			for _, dose := range cfg.DoseLevels {
				for r := 1; r <= cfg.Replicates; r++ {
					s := sample.NewSample(sampleID(compound, dose, t, r),
						sample.Attribute{Name: "compound_name", Value: compound},
						sample.Attribute{Name: "dose_level", Value: dose},
						sample.Attribute{Name: "exposure_time", Value: t},
						sample.Attribute{Name: "individual_id", Value: fmt.Sprintf("%d", r)},
					)
					ds.samples = append(ds.samples, s)
					if dose == "Control" {
						controls = append(controls, s)
					} else {
						treated = append(treated, s)
					}
				}
			}

			for i, probe := range ds.probes {
				g.fill(ds, probe, baseline[i], effect[i][compound], controls, treated)
			}
		}
	}
	return ds
}

func (g *ExpressionDataGenerator) fill(ds *Dataset, probe string, baseline, effect float64, controls, treated []sample.Sample) {
	controlSum, controlN := 0.0, 0
	for _, s := range controls {
		v := baseline + g.rng.NormFloat64()*g.config.Noise
		ds.setAbsolute(probe, s.ID, v)
		controlSum += v
		controlN++
	}
	for _, s := range treated {
		v := baseline + effect*doseFactor[s.Get("dose_level")] + g.rng.NormFloat64()*g.config.Noise
		ds.setAbsolute(probe, s.ID, v)
	}

	controlMean := math.NaN()
	if controlN > 0 {
		controlMean = controlSum / float64(controlN)
	}
	for _, s := range append(append([]sample.Sample{}, controls...), treated...) {
		if g.rng.Float64() < g.config.MissingRate {
			ds.deleteValue(probe, s.ID)
			continue
		}
		if !math.IsNaN(controlMean) {
			ds.setFold(probe, s.ID, ds.absolute[probe][s.ID]-controlMean)
		}
	}
}

func sampleID(compound, dose, time string, replicate int) string {
	clean := func(s string) string {
		out := make([]rune, 0, len(s))
		for _, r := range s {
			if r == ' ' {
				r = '_'
			}
			out = append(out, r)
		}
		return string(out)
	}
	return fmt.Sprintf("%s.%s.%s.%d", clean(compound), clean(dose), clean(time), replicate)
}
