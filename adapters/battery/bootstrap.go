package battery

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/term"
	"goregime/ports"
)

// BootstrapEstimator computes percentile intervals for the label gap by
// resampling terms with replacement.
type BootstrapEstimator struct {
	rngPort ports.RNGPort
	logger  *zap.Logger
}

// NewBootstrapEstimator creates a bootstrap estimator drawing from rngPort
func NewBootstrapEstimator(rngPort ports.RNGPort, logger *zap.Logger) *BootstrapEstimator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BootstrapEstimator{rngPort: rngPort, logger: logger}
}

// Interval resamples within each label so every resample keeps the observed
// label counts. It draws from the bootstrap sub-stream, never the one the
// permutation test uses.
func (be *BootstrapEstimator) Interval(metricID core.MetricID, samples []inference.Sample, labelA term.Label, cfg inference.Config) (*inference.Interval, error) {
	if cfg.Resamples <= 0 {
		return nil, fmt.Errorf("%w: bootstrap resamples must be positive", core.ErrInvalidRandomConfig)
	}
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		return nil, fmt.Errorf("%w: confidence %g", core.ErrInvalidRandomConfig, cfg.Confidence)
	}
	l := split(samples, labelA)
	if err := l.check(); err != nil {
		return nil, fmt.Errorf("metric %s: %w", metricID, err)
	}

	var a, b []float64
	for i, v := range l.values {
		if l.isA[i] {
			a = append(a, v)
		} else {
			b = append(b, v)
		}
	}

	rng := be.rngPort.Stream(cfg.Seed, metricID, ports.PurposeBootstrap)
	gaps := make([]float64, cfg.Resamples)
	for r := range gaps {
		gaps[r] = resampledMean(a, rng.Intn) - resampledMean(b, rng.Intn)
	}
	sort.Float64s(gaps)

	alpha := (1 - cfg.Confidence) / 2
	out := &inference.Interval{
		Low:        percentile(gaps, alpha),
		High:       percentile(gaps, 1-alpha),
		Confidence: cfg.Confidence,
		Resamples:  cfg.Resamples,
		StreamSeed: be.rngPort.StreamSeed(cfg.Seed, metricID, ports.PurposeBootstrap),
	}

	be.logger.Debug("bootstrap interval",
		zap.String("metric_id", metricID.String()),
		zap.Float64("low", out.Low),
		zap.Float64("high", out.High))

	return out, nil
}

func resampledMean(xs []float64, intn func(int) int) float64 {
	sum := 0.0
	for range xs {
		sum += xs[intn(len(xs))]
	}
	return sum / float64(len(xs))
}

// percentile linearly interpolates between order statistics at q*(n-1).
// sorted must be ascending.
func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	index := q * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
