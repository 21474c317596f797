package battery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goregime/adapters/rng"
	"goregime/domain/core"
)

func TestBootstrapInterval(t *testing.T) {
	est := NewBootstrapEstimator(rng.NewKeyedAdapter(), nil)
	samples := sampleSet("ABABABABAB", nil, 5, 1, 6, 2, 7, 1, 5, 2, 6, 3)

	a, err := est.Interval("m", samples, "A", exactConfig())
	require.NoError(t, err)
	b, err := est.Interval("m", samples, "A", exactConfig())
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.LessOrEqual(t, a.Low, a.High)
	// observed gap is 5.8 - 1.8 = 4
	assert.Less(t, a.Low, 4.0)
	assert.Greater(t, a.High, 4.0)
	assert.Greater(t, a.Low, 0.0)
	assert.Equal(t, 0.95, a.Confidence)
	assert.Equal(t, 500, a.Resamples)
}

func TestBootstrapUsesItsOwnStream(t *testing.T) {
	keyed := rng.NewKeyedAdapter()
	est := NewBootstrapEstimator(keyed, nil)
	perm := NewPermutationEngine(keyed, nil)
	samples := sampleSet("ABABABABAB", nil, 5, 1, 6, 2, 7, 1, 5, 2, 6, 3)

	cfg := exactConfig()
	cfg.ExactLimit = 0
	iv, err := est.Interval("m", samples, "A", cfg)
	require.NoError(t, err)
	pr, err := perm.Test("m", samples, "A", cfg)
	require.NoError(t, err)

	assert.NotEqual(t, pr.StreamSeed, iv.StreamSeed)
}

func TestBootstrapErrors(t *testing.T) {
	est := NewBootstrapEstimator(rng.NewKeyedAdapter(), nil)

	_, err := est.Interval("m", sampleSet("BB", nil, 1, 2), "A", exactConfig())
	assert.ErrorIs(t, err, core.ErrInsufficientGroups)

	cfg := exactConfig()
	cfg.Resamples = 0
	_, err = est.Interval("m", sampleSet("AB", nil, 1, 2), "A", cfg)
	assert.ErrorIs(t, err, core.ErrInvalidRandomConfig)
}

func TestPercentileInterpolates(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	assert.Equal(t, 2.5, percentile(xs, 0.5))
	assert.Equal(t, 1.0, percentile(xs, 0))
	assert.Equal(t, 4.0, percentile(xs, 1))
	assert.InDelta(t, 1.075, percentile(xs, 0.025), 1e-12)
}
