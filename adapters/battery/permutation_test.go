package battery

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goregime/adapters/rng"
	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/term"
)

func sampleSet(labels string, years []int, values ...float64) []inference.Sample {
	out := make([]inference.Sample, len(values))
	for i, v := range values {
		v := v
		y := 2000 + 4*i
		if years != nil {
			y = years[i]
		}
		out[i] = inference.Sample{
			TermID: core.TermID(string(rune('a' + i))),
			Label:  term.Label(labels[i : i+1]),
			Start:  core.Date(y, 1, 20),
			Value:  &v,
		}
	}
	return out
}

func swap(samples []inference.Sample) []inference.Sample {
	out := make([]inference.Sample, len(samples))
	for i, s := range samples {
		if s.Label == "A" {
			s.Label = "B"
		} else {
			s.Label = "A"
		}
		out[i] = s
	}
	return out
}

func exactConfig() inference.Config {
	return inference.Config{Draws: 1000, Resamples: 500, Confidence: 0.95, Seed: 11,
		Block: inference.BlockConfig{Kind: inference.Unrestricted}, ExactLimit: 100000}
}

func TestPermutationThreeTermScenario(t *testing.T) {
	engine := NewPermutationEngine(rng.NewKeyedAdapter(), nil)

	res, err := engine.Test("m", sampleSet("ABA", nil, 10, 12, 14), "A", exactConfig())
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.ObservedGap)
	assert.Equal(t, inference.Exact, res.Mode)
	// three arrangements keep {2 A, 1 B}; two differ from the observed one
	assert.Equal(t, 2, res.Draws)
	assert.Equal(t, 2, res.Extreme)
	assert.Equal(t, 1.0, res.PValue)
	assert.Equal(t, 2, res.NA)
	assert.Equal(t, 1, res.NB)
}

func TestPermutationExactByHand(t *testing.T) {
	engine := NewPermutationEngine(rng.NewKeyedAdapter(), nil)

	res, err := engine.Test("m", sampleSet("AAABBB", nil, 1, 2, 3, 10, 11, 12), "A", exactConfig())
	require.NoError(t, err)

	assert.InDelta(t, -9.0, res.ObservedGap, 1e-12)
	// C(6,3) = 20 arrangements; only the mirror image is as extreme
	assert.Equal(t, 19, res.Draws)
	assert.Equal(t, 1, res.Extreme)
	assert.InDelta(t, 0.1, res.PValue, 1e-15)
	// all 20 gaps sum to zero, so the other 19 sum to +9
	assert.InDelta(t, 9.0/19, res.NullMean, 1e-12)
	require.NotNil(t, res.ZScore)
}

func TestPermutationMonteCarloBoundsAndDeterminism(t *testing.T) {
	engine := NewPermutationEngine(rng.NewKeyedAdapter(), nil)
	cfg := exactConfig()
	cfg.ExactLimit = 0
	cfg.Draws = 500
	samples := sampleSet("ABABBAABAB", nil, 3, 1, 4, 1, 5, 9, 2, 6, 5, 3)

	a, err := engine.Test("m", samples, "A", cfg)
	require.NoError(t, err)
	b, err := engine.Test("m", samples, "A", cfg)
	require.NoError(t, err)

	assert.Equal(t, inference.MonteCarlo, a.Mode)
	assert.Equal(t, 500, a.Draws)
	assert.GreaterOrEqual(t, a.PValue, 1.0/501)
	assert.LessOrEqual(t, a.PValue, 1.0)
	assert.Equal(t, a, b)
	assert.NotZero(t, a.StreamSeed)

	other, err := engine.Test("other_metric", samples, "A", cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.StreamSeed, other.StreamSeed)
}

func TestPermutationLabelSymmetry(t *testing.T) {
	engine := NewPermutationEngine(rng.NewKeyedAdapter(), nil)
	samples := sampleSet("ABABBAABAB", nil, 3.2, 1.1, 4.7, 1.9, 5.3, 9.6, 2.4, 6.8, 5.5, 3.0)

	for _, limit := range []int{0, 1 << 20} {
		cfg := exactConfig()
		cfg.ExactLimit = limit

		orig, err := engine.Test("m", samples, "A", cfg)
		require.NoError(t, err)
		swapped, err := engine.Test("m", swap(samples), "A", cfg)
		require.NoError(t, err)

		assert.Equal(t, -orig.ObservedGap, swapped.ObservedGap)
		assert.Equal(t, orig.PValue, swapped.PValue, "mode %s", orig.Mode)
		assert.Equal(t, orig.Draws, swapped.Draws)
	}
}

func TestPermutationBlocks(t *testing.T) {
	engine := NewPermutationEngine(rng.NewKeyedAdapter(), nil)
	samples := sampleSet("ABAB", []int{2000, 2002, 2008, 2010}, 1, 2, 3, 4)

	cfg := exactConfig()
	free, err := engine.Test("m", samples, "A", cfg)
	require.NoError(t, err)
	assert.Equal(t, 5, free.Draws)

	cfg.Block = inference.BlockConfig{Kind: inference.FixedYears, Years: 8}
	blocked, err := engine.Test("m", samples, "A", cfg)
	require.NoError(t, err)
	// two blocks of {A, B}: 2 x 2 arrangements
	assert.Equal(t, 3, blocked.Draws)
	assert.Equal(t, cfg.Block, blocked.Block)
	assert.Equal(t, free.ObservedGap, blocked.ObservedGap)
}

func TestPermutationSkipsMissingValues(t *testing.T) {
	engine := NewPermutationEngine(rng.NewKeyedAdapter(), nil)
	samples := sampleSet("ABA", nil, 10, 12, 14)
	samples = append(samples, inference.Sample{TermID: "x", Label: "B", Start: core.Date(2020, 1, 20)})

	res, err := engine.Test("m", samples, "A", exactConfig())
	require.NoError(t, err)
	assert.Equal(t, 1, res.NB)
	assert.Equal(t, 0.0, res.ObservedGap)
}

func TestPermutationInsufficientGroups(t *testing.T) {
	engine := NewPermutationEngine(rng.NewKeyedAdapter(), nil)
	_, err := engine.Test("m", sampleSet("AAA", nil, 1, 2, 3), "A", exactConfig())
	assert.ErrorIs(t, err, core.ErrInsufficientGroups)

	cfg := exactConfig()
	cfg.Block = inference.BlockConfig{}
	_, err = engine.Test("m", sampleSet("AB", nil, 1, 2), "A", cfg)
	assert.ErrorIs(t, err, core.ErrInvalidRandomConfig)
}

func TestArrangementCounting(t *testing.T) {
	assert.Len(t, combinations(4, 2), 6)
	assert.Len(t, combinations(3, 0), 1)

	c, ok := binomial(30, 15, 1<<40)
	require.True(t, ok)
	assert.Equal(t, 155117520, c)

	_, ok = binomial(60, 30, 1000000)
	assert.False(t, ok)

	isA := []bool{true, false, true, false}
	n, ok := arrangements(isA, [][]int{{0, 1}, {2, 3}}, 10)
	require.True(t, ok)
	assert.Equal(t, 4, n)

	_, ok = arrangements(isA, [][]int{{0, 1, 2, 3}}, 5)
	assert.False(t, ok)
}

func TestBinomialNearIntOverflow(t *testing.T) {
	c, ok := binomial(5, 2, 10)
	require.True(t, ok, "a count equal to the limit fits")
	assert.Equal(t, 10, c)

	c, ok = binomial(66, 33, math.MaxInt)
	require.True(t, ok)
	assert.Equal(t, 7219428434016265740, c)

	_, ok = binomial(68, 34, math.MaxInt)
	assert.False(t, ok)
	_, ok = binomial(200, 100, math.MaxInt)
	assert.False(t, ok)

	isA := make([]bool, 200)
	blk := make([]int, 200)
	for i := range isA {
		isA[i] = i%2 == 0
		blk[i] = i
	}
	_, ok = arrangements(isA, [][]int{blk}, math.MaxInt)
	assert.False(t, ok)
}
