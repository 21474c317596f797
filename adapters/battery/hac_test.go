package battery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goregime/domain/core"
)

func TestNeweyWestBetaIsTheGap(t *testing.T) {
	samples := sampleSet("ABABABAB", nil, 4.1, 2.0, 3.9, 2.5, 4.4, 1.8, 3.6, 2.2)

	res, err := NeweyWest(samples, "A", 2)
	require.NoError(t, err)

	assert.InDelta(t, gap([]float64{4.1, 2.0, 3.9, 2.5, 4.4, 1.8, 3.6, 2.2},
		[]bool{true, false, true, false, true, false, true, false}), res.Beta, 1e-12)
	assert.Greater(t, res.StdErr, 0.0)
	assert.Less(t, res.PValue, 0.01)
	assert.Equal(t, 2, res.Lags)
	assert.Equal(t, 8, res.N)
}

func TestNeweyWestClampsLags(t *testing.T) {
	res, err := NeweyWest(sampleSet("ABA", nil, 1, 2, 4), "A", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Lags)
}

func TestNeweyWestErrors(t *testing.T) {
	_, err := NeweyWest(sampleSet("AB", nil, 1, 2), "A", 1)
	assert.ErrorIs(t, err, core.ErrTooFewValues)

	_, err = NeweyWest(sampleSet("AAAA", nil, 1, 2, 3, 4), "A", 1)
	assert.ErrorIs(t, err, core.ErrInsufficientGroups)
}

func TestSummarize(t *testing.T) {
	groups := Summarize(sampleSet("ABAB", nil, 1, 10, 3, 20), "A", "B")
	require.Len(t, groups, 2)
	assert.Equal(t, 2, groups[0].N)
	assert.Equal(t, 2.0, groups[0].Mean)
	assert.Equal(t, 15.0, groups[1].Median)
}
