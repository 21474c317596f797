package series

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goregime/domain/core"
)

func TestSeriesValidate(t *testing.T) {
	meta := Meta{ID: "gdp", Frequency: Quarterly, Units: "bn USD", UnitKind: Level}
	t0 := core.Date(2000, 1, 1)

	ok := New(meta, []time.Time{t0, t0.AddDate(0, 3, 0)}, []float64{1, 2})
	require.NoError(t, ok.Validate())

	dup := New(meta, []time.Time{t0, t0}, []float64{1, 2})
	assert.ErrorIs(t, dup.Validate(), core.ErrInvalidSeries)

	nan := New(meta, []time.Time{t0}, []float64{math.NaN()})
	assert.ErrorIs(t, nan.Validate(), core.ErrInvalidSeries)

	badKind := New(Meta{ID: "x", Frequency: Monthly, UnitKind: "percentish"}, nil, nil)
	assert.ErrorIs(t, badKind.Validate(), core.ErrInvalidSeries)
}

func TestFrequencyShiftAndPeriod(t *testing.T) {
	t0 := core.Date(2001, 1, 20)

	assert.Equal(t, core.Date(2001, 7, 20), Quarterly.Shift(t0, 2))
	assert.Equal(t, core.Date(2000, 12, 20), Monthly.Shift(t0, -1))
	assert.Equal(t, core.Date(2003, 1, 20), Annual.Shift(t0, 2))

	// t0 is a Saturday; daily shifts count weekdays only
	assert.Equal(t, core.Date(2001, 1, 24), Daily.Shift(t0, 3))
	assert.Equal(t, core.Date(2001, 1, 19), Daily.Shift(t0, -1))
	assert.Equal(t, core.Date(2001, 1, 29), Daily.Shift(core.Date(2001, 1, 22), 5))

	start, end := Quarterly.Period(core.Date(2001, 5, 15))
	assert.Equal(t, core.Date(2001, 4, 1), start)
	assert.Equal(t, core.Date(2001, 7, 1), end)
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency("Q")
	require.NoError(t, err)
	assert.Equal(t, Quarterly, f)
	assert.Equal(t, 4, f.PeriodsPerYear())

	_, err = ParseFrequency("weekly")
	assert.Error(t, err)
}
