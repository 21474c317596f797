// Package series holds raw observation timelines and their frequency metadata.
package series

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"goregime/domain/core"
)

// Frequency is the native sampling frequency of a series.
type Frequency string

const (
	Daily     Frequency = "daily"
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
)

// ParseFrequency accepts the long names and the one-letter codes (D/M/Q/A).
func ParseFrequency(s string) (Frequency, error) {
	switch s {
	case "daily", "D":
		return Daily, nil
	case "monthly", "M":
		return Monthly, nil
	case "quarterly", "Q":
		return Quarterly, nil
	case "annual", "A":
		return Annual, nil
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// PeriodsPerYear is the annualization factor. Daily series are assumed to be
// trading-day series.
func (f Frequency) PeriodsPerYear() int {
	switch f {
	case Daily:
		return 252
	case Monthly:
		return 12
	case Quarterly:
		return 4
	case Annual:
		return 1
	}
	return 0
}

// Shift moves t by n whole periods (negative n moves back in time). Daily
// periods are weekdays, matching the trading-day annualization.
func (f Frequency) Shift(t time.Time, n int) time.Time {
	if n == 0 {
		return t
	}
	switch f {
	case Daily:
		return addWeekdays(t, n)
	case Monthly:
		return t.AddDate(0, n, 0)
	case Quarterly:
		return t.AddDate(0, 3*n, 0)
	case Annual:
		return t.AddDate(n, 0, 0)
	}
	return t
}

func addWeekdays(t time.Time, n int) time.Time {
	step := 1
	if n < 0 {
		step, n = -1, -n
	}
	for n > 0 {
		t = t.AddDate(0, 0, step)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n--
		}
	}
	return t
}

// Period returns the calendar period [start, end) containing t.
func (f Frequency) Period(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	loc := t.Location()
	switch f {
	case Monthly:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0)
	case Quarterly:
		q0 := time.Month((int(m)-1)/3*3 + 1)
		start := time.Date(y, q0, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 3, 0)
	case Annual:
		start := time.Date(y, 1, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0)
	}
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// UnitKind says whether values are levels or already rates/percentages.
type UnitKind string

const (
	Level UnitKind = "level"
	Rate  UnitKind = "rate"
)

// Observation is a single timestamped value of one series.
type Observation struct {
	Time   time.Time     `json:"time"`
	Value  float64       `json:"value"`
	Series core.SeriesID `json:"series_id"`
}

// Meta is the series metadata the definition registry needs.
type Meta struct {
	ID        core.SeriesID `json:"series_id" yaml:"id"`
	Frequency Frequency     `json:"frequency" yaml:"frequency"`
	Units     string        `json:"units" yaml:"units"`
	UnitKind  UnitKind      `json:"unit_kind" yaml:"unit_kind"`
}

// Series is an ordered observation sequence plus metadata.
type Series struct {
	Meta
	Observations []Observation `json:"observations"`
}

// Validate enforces the ingestion-boundary invariants: strictly increasing
// timestamps, finite values, consistent series tags.
func (s Series) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: series has no id", core.ErrInvalidSeries)
	}
	if s.Frequency.PeriodsPerYear() == 0 {
		return fmt.Errorf("%w: series %q has unknown frequency %q", core.ErrInvalidSeries, s.ID, s.Frequency)
	}
	if s.UnitKind != Level && s.UnitKind != Rate {
		return fmt.Errorf("%w: series %q has unit kind %q", core.ErrInvalidSeries, s.ID, s.UnitKind)
	}
	for i, o := range s.Observations {
		if o.Series != s.ID {
			return fmt.Errorf("%w: observation %d of %q is tagged %q", core.ErrInvalidSeries, i, s.ID, o.Series)
		}
		if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
			return fmt.Errorf("%w: observation %d of %q is not finite", core.ErrInvalidSeries, i, s.ID)
		}
		if i > 0 && !o.Time.After(s.Observations[i-1].Time) {
			return fmt.Errorf("%w: %q timestamps not strictly increasing at %s",
				core.ErrInvalidSeries, s.ID, o.Time.Format(time.DateOnly))
		}
	}
	return nil
}

// Len returns the number of observations.
func (s Series) Len() int {
	return len(s.Observations)
}

// Coverage returns the first and last observation timestamps.
func (s Series) Coverage() (time.Time, time.Time, bool) {
	if len(s.Observations) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.Observations[0].Time, s.Observations[len(s.Observations)-1].Time, true
}

// Hash fingerprints the series content for run manifests.
func (s Series) Hash() core.SeriesHash {
	parts := make([]string, 0, 4+2*len(s.Observations))
	parts = append(parts, s.ID.String(), string(s.Frequency), s.Units, string(s.UnitKind))
	for _, o := range s.Observations {
		parts = append(parts, o.Time.UTC().Format(time.RFC3339), strconv.FormatFloat(o.Value, 'g', -1, 64))
	}
	return core.SeriesHash(core.HashParts(parts...))
}

// New builds a series from parallel time/value slices.
func New(meta Meta, times []time.Time, values []float64) Series {
	obs := make([]Observation, len(times))
	for i := range times {
		obs[i] = Observation{Time: times[i], Value: values[i], Series: meta.ID}
	}
	return Series{Meta: meta, Observations: obs}
}
