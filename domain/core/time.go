package core

import (
	"time"
)

// DefaultYearBasisDays is the mean Gregorian year length used to turn elapsed
// time into years.
const DefaultYearBasisDays = 365.25

// Timestamp represents a point in time serialized as RFC3339
type Timestamp time.Time

// NewTimestamp creates a new timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC())
}

// Now returns the current timestamp
func Now() Timestamp {
	return Timestamp(time.Now().UTC())
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// IsZero checks if the timestamp is zero
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return time.Time(t).MarshalJSON()
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var tm time.Time
	if err := tm.UnmarshalJSON(data); err != nil {
		return err
	}
	*t = Timestamp(tm)
	return nil
}

// YearsBetween converts elapsed wall time into years on the given basis.
func YearsBetween(start, end time.Time, basisDays float64) float64 {
	if basisDays <= 0 {
		basisDays = DefaultYearBasisDays
	}
	return end.Sub(start).Hours() / 24 / basisDays
}

// Date builds a UTC midnight timestamp.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
