// Package attribution maps an observation timeline onto term windows.
package attribution

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"goregime/domain/attribution"
	"goregime/domain/core"
	"goregime/domain/series"
	"goregime/domain/term"
)

// Coverage classifies a window's data availability.
type Coverage string

const (
	Covered       Coverage = "covered"
	NoData        Coverage = "no_data"
	OutOfCoverage Coverage = "out_of_coverage"
)

// Window is the sub-sequence of observations attributed to one term.
type Window struct {
	Term term.Term
	// Start and End are the lag-shifted boundaries, End exclusive.
	Start time.Time
	End   time.Time

	Observations []series.Observation
	// Lead is the observation preceding the window, if any. Pairwise
	// transforms use it as the base of the first change.
	Lead *series.Observation
	// LeftCensored is set when no observation precedes the shifted start,
	// so the start anchor could not be resolved.
	LeftCensored bool
	Coverage     Coverage
}

// Empty reports whether the window has no attributable observations.
func (w Window) Empty() bool {
	return len(w.Observations) == 0
}

// Engine attributes series to terms under a rule. It holds no state between
// calls and is safe for concurrent use.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an attribution engine
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Attribute produces one window per term, in calendar order. Invalid
// calendars, rules or series are structural errors.
func (e *Engine) Attribute(s series.Series, cal term.Calendar, rule attribution.Rule) ([]Window, error) {
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	windows := make([]Window, len(cal.Terms))
	for i, t := range cal.Terms {
		start := s.Frequency.Shift(t.Start, rule.StartLag)
		end := s.Frequency.Shift(t.End, rule.EndLag)
		if !end.After(start) {
			return nil, fmt.Errorf("%w: lags %d/%d collapse term %q", core.ErrInvalidRule, rule.StartLag, rule.EndLag, t.ID)
		}
		if i > 0 && start.Before(windows[i-1].End) {
			return nil, fmt.Errorf("%w: lags %d/%d make term %q overlap %q",
				core.ErrOverlappingTerms, rule.StartLag, rule.EndLag, t.ID, windows[i-1].Term.ID)
		}
		windows[i] = Window{Term: t, Start: start, End: end}
	}

	switch rule.Alignment {
	case attribution.PeriodMajority:
		e.assignByPeriod(s, windows)
	default:
		for i := range windows {
			e.assignInstant(s, rule.Boundary, &windows[i])
		}
	}

	noData, outside := 0, 0
	for _, w := range windows {
		switch w.Coverage {
		case NoData:
			noData++
		case OutOfCoverage:
			outside++
		}
	}
	e.logger.Debug("attributed series",
		zap.String("series_id", s.ID.String()),
		zap.String("rule", rule.String()),
		zap.Int("terms", len(windows)),
		zap.Int("no_data", noData),
		zap.Int("out_of_coverage", outside))

	return windows, nil
}

// ============================================================================
// INSTANT ALIGNMENT
// ============================================================================

// assignInstant resolves the window by comparing timestamps to the shifted
// boundaries. Observations in [Start, End) are always attributable; the
// boundary policy decides what anchors the start.
func (e *Engine) assignInstant(s series.Series, policy attribution.BoundaryPolicy, w *Window) {
	obs := s.Observations
	lo := firstOnOrAfter(obs, w.Start)
	hi := firstOnOrAfter(obs, w.End)

	if lo >= hi {
		w.Coverage = classifyEmpty(len(obs), lo, hi)
		return
	}
	w.Coverage = Covered

	switch policy {
	case attribution.LastStrictlyBefore:
		if lo == 0 {
			w.LeftCensored = true
			w.Observations = obs[lo:hi]
			return
		}
		w.Observations = obs[lo-1 : hi]
	case attribution.FirstOnOrAfter:
		w.Observations = obs[lo:hi]
		if lo > 0 {
			lead := obs[lo-1]
			w.Lead = &lead
		}
	}
}

// firstOnOrAfter returns the index of the earliest observation with
// timestamp >= t, or len(obs).
func firstOnOrAfter(obs []series.Observation, t time.Time) int {
	return sort.Search(len(obs), func(i int) bool {
		return !obs[i].Time.Before(t)
	})
}

// classifyEmpty separates a term outside the series range from a gap inside
// it. lo is the first index at or after Start, hi the first at or after End.
func classifyEmpty(n, lo, hi int) Coverage {
	if n == 0 || hi == 0 || lo == n {
		return OutOfCoverage
	}
	return NoData
}

// ============================================================================
// PERIOD-MAJORITY ALIGNMENT
// ============================================================================

// assignByPeriod gives each observation's calendar period to the window that
// overlaps it for the most days. Ties go to the window holding the period's
// last day, then to the earlier window.
func (e *Engine) assignByPeriod(s series.Series, windows []Window) {
	owner := make([]int, len(s.Observations))
	for i, o := range s.Observations {
		owner[i] = majorityWindow(s.Frequency, o.Time, windows)
	}

	first := make([]int, len(windows))
	for i := range first {
		first[i] = -1
	}
	for i, w := range owner {
		if w < 0 {
			continue
		}
		if first[w] < 0 {
			first[w] = i
		}
		windows[w].Observations = append(windows[w].Observations, s.Observations[i])
	}

	var lo, hi time.Time
	if len(s.Observations) > 0 {
		lo, _ = s.Frequency.Period(s.Observations[0].Time)
		_, hi = s.Frequency.Period(s.Observations[len(s.Observations)-1].Time)
	}
	for i := range windows {
		w := &windows[i]
		if !w.Empty() {
			w.Coverage = Covered
			if first[i] > 0 {
				lead := s.Observations[first[i]-1]
				w.Lead = &lead
			}
			continue
		}
		if len(s.Observations) == 0 || !w.End.After(lo) || !w.Start.Before(hi) {
			w.Coverage = OutOfCoverage
		} else {
			w.Coverage = NoData
		}
	}
}

func majorityWindow(freq series.Frequency, t time.Time, windows []Window) int {
	ps, pe := freq.Period(t)
	lastDay := pe.AddDate(0, 0, -1)

	best, bestDays := -1, 0
	for i, w := range windows {
		if !w.End.After(ps) || !w.Start.Before(pe) {
			continue
		}
		days := overlapDays(ps, pe, w.Start, w.End)
		if days == 0 {
			continue
		}
		switch {
		case days > bestDays:
			best, bestDays = i, days
		case days == bestDays && contains(w, lastDay) && !contains(windows[best], lastDay):
			best = i
		}
	}
	return best
}

func overlapDays(aStart, aEnd, bStart, bEnd time.Time) int {
	start := aStart
	if bStart.After(start) {
		start = bStart
	}
	end := aEnd
	if bEnd.Before(end) {
		end = bEnd
	}
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start).Hours() / 24)
}

func contains(w Window, t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
