// Package term models the regime calendar: ordered, non-overlapping windows
// each labeled with one of exactly two regime values.
package term

import (
	"fmt"
	"time"

	"goregime/domain/core"
)

// Label is a regime value such as a party abbreviation.
type Label string

// Completeness marks whether a term was truncated by data availability.
type Completeness string

const (
	Full    Completeness = "full"
	Partial Completeness = "partial"
)

// Term is a labeled window [Start, End).
type Term struct {
	ID           core.TermID  `json:"term_id"`
	Label        Label        `json:"label"`
	Start        time.Time    `json:"start"`
	End          time.Time    `json:"end"`
	Completeness Completeness `json:"completeness"`
}

// IsPartial reports whether the term is truncated.
func (t Term) IsPartial() bool {
	return t.Completeness == Partial
}

// StartYear is used to place terms into permutation blocks.
func (t Term) StartYear() int {
	return t.Start.Year()
}

// Calendar is the ordered term sequence plus the two declared labels.
type Calendar struct {
	LabelA Label  `json:"label_a"`
	LabelB Label  `json:"label_b"`
	Terms  []Term `json:"terms"`
}

// Gap is a stretch of time between consecutive terms. Gaps are legal but
// worth surfacing.
type Gap struct {
	After  core.TermID
	Before core.TermID
	From   time.Time
	To     time.Time
}

// Validate checks the calendar invariants. Every violation is structural.
func (c Calendar) Validate() error {
	if c.LabelA == "" || c.LabelB == "" {
		return fmt.Errorf("%w: both regime labels must be declared", core.ErrInvalidCalendar)
	}
	if c.LabelA == c.LabelB {
		return fmt.Errorf("%w: regime labels must differ (got %q twice)", core.ErrInvalidCalendar, c.LabelA)
	}
	if len(c.Terms) == 0 {
		return fmt.Errorf("%w: no terms", core.ErrInvalidCalendar)
	}

	seen := make(map[core.TermID]bool, len(c.Terms))
	for i, t := range c.Terms {
		if t.ID.String() == "" {
			return fmt.Errorf("%w: term %d has no id", core.ErrInvalidCalendar, i)
		}
		if seen[t.ID] {
			return fmt.Errorf("%w: duplicate term id %q", core.ErrInvalidCalendar, t.ID)
		}
		seen[t.ID] = true

		if t.Label != c.LabelA && t.Label != c.LabelB {
			return fmt.Errorf("%w: term %q has label %q outside {%q, %q}",
				core.ErrInvalidCalendar, t.ID, t.Label, c.LabelA, c.LabelB)
		}
		if t.Completeness != Full && t.Completeness != Partial {
			return fmt.Errorf("%w: term %q has completeness %q", core.ErrInvalidCalendar, t.ID, t.Completeness)
		}
		if !t.End.After(t.Start) {
			return fmt.Errorf("%w: term %q ends %s before it starts %s",
				core.ErrNonMonotonicTerms, t.ID, t.End.Format(time.DateOnly), t.Start.Format(time.DateOnly))
		}
		if i == 0 {
			continue
		}
		prev := c.Terms[i-1]
		if !t.Start.After(prev.Start) {
			return fmt.Errorf("%w: term %q starts %s, not after %q (%s)",
				core.ErrNonMonotonicTerms, t.ID, t.Start.Format(time.DateOnly), prev.ID, prev.Start.Format(time.DateOnly))
		}
		if t.Start.Before(prev.End) {
			return fmt.Errorf("%w: %q (%s..%s) overlaps %q (%s..%s)",
				core.ErrOverlappingTerms,
				prev.ID, prev.Start.Format(time.DateOnly), prev.End.Format(time.DateOnly),
				t.ID, t.Start.Format(time.DateOnly), t.End.Format(time.DateOnly))
		}
	}
	return nil
}

// Gaps lists the holes between consecutive terms.
func (c Calendar) Gaps() []Gap {
	var gaps []Gap
	for i := 1; i < len(c.Terms); i++ {
		prev, next := c.Terms[i-1], c.Terms[i]
		if next.Start.After(prev.End) {
			gaps = append(gaps, Gap{After: prev.ID, Before: next.ID, From: prev.End, To: next.Start})
		}
	}
	return gaps
}

// Other returns the opposite regime label.
func (c Calendar) Other(l Label) Label {
	if l == c.LabelA {
		return c.LabelB
	}
	return c.LabelA
}

// Swapped returns a copy with every term label exchanged. The declared
// label order is kept, so gaps computed on the copy change sign.
func (c Calendar) Swapped() Calendar {
	out := Calendar{LabelA: c.LabelA, LabelB: c.LabelB, Terms: make([]Term, len(c.Terms))}
	for i, t := range c.Terms {
		t.Label = c.Other(t.Label)
		out.Terms[i] = t
	}
	return out
}

// Hash fingerprints the calendar for run manifests.
func (c Calendar) Hash() core.CalendarHash {
	parts := []string{string(c.LabelA), string(c.LabelB)}
	for _, t := range c.Terms {
		parts = append(parts,
			t.ID.String(), string(t.Label),
			t.Start.UTC().Format(time.RFC3339), t.End.UTC().Format(time.RFC3339),
			string(t.Completeness))
	}
	return core.CalendarHash(core.HashParts(parts...))
}
