// Package attribution declares how raw observations are mapped onto terms.
package attribution

import (
	"fmt"
	"strconv"

	"goregime/domain/core"
)

// BoundaryPolicy resolves which observation anchors a term boundary.
type BoundaryPolicy string

const (
	// LastStrictlyBefore anchors a boundary at the latest observation with
	// timestamp < boundary.
	LastStrictlyBefore BoundaryPolicy = "last_strictly_before"
	// FirstOnOrAfter anchors a boundary at the earliest observation with
	// timestamp >= boundary.
	FirstOnOrAfter BoundaryPolicy = "first_on_or_after"
)

// Alignment says how observation timestamps relate to term windows.
type Alignment string

const (
	// Instant compares observation timestamps to boundaries directly.
	Instant Alignment = "instant"
	// PeriodMajority assigns each observation's calendar period to the term
	// covering most of its days.
	PeriodMajority Alignment = "period_majority"
)

// Rule is an immutable attribution configuration. One rule governs one run and
// its hash is stamped on every output row.
type Rule struct {
	Boundary      BoundaryPolicy `json:"boundary" yaml:"boundary"`
	StartLag      int            `json:"start_lag" yaml:"start_lag"`
	EndLag        int            `json:"end_lag" yaml:"end_lag"`
	Alignment     Alignment      `json:"alignment" yaml:"alignment"`
	YearBasisDays float64        `json:"year_basis_days" yaml:"year_basis_days"`
}

// NewRule builds a rule with the lag applied uniformly to both boundaries.
func NewRule(boundary BoundaryPolicy, lag int) Rule {
	return Rule{
		Boundary:      boundary,
		StartLag:      lag,
		EndLag:        lag,
		Alignment:     Instant,
		YearBasisDays: core.DefaultYearBasisDays,
	}
}

// WithEndLag is the explicit asymmetric override.
func (r Rule) WithEndLag(lag int) Rule {
	r.EndLag = lag
	return r
}

// WithAlignment returns a copy using the given alignment.
func (r Rule) WithAlignment(a Alignment) Rule {
	r.Alignment = a
	return r
}

// Asymmetric reports whether start and end lags differ.
func (r Rule) Asymmetric() bool {
	return r.StartLag != r.EndLag
}

// Validate rejects unknown policies.
func (r Rule) Validate() error {
	switch r.Boundary {
	case LastStrictlyBefore, FirstOnOrAfter:
	default:
		return fmt.Errorf("%w: boundary policy %q", core.ErrInvalidRule, r.Boundary)
	}
	switch r.Alignment {
	case Instant, PeriodMajority:
	default:
		return fmt.Errorf("%w: alignment %q", core.ErrInvalidRule, r.Alignment)
	}
	if r.YearBasisDays <= 0 {
		return fmt.Errorf("%w: year basis must be positive", core.ErrInvalidRule)
	}
	return nil
}

// Hash is the audit stamp written next to every value produced under r.
func (r Rule) Hash() core.RuleHash {
	return core.RuleHash(core.HashParts(
		string(r.Boundary),
		strconv.Itoa(r.StartLag),
		strconv.Itoa(r.EndLag),
		string(r.Alignment),
		strconv.FormatFloat(r.YearBasisDays, 'g', -1, 64),
	))
}

func (r Rule) String() string {
	if r.Asymmetric() {
		return fmt.Sprintf("%s/%s lag=%d..%d", r.Boundary, r.Alignment, r.StartLag, r.EndLag)
	}
	return fmt.Sprintf("%s/%s lag=%d", r.Boundary, r.Alignment, r.StartLag)
}
