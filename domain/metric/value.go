package metric

import (
	"time"

	"goregime/domain/core"
	"goregime/domain/term"
)

// FormatVersion is stamped on every output row. Bump it whenever the meaning
// of a column changes.
const FormatVersion = "goregime/v1"

// Reason explains a value or its absence.
type Reason string

const (
	ReasonOK            Reason = "ok"
	ReasonNoData        Reason = "no_data"
	ReasonDomainError   Reason = "domain_error"
	ReasonOutOfCoverage Reason = "out_of_coverage"
)

// Value is one (metric, term) result. Created once, never patched.
type Value struct {
	FormatVersion  string              `json:"format_version" csv:"format_version"`
	RunID          core.RunID          `json:"run_id" csv:"run_id"`
	MetricID       core.MetricID       `json:"metric_id" csv:"metric_id"`
	DefinitionHash core.DefinitionHash `json:"definition_hash" csv:"definition_hash"`
	TermID         core.TermID         `json:"term_id" csv:"term_id"`
	Label          term.Label          `json:"label" csv:"label"`
	TermStart      time.Time           `json:"term_start" csv:"term_start"`
	TermEnd        time.Time           `json:"term_end" csv:"term_end"`
	Completeness   term.Completeness   `json:"completeness" csv:"completeness"`
	Value          *float64            `json:"value" csv:"value,omitempty"`
	Reason         Reason              `json:"reason" csv:"reason"`
	Detail         string              `json:"detail,omitempty" csv:"detail,omitempty"`
	NObs           int                 `json:"n_obs" csv:"n_obs"`
	StartObs       *time.Time          `json:"start_obs,omitempty" csv:"start_obs,omitempty"`
	EndObs         *time.Time          `json:"end_obs,omitempty" csv:"end_obs,omitempty"`
	RuleHash       core.RuleHash       `json:"rule_hash" csv:"rule_hash"`
}

// Missing reports whether the value is absent.
func (v Value) Missing() bool {
	return v.Value == nil
}

// Float returns the value and whether it is present.
func (v Value) Float() (float64, bool) {
	if v.Value == nil {
		return 0, false
	}
	return *v.Value, true
}
