package inference

import (
	"goregime/domain/core"
)

// EvidenceTier grades a metric's result for reporting.
type EvidenceTier string

const (
	TierConfirmatory EvidenceTier = "confirmatory"
	TierSupportive   EvidenceTier = "supportive"
	TierExploratory  EvidenceTier = "exploratory"
	TierDiagnostic   EvidenceTier = "diagnostic"
)

// SupportiveQ is the fixed q cutoff of the supportive tier.
const SupportiveQ = 0.10

// TierPolicy holds the thresholds used to grade results.
type TierPolicy struct {
	QThreshold float64 `json:"q_threshold"`
	MinTerms   int     `json:"min_terms"`
}

// Classify grades one metric. A nil q means the metric is outside the family.
func (p TierPolicy) Classify(q *float64, n int) EvidenceTier {
	if q == nil {
		return TierDiagnostic
	}
	enough := n >= p.MinTerms
	switch {
	case enough && *q < p.QThreshold:
		return TierConfirmatory
	case enough && *q < SupportiveQ:
		return TierSupportive
	}
	return TierExploratory
}

// Record is the per-metric inference row handed to renderers. It carries
// enough to reproduce every number without rerunning ingestion.
type Record struct {
	FormatVersion  string              `json:"format_version"`
	RunID          core.RunID          `json:"run_id"`
	MetricID       core.MetricID       `json:"metric_id"`
	Label          string              `json:"label"`
	Family         string              `json:"family"`
	Role           string              `json:"role"`
	DefinitionHash core.DefinitionHash `json:"definition_hash"`
	RuleHash       core.RuleHash       `json:"rule_hash"`

	Groups      []GroupSummary     `json:"groups"`
	Permutation *PermutationResult `json:"permutation,omitempty"`
	Q           *QValueResult      `json:"q,omitempty"`
	Bootstrap   *Interval          `json:"bootstrap,omitempty"`
	HAC         *HACResult         `json:"hac,omitempty"`
	Welch       *WelchResult       `json:"welch,omitempty"`

	Tier     TierPolicy   `json:"tier_policy"`
	Evidence EvidenceTier `json:"evidence_tier"`
	Note     string       `json:"note,omitempty"`
}

// N is the number of non-missing terms behind the record.
func (r Record) N() int {
	n := 0
	for _, g := range r.Groups {
		n += g.N
	}
	return n
}

// QValue returns the q-value if the metric is in the family.
func (r Record) QValue() *float64 {
	if r.Q == nil {
		return nil
	}
	q := r.Q.QValue
	return &q
}
