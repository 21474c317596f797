// Package metric declares metric definitions, the transform x aggregation
// compatibility table and per-term metric values.
package metric

import (
	"fmt"
	"strconv"

	"goregime/domain/core"
	"goregime/domain/series"
)

// TransformKind is the closed set of per-observation transforms.
type TransformKind string

const (
	TransformLevel             TransformKind = "level"
	TransformPctChange         TransformKind = "pct_change"
	TransformLogDiffAnnualized TransformKind = "log_diff_annualized"
	TransformIndicatorBelow    TransformKind = "indicator_below"
)

// AggregationKind is the closed set of term-level reductions.
type AggregationKind string

const (
	AggMean                 AggregationKind = "mean"
	AggSum                  AggregationKind = "sum"
	AggLast                 AggregationKind = "last"
	AggEndMinusStart        AggregationKind = "end_minus_start"
	AggEndMinusStartPerYear AggregationKind = "end_minus_start_per_year"
	AggPctChangeEndpoints   AggregationKind = "pct_change_endpoints"
	AggCAGR                 AggregationKind = "cagr"
	AggCompoundTotal        AggregationKind = "compound_total"
	AggMeanAnnualized       AggregationKind = "mean_annualized"
	AggAnnualizedStd        AggregationKind = "annualized_std"
)

// Role decides family membership. Diagnostic metrics are computed and tested
// but never enter the multiple-testing family.
type Role string

const (
	RolePrimary    Role = "primary"
	RoleAlternate  Role = "alternate"
	RoleDiagnostic Role = "diagnostic"
)

// Transform carries the transform kind and its parameters.
type Transform struct {
	Kind      TransformKind `json:"kind" yaml:"kind"`
	Threshold float64       `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// Aggregation carries the aggregation kind and its parameters.
type Aggregation struct {
	Kind AggregationKind `json:"kind" yaml:"kind"`
}

// Definition is declarative and never mutated at runtime. A changed
// definition must get a new ID.
type Definition struct {
	ID          core.MetricID `json:"metric_id" yaml:"id"`
	Label       string        `json:"label" yaml:"label"`
	Family      string        `json:"family" yaml:"family"`
	Series      core.SeriesID `json:"series_id" yaml:"series"`
	Transform   Transform     `json:"transform" yaml:"transform"`
	Aggregation Aggregation   `json:"aggregation" yaml:"aggregation"`
	Role        Role          `json:"role" yaml:"role"`
	Units       string        `json:"units" yaml:"units"`
}

// InFamily reports whether the metric takes part in BH correction.
func (d Definition) InFamily() bool {
	return d.Role == RolePrimary || d.Role == RoleAlternate
}

// Hash is the canonical definition fingerprint.
func (d Definition) Hash() core.DefinitionHash {
	return core.DefinitionHash(core.HashParts(
		d.ID.String(),
		d.Series.String(),
		string(d.Transform.Kind),
		strconv.FormatFloat(d.Transform.Threshold, 'g', -1, 64),
		string(d.Aggregation.Kind),
		string(d.Role),
		d.Units,
	))
}

// Validate checks the definition against the series it references. Every
// failure is structural and happens before any data is processed.
func (d Definition) Validate(meta series.Meta) error {
	if _, err := core.ParseMetricID(d.ID.String()); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidDefinition, err)
	}
	if d.Series == "" {
		return fmt.Errorf("%w: metric %q has no series", core.ErrInvalidDefinition, d.ID)
	}
	if d.Series != meta.ID {
		return fmt.Errorf("%w: metric %q references %q but was checked against %q",
			core.ErrInvalidDefinition, d.ID, d.Series, meta.ID)
	}
	switch d.Role {
	case RolePrimary, RoleAlternate, RoleDiagnostic:
	default:
		return fmt.Errorf("%w: metric %q has role %q", core.ErrInvalidDefinition, d.ID, d.Role)
	}
	return CheckPairing(d.ID, d.Transform.Kind, d.Aggregation.Kind, meta.UnitKind)
}
