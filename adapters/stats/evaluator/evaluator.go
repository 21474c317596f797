// Package evaluator composes attributed windows, transforms and aggregations
// into one value per (metric, term).
package evaluator

import (
	"math"
	"time"

	"go.uber.org/zap"

	"goregime/adapters/stats/attribution"
	"goregime/adapters/stats/transform"
	rule "goregime/domain/attribution"
	"goregime/domain/core"
	"goregime/domain/metric"
	"goregime/domain/series"
)

// Evaluator turns windows into metric values. Domain failures are recorded
// on the value and logged; they never abort the run.
type Evaluator struct {
	logger *zap.Logger
}

// NewEvaluator creates a metric evaluator
func NewEvaluator(logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{logger: logger}
}

// Evaluate produces one value per window, in term order.
func (e *Evaluator) Evaluate(runID core.RunID, def metric.Definition, meta series.Meta, r rule.Rule, windows []attribution.Window) []metric.Value {
	defHash := def.Hash()
	ruleHash := r.Hash()

	out := make([]metric.Value, len(windows))
	for i, w := range windows {
		v := metric.Value{
			FormatVersion:  metric.FormatVersion,
			RunID:          runID,
			MetricID:       def.ID,
			DefinitionHash: defHash,
			TermID:         w.Term.ID,
			Label:          w.Term.Label,
			TermStart:      w.Term.Start,
			TermEnd:        w.Term.End,
			Completeness:   w.Term.Completeness,
			RuleHash:       ruleHash,
		}
		e.fill(&v, def, meta, r, w)
		out[i] = v
	}
	return out
}

func (e *Evaluator) fill(v *metric.Value, def metric.Definition, meta series.Meta, r rule.Rule, w attribution.Window) {
	switch {
	case w.Coverage == attribution.OutOfCoverage:
		v.Reason = metric.ReasonOutOfCoverage
		return
	case w.Empty():
		v.Reason = metric.ReasonNoData
		return
	case w.LeftCensored && def.Aggregation.Kind.UsesEndpoints():
		v.Reason = metric.ReasonOutOfCoverage
		v.Detail = "no observation before the term start"
		return
	}

	pts, err := transform.Apply(def.Transform, transform.Input{
		Observations: w.Observations,
		Lead:         w.Lead,
		Frequency:    meta.Frequency,
	})
	if err != nil {
		e.domainError(v, err)
		return
	}
	if len(pts) == 0 {
		v.Reason = metric.ReasonNoData
		v.Detail = "window too short for a pairwise transform"
		return
	}

	x, err := transform.Aggregate(def.Aggregation.Kind, pts, transform.Params{
		Frequency:     meta.Frequency,
		YearBasisDays: r.YearBasisDays,
	})
	v.NObs = len(pts)
	v.StartObs = timePtr(pts[0].Time)
	v.EndObs = timePtr(pts[len(pts)-1].Time)
	if err != nil {
		e.domainError(v, err)
		return
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		e.domainError(v, core.NewDomainError(core.ErrDomain, "non-finite result"))
		return
	}

	v.Value = &x
	v.Reason = metric.ReasonOK
}

func (e *Evaluator) domainError(v *metric.Value, err error) {
	v.Reason = metric.ReasonDomainError
	v.Detail = err.Error()
	lvl := zap.WarnLevel
	if !core.IsDomainError(err) {
		lvl = zap.ErrorLevel
	}
	e.logger.Log(lvl, "metric value not computed",
		zap.String("metric_id", v.MetricID.String()),
		zap.String("term_id", v.TermID.String()),
		zap.Error(err))
}

func timePtr(t time.Time) *time.Time {
	return &t
}
