package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goregime/adapters/stats/attribution"
	rule "goregime/domain/attribution"
	"goregime/domain/core"
	"goregime/domain/metric"
	"goregime/domain/series"
	"goregime/domain/term"
)

var gdp = series.Meta{ID: "gdp", Frequency: series.Annual, Units: "bn", UnitKind: series.Level}

func def(tk metric.TransformKind, ak metric.AggregationKind) metric.Definition {
	return metric.Definition{
		ID:          "m",
		Series:      "gdp",
		Transform:   metric.Transform{Kind: tk},
		Aggregation: metric.Aggregation{Kind: ak},
		Role:        metric.RolePrimary,
	}
}

func obs(year int, v float64) series.Observation {
	return series.Observation{Time: core.Date(year, 1, 1), Value: v, Series: "gdp"}
}

func window(id string, cov attribution.Coverage, o ...series.Observation) attribution.Window {
	return attribution.Window{
		Term:         term.Term{ID: core.TermID(id), Label: "A", Start: core.Date(2000, 1, 1), End: core.Date(2004, 1, 1), Completeness: term.Full},
		Observations: o,
		Coverage:     cov,
	}
}

func TestEvaluateReasons(t *testing.T) {
	r := rule.NewRule(rule.LastStrictlyBefore, 0)
	r.YearBasisDays = 365
	windows := []attribution.Window{
		window("ok", attribution.Covered, obs(2001, 100), series.Observation{Time: core.Date(2001, 1, 1).AddDate(0, 0, 730), Value: 121}),
		window("empty", attribution.NoData),
		window("outside", attribution.OutOfCoverage),
		window("zero", attribution.Covered, obs(2001, 0), obs(2002, 5)),
	}

	vals := NewEvaluator(nil).Evaluate("run", def(metric.TransformLevel, metric.AggCAGR), gdp, r, windows)
	require.Len(t, vals, 4)

	require.NotNil(t, vals[0].Value)
	assert.InDelta(t, 10.0, *vals[0].Value, 1e-9)
	assert.Equal(t, metric.ReasonOK, vals[0].Reason)
	assert.Equal(t, 2, vals[0].NObs)
	assert.Equal(t, metric.FormatVersion, vals[0].FormatVersion)
	assert.Equal(t, r.Hash(), vals[0].RuleHash)

	assert.Equal(t, metric.ReasonNoData, vals[1].Reason)
	assert.True(t, vals[1].Missing())
	assert.Equal(t, metric.ReasonOutOfCoverage, vals[2].Reason)
	assert.Equal(t, metric.ReasonDomainError, vals[3].Reason)
	assert.NotEmpty(t, vals[3].Detail)
}

func TestEmptyWindowIsNeverDomainError(t *testing.T) {
	r := rule.NewRule(rule.FirstOnOrAfter, 0)
	kinds := []struct {
		t metric.TransformKind
		a metric.AggregationKind
	}{
		{metric.TransformLevel, metric.AggCAGR},
		{metric.TransformLogDiffAnnualized, metric.AggMean},
		{metric.TransformPctChange, metric.AggAnnualizedStd},
		{metric.TransformIndicatorBelow, metric.AggMean},
	}
	for _, k := range kinds {
		vals := NewEvaluator(nil).Evaluate("run", def(k.t, k.a), gdp, r, []attribution.Window{window("t", attribution.NoData)})
		assert.Equal(t, metric.ReasonNoData, vals[0].Reason, "%s x %s", k.t, k.a)
	}
}

func TestLeftCensoredEndpointsAreOutOfCoverage(t *testing.T) {
	w := window("t", attribution.Covered, obs(2001, 100), obs(2003, 110))
	w.LeftCensored = true
	r := rule.NewRule(rule.LastStrictlyBefore, 0)

	vals := NewEvaluator(nil).Evaluate("run", def(metric.TransformLevel, metric.AggEndMinusStart), gdp, r, []attribution.Window{w})
	assert.Equal(t, metric.ReasonOutOfCoverage, vals[0].Reason)

	vals = NewEvaluator(nil).Evaluate("run", def(metric.TransformLevel, metric.AggMean), gdp, r, []attribution.Window{w})
	require.NotNil(t, vals[0].Value)
	assert.InDelta(t, 105.0, *vals[0].Value, 1e-12)
}

func TestPairwiseWithLead(t *testing.T) {
	w := window("t", attribution.Covered, obs(2001, 110))
	lead := obs(2000, 100)
	w.Lead = &lead

	vals := NewEvaluator(nil).Evaluate("run", def(metric.TransformPctChange, metric.AggMean), gdp, rule.NewRule(rule.FirstOnOrAfter, 0), []attribution.Window{w})
	require.NotNil(t, vals[0].Value)
	assert.InDelta(t, 10.0, *vals[0].Value, 1e-9)
	assert.Equal(t, core.Date(2001, 1, 1), *vals[0].StartObs)

	w.Lead = nil
	vals = NewEvaluator(nil).Evaluate("run", def(metric.TransformPctChange, metric.AggMean), gdp, rule.NewRule(rule.FirstOnOrAfter, 0), []attribution.Window{w})
	assert.Equal(t, metric.ReasonNoData, vals[0].Reason)
}

func TestEvaluateIsBitReproducible(t *testing.T) {
	var o []series.Observation
	start := core.Date(1990, 1, 1)
	for i := 0; i < 40; i++ {
		o = append(o, series.Observation{Time: start.AddDate(0, 3*i, 0), Value: 100 * (1 + 0.013*float64(i)) / 3, Series: "gdp"})
	}
	meta := gdp
	meta.Frequency = series.Quarterly
	ws := []attribution.Window{window("t", attribution.Covered, o...)}
	d := def(metric.TransformLogDiffAnnualized, metric.AggMean)

	a := NewEvaluator(nil).Evaluate("run", d, meta, rule.NewRule(rule.LastStrictlyBefore, 0), ws)
	b := NewEvaluator(nil).Evaluate("run", d, meta, rule.NewRule(rule.LastStrictlyBefore, 0), ws)
	require.NotNil(t, a[0].Value)
	assert.Equal(t, *a[0].Value, *b[0].Value)
	assert.Equal(t, time.Time(*a[0].EndObs), time.Time(*b[0].EndObs))
}
