package transform

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"goregime/domain/core"
	"goregime/domain/metric"
	"goregime/domain/series"
)

// Params carries what aggregations need beyond the points themselves.
type Params struct {
	Frequency     series.Frequency
	YearBasisDays float64
}

// Aggregate reduces transformed points to one scalar. Points are consumed in
// the order given, so sums are reproducible bit for bit.
func Aggregate(a metric.AggregationKind, pts []Point, p Params) (float64, error) {
	if len(pts) == 0 {
		return 0, core.NewDomainError(core.ErrTooFewValues, "%s over an empty window", a)
	}
	first, last := pts[0], pts[len(pts)-1]
	years := core.YearsBetween(first.Time, last.Time, p.YearBasisDays)

	switch a {
	case metric.AggMean:
		return wrap(stats.Mean(values(pts)))
	case metric.AggSum:
		return wrap(stats.Sum(values(pts)))
	case metric.AggLast:
		return last.Value, nil
	case metric.AggEndMinusStart:
		return last.Value - first.Value, nil
	case metric.AggEndMinusStartPerYear:
		return PerYear(last.Value-first.Value, years)
	case metric.AggPctChangeEndpoints:
		return PercentChange(first.Value, last.Value)
	case metric.AggCAGR:
		return CAGR(first.Value, last.Value, years)
	case metric.AggCompoundTotal:
		total := 1.0
		for _, pt := range pts {
			total *= 1 + pt.Value/100
		}
		return 100 * (total - 1), nil
	case metric.AggMeanAnnualized:
		m, err := wrap(stats.Mean(values(pts)))
		if err != nil {
			return 0, err
		}
		return m * float64(p.Frequency.PeriodsPerYear()), nil
	case metric.AggAnnualizedStd:
		if len(pts) < 2 {
			return 0, core.NewDomainError(core.ErrTooFewValues, "annualized std needs two values, got %d", len(pts))
		}
		sd, err := wrap(stats.StandardDeviationSample(values(pts)))
		if err != nil {
			return 0, err
		}
		return sd * math.Sqrt(float64(p.Frequency.PeriodsPerYear())), nil
	}
	return 0, fmt.Errorf("%w: aggregation %q", core.ErrInvalidDefinition, a)
}

func values(pts []Point) stats.Float64Data {
	out := make(stats.Float64Data, len(pts))
	for i, pt := range pts {
		out[i] = pt.Value
	}
	return out
}

// wrap maps the stats package's input errors onto domain errors.
func wrap(v float64, err error) (float64, error) {
	if err == nil {
		return v, nil
	}
	if errors.Is(err, stats.ErrEmptyInput) {
		return 0, core.NewDomainError(core.ErrTooFewValues, "%v", err)
	}
	return 0, core.NewDomainError(core.ErrDomain, "%v", err)
}
