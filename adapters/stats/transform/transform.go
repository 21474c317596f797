package transform

import (
	"fmt"
	"time"

	"goregime/domain/core"
	"goregime/domain/metric"
	"goregime/domain/series"
)

// Point is one transformed value.
type Point struct {
	Time  time.Time
	Value float64
}

// Input is the attributed window a transform runs over. Lead, when set, is
// the observation just before the window and only serves as the base of the
// first pairwise change.
type Input struct {
	Observations []series.Observation
	Lead         *series.Observation
	Frequency    series.Frequency
}

// Apply runs the declared transform over the window in timestamp order.
func Apply(t metric.Transform, in Input) ([]Point, error) {
	switch t.Kind {
	case metric.TransformLevel:
		return levels(in.Observations), nil
	case metric.TransformPctChange:
		return pairwise(in, func(prev, curr float64) (float64, error) {
			return PercentChange(prev, curr)
		})
	case metric.TransformLogDiffAnnualized:
		ppy := in.Frequency.PeriodsPerYear()
		return pairwise(in, func(prev, curr float64) (float64, error) {
			return LogDiffAnnualized(prev, curr, ppy)
		})
	case metric.TransformIndicatorBelow:
		out := make([]Point, len(in.Observations))
		for i, o := range in.Observations {
			v := 0.0
			if o.Value < t.Threshold {
				v = 1
			}
			out[i] = Point{Time: o.Time, Value: v}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: transform %q", core.ErrInvalidDefinition, t.Kind)
}

func levels(obs []series.Observation) []Point {
	out := make([]Point, len(obs))
	for i, o := range obs {
		out[i] = Point{Time: o.Time, Value: o.Value}
	}
	return out
}

// pairwise applies f to consecutive observations. The first in-window
// observation pairs with Lead when one exists.
func pairwise(in Input, f func(prev, curr float64) (float64, error)) ([]Point, error) {
	obs := in.Observations
	if in.Lead != nil {
		obs = append([]series.Observation{*in.Lead}, obs...)
	}
	if len(obs) < 2 {
		return nil, nil
	}
	out := make([]Point, 0, len(obs)-1)
	for i := 1; i < len(obs); i++ {
		v, err := f(obs[i-1].Value, obs[i].Value)
		if err != nil {
			return nil, fmt.Errorf("at %s: %w", obs[i].Time.Format(time.DateOnly), err)
		}
		out = append(out, Point{Time: obs[i].Time, Value: v})
	}
	return out, nil
}
