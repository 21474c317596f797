package metric

import (
	"fmt"

	"goregime/domain/core"
	"goregime/domain/series"
)

type pairing struct {
	transform   TransformKind
	aggregation AggregationKind
}

// compatible is the load-time table of legal transform x aggregation pairs.
var compatible = map[pairing]bool{
	{TransformLevel, AggMean}:                 true,
	{TransformLevel, AggLast}:                 true,
	{TransformLevel, AggEndMinusStart}:        true,
	{TransformLevel, AggEndMinusStartPerYear}: true,
	{TransformLevel, AggPctChangeEndpoints}:   true,
	{TransformLevel, AggCAGR}:                 true,

	{TransformPctChange, AggMean}:           true,
	{TransformPctChange, AggSum}:            true,
	{TransformPctChange, AggLast}:           true,
	{TransformPctChange, AggCompoundTotal}:  true,
	{TransformPctChange, AggMeanAnnualized}: true,
	{TransformPctChange, AggAnnualizedStd}:  true,

	{TransformLogDiffAnnualized, AggMean}: true,
	{TransformLogDiffAnnualized, AggSum}:  true,

	{TransformIndicatorBelow, AggMean}: true,
}

// levelOnly pairs compute ratios of raw values and are refused on rate series:
// a percent change of a percentage is declared invalid.
var levelOnlyTransforms = map[TransformKind]bool{
	TransformPctChange:         true,
	TransformLogDiffAnnualized: true,
}

var levelOnlyAggregations = map[AggregationKind]bool{
	AggPctChangeEndpoints: true,
	AggCAGR:               true,
}

// CheckPairing validates one transform x aggregation combination on a series
// of the given unit kind.
func CheckPairing(id core.MetricID, t TransformKind, a AggregationKind, unit series.UnitKind) error {
	if !KnownTransform(t) {
		return fmt.Errorf("%w: metric %q has unknown transform %q", core.ErrInvalidDefinition, id, t)
	}
	if !KnownAggregation(a) {
		return fmt.Errorf("%w: metric %q has unknown aggregation %q", core.ErrInvalidDefinition, id, a)
	}
	if !compatible[pairing{t, a}] {
		return fmt.Errorf("%w: metric %q: %s x %s", core.ErrInvalidPairing, id, t, a)
	}
	if unit == series.Rate && t == TransformLevel && levelOnlyAggregations[a] {
		return fmt.Errorf("%w: metric %q: %s on a rate series", core.ErrInvalidPairing, id, a)
	}
	if unit == series.Rate && levelOnlyTransforms[t] {
		return fmt.Errorf("%w: metric %q: %s on a rate series", core.ErrInvalidPairing, id, t)
	}
	return nil
}

// KnownTransform reports whether t is part of the closed transform set.
func KnownTransform(t TransformKind) bool {
	switch t {
	case TransformLevel, TransformPctChange, TransformLogDiffAnnualized, TransformIndicatorBelow:
		return true
	}
	return false
}

// KnownAggregation reports whether a is part of the closed aggregation set.
func KnownAggregation(a AggregationKind) bool {
	switch a {
	case AggMean, AggSum, AggLast, AggEndMinusStart, AggEndMinusStartPerYear,
		AggPctChangeEndpoints, AggCAGR, AggCompoundTotal, AggMeanAnnualized, AggAnnualizedStd:
		return true
	}
	return false
}

// UsesEndpoints reports whether an aggregation reads only the first and last
// value of the window. Those need a real start anchor.
func (a AggregationKind) UsesEndpoints() bool {
	switch a {
	case AggEndMinusStart, AggEndMinusStartPerYear, AggPctChangeEndpoints, AggCAGR:
		return true
	}
	return false
}
