// Package transform implements the per-observation transforms and term-level
// aggregations a metric definition can declare.
package transform

import (
	"math"

	"goregime/domain/core"
)

// PercentChange is 100 * (end - start) / start.
func PercentChange(start, end float64) (float64, error) {
	if start == 0 {
		return 0, core.NewDomainError(core.ErrDivisionByZero, "percent change from a zero start value")
	}
	return 100 * (end - start) / start, nil
}

// CAGR is 100 * ((end/start)^(1/years) - 1).
func CAGR(start, end, years float64) (float64, error) {
	if years <= 0 {
		return 0, core.NewDomainError(core.ErrNonPositiveHorizon, "cagr over %g years", years)
	}
	if start <= 0 || end <= 0 {
		return 0, core.NewDomainError(core.ErrNonPositiveValue, "cagr between %g and %g", start, end)
	}
	return 100 * (math.Pow(end/start, 1/years) - 1), nil
}

// LogDiffAnnualized is 100 * periodsPerYear * ln(curr / prev).
func LogDiffAnnualized(prev, curr float64, periodsPerYear int) (float64, error) {
	if prev <= 0 || curr <= 0 {
		return 0, core.NewDomainError(core.ErrNonPositiveValue, "log difference between %g and %g", prev, curr)
	}
	return 100 * float64(periodsPerYear) * math.Log(curr/prev), nil
}

// PerYear divides a change by the elapsed years.
func PerYear(change, years float64) (float64, error) {
	if years <= 0 {
		return 0, core.NewDomainError(core.ErrNonPositiveHorizon, "change per year over %g years", years)
	}
	return change / years, nil
}
