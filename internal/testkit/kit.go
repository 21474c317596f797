// Package testkit provides deterministic fixtures and in-memory port
// implementations for pipeline tests.
package testkit

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"goregime/adapters/rng"
	"goregime/domain/attribution"
	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/metric"
	"goregime/domain/series"
	"goregime/domain/term"
	"goregime/ports"
)

// Labels used by every fixture calendar.
const (
	LabelA term.Label = "D"
	LabelB term.Label = "R"
)

// TestKit bundles the fixture inputs of one synthetic run.
type TestKit struct {
	Calendar term.Calendar
	Series   map[core.SeriesID]series.Series
	Family   metric.Family
	Store    *InMemoryStore
}

// NewTestKit creates a kit with the default calendar, series and family.
func NewTestKit() *TestKit {
	k := &TestKit{
		Calendar: Calendar(),
		Series:   make(map[core.SeriesID]series.Series),
		Family:   Family(),
		Store:    NewInMemoryStore(),
	}
	for _, s := range []series.Series{IndustrialProduction(), UnemploymentRate()} {
		k.Series[s.ID] = s
	}
	return k
}

// Catalog returns the series metadata of the kit.
func (k *TestKit) Catalog() ports.SeriesCatalog {
	out := make(ports.SeriesCatalog, len(k.Series))
	for id, s := range k.Series {
		out[id] = s.Meta
	}
	return out
}

// RNGAdapter returns the keyed sub-stream generator.
func (k *TestKit) RNGAdapter() ports.RNGPort {
	return rng.NewKeyedAdapter()
}

// CalendarSource serves the kit calendar.
func (k *TestKit) CalendarSource() ports.CalendarSource {
	return staticCalendar{cal: k.Calendar}
}

// SeriesSource serves the kit series.
func (k *TestKit) SeriesSource() ports.SeriesSource {
	return mapSeries(k.Series)
}

// Registry serves the kit family and catalog.
func (k *TestKit) Registry() ports.DefinitionRegistry {
	return staticRegistry{family: k.Family, catalog: k.Catalog()}
}

// Rule is the default attribution rule of the fixtures.
func Rule() attribution.Rule {
	return attribution.NewRule(attribution.LastStrictlyBefore, 0)
}

// Config is a small randomization configuration. Eight terms in one block
// give C(8,4) = 70 arrangements, so tests run in exact mode.
func Config() inference.Config {
	return inference.Config{
		Draws:      999,
		Resamples:  500,
		Confidence: 0.9,
		Seed:       20240101,
		Block:      inference.BlockConfig{Kind: inference.Unrestricted},
		ExactLimit: 10000,
	}
}

// Tiers is the default evidence tier policy.
func Tiers() inference.TierPolicy {
	return inference.TierPolicy{QThreshold: 0.05, MinTerms: 4}
}

// Calendar returns eight four-year terms starting 1989-01-20, alternating in
// pairs of the same label.
func Calendar() term.Calendar {
	labels := []term.Label{LabelB, LabelA, LabelA, LabelB, LabelB, LabelA, LabelA, LabelB}
	cal := term.Calendar{LabelA: LabelA, LabelB: LabelB}
	for i, l := range labels {
		start := core.Date(1989+4*i, time.January, 20)
		cal.Terms = append(cal.Terms, term.Term{
			ID:           core.TermID(fmt.Sprintf("T%02d", i+1)),
			Label:        l,
			Start:        start,
			End:          start.AddDate(4, 0, 0),
			Completeness: term.Full,
		})
	}
	return cal
}

// Monthly builds a monthly series of n observations on the first of each month.
func Monthly(meta series.Meta, from time.Time, n int, f func(i int, t time.Time) float64) series.Series {
	times := make([]time.Time, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		t := from.AddDate(0, i, 0)
		times[i] = t
		values[i] = f(i, t)
	}
	return series.New(meta, times, values)
}

// IndustrialProduction is a monthly level series growing faster under LabelA.
func IndustrialProduction() series.Series {
	cal := Calendar()
	meta := series.Meta{ID: "INDPRO", Frequency: series.Monthly, Units: "index", UnitKind: series.Level}
	level := 100.0
	return Monthly(meta, core.Date(1988, time.January, 1), 12*38, func(i int, t time.Time) float64 {
		if i == 0 {
			return level
		}
		growth := 0.001
		if labelAt(cal, t) == LabelA {
			growth = 0.003
		}
		level *= 1 + growth + 0.0005*math.Sin(float64(i))
		return level
	})
}

// UnemploymentRate is a monthly rate series oscillating around five percent.
func UnemploymentRate() series.Series {
	meta := series.Meta{ID: "UNRATE", Frequency: series.Monthly, Units: "percent", UnitKind: series.Rate}
	return Monthly(meta, core.Date(1988, time.January, 1), 12*38, func(i int, _ time.Time) float64 {
		return 5 + 1.5*math.Sin(float64(i)/18)
	})
}

// Family declares two tested metrics and one diagnostic.
func Family() metric.Family {
	return metric.Family{Definitions: []metric.Definition{
		{
			ID: "ip_cagr", Label: "Industrial production CAGR", Family: "output", Series: "INDPRO",
			Transform:   metric.Transform{Kind: metric.TransformLevel},
			Aggregation: metric.Aggregation{Kind: metric.AggCAGR},
			Role:        metric.RolePrimary, Units: "percent per year",
		},
		{
			ID: "unrate_change", Label: "Unemployment rate change", Family: "labor", Series: "UNRATE",
			Transform:   metric.Transform{Kind: metric.TransformLevel},
			Aggregation: metric.Aggregation{Kind: metric.AggEndMinusStart},
			Role:        metric.RolePrimary, Units: "percentage points",
		},
		{
			ID: "unrate_below_5", Label: "Share of months below 5%", Family: "labor", Series: "UNRATE",
			Transform:   metric.Transform{Kind: metric.TransformIndicatorBelow, Threshold: 5},
			Aggregation: metric.Aggregation{Kind: metric.AggMean},
			Role:        metric.RoleDiagnostic, Units: "share",
		},
	}}
}

// Samples builds permutation inputs from parallel label/value slices. A NaN
// value becomes a missing sample. Terms start one year apart from 1900.
func Samples(labels []term.Label, values []float64) []inference.Sample {
	out := make([]inference.Sample, len(labels))
	for i := range labels {
		s := inference.Sample{
			TermID: core.TermID(fmt.Sprintf("T%02d", i+1)),
			Label:  labels[i],
			Start:  core.Date(1900+i, time.January, 1),
		}
		if !math.IsNaN(values[i]) {
			v := values[i]
			s.Value = &v
		}
		out[i] = s
	}
	return out
}

func labelAt(cal term.Calendar, t time.Time) term.Label {
	for _, tm := range cal.Terms {
		if !t.Before(tm.Start) && t.Before(tm.End) {
			return tm.Label
		}
	}
	return ""
}

type staticCalendar struct{ cal term.Calendar }

func (s staticCalendar) LoadCalendar(context.Context) (term.Calendar, error) {
	return s.cal, nil
}

type mapSeries map[core.SeriesID]series.Series

func (m mapSeries) LoadSeries(_ context.Context, meta series.Meta) (series.Series, error) {
	s, ok := m[meta.ID]
	if !ok {
		return series.Series{}, fmt.Errorf("%w: %q", core.ErrUnknownSeries, meta.ID)
	}
	return s, nil
}

type staticRegistry struct {
	family  metric.Family
	catalog ports.SeriesCatalog
}

func (s staticRegistry) Load(context.Context) (metric.Family, ports.SeriesCatalog, error) {
	return s.family, s.catalog, nil
}

// SeriesList returns the kit series in id order.
func (k *TestKit) SeriesList() []series.Series {
	ids := make([]string, 0, len(k.Series))
	for id := range k.Series {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	out := make([]series.Series, len(ids))
	for i, id := range ids {
		out[i] = k.Series[core.SeriesID(id)]
	}
	return out
}
