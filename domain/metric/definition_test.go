package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goregime/domain/core"
	"goregime/domain/series"
)

var (
	gdpMeta   = series.Meta{ID: "gdp", Frequency: series.Quarterly, Units: "bn USD", UnitKind: series.Level}
	unempMeta = series.Meta{ID: "unrate", Frequency: series.Monthly, Units: "percent", UnitKind: series.Rate}
	catalog   = map[core.SeriesID]series.Meta{gdpMeta.ID: gdpMeta, unempMeta.ID: unempMeta}
)

func def(id string, s core.SeriesID, t TransformKind, a AggregationKind) Definition {
	return Definition{
		ID:          core.MetricID(id),
		Series:      s,
		Transform:   Transform{Kind: t},
		Aggregation: Aggregation{Kind: a},
		Role:        RolePrimary,
	}
}

func TestCheckPairing(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		wantErr error
	}{
		{"cagr on levels", def("gdp_cagr", "gdp", TransformLevel, AggCAGR), nil},
		{"growth mean", def("gdp_growth", "gdp", TransformLogDiffAnnualized, AggMean), nil},
		{"change of a rate", def("unrate_change", "unrate", TransformLevel, AggEndMinusStart), nil},
		{"share of time", def("unrate_low", "unrate", TransformIndicatorBelow, AggMean), nil},
		{"pct change of a percentage", def("unrate_pct", "unrate", TransformLevel, AggPctChangeEndpoints), core.ErrInvalidPairing},
		{"growth of a rate", def("unrate_growth", "unrate", TransformPctChange, AggMean), core.ErrInvalidPairing},
		{"indicator with cagr", def("bad", "gdp", TransformIndicatorBelow, AggCAGR), core.ErrInvalidPairing},
		{"log diff compounded", def("bad2", "gdp", TransformLogDiffAnnualized, AggCompoundTotal), core.ErrInvalidPairing},
		{"unknown aggregation", def("bad3", "gdp", TransformLevel, "median"), core.ErrInvalidDefinition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate(catalog[tt.def.Series])
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.True(t, core.IsStructuralError(err))
		})
	}
}

func TestFamilyValidate(t *testing.T) {
	fam := Family{Definitions: []Definition{
		def("gdp_growth", "gdp", TransformLogDiffAnnualized, AggMean),
		def("gdp_cagr", "gdp", TransformLevel, AggCAGR),
	}}
	require.NoError(t, fam.Validate(catalog))

	dup := Family{Definitions: append(fam.Definitions, def("gdp_cagr", "gdp", TransformLevel, AggMean))}
	assert.ErrorIs(t, dup.Validate(catalog), core.ErrDuplicateMetricID)

	unknown := Family{Definitions: []Definition{def("x", "cpi", TransformLevel, AggMean)}}
	assert.ErrorIs(t, unknown.Validate(catalog), core.ErrUnknownSeries)
}

func TestFamilyTestedIDsSkipsDiagnostics(t *testing.T) {
	diag := def("sp500_backfilled", "gdp", TransformLevel, AggMean)
	diag.Role = RoleDiagnostic
	fam := Family{Definitions: []Definition{
		def("a", "gdp", TransformLevel, AggMean),
		diag,
		def("b", "gdp", TransformLevel, AggLast),
	}}

	assert.Equal(t, []core.MetricID{"a", "b"}, fam.TestedIDs())
	assert.Len(t, fam.Subset("a").Definitions, 1)
	assert.NotEqual(t, fam.Hash(), fam.Subset("a", "b").Hash())
}

func TestDefinitionHashChangesWithSemantics(t *testing.T) {
	a := def("gdp_growth", "gdp", TransformLogDiffAnnualized, AggMean)
	b := a
	b.Aggregation.Kind = AggSum

	assert.Equal(t, a.Hash(), def("gdp_growth", "gdp", TransformLogDiffAnnualized, AggMean).Hash())
	assert.NotEqual(t, a.Hash(), b.Hash())
}
