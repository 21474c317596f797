package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goregime/app"
	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/metric"
	"goregime/domain/run"
	"goregime/internal/errors"
	"goregime/internal/migration"
	"goregime/internal/testkit"
	"goregime/ports"
)

func newTestRepo(t *testing.T) *ResultRepository {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, migration.NewRunner().Run(ctx, db))
	return NewResultRepository(db, nil)
}

func newManifest() *run.Manifest {
	k := testkit.NewTestKit()
	return run.NewManifest(core.NewRunID(), k.Calendar, k.SeriesList(), k.Family,
		testkit.Rule(), testkit.Config(), testkit.Tiers(), "test")
}

func count(t *testing.T, repo *ResultRepository, table string) int {
	t.Helper()
	var n int
	require.NoError(t, repo.db.GetContext(context.Background(), &n, "SELECT COUNT(*) FROM "+table))
	return n
}

func TestResultRepository_CheckDefinitions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	defs := testkit.Family().Definitions

	require.NoError(t, repo.CheckDefinitions(ctx, defs))
	assert.Zero(t, count(t, repo, "metric_definitions"), "checking writes nothing")

	require.NoError(t, repo.SaveResult(ctx, ports.RunBundle{Manifest: newManifest(), Definitions: defs}))
	assert.Equal(t, len(defs), count(t, repo, "metric_definitions"))
	require.NoError(t, repo.CheckDefinitions(ctx, defs), "same definitions are accepted again")

	changed := append([]metric.Definition(nil), defs...)
	changed[0].Aggregation.Kind = metric.AggPctChangeEndpoints
	err := repo.CheckDefinitions(ctx, changed)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDefinitionDrift)
	assert.Contains(t, err.Error(), core.Hash(changed[0].Hash()).Short())

	err = repo.SaveResult(ctx, ports.RunBundle{Manifest: newManifest(), Definitions: changed})
	assert.ErrorIs(t, err, core.ErrDefinitionDrift)
	assert.Equal(t, 1, count(t, repo, "runs"), "a drifting run is not saved")
}

func TestResultRepository_RunRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	m := newManifest()
	summary := run.Summary{DomainErrors: 1, Values: 16, Metrics: 2}

	require.NoError(t, repo.SaveResult(ctx, ports.RunBundle{Manifest: m, Summary: summary}))
	assert.Error(t, repo.SaveResult(ctx, ports.RunBundle{Manifest: m, Summary: summary}), "runs are append-only")

	runs, err := repo.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, m.RunID, runs[0].RunID)
	assert.True(t, runs[0].Success)
	assert.Equal(t, m.Fingerprint.Fingerprint, runs[0].Fingerprint)

	got, err := repo.GetRun(ctx, m.RunID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, summary, got.Summary)
	assert.Equal(t, m.FamilyIDs, got.Manifest.FamilyIDs)
	assert.Equal(t, m.Randomization, got.Manifest.Randomization)
	assert.Equal(t, m.Rule.Hash(), got.Manifest.Rule.Hash())

	missing, err := repo.GetRun(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestResultRepository_ValuesAndRecords(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	m := newManifest()
	runID := m.RunID

	x := 2.5
	obs := core.Date(1993, time.January, 1)
	values := []metric.Value{
		{
			FormatVersion: metric.FormatVersion, RunID: runID, MetricID: "m", TermID: "T2",
			TermStart: core.Date(1993, time.January, 20), TermEnd: core.Date(1997, time.January, 20),
			Value: &x, Reason: metric.ReasonOK, NObs: 49, StartObs: &obs, EndObs: &obs,
		},
		{
			FormatVersion: metric.FormatVersion, RunID: runID, MetricID: "m", TermID: "T1",
			TermStart: core.Date(1989, time.January, 20), TermEnd: core.Date(1993, time.January, 20),
			Reason: metric.ReasonOutOfCoverage,
		},
	}
	records := []inference.Record{
		{RunID: runID, MetricID: "b", Evidence: inference.TierExploratory,
			Permutation: &inference.PermutationResult{PValue: 0.3},
			Q:           &inference.QValueResult{QValue: 0.3, Rank: 2, FamilySize: 2}},
		{RunID: runID, MetricID: "a", Evidence: inference.TierDiagnostic},
	}
	require.NoError(t, repo.SaveResult(ctx, ports.RunBundle{Manifest: m, Values: values, Records: records}))

	got, err := repo.ListValues(ctx, runID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, core.TermID("T1"), got[0].TermID, "ordered by term start")
	assert.True(t, got[0].Missing())
	require.NotNil(t, got[1].Value)
	assert.Equal(t, 2.5, *got[1].Value)
	require.NotNil(t, got[1].StartObs)
	assert.True(t, obs.Equal(*got[1].StartObs))

	recs, err := repo.ListRecords(ctx, runID)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, core.MetricID("b"), recs[0].MetricID, "saved order is kept")
	assert.Equal(t, 2, recs[0].Q.Rank)
	assert.Nil(t, recs[1].Q)
}

func TestResultRepository_FailedSaveLeavesNothing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.db.ExecContext(ctx, "DROP TABLE metric_values")
	require.NoError(t, err)

	x := 1.0
	m := newManifest()
	err = repo.SaveResult(ctx, ports.RunBundle{
		Manifest:    m,
		Definitions: testkit.Family().Definitions,
		Values:      []metric.Value{{RunID: m.RunID, MetricID: "ip_cagr", TermID: "T01", Value: &x, Reason: metric.ReasonOK}},
	})
	require.Error(t, err)

	assert.Zero(t, count(t, repo, "runs"))
	assert.Zero(t, count(t, repo, "metric_definitions"))
	assert.Zero(t, count(t, repo, "inference_records"))
}

func TestPipelineRunIsAtomicOnStoreFailure(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	_, err := repo.db.ExecContext(ctx, "DROP TABLE metric_values")
	require.NoError(t, err)

	k := testkit.NewTestKit()
	svc := app.NewPipelineService(k.CalendarSource(), k.SeriesSource(), k.Registry(), repo, k.RNGAdapter(), nil)
	_, err = svc.Run(ctx, app.RunRequest{
		RunID:         "atomic",
		Rule:          testkit.Rule(),
		Randomization: testkit.Config(),
		Tiers:         testkit.Tiers(),
		NeweyWestLags: 1,
		Workers:       2,
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeStoreError, errors.GetCode(err))

	runs, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Zero(t, count(t, repo, "metric_definitions"))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}
