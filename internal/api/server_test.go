package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goregime/app"
	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/metric"
	"goregime/internal/telemetry"
	"goregime/internal/testkit"
	"goregime/ports"
)

func seededServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	k := testkit.NewTestKit()
	svc := app.NewPipelineService(k.CalendarSource(), k.SeriesSource(), k.Registry(), k.Store, k.RNGAdapter(), nil)
	_, err := svc.Run(context.Background(), app.RunRequest{
		RunID:         "run-api",
		Rule:          testkit.Rule(),
		Randomization: testkit.Config(),
		Tiers:         testkit.Tiers(),
		NeweyWestLags: 1,
		Workers:       2,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, telemetry.Register(reg))
	return NewServer(k.Store, reg, nil), reg
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Health(t *testing.T) {
	s, _ := seededServer(t)
	rec := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestServer_ListRuns(t *testing.T) {
	s, _ := seededServer(t)
	rec := get(t, s, "/api/runs")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Runs  []ports.RunSummary `json:"runs"`
		Count int                `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, core.RunID("run-api"), body.Runs[0].RunID)
	assert.True(t, body.Runs[0].Success)
}

func TestServer_ListRunsRejectsBadLimit(t *testing.T) {
	s, _ := seededServer(t)
	for _, q := range []string{"abc", "0", "-1", "501"} {
		rec := get(t, s, "/api/runs?limit="+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestServer_GetRun(t *testing.T) {
	s, _ := seededServer(t)

	rec := get(t, s, "/api/runs/run-api")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail ports.RunDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, core.RunID("run-api"), detail.Manifest.RunID)
	assert.Equal(t, 3, detail.Summary.Metrics)

	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/runs/missing").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/runs/missing/values").Code)
	assert.Equal(t, http.StatusNotFound, get(t, s, "/api/runs/missing/inference").Code)
}

func TestServer_ValuesAndInference(t *testing.T) {
	s, _ := seededServer(t)

	rec := get(t, s, "/api/runs/run-api/values")
	require.Equal(t, http.StatusOK, rec.Code)
	var values struct {
		Values []metric.Value `json:"values"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &values))
	assert.Equal(t, 24, values.Count)

	rec = get(t, s, "/api/runs/run-api/inference")
	require.Equal(t, http.StatusOK, rec.Code)
	var records struct {
		Records []inference.Record `json:"records"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records.Records, 3)
	assert.Equal(t, core.MetricID("ip_cagr"), records.Records[0].MetricID)
}

func TestServer_Metrics(t *testing.T) {
	s, _ := seededServer(t)
	rec := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "goregime_runs_total")
	assert.Contains(t, rec.Body.String(), "goregime_evidence_records_total")
}

type failingReader struct{ ports.ReaderPort }

func (failingReader) ListRuns(context.Context, int) ([]ports.RunSummary, error) {
	return nil, errors.New("db down")
}

func TestServer_StoreFailureIs500(t *testing.T) {
	s := NewServer(failingReader{}, prometheus.NewRegistry(), nil)
	rec := get(t, s, "/api/runs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}
