package report

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jszwec/csvutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goregime/app"
	"goregime/domain/inference"
	"goregime/domain/metric"
	"goregime/internal/testkit"
)

func runKit(t *testing.T) Run {
	t.Helper()
	k := testkit.NewTestKit()
	svc := app.NewPipelineService(k.CalendarSource(), k.SeriesSource(), k.Registry(), nil, k.RNGAdapter(), nil)
	res, err := svc.Run(context.Background(), app.RunRequest{
		RunID:         "run-report",
		Rule:          testkit.Rule(),
		Randomization: testkit.Config(),
		Tiers:         testkit.Tiers(),
		NeweyWestLags: 1,
		Workers:       2,
		CodeVersion:   "test",
	})
	require.NoError(t, err)
	return Run{
		Manifest: res.Manifest,
		Calendar: res.Calendar,
		Values:   res.Values,
		Records:  res.Records,
		Summary:  res.Summary,
	}
}

func TestWriteAll(t *testing.T) {
	r := runKit(t)
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := NewWriter(dir, nil).WriteAll(r)
	require.NoError(t, err)
	require.Len(t, paths, 4)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), p)
	}

	data, err := os.ReadFile(filepath.Join(dir, InferenceFile))
	require.NoError(t, err)
	var rows []inferenceRow
	require.NoError(t, csvutil.Unmarshal(data, &rows))
	require.Len(t, rows, len(r.Records))
	for i, row := range rows {
		assert.Equal(t, metric.FormatVersion, row.FormatVersion)
		assert.Equal(t, "run-report", row.RunID)
		assert.Equal(t, r.Records[i].MetricID.String(), row.MetricID, "family order is kept")
	}

	htmlPage, err := os.ReadFile(filepath.Join(dir, HTMLFile))
	require.NoError(t, err)
	assert.Contains(t, string(htmlPage), "<table>")
	assert.Contains(t, string(htmlPage), "<title>")
	assert.Contains(t, string(htmlPage), "run-report")
}

func TestWriteInferenceCSV_DiagnosticHasBlankQ(t *testing.T) {
	r := runKit(t)

	var buf bytes.Buffer
	require.NoError(t, WriteInferenceCSV(&buf, r.Records))

	var rows []inferenceRow
	require.NoError(t, csvutil.Unmarshal(buf.Bytes(), &rows))
	for _, row := range rows {
		if row.Evidence == inference.TierDiagnostic {
			assert.Nil(t, row.QValue)
			assert.Zero(t, row.FamilySize)
			continue
		}
		require.NotNil(t, row.QValue)
		require.NotNil(t, row.PValue)
		assert.GreaterOrEqual(t, *row.QValue, *row.PValue)
	}
}

func TestWriteValuesCSV(t *testing.T) {
	r := runKit(t)

	var buf bytes.Buffer
	require.NoError(t, WriteValuesCSV(&buf, r.Values))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, len(r.Values)+1)
	assert.True(t, strings.HasPrefix(lines[0], "format_version,run_id,metric_id"))
}

func TestWriteCSV_EmptyWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInferenceCSV(&buf, nil))
	assert.True(t, strings.HasPrefix(buf.String(), "format_version,run_id,metric_id"))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
}

func TestScoreboard(t *testing.T) {
	r := runKit(t)
	md := Scoreboard(r)

	assert.Contains(t, md, "# Regime scoreboard")
	assert.Contains(t, md, "A = D, B = R")
	assert.Contains(t, md, "90% CI")
	for _, rec := range r.Records {
		assert.Contains(t, md, "| "+rec.Label+" |")
	}
	assert.Contains(t, md, string(inference.TierDiagnostic))
	assert.Contains(t, md, "- Fatal errors: 0")
}
