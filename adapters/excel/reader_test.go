package excel

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"goregime/domain/core"
	"goregime/domain/series"
	"goregime/domain/term"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func writeWorkbook(t *testing.T, path string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(DefaultSheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

var monthlyLevel = series.Meta{
	ID:        "INDPRO",
	Frequency: series.Monthly,
	Units:     "index",
	UnitKind:  series.Level,
}

func TestSeriesReader_CSV(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "INDPRO.csv", "date,value\n2001-01-01,100\n2001-02-01,\n2001-03-01,101.5\n2001-04-01,.\n")

	s, err := NewSeriesReader(dir, nil).LoadSeries(context.Background(), monthlyLevel)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, core.Date(2001, time.January, 1), s.Observations[0].Time)
	assert.Equal(t, 101.5, s.Observations[1].Value)
	assert.Equal(t, core.SeriesID("INDPRO"), s.Observations[1].Series)
}

func TestSeriesReader_Workbook(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "INDPRO.xlsx"), [][]any{
		{"date", "value"},
		{"2001-01-01", "100"},
		{"2001-02-01", "102"},
	})

	s, err := NewSeriesReader(dir, nil).LoadSeries(context.Background(), monthlyLevel)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, 102.0, s.Observations[1].Value)
}

func TestSeriesReader_RejectsUnorderedRows(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "INDPRO.csv", "date,value\n2001-02-01,1\n2001-01-01,2\n")

	_, err := NewSeriesReader(dir, nil).LoadSeries(context.Background(), monthlyLevel)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidSeries)
}

func TestSeriesReader_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewSeriesReader(dir, nil).LoadSeries(context.Background(), monthlyLevel)
	assert.Error(t, err, "missing file")

	writeFile(t, dir, "INDPRO.csv", "date,value\n2001-01-01,abc\n")
	_, err = NewSeriesReader(dir, nil).LoadSeries(context.Background(), monthlyLevel)
	assert.Error(t, err, "bad number")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewSeriesReader(dir, nil).LoadSeries(ctx, monthlyLevel)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalendarReader(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "terms.csv", `term_id,label,start,end,completeness
T1,D,2001-01-20,2005-01-20,
T2,R,2005-01-20,2009-01-20,full
T3,D,2009-06-01,2010-01-01,partial
`)

	cal, err := NewCalendarReader(p, "D", "R", nil).LoadCalendar(context.Background())
	require.NoError(t, err)
	require.Len(t, cal.Terms, 3)
	assert.Equal(t, term.Full, cal.Terms[0].Completeness)
	assert.Equal(t, term.Partial, cal.Terms[2].Completeness)
	assert.Equal(t, term.Label("R"), cal.Terms[1].Label)
	assert.Len(t, cal.Gaps(), 1)
}

func TestCalendarReader_RejectsOverlap(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "terms.csv", `term_id,label,start,end
T1,D,2001-01-01,2005-06-01
T2,R,2005-01-01,2009-01-01
`)

	_, err := NewCalendarReader(p, "D", "R", nil).LoadCalendar(context.Background())
	require.Error(t, err)
	assert.True(t, core.IsStructuralError(err))
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2020-03-01T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, 12, d.Hour())

	_, err = parseDate("03/01/2020")
	assert.Error(t, err)
}
