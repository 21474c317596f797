package excel

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"goregime/domain/series"
	"goregime/ports"
)

type observationRow struct {
	Date  string `csv:"date"`
	Value string `csv:"value"`
}

// SeriesReader loads <dir>/<series id>.csv or .xlsx files with date and value
// columns. Blank values are treated as absent observations.
type SeriesReader struct {
	dir    string
	logger *zap.Logger
}

var _ ports.SeriesSource = (*SeriesReader)(nil)

// NewSeriesReader creates a reader over a series directory
func NewSeriesReader(dir string, logger *zap.Logger) *SeriesReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeriesReader{dir: dir, logger: logger}
}

// LoadSeries reads and validates one series. Out-of-order or duplicate
// timestamps are rejected, not sorted.
func (r *SeriesReader) LoadSeries(ctx context.Context, meta series.Meta) (series.Series, error) {
	if err := ctx.Err(); err != nil {
		return series.Series{}, err
	}
	path, err := r.locate(meta.ID.String())
	if err != nil {
		return series.Series{}, err
	}

	rows, err := decodeAll[observationRow](NewDataReader(path, r.logger))
	if err != nil {
		return series.Series{}, err
	}

	times := make([]time.Time, 0, len(rows))
	values := make([]float64, 0, len(rows))
	for i, row := range rows {
		raw := strings.TrimSpace(row.Value)
		if raw == "" || raw == "." {
			continue
		}
		t, err := parseDate(row.Date)
		if err != nil {
			return series.Series{}, eris.Wrapf(err, "%s line %d", path, i+2)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return series.Series{}, eris.Wrapf(err, "%s line %d", path, i+2)
		}
		times = append(times, t)
		values = append(values, v)
	}

	s := series.New(meta, times, values)
	if err := s.Validate(); err != nil {
		return series.Series{}, eris.Wrapf(err, "series file %s", path)
	}
	r.logger.Info("series loaded",
		zap.String("series_id", meta.ID.String()),
		zap.Int("observations", s.Len()))
	return s, nil
}

func (r *SeriesReader) locate(id string) (string, error) {
	for _, ext := range []string{".csv", ".xlsx"} {
		p := filepath.Join(r.dir, id+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", eris.Errorf("no .csv or .xlsx file for series %q in %s", id, r.dir)
}
