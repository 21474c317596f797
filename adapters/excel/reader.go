// Package excel reads observation series and term calendars from .xlsx
// workbooks and CSV files.
package excel

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// DefaultSheet is read from workbooks unless a reader is told otherwise.
const DefaultSheet = "Sheet1"

// DataReader decodes the rows of one Excel or CSV file into tagged structs.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	sheet    string
	logger   *zap.Logger
}

// NewDataReader creates a new data reader that handles both Excel and CSV files
func NewDataReader(filePath string, logger *zap.Logger) *DataReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType, sheet: DefaultSheet, logger: logger}
}

// WithSheet selects the workbook sheet to read.
func (r *DataReader) WithSheet(sheet string) *DataReader {
	r.sheet = sheet
	return r
}

// rowSource adapts in-memory rows to csvutil's reader interface.
type rowSource struct {
	rows [][]string
	next int
}

func (s *rowSource) Read() ([]string, error) {
	if s.next >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	return row, nil
}

// decodeAll decodes every data row into out, which must point to a slice of
// structs with csv tags.
func decodeAll[T any](r *DataReader) ([]T, error) {
	start := time.Now()
	var src csvutil.Reader
	switch r.fileType {
	case "csv":
		f, err := os.Open(r.filePath)
		if err != nil {
			return nil, eris.Wrapf(err, "open %s", r.filePath)
		}
		defer f.Close()
		cr := csv.NewReader(f)
		cr.TrimLeadingSpace = true
		src = cr
	default:
		wb, err := excelize.OpenFile(r.filePath)
		if err != nil {
			return nil, eris.Wrapf(err, "open workbook %s", r.filePath)
		}
		defer wb.Close()
		rows, err := wb.GetRows(r.sheet)
		if err != nil {
			return nil, eris.Wrapf(err, "read sheet %s of %s", r.sheet, r.filePath)
		}
		src = &rowSource{rows: trimRows(rows)}
	}

	dec, err := csvutil.NewDecoder(src)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, eris.Errorf("%s: no header row", r.filePath)
		}
		return nil, eris.Wrapf(err, "read header of %s", r.filePath)
	}

	var out []T
	for {
		var v T
		if err := dec.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "decode %s line %d", r.filePath, len(out)+2)
		}
		out = append(out, v)
	}

	r.logger.Debug("file decoded",
		zap.String("path", r.filePath),
		zap.String("type", r.fileType),
		zap.Int("rows", len(out)),
		zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// trimRows strips cell whitespace and pads short rows, which excelize
// returns without trailing empty cells.
func trimRows(rows [][]string) [][]string {
	if len(rows) == 0 {
		return rows
	}
	width := len(rows[0])
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, width)
		for j := 0; j < width && j < len(row); j++ {
			cells[j] = strings.TrimSpace(row[j])
		}
		out = append(out, cells)
	}
	return out
}

// parseDate accepts ISO dates and RFC3339 timestamps, normalized to UTC.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, eris.Errorf("unparseable date %q", s)
	}
	return t.UTC(), nil
}
