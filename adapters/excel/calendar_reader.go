package excel

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"goregime/domain/core"
	"goregime/domain/term"
	"goregime/ports"
)

type termRow struct {
	ID           string `csv:"term_id"`
	Label        string `csv:"label"`
	Start        string `csv:"start"`
	End          string `csv:"end"`
	Completeness string `csv:"completeness,omitempty"`
}

// CalendarReader loads a term calendar file with term_id, label, start, end
// and optional completeness columns.
type CalendarReader struct {
	path   string
	labelA term.Label
	labelB term.Label
	logger *zap.Logger
}

var _ ports.CalendarSource = (*CalendarReader)(nil)

// NewCalendarReader creates a calendar reader for the two declared labels
func NewCalendarReader(path string, labelA, labelB term.Label, logger *zap.Logger) *CalendarReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarReader{path: path, labelA: labelA, labelB: labelB, logger: logger}
}

// LoadCalendar reads the file and validates the calendar. Gaps between terms
// are logged, not rejected.
func (r *CalendarReader) LoadCalendar(ctx context.Context) (term.Calendar, error) {
	if err := ctx.Err(); err != nil {
		return term.Calendar{}, err
	}
	rows, err := decodeAll[termRow](NewDataReader(r.path, r.logger))
	if err != nil {
		return term.Calendar{}, err
	}

	cal := term.Calendar{LabelA: r.labelA, LabelB: r.labelB}
	for i, row := range rows {
		start, err := parseDate(row.Start)
		if err != nil {
			return term.Calendar{}, eris.Wrapf(err, "%s line %d", r.path, i+2)
		}
		end, err := parseDate(row.End)
		if err != nil {
			return term.Calendar{}, eris.Wrapf(err, "%s line %d", r.path, i+2)
		}
		completeness := term.Completeness(strings.ToLower(strings.TrimSpace(row.Completeness)))
		if completeness == "" {
			completeness = term.Full
		}
		cal.Terms = append(cal.Terms, term.Term{
			ID:           core.TermID(strings.TrimSpace(row.ID)),
			Label:        term.Label(strings.TrimSpace(row.Label)),
			Start:        start,
			End:          end,
			Completeness: completeness,
		})
	}

	if err := cal.Validate(); err != nil {
		return term.Calendar{}, eris.Wrapf(err, "calendar file %s", r.path)
	}
	for _, g := range cal.Gaps() {
		r.logger.Warn("calendar gap",
			zap.String("after", g.After.String()),
			zap.String("before", g.Before.String()),
			zap.Time("from", g.From),
			zap.Time("to", g.To))
	}
	return cal, nil
}
