// Package report renders run results as CSV tables, a markdown scoreboard
// and its HTML rendering.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"goregime/domain/inference"
	"goregime/domain/metric"
	"goregime/domain/run"
	"goregime/domain/term"
)

// Output file names.
const (
	ValuesFile     = "metric_values.csv"
	InferenceFile  = "inference.csv"
	ScoreboardFile = "scoreboard.md"
	HTMLFile       = "scoreboard.html"
)

// Run is what the renderers need from one pipeline run.
type Run struct {
	Manifest *run.Manifest
	Calendar term.Calendar
	Values   []metric.Value
	Records  []inference.Record
	Summary  run.Summary
}

// Writer writes the report files of a run into one directory.
type Writer struct {
	dir    string
	logger *zap.Logger
}

// NewWriter creates a report writer for dir
func NewWriter(dir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, logger: logger}
}

// WriteAll writes every report file and returns their paths.
func (w *Writer) WriteAll(r Run) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, eris.Wrapf(err, "report: create %s", w.dir)
	}

	md := Scoreboard(r)
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{ValuesFile, func(out io.Writer) error { return WriteValuesCSV(out, r.Values) }},
		{InferenceFile, func(out io.Writer) error { return WriteInferenceCSV(out, r.Records) }},
		{ScoreboardFile, func(out io.Writer) error { _, err := io.WriteString(out, md); return err }},
		{HTMLFile, func(out io.Writer) error { _, err := out.Write(RenderHTML(md, r.Manifest.RunID.String())); return err }},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		p := filepath.Join(w.dir, f.name)
		if err := writeFile(p, f.write); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	w.logger.Info("reports written", zap.String("dir", w.dir), zap.Int("files", len(paths)))
	return paths, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return eris.Wrapf(err, "report: write %s", path)
	}
	return eris.Wrapf(f.Close(), "report: close %s", path)
}

// WriteValuesCSV writes the (metric, term) table.
func WriteValuesCSV(out io.Writer, values []metric.Value) error {
	return encodeCSV(out, values)
}

// inferenceRow is the flat CSV form of a record. Absent numbers are blank.
type inferenceRow struct {
	FormatVersion  string                 `csv:"format_version"`
	RunID          string                 `csv:"run_id"`
	MetricID       string                 `csv:"metric_id"`
	Label          string                 `csv:"label"`
	Family         string                 `csv:"family"`
	Role           string                 `csv:"role"`
	Evidence       inference.EvidenceTier `csv:"evidence_tier"`
	NA             int                    `csv:"n_a"`
	NB             int                    `csv:"n_b"`
	MeanA          *float64               `csv:"mean_a,omitempty"`
	MeanB          *float64               `csv:"mean_b,omitempty"`
	ObservedGap    *float64               `csv:"observed_gap,omitempty"`
	PValue         *float64               `csv:"p_value,omitempty"`
	Draws          int                    `csv:"draws"`
	Mode           inference.Mode         `csv:"mode"`
	Block          string                 `csv:"block"`
	Seed           int64                  `csv:"seed"`
	StreamSeed     int64                  `csv:"permutation_stream_seed"`
	NullMean       *float64               `csv:"null_mean,omitempty"`
	NullStd        *float64               `csv:"null_std,omitempty"`
	ZScore         *float64               `csv:"z_score,omitempty"`
	QValue         *float64               `csv:"q_value,omitempty"`
	Rank           int                    `csv:"rank,omitempty"`
	FamilySize     int                    `csv:"family_size,omitempty"`
	PImputed       bool                   `csv:"p_imputed"`
	CILow          *float64               `csv:"ci_low,omitempty"`
	CIHigh         *float64               `csv:"ci_high,omitempty"`
	Confidence     *float64               `csv:"confidence,omitempty"`
	Resamples      int                    `csv:"resamples,omitempty"`
	BootStream     int64                  `csv:"bootstrap_stream_seed,omitempty"`
	HACBeta        *float64               `csv:"hac_beta,omitempty"`
	HACStdErr      *float64               `csv:"hac_std_err,omitempty"`
	HACPValue      *float64               `csv:"hac_p_value,omitempty"`
	HACLags        int                    `csv:"hac_lags,omitempty"`
	WelchT         *float64               `csv:"welch_t,omitempty"`
	WelchDF        *float64               `csv:"welch_df,omitempty"`
	WelchPValue    *float64               `csv:"welch_p_value,omitempty"`
	CohensD        *float64               `csv:"cohens_d,omitempty"`
	DefinitionHash string                 `csv:"definition_hash"`
	RuleHash       string                 `csv:"rule_hash"`
	Note           string                 `csv:"note,omitempty"`
}

func toInferenceRow(r inference.Record) inferenceRow {
	row := inferenceRow{
		FormatVersion:  r.FormatVersion,
		RunID:          r.RunID.String(),
		MetricID:       r.MetricID.String(),
		Label:          r.Label,
		Family:         r.Family,
		Role:           r.Role,
		Evidence:       r.Evidence,
		DefinitionHash: r.DefinitionHash.String(),
		RuleHash:       r.RuleHash.String(),
		Note:           r.Note,
	}
	if len(r.Groups) == 2 {
		row.NA, row.NB = r.Groups[0].N, r.Groups[1].N
		if row.NA > 0 {
			row.MeanA = ptr(r.Groups[0].Mean)
		}
		if row.NB > 0 {
			row.MeanB = ptr(r.Groups[1].Mean)
		}
	}
	if p := r.Permutation; p != nil {
		row.ObservedGap = ptr(p.ObservedGap)
		row.PValue = ptr(p.PValue)
		row.Draws = p.Draws
		row.Mode = p.Mode
		row.Block = p.Block.String()
		row.Seed = p.Seed
		row.StreamSeed = p.StreamSeed
		row.NullMean = ptr(p.NullMean)
		row.NullStd = ptr(p.NullStd)
		row.ZScore = p.ZScore
	}
	if q := r.Q; q != nil {
		row.QValue = ptr(q.QValue)
		row.Rank = q.Rank
		row.FamilySize = q.FamilySize
		row.PImputed = q.PImputed
	}
	if b := r.Bootstrap; b != nil {
		row.CILow = ptr(b.Low)
		row.CIHigh = ptr(b.High)
		row.Confidence = ptr(b.Confidence)
		row.Resamples = b.Resamples
		row.BootStream = b.StreamSeed
	}
	if h := r.HAC; h != nil {
		row.HACBeta = ptr(h.Beta)
		row.HACStdErr = ptr(h.StdErr)
		row.HACPValue = ptr(h.PValue)
		row.HACLags = h.Lags
	}
	if wt := r.Welch; wt != nil {
		row.WelchT = ptr(wt.T)
		row.WelchDF = ptr(wt.DF)
		row.WelchPValue = ptr(wt.PValue)
		row.CohensD = wt.CohensD
	}
	return row
}

// WriteInferenceCSV writes one row per metric record.
func WriteInferenceCSV(out io.Writer, records []inference.Record) error {
	rows := make([]inferenceRow, len(records))
	for i, r := range records {
		rows[i] = toInferenceRow(r)
	}
	return encodeCSV(out, rows)
}

func encodeCSV[T any](out io.Writer, rows []T) error {
	cw := csv.NewWriter(out)
	enc := csvutil.NewEncoder(cw)
	if len(rows) == 0 {
		var zero T
		if err := enc.EncodeHeader(zero); err != nil {
			return eris.Wrap(err, "report: encode header")
		}
	}
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return eris.Wrap(err, "report: encode row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}

// Scoreboard renders the markdown summary of a run.
func Scoreboard(r Run) string {
	m := r.Manifest
	var b strings.Builder

	fmt.Fprintf(&b, "# Regime scoreboard\n\n")
	fmt.Fprintf(&b, "- Run: `%s`\n", m.RunID)
	fmt.Fprintf(&b, "- Format: `%s`\n", m.FormatVersion)
	fmt.Fprintf(&b, "- Fingerprint: `%s`\n", m.Fingerprint.Fingerprint.Short())
	fmt.Fprintf(&b, "- Rule: %s\n", m.Rule)
	fmt.Fprintf(&b, "- Null model: `%s`, seed %d, %d Monte Carlo draws when not exact\n",
		m.Randomization.Block, m.Randomization.Seed, m.Randomization.Draws)
	fmt.Fprintf(&b, "- Labels: A = %s, B = %s\n\n", r.Calendar.LabelA, r.Calendar.LabelB)

	fmt.Fprintf(&b, "| Metric | Role | n A/B | Mean A | Mean B | Gap | p | q | %.0f%% CI | Mode | Tier |\n",
		100*m.Randomization.Confidence)
	fmt.Fprintf(&b, "|---|---|---|---|---|---|---|---|---|---|---|\n")
	for _, rec := range r.Records {
		row := toInferenceRow(rec)
		ci := "n/a"
		if row.CILow != nil {
			ci = fmt.Sprintf("[%s, %s]", num(row.CILow), num(row.CIHigh))
		}
		q := num(row.QValue)
		if row.PImputed {
			q += "*"
		}
		mode := string(row.Mode)
		if mode == "" {
			mode = "n/a"
		}
		fmt.Fprintf(&b, "| %s | %s | %d/%d | %s | %s | %s | %s | %s | %s | %s | %s |\n",
			rec.Label, rec.Role, row.NA, row.NB, num(row.MeanA), num(row.MeanB),
			num(row.ObservedGap), num(row.PValue), q, ci, mode, rec.Evidence)
	}

	s := r.Summary
	fmt.Fprintf(&b, "\n## Run summary\n\n")
	fmt.Fprintf(&b, "- Fatal errors: %d\n", s.Fatal)
	fmt.Fprintf(&b, "- Domain errors: %d\n", s.DomainErrors)
	fmt.Fprintf(&b, "- Coverage warnings: %d\n", s.CoverageWarnings)
	fmt.Fprintf(&b, "- No data: %d of %d values\n", s.NoData, s.Values)
	if hasImputed(r.Records) {
		fmt.Fprintf(&b, "\n\\* p set to 1 for BH: the permutation test could not run.\n")
	}
	return b.String()
}

// RenderHTML converts scoreboard markdown into a standalone HTML page.
func RenderHTML(md string, title string) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Regime scoreboard " + title,
	})
	return markdown.ToHTML([]byte(md), p, renderer)
}

func hasImputed(records []inference.Record) bool {
	for _, r := range records {
		if r.Q != nil && r.Q.PImputed {
			return true
		}
	}
	return false
}

func num(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", *v)
}

func ptr(v float64) *float64 {
	return &v
}
