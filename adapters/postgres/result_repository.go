package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/metric"
	"goregime/domain/run"
	"goregime/domain/term"
	"goregime/ports"
)

// ResultRepository implements ports.ResultStore and ports.ReaderPort.
type ResultRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

var (
	_ ports.ResultStore = (*ResultRepository)(nil)
	_ ports.ReaderPort  = (*ResultRepository)(nil)
)

// NewResultRepository creates a new result repository
func NewResultRepository(db *sqlx.DB, logger *zap.Logger) *ResultRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultRepository{db: db, logger: logger}
}

type definitionRow struct {
	MetricID       string `db:"metric_id"`
	DefinitionHash string `db:"definition_hash"`
}

// CheckDefinitions refuses ids stored under a different definition hash. It
// writes nothing: unseen ids are recorded by SaveResult with the run.
func (r *ResultRepository) CheckDefinitions(ctx context.Context, defs []metric.Definition) error {
	_, err := r.checkDefinitions(ctx, r.db, defs)
	return err
}

// checkDefinitions returns the definitions not stored yet.
func (r *ResultRepository) checkDefinitions(ctx context.Context, q sqlx.ExtContext, defs []metric.Definition) ([]metric.Definition, error) {
	lookup := q.Rebind(`SELECT metric_id, definition_hash FROM metric_definitions WHERE metric_id = ?`)

	var unseen []metric.Definition
	for _, d := range defs {
		var stored definitionRow
		err := sqlx.GetContext(ctx, q, &stored, lookup, d.ID.String())
		switch {
		case errors.Is(err, sql.ErrNoRows):
			unseen = append(unseen, d)
		case err != nil:
			return nil, eris.Wrapf(err, "store: lookup definition %s", d.ID)
		case stored.DefinitionHash != d.Hash().String():
			r.logger.Error("definition drift",
				zap.String("metric_id", d.ID.String()),
				zap.String("stored_hash", stored.DefinitionHash),
				zap.String("new_hash", d.Hash().String()))
			return nil, fmt.Errorf("%w: %q was stored with hash %s, now %s",
				core.ErrDefinitionDrift, d.ID, core.Hash(stored.DefinitionHash).Short(), core.Hash(d.Hash()).Short())
		}
	}
	return unseen, nil
}

// SaveResult writes a run in one transaction: unseen definitions, the
// manifest, the value table and the inference records. Either all of it is
// committed or none of it.
func (r *ResultRepository) SaveResult(ctx context.Context, res ports.RunBundle) error {
	if res.Manifest == nil {
		return eris.New("store: result without manifest")
	}
	if err := res.Manifest.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "store: begin")
	}
	defer tx.Rollback()

	unseen, err := r.checkDefinitions(ctx, tx, res.Definitions)
	if err != nil {
		return err
	}
	if err := insertDefinitions(ctx, tx, unseen); err != nil {
		return err
	}
	if err := insertRun(ctx, tx, res.Manifest, res.Summary); err != nil {
		return err
	}
	if err := insertValues(ctx, tx, res.Values); err != nil {
		return err
	}
	if err := insertRecords(ctx, tx, res.Records); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return eris.Wrapf(err, "store: commit run %s", res.Manifest.RunID)
	}

	r.logger.Info("run saved",
		zap.String("run_id", res.Manifest.RunID.String()),
		zap.Bool("success", res.Summary.Success()),
		zap.Int("new_definitions", len(unseen)),
		zap.Int("values", len(res.Values)),
		zap.Int("records", len(res.Records)))
	return nil
}

func insertDefinitions(ctx context.Context, tx *sqlx.Tx, defs []metric.Definition) error {
	query := tx.Rebind(`
		INSERT INTO metric_definitions (metric_id, definition_hash, definition, created_at)
		VALUES (?, ?, ?, ?)`)
	now := formatTime(time.Now())
	for _, d := range defs {
		body, err := json.Marshal(d)
		if err != nil {
			return eris.Wrapf(err, "store: encode definition %s", d.ID)
		}
		if _, err := tx.ExecContext(ctx, query, d.ID.String(), d.Hash().String(), string(body), now); err != nil {
			return eris.Wrapf(err, "store: insert definition %s", d.ID)
		}
	}
	return nil
}

// insertRun writes the manifest row. Runs are append-only.
func insertRun(ctx context.Context, tx *sqlx.Tx, manifest *run.Manifest, summary run.Summary) error {
	m, err := json.Marshal(manifest)
	if err != nil {
		return eris.Wrap(err, "store: encode manifest")
	}
	s, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "store: encode summary")
	}
	success := 0
	if summary.Success() {
		success = 1
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(`
		INSERT INTO runs (run_id, format_version, fingerprint, success, manifest, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		manifest.RunID.String(), manifest.FormatVersion, manifest.Fingerprint.Fingerprint.String(),
		success, string(m), string(s), formatTime(manifest.CreatedAt.Time()))
	return eris.Wrapf(err, "store: insert run %s", manifest.RunID)
}

type valueRow struct {
	RunID          string          `db:"run_id"`
	MetricID       string          `db:"metric_id"`
	TermID         string          `db:"term_id"`
	FormatVersion  string          `db:"format_version"`
	DefinitionHash string          `db:"definition_hash"`
	RuleHash       string          `db:"rule_hash"`
	Label          string          `db:"label"`
	TermStart      string          `db:"term_start"`
	TermEnd        string          `db:"term_end"`
	Completeness   string          `db:"completeness"`
	Value          sql.NullFloat64 `db:"value"`
	Reason         string          `db:"reason"`
	Detail         string          `db:"detail"`
	NObs           int             `db:"n_obs"`
	StartObs       sql.NullString  `db:"start_obs"`
	EndObs         sql.NullString  `db:"end_obs"`
}

func insertValues(ctx context.Context, tx *sqlx.Tx, values []metric.Value) error {
	query := tx.Rebind(`
		INSERT INTO metric_values (
			run_id, metric_id, term_id, format_version, definition_hash, rule_hash,
			label, term_start, term_end, completeness, value, reason, detail,
			n_obs, start_obs, end_obs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, v := range values {
		row := toValueRow(v)
		_, err := tx.ExecContext(ctx, query,
			row.RunID, row.MetricID, row.TermID, row.FormatVersion, row.DefinitionHash, row.RuleHash,
			row.Label, row.TermStart, row.TermEnd, row.Completeness, row.Value, row.Reason, row.Detail,
			row.NObs, row.StartObs, row.EndObs)
		if err != nil {
			return eris.Wrapf(err, "store: insert value %s/%s", v.MetricID, v.TermID)
		}
	}
	return nil
}

// insertRecords writes the per-metric inference rows, keeping their order.
func insertRecords(ctx context.Context, tx *sqlx.Tx, records []inference.Record) error {
	query := tx.Rebind(`
		INSERT INTO inference_records (run_id, metric_id, ordinal, evidence_tier, p_value, q_value, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for i, rec := range records {
		body, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "store: encode record %s", rec.MetricID)
		}
		var p, q sql.NullFloat64
		if rec.Permutation != nil {
			p = sql.NullFloat64{Float64: rec.Permutation.PValue, Valid: true}
		}
		if qv := rec.QValue(); qv != nil {
			q = sql.NullFloat64{Float64: *qv, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.RunID.String(), rec.MetricID.String(), i, string(rec.Evidence), p, q, string(body)); err != nil {
			return eris.Wrapf(err, "store: insert record %s", rec.MetricID)
		}
	}
	return nil
}

type runRow struct {
	RunID       string `db:"run_id"`
	Fingerprint string `db:"fingerprint"`
	Success     int    `db:"success"`
	Manifest    string `db:"manifest"`
	Summary     string `db:"summary"`
	CreatedAt   string `db:"created_at"`
}

// ListRuns returns the most recent runs first.
func (r *ResultRepository) ListRuns(ctx context.Context, limit int) ([]ports.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []runRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT run_id, fingerprint, success, manifest, summary, created_at
		FROM runs ORDER BY created_at DESC, run_id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, eris.Wrap(err, "store: list runs")
	}
	out := make([]ports.RunSummary, 0, len(rows))
	for _, row := range rows {
		created, err := parseTime(row.CreatedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, ports.RunSummary{
			RunID:       core.RunID(row.RunID),
			Fingerprint: core.Hash(row.Fingerprint),
			Success:     row.Success == 1,
			CreatedAt:   core.NewTimestamp(created),
		})
	}
	return out, nil
}

// GetRun returns nil, nil when the run does not exist.
func (r *ResultRepository) GetRun(ctx context.Context, runID core.RunID) (*ports.RunDetail, error) {
	var row runRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(`
		SELECT run_id, fingerprint, success, manifest, summary, created_at
		FROM runs WHERE run_id = ?`), runID.String())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "store: get run %s", runID)
	}
	var detail ports.RunDetail
	if err := json.Unmarshal([]byte(row.Manifest), &detail.Manifest); err != nil {
		return nil, eris.Wrapf(err, "store: decode manifest %s", runID)
	}
	if err := json.Unmarshal([]byte(row.Summary), &detail.Summary); err != nil {
		return nil, eris.Wrapf(err, "store: decode summary %s", runID)
	}
	return &detail, nil
}

// ListValues returns a run's values in (metric, term start) order.
func (r *ResultRepository) ListValues(ctx context.Context, runID core.RunID) ([]metric.Value, error) {
	var rows []valueRow
	err := r.db.SelectContext(ctx, &rows, r.db.Rebind(`
		SELECT run_id, metric_id, term_id, format_version, definition_hash, rule_hash,
			label, term_start, term_end, completeness, value, reason, detail,
			n_obs, start_obs, end_obs
		FROM metric_values WHERE run_id = ?
		ORDER BY metric_id, term_start`), runID.String())
	if err != nil {
		return nil, eris.Wrapf(err, "store: list values %s", runID)
	}
	out := make([]metric.Value, 0, len(rows))
	for _, row := range rows {
		v, err := fromValueRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ListRecords returns a run's inference rows in their saved order.
func (r *ResultRepository) ListRecords(ctx context.Context, runID core.RunID) ([]inference.Record, error) {
	var bodies []string
	err := r.db.SelectContext(ctx, &bodies, r.db.Rebind(`
		SELECT record FROM inference_records WHERE run_id = ? ORDER BY ordinal`), runID.String())
	if err != nil {
		return nil, eris.Wrapf(err, "store: list records %s", runID)
	}
	out := make([]inference.Record, len(bodies))
	for i, b := range bodies {
		if err := json.Unmarshal([]byte(b), &out[i]); err != nil {
			return nil, eris.Wrapf(err, "store: decode record %d of %s", i, runID)
		}
	}
	return out, nil
}

func toValueRow(v metric.Value) valueRow {
	row := valueRow{
		RunID:          v.RunID.String(),
		MetricID:       v.MetricID.String(),
		TermID:         v.TermID.String(),
		FormatVersion:  v.FormatVersion,
		DefinitionHash: v.DefinitionHash.String(),
		RuleHash:       v.RuleHash.String(),
		Label:          string(v.Label),
		TermStart:      formatTime(v.TermStart),
		TermEnd:        formatTime(v.TermEnd),
		Completeness:   string(v.Completeness),
		Reason:         string(v.Reason),
		Detail:         v.Detail,
		NObs:           v.NObs,
	}
	if v.Value != nil {
		row.Value = sql.NullFloat64{Float64: *v.Value, Valid: true}
	}
	if v.StartObs != nil {
		row.StartObs = sql.NullString{String: formatTime(*v.StartObs), Valid: true}
	}
	if v.EndObs != nil {
		row.EndObs = sql.NullString{String: formatTime(*v.EndObs), Valid: true}
	}
	return row
}

func fromValueRow(row valueRow) (metric.Value, error) {
	start, err := parseTime(row.TermStart)
	if err != nil {
		return metric.Value{}, err
	}
	end, err := parseTime(row.TermEnd)
	if err != nil {
		return metric.Value{}, err
	}
	v := metric.Value{
		FormatVersion:  row.FormatVersion,
		RunID:          core.RunID(row.RunID),
		MetricID:       core.MetricID(row.MetricID),
		DefinitionHash: core.DefinitionHash(row.DefinitionHash),
		TermID:         core.TermID(row.TermID),
		Label:          term.Label(row.Label),
		TermStart:      start,
		TermEnd:        end,
		Completeness:   term.Completeness(row.Completeness),
		Reason:         metric.Reason(row.Reason),
		Detail:         row.Detail,
		NObs:           row.NObs,
		RuleHash:       core.RuleHash(row.RuleHash),
	}
	if row.Value.Valid {
		f := row.Value.Float64
		v.Value = &f
	}
	if row.StartObs.Valid {
		t, err := parseTime(row.StartObs.String)
		if err != nil {
			return metric.Value{}, err
		}
		v.StartObs = &t
	}
	if row.EndObs.Valid {
		t, err := parseTime(row.EndObs.String)
		if err != nil {
			return metric.Value{}, err
		}
		v.EndObs = &t
	}
	return v, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "store: parse time %q", s)
	}
	return t, nil
}
