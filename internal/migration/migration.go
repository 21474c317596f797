package migration

import (
	"context"

	"goregime/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles result store schema migrations. The statements are
// portable between postgres and sqlite: JSON and timestamps are stored as
// TEXT, booleans as INTEGER.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createDefinitionsTable(ctx, db); err != nil {
		return errors.StoreError("failed to create metric_definitions table", err)
	}

	if err := r.createRunsTable(ctx, db); err != nil {
		return errors.StoreError("failed to create runs table", err)
	}

	if err := r.createValuesTable(ctx, db); err != nil {
		return errors.StoreError("failed to create metric_values table", err)
	}

	if err := r.createRecordsTable(ctx, db); err != nil {
		return errors.StoreError("failed to create inference_records table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.StoreError("failed to create indexes", err)
	}

	return nil
}

func (r *MigrationRunner) createDefinitionsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS metric_definitions (
			metric_id TEXT PRIMARY KEY,
			definition_hash TEXT NOT NULL,
			definition TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createRunsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			format_version TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			success INTEGER NOT NULL,
			manifest TEXT NOT NULL,
			summary TEXT NOT NULL,
			created_at TEXT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createValuesTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS metric_values (
			run_id TEXT NOT NULL,
			metric_id TEXT NOT NULL,
			term_id TEXT NOT NULL,
			format_version TEXT NOT NULL,
			definition_hash TEXT NOT NULL,
			rule_hash TEXT NOT NULL,
			label TEXT NOT NULL,
			term_start TEXT NOT NULL,
			term_end TEXT NOT NULL,
			completeness TEXT NOT NULL,
			value DOUBLE PRECISION,
			reason TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			n_obs INTEGER NOT NULL,
			start_obs TEXT,
			end_obs TEXT,
			PRIMARY KEY (run_id, metric_id, term_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createRecordsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS inference_records (
			run_id TEXT NOT NULL,
			metric_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			evidence_tier TEXT NOT NULL,
			p_value DOUBLE PRECISION,
			q_value DOUBLE PRECISION,
			record TEXT NOT NULL,
			PRIMARY KEY (run_id, metric_id)
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at)",
		"CREATE INDEX IF NOT EXISTS idx_metric_values_metric ON metric_values(metric_id)",
		"CREATE INDEX IF NOT EXISTS idx_inference_records_tier ON inference_records(evidence_tier)",
	}

	for _, idx := range indexes {
		if _, err := db.ExecContext(ctx, idx); err != nil {
			return err
		}
	}
	return nil
}
