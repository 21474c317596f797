package ports

import (
	"context"

	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/metric"
	"goregime/domain/run"
)

// ReaderPort provides read-only access to stored runs for the API.
type ReaderPort interface {
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, runID core.RunID) (*RunDetail, error)
	ListValues(ctx context.Context, runID core.RunID) ([]metric.Value, error)
	ListRecords(ctx context.Context, runID core.RunID) ([]inference.Record, error)
}

// RunSummary is a listing row.
type RunSummary struct {
	RunID       core.RunID     `json:"run_id"`
	Fingerprint core.Hash      `json:"fingerprint"`
	Success     bool           `json:"success"`
	CreatedAt   core.Timestamp `json:"created_at"`
}

// RunDetail is a stored manifest with its outcome.
type RunDetail struct {
	Manifest run.Manifest `json:"manifest"`
	Summary  run.Summary  `json:"summary"`
}
