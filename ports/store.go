package ports

import (
	"context"

	"goregime/domain/inference"
	"goregime/domain/metric"
	"goregime/domain/run"
)

// ResultStore persists run outputs. Rows are append-only: a run is written
// once and never patched.
type ResultStore interface {
	// CheckDefinitions refuses any metric id already stored with a different
	// definition hash. It writes nothing.
	CheckDefinitions(ctx context.Context, defs []metric.Definition) error

	// SaveResult writes a whole run atomically, recording unseen definitions
	// in the same transaction. A failed save leaves no trace of the run.
	SaveResult(ctx context.Context, res RunBundle) error
}

// RunBundle is everything one run persists.
type RunBundle struct {
	Manifest    *run.Manifest
	Summary     run.Summary
	Definitions []metric.Definition
	Values      []metric.Value
	Records     []inference.Record
}
