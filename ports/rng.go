package ports

import (
	"math/rand"

	"goregime/domain/core"
)

// Purposes of per-metric random sub-streams. Each purpose gets an
// independent stream so the permutation null and the bootstrap interval never
// share draws.
const (
	PurposePermutation = "permutation"
	PurposeBootstrap   = "bootstrap"
)

// RNGPort provides seeded random number generation for deterministic operations
type RNGPort interface {
	// Stream returns a generator keyed by (run seed, metric id, purpose). The
	// same key always yields the same draw sequence, independent of which
	// goroutine asks for it or in which order.
	Stream(seed int64, metricID core.MetricID, purpose string) *rand.Rand

	// StreamSeed exposes the derived seed so it can be stamped on output rows.
	StreamSeed(seed int64, metricID core.MetricID, purpose string) int64
}
