// Package rng derives independent deterministic random streams from a run
// seed.
package rng

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"strconv"

	"goregime/domain/core"
	"goregime/ports"
)

// KeyedAdapter implements ports.RNGPort. Stream seeds are the first eight
// bytes of sha256(seed, metric id, purpose), so two keys never share a stream
// by arithmetic accident.
type KeyedAdapter struct{}

var _ ports.RNGPort = KeyedAdapter{}

// NewKeyedAdapter returns the production RNG adapter.
func NewKeyedAdapter() KeyedAdapter {
	return KeyedAdapter{}
}

// Stream creates a deterministic RNG stream for one metric and purpose.
func (KeyedAdapter) Stream(seed int64, metricID core.MetricID, purpose string) *rand.Rand {
	return rand.New(rand.NewSource(deriveSeed(seed, metricID, purpose)))
}

// StreamSeed returns the seed behind Stream for the same key.
func (KeyedAdapter) StreamSeed(seed int64, metricID core.MetricID, purpose string) int64 {
	return deriveSeed(seed, metricID, purpose)
}

func deriveSeed(seed int64, metricID core.MetricID, purpose string) int64 {
	h := sha256.New()
	for _, part := range []string{strconv.FormatInt(seed, 10), metricID.String(), purpose} {
		// length prefix keeps ("ab","c") and ("a","bc") apart
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte{':'})
		h.Write([]byte(part))
	}
	sum := h.Sum(nil)
	return int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
}
