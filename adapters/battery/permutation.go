// Package battery holds the inference engines run per metric: the label
// permutation test, the bootstrap interval and the HAC regression diagnostic.
package battery

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/term"
	"goregime/ports"
)

// tieTolerance is relative: permuted gaps within this of the observed gap
// count as at least as extreme.
const tieTolerance = 1e-12

// PermutationEngine implements the two-sided label permutation test
type PermutationEngine struct {
	rngPort ports.RNGPort
	logger  *zap.Logger
}

// NewPermutationEngine creates a permutation engine drawing from rngPort
func NewPermutationEngine(rngPort ports.RNGPort, logger *zap.Logger) *PermutationEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermutationEngine{rngPort: rngPort, logger: logger}
}

// Test computes the observed gap mean(A) - mean(B) and its two-sided p-value
// under the configured null model. Labels are only exchanged within blocks;
// label counts per block stay fixed.
func (pe *PermutationEngine) Test(metricID core.MetricID, samples []inference.Sample, labelA term.Label, cfg inference.Config) (*inference.PermutationResult, error) {
	if err := cfg.Block.Validate(); err != nil {
		return nil, err
	}
	if cfg.Draws <= 0 {
		return nil, fmt.Errorf("%w: draws must be positive", core.ErrInvalidRandomConfig)
	}
	l := split(samples, labelA)
	if err := l.check(); err != nil {
		return nil, fmt.Errorf("metric %s: %w", metricID, err)
	}

	observed := gap(l.values, l.isA)
	blocks := buildBlocks(l, cfg.Block)

	res := &inference.PermutationResult{
		MetricID:    metricID,
		ObservedGap: observed,
		Block:       cfg.Block,
		Seed:        cfg.Seed,
		NA:          l.nA,
		NB:          l.nB(),
	}

	var null []float64
	if n, ok := arrangements(l.isA, blocks, cfg.ExactLimit); ok {
		res.Mode = inference.Exact
		null = enumerate(l, blocks, n)
	} else {
		res.Mode = inference.MonteCarlo
		res.StreamSeed = pe.rngPort.StreamSeed(cfg.Seed, metricID, ports.PurposePermutation)
		rng := pe.rngPort.Stream(cfg.Seed, metricID, ports.PurposePermutation)
		null = sample(l, blocks, cfg.Draws, rng)
	}

	res.Draws = len(null)
	for _, g := range null {
		if isExtreme(g, observed) {
			res.Extreme++
		}
	}
	res.PValue = float64(res.Extreme+1) / float64(res.Draws+1)
	summarizeNull(res, null)

	pe.logger.Debug("permutation test",
		zap.String("metric_id", metricID.String()),
		zap.String("mode", string(res.Mode)),
		zap.String("block", cfg.Block.String()),
		zap.Int("draws", res.Draws),
		zap.Float64("gap", observed),
		zap.Float64("p", res.PValue))

	return res, nil
}

func isExtreme(perm, observed float64) bool {
	obs := math.Abs(observed)
	return math.Abs(perm) >= obs-tieTolerance*math.Max(1, obs)
}

func summarizeNull(res *inference.PermutationResult, null []float64) {
	if len(null) == 0 {
		return
	}
	data := stats.Float64Data(null)
	res.NullMean, _ = data.Mean()
	res.NullStd, _ = data.StandardDeviationPopulation()
	if res.NullStd > 0 {
		z := (res.ObservedGap - res.NullMean) / res.NullStd
		res.ZScore = &z
	}
}

// ============================================================================
// BLOCKS
// ============================================================================

// buildBlocks groups sample positions. Unrestricted gives one block; fixed
// blocks are keyed by (start year - first start year) / years.
func buildBlocks(l labeled, b inference.BlockConfig) [][]int {
	if b.Kind != inference.FixedYears {
		all := make([]int, len(l.values))
		for i := range all {
			all[i] = i
		}
		return [][]int{all}
	}

	minYear := l.years[0]
	for _, y := range l.years {
		if y < minYear {
			minYear = y
		}
	}
	byKey := map[int][]int{}
	for i, y := range l.years {
		k := (y - minYear) / b.Years
		byKey[k] = append(byKey[k], i)
	}
	keys := make([]int, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([][]int, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out
}

// arrangements counts distinct label assignments preserving per-block label
// counts. ok is false when the count exceeds limit.
func arrangements(isA []bool, blocks [][]int, limit int) (int, bool) {
	if limit <= 0 {
		return 0, false
	}
	total := 1
	for _, blk := range blocks {
		k := 0
		for _, i := range blk {
			if isA[i] {
				k++
			}
		}
		c, ok := binomial(len(blk), k, limit)
		if !ok || total > limit/c {
			return 0, false
		}
		total *= c
	}
	return total, total <= limit
}

// binomial computes C(n, k), giving up once it passes limit.
func binomial(n, k, limit int) (int, bool) {
	if k > n-k {
		k = n - k
	}
	c := 1
	for i := 1; i <= k; i++ {
		// c is C(n-k+i-1, i-1); i divides c*m, so reduce before multiplying
		m := n - k + i
		g := gcd(c, i)
		a, b := c/g, m/(i/g)
		if a > limit/b {
			return 0, false
		}
		c = a * b
	}
	return c, c <= limit
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// ============================================================================
// EXACT ENUMERATION
// ============================================================================

// enumerate returns the gap of every arrangement except the observed one.
func enumerate(l labeled, blocks [][]int, total int) []float64 {
	perBlock := make([][][]bool, len(blocks))
	for b, blk := range blocks {
		k := 0
		for _, i := range blk {
			if l.isA[i] {
				k++
			}
		}
		perBlock[b] = combinations(len(blk), k)
	}

	null := make([]float64, 0, total-1)
	labels := make([]bool, len(l.values))
	idx := make([]int, len(blocks))
	for {
		for b, blk := range blocks {
			for j, pos := range blk {
				labels[pos] = perBlock[b][idx[b]][j]
			}
		}
		if !sameLabels(labels, l.isA) {
			null = append(null, gap(l.values, labels))
		}

		// odometer over the per-block choices
		b := len(blocks) - 1
		for ; b >= 0; b-- {
			idx[b]++
			if idx[b] < len(perBlock[b]) {
				break
			}
			idx[b] = 0
		}
		if b < 0 {
			return null
		}
	}
}

// combinations lists every way to mark k of n positions, in lexicographic
// order of the marked index sets.
func combinations(n, k int) [][]bool {
	var out [][]bool
	pick := make([]int, k)
	for i := range pick {
		pick[i] = i
	}
	for {
		row := make([]bool, n)
		for _, p := range pick {
			row[p] = true
		}
		out = append(out, row)

		i := k - 1
		for i >= 0 && pick[i] == n-k+i {
			i--
		}
		if i < 0 {
			return out
		}
		pick[i]++
		for j := i + 1; j < k; j++ {
			pick[j] = pick[j-1] + 1
		}
	}
}

func sameLabels(a, b []bool) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ============================================================================
// MONTE CARLO
// ============================================================================

// sample draws label permutations with a Fisher-Yates shuffle inside each
// block. The draw sequence depends only on rng.
func sample(l labeled, blocks [][]int, draws int, rng *rand.Rand) []float64 {
	labels := make([]bool, len(l.isA))
	copy(labels, l.isA)

	null := make([]float64, draws)
	for d := 0; d < draws; d++ {
		for _, blk := range blocks {
			for i := len(blk) - 1; i > 0; i-- {
				j := rng.Intn(i + 1)
				labels[blk[i]], labels[blk[j]] = labels[blk[j]], labels[blk[i]]
			}
		}
		null[d] = gap(l.values, labels)
	}
	return null
}
