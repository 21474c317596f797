// Package inference holds the records produced by the permutation test,
// bootstrap, multiplicity correction and HAC diagnostic.
package inference

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"goregime/domain/core"
	"goregime/domain/term"
)

// BlockKind selects the null model of the permutation test.
type BlockKind string

const (
	// Unrestricted permutes labels across all terms.
	Unrestricted BlockKind = "unrestricted"
	// FixedYears permutes labels only within contiguous blocks of years.
	FixedYears BlockKind = "fixed_years"
)

// BlockConfig is the declared null model. It has no default.
type BlockConfig struct {
	Kind  BlockKind `json:"kind"`
	Years int       `json:"years,omitempty"`
}

// ParseBlock accepts "unrestricted" or a positive number of years.
func ParseBlock(s string) (BlockConfig, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return BlockConfig{}, fmt.Errorf("%w: block configuration is required", core.ErrInvalidRandomConfig)
	}
	if strings.EqualFold(s, string(Unrestricted)) {
		return BlockConfig{Kind: Unrestricted}, nil
	}
	years, err := strconv.Atoi(s)
	if err != nil || years <= 0 {
		return BlockConfig{}, fmt.Errorf("%w: block %q is neither %q nor a positive number of years",
			core.ErrInvalidRandomConfig, s, Unrestricted)
	}
	return BlockConfig{Kind: FixedYears, Years: years}, nil
}

// Validate checks the kind/years combination.
func (b BlockConfig) Validate() error {
	switch b.Kind {
	case Unrestricted:
		return nil
	case FixedYears:
		if b.Years <= 0 {
			return fmt.Errorf("%w: fixed blocks need positive years", core.ErrInvalidRandomConfig)
		}
		return nil
	}
	return fmt.Errorf("%w: block kind %q", core.ErrInvalidRandomConfig, b.Kind)
}

func (b BlockConfig) String() string {
	if b.Kind == FixedYears {
		return fmt.Sprintf("%s:%d", FixedYears, b.Years)
	}
	return string(b.Kind)
}

// Mode records how the null distribution was built.
type Mode string

const (
	Exact      Mode = "exact"
	MonteCarlo Mode = "monte_carlo"
)

// Config is the randomization configuration of one run.
type Config struct {
	Draws      int         `json:"draws"`
	Resamples  int         `json:"bootstrap_resamples"`
	Confidence float64     `json:"confidence"`
	Seed       int64       `json:"seed"`
	Block      BlockConfig `json:"block"`
	ExactLimit int         `json:"exact_limit"`
}

// Validate rejects configurations that cannot produce a valid test.
func (c Config) Validate() error {
	if c.Draws <= 0 {
		return fmt.Errorf("%w: draws must be positive", core.ErrInvalidRandomConfig)
	}
	if c.Resamples <= 0 {
		return fmt.Errorf("%w: bootstrap resamples must be positive", core.ErrInvalidRandomConfig)
	}
	if c.Confidence <= 0 || c.Confidence >= 1 {
		return fmt.Errorf("%w: confidence must be in (0, 1)", core.ErrInvalidRandomConfig)
	}
	if c.ExactLimit < 0 {
		return fmt.Errorf("%w: exact limit must not be negative", core.ErrInvalidRandomConfig)
	}
	return c.Block.Validate()
}

// Sample is one (term, label, value) triple. Value is nil when the metric is
// missing for the term.
type Sample struct {
	TermID core.TermID `json:"term_id"`
	Label  term.Label  `json:"label"`
	Start  time.Time   `json:"start"`
	Value  *float64    `json:"value"`
}

// PermutationResult is the output of one permutation test.
type PermutationResult struct {
	MetricID    core.MetricID `json:"metric_id"`
	ObservedGap float64       `json:"observed_gap"`
	PValue      float64       `json:"p_value"`
	Draws       int           `json:"draws"`
	Extreme     int           `json:"extreme"`
	Mode        Mode          `json:"mode"`
	Block       BlockConfig   `json:"block"`
	Seed        int64         `json:"seed"`
	StreamSeed  int64         `json:"stream_seed"`
	NA          int           `json:"n_a"`
	NB          int           `json:"n_b"`
	NullMean    float64       `json:"null_mean"`
	NullStd     float64       `json:"null_std"`
	ZScore      *float64      `json:"z_score,omitempty"`
}

// QValueResult is one metric's BH-adjusted value. Rank is 1-based by
// ascending p.
type QValueResult struct {
	MetricID   core.MetricID `json:"metric_id"`
	PValue     float64       `json:"p_value"`
	QValue     float64       `json:"q_value"`
	Rank       int           `json:"rank"`
	FamilySize int           `json:"family_size"`
	PImputed   bool          `json:"p_imputed"`
}

// Interval is a bootstrap percentile interval for the gap.
type Interval struct {
	Low        float64 `json:"low"`
	High       float64 `json:"high"`
	Confidence float64 `json:"confidence"`
	Resamples  int     `json:"resamples"`
	StreamSeed int64   `json:"stream_seed"`
}

// HACResult is the Newey-West OLS diagnostic: gap as the slope on a label
// dummy with HAC standard error.
type HACResult struct {
	Beta   float64 `json:"beta"`
	StdErr float64 `json:"std_err"`
	PValue float64 `json:"p_value"`
	Lags   int     `json:"lags"`
	N      int     `json:"n"`
}

// WelchResult is the unequal-variance t-test on the label means, reported
// as a parametric reference beside the permutation p-value.
type WelchResult struct {
	T       float64  `json:"t"`
	DF      float64  `json:"df"`
	PValue  float64  `json:"p_value"`
	CohensD *float64 `json:"cohens_d,omitempty"`
}

// GroupSummary describes one label's values for a metric.
type GroupSummary struct {
	Label  term.Label `json:"label"`
	N      int        `json:"n"`
	Mean   float64    `json:"mean"`
	Median float64    `json:"median"`
}
