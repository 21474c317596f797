// Package run describes one pipeline execution: its manifest and outcome.
package run

import (
	"sort"
	"strconv"

	"goregime/domain/attribution"
	"goregime/domain/core"
	"goregime/domain/inference"
	"goregime/domain/metric"
	"goregime/domain/series"
	"goregime/domain/term"
)

// Manifest is the truth source for replay. It is written before any value or
// inference row of the run.
type Manifest struct {
	RunID         core.RunID                        `json:"run_id"`
	FormatVersion string                            `json:"format_version"`
	Rule          attribution.Rule                  `json:"rule"`
	Randomization inference.Config                  `json:"randomization"`
	Tiers         inference.TierPolicy              `json:"tiers"`
	FamilyHash    core.FamilyHash                   `json:"family_hash"`
	FamilyIDs     []core.MetricID                   `json:"family_ids"`
	CalendarHash  core.CalendarHash                 `json:"calendar_hash"`
	SeriesHashes  map[core.SeriesID]core.SeriesHash `json:"series_hashes"`
	CodeVersion   string                            `json:"code_version"`
	Fingerprint   Fingerprint                       `json:"fingerprint"`
	CreatedAt     core.Timestamp                    `json:"created_at"`
}

// NewManifest creates a run manifest from the validated inputs of a run.
func NewManifest(
	runID core.RunID,
	cal term.Calendar,
	catalog []series.Series,
	family metric.Family,
	rule attribution.Rule,
	cfg inference.Config,
	tiers inference.TierPolicy,
	codeVersion string,
) *Manifest {
	hashes := make(map[core.SeriesID]core.SeriesHash, len(catalog))
	for _, s := range catalog {
		hashes[s.ID] = s.Hash()
	}
	familyHash := family.Hash()
	calendarHash := cal.Hash()
	seriesHash := combineSeriesHashes(hashes)
	fingerprint := NewFingerprint(familyHash, calendarHash, seriesHash, rule.Hash(), configHash(cfg, tiers), cfg.Seed, codeVersion)

	return &Manifest{
		RunID:         runID,
		FormatVersion: metric.FormatVersion,
		Rule:          rule,
		Randomization: cfg,
		Tiers:         tiers,
		FamilyHash:    familyHash,
		FamilyIDs:     family.TestedIDs(),
		CalendarHash:  calendarHash,
		SeriesHashes:  hashes,
		CodeVersion:   codeVersion,
		Fingerprint:   fingerprint,
		CreatedAt:     core.Now(),
	}
}

// Validate checks if the manifest is complete
func (m *Manifest) Validate() error {
	if core.ID(m.RunID).IsEmpty() {
		return core.NewValidationError("run_manifest", "run_id cannot be empty")
	}
	if m.FamilyHash == "" {
		return core.NewValidationError("run_manifest", "family_hash cannot be empty")
	}
	if m.CalendarHash == "" {
		return core.NewValidationError("run_manifest", "calendar_hash cannot be empty")
	}
	if m.CodeVersion == "" {
		return core.NewValidationError("run_manifest", "code_version cannot be empty")
	}
	return m.Randomization.Validate()
}

func combineSeriesHashes(hashes map[core.SeriesID]core.SeriesHash) core.Hash {
	ids := make([]string, 0, len(hashes))
	for id := range hashes {
		ids = append(ids, id.String())
	}
	sort.Strings(ids)
	parts := make([]string, 0, 2*len(ids))
	for _, id := range ids {
		parts = append(parts, id, hashes[core.SeriesID(id)].String())
	}
	return core.HashParts(parts...)
}

func configHash(cfg inference.Config, tiers inference.TierPolicy) core.Hash {
	return core.HashParts(
		strconv.Itoa(cfg.Draws),
		strconv.Itoa(cfg.Resamples),
		strconv.FormatFloat(cfg.Confidence, 'g', -1, 64),
		cfg.Block.String(),
		strconv.Itoa(cfg.ExactLimit),
		strconv.FormatFloat(tiers.QThreshold, 'g', -1, 64),
		strconv.Itoa(tiers.MinTerms),
	)
}
