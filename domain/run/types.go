package run

import (
	"crypto/sha256"
	"fmt"

	"goregime/domain/core"
)

// Summary counts what a run produced. A run succeeds only with zero fatal
// errors, however many domain errors and warnings it recorded.
type Summary struct {
	Fatal            int `json:"fatal"`
	DomainErrors     int `json:"domain_errors"`
	CoverageWarnings int `json:"coverage_warnings"`
	NoData           int `json:"no_data"`
	Values           int `json:"values"`
	Metrics          int `json:"metrics"`
}

// Success reports whether the run had no fatal errors.
func (s Summary) Success() bool {
	return s.Fatal == 0
}

// Fingerprint ensures deterministic replay
type Fingerprint struct {
	FamilyHash   core.FamilyHash   `json:"family_hash"`
	CalendarHash core.CalendarHash `json:"calendar_hash"`
	SeriesHash   core.Hash         `json:"series_hash"`
	RuleHash     core.RuleHash     `json:"rule_hash"`
	ConfigHash   core.Hash         `json:"config_hash"`
	Seed         int64             `json:"seed"`
	CodeVersion  string            `json:"code_version"`
	Fingerprint  core.Hash         `json:"fingerprint"` // Hash of all above
}

// NewFingerprint creates a fingerprint from determinism parameters
func NewFingerprint(family core.FamilyHash, calendar core.CalendarHash, seriesHash core.Hash,
	rule core.RuleHash, config core.Hash, seed int64, codeVersion string) Fingerprint {

	return Fingerprint{
		FamilyHash:   family,
		CalendarHash: calendar,
		SeriesHash:   seriesHash,
		RuleHash:     rule,
		ConfigHash:   config,
		Seed:         seed,
		CodeVersion:  codeVersion,
		Fingerprint:  computeFingerprint(family, calendar, seriesHash, rule, config, seed, codeVersion),
	}
}

func computeFingerprint(family core.FamilyHash, calendar core.CalendarHash, seriesHash core.Hash,
	rule core.RuleHash, config core.Hash, seed int64, codeVersion string) core.Hash {

	data := fmt.Sprintf("family:%s|calendar:%s|series:%s|rule:%s|config:%s|seed:%d|code:%s",
		family, calendar, seriesHash, rule, config, seed, codeVersion)

	hash := sha256.Sum256([]byte(data))
	return core.Hash(fmt.Sprintf("%x", hash))
}
