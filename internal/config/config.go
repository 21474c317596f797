// Package config loads run configuration from the environment and sets up
// logging.
package config

import (
	stderrors "errors"
	"io/fs"
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"goregime/domain/attribution"
	"goregime/domain/inference"
	"goregime/domain/term"
	"goregime/internal/errors"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "REGIME_"

// Config represents the complete application configuration
type Config struct {
	Store         StoreConfig         `envPrefix:"STORE_"`
	Inputs        InputConfig         `envPrefix:"INPUT_"`
	Rule          RuleConfig          `envPrefix:"RULE_"`
	Randomization RandomizationConfig
	Reporting     ReportingConfig     `envPrefix:"REPORT_"`
	Server        ServerConfig        `envPrefix:"SERVER_"`
	Log           LogConfig           `envPrefix:"LOG_"`
	Workers       int                 `env:"WORKERS" envDefault:"0"`
}

// StoreConfig holds result database settings. An empty DSN disables the store.
type StoreConfig struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DSN"`
}

// InputConfig names the input files.
type InputConfig struct {
	Calendar  string `env:"CALENDAR" envDefault:"data/terms.csv"`
	SeriesDir string `env:"SERIES_DIR" envDefault:"data/series"`
	Registry  string `env:"REGISTRY" envDefault:"data/metrics.yaml"`
	LabelA    string `env:"LABEL_A" envDefault:"D"`
	LabelB    string `env:"LABEL_B" envDefault:"R"`
}

// RuleConfig is the attribution rule. EndLag overrides the symmetric lag.
type RuleConfig struct {
	Boundary      string  `env:"BOUNDARY" envDefault:"last_strictly_before"`
	Lag           int     `env:"LAG" envDefault:"0"`
	EndLag        *int    `env:"END_LAG"`
	Alignment     string  `env:"ALIGNMENT" envDefault:"instant"`
	YearBasisDays float64 `env:"YEAR_BASIS_DAYS" envDefault:"365.25"`
}

// RandomizationConfig holds the inference settings. Block has no default.
type RandomizationConfig struct {
	Draws      int     `env:"DRAWS" envDefault:"10000"`
	Resamples  int     `env:"BOOTSTRAP_RESAMPLES" envDefault:"2000"`
	Confidence float64 `env:"CONFIDENCE" envDefault:"0.95"`
	Seed       int64   `env:"SEED" envDefault:"1"`
	Block      string  `env:"BLOCK"`
	ExactLimit int     `env:"EXACT_LIMIT" envDefault:"100000"`
}

// ReportingConfig holds tier thresholds and output settings.
type ReportingConfig struct {
	QThreshold    float64 `env:"Q_THRESHOLD" envDefault:"0.05"`
	MinTerms      int     `env:"MIN_TERMS" envDefault:"4"`
	NeweyWestLags int     `env:"NEWEY_WEST_LAGS" envDefault:"1"`
	OutputDir     string  `env:"OUTPUT_DIR" envDefault:"out"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
}

// LogConfig selects the zap encoder and level.
type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// Load reads .env files (if present) and then the environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !stderrors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, eris.Wrap(err, "config: parse env"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings needed by every command. The permutation block is
// checked by RandomConfig, at run time.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return errors.ConfigInvalid("REGIME_STORE_DRIVER must be postgres or sqlite")
	}
	if c.Inputs.LabelA == "" || c.Inputs.LabelB == "" || c.Inputs.LabelA == c.Inputs.LabelB {
		return errors.ConfigInvalid("REGIME_INPUT_LABEL_A and REGIME_INPUT_LABEL_B must be two distinct labels")
	}
	if c.Reporting.QThreshold <= 0 || c.Reporting.QThreshold >= 1 {
		return errors.ConfigInvalid("REGIME_REPORT_Q_THRESHOLD must be in (0, 1)")
	}
	if c.Reporting.MinTerms < 0 || c.Reporting.NeweyWestLags < 0 {
		return errors.ConfigInvalid("REGIME_REPORT_MIN_TERMS and REGIME_REPORT_NEWEY_WEST_LAGS must not be negative")
	}
	if c.Workers < 0 {
		return errors.ConfigInvalid("REGIME_WORKERS must not be negative")
	}
	return nil
}

// Labels returns the two declared regime labels.
func (c *Config) Labels() (term.Label, term.Label) {
	return term.Label(c.Inputs.LabelA), term.Label(c.Inputs.LabelB)
}

// WorkerCount resolves 0 to the number of CPUs.
func (c *Config) WorkerCount() int {
	if c.Workers == 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// AttributionRule builds and validates the attribution rule.
func (c *Config) AttributionRule() (attribution.Rule, error) {
	r := attribution.NewRule(attribution.BoundaryPolicy(c.Rule.Boundary), c.Rule.Lag).
		WithAlignment(attribution.Alignment(c.Rule.Alignment))
	if c.Rule.EndLag != nil {
		r = r.WithEndLag(*c.Rule.EndLag)
	}
	r.YearBasisDays = c.Rule.YearBasisDays
	if err := r.Validate(); err != nil {
		return attribution.Rule{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return r, nil
}

// RandomConfig builds the randomization configuration. A missing block is an
// error: the null model must be chosen explicitly.
func (c *Config) RandomConfig() (inference.Config, error) {
	block, err := inference.ParseBlock(c.Randomization.Block)
	if err != nil {
		return inference.Config{}, errors.WithCode(errors.CodeConfigInvalid,
			eris.Wrap(err, "REGIME_BLOCK must be \"unrestricted\" or a positive number of years"))
	}
	cfg := inference.Config{
		Draws:      c.Randomization.Draws,
		Resamples:  c.Randomization.Resamples,
		Confidence: c.Randomization.Confidence,
		Seed:       c.Randomization.Seed,
		Block:      block,
		ExactLimit: c.Randomization.ExactLimit,
	}
	if err := cfg.Validate(); err != nil {
		return inference.Config{}, errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return cfg, nil
}

// TierPolicy returns the evidence tier thresholds.
func (c *Config) TierPolicy() inference.TierPolicy {
	return inference.TierPolicy{QThreshold: c.Reporting.QThreshold, MinTerms: c.Reporting.MinTerms}
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return logger, nil
}
