package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"goregime/internal/config"
	"goregime/internal/errors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "regime",
	Short: "Attribute macro series to regime terms and test the gaps",
	Long: `regime attributes economic time series to alternating regime terms,
computes per-term metrics and tests whether the two regimes differ using
permutation tests, Benjamini-Hochberg q-values and bootstrap intervals.

Settings come from REGIME_* environment variables (and a .env file when
present). Command-line flags override them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		l, err := config.InitLogger(cfg.Log)
		if err != nil {
			return errors.WithCode(errors.CodeConfigInvalid, fmt.Errorf("init logger: %w", err))
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(errors.ExitCode(err))
	}
}
