package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"goregime/internal/errors"
	"goregime/internal/migration"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the result store schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Store.DSN == "" {
			return errors.ConfigInvalid("migrate needs REGIME_STORE_DSN")
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "schema %s applied (%s)\n", migration.NewRunner().Version(), cfg.Store.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
