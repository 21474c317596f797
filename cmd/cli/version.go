package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"goregime/domain/metric"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the build and output format versions",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "regime %s (format %s)\n", version, metric.FormatVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
