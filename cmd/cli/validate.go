package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and check the inputs without computing anything",
	Long: `Loads the registry, the calendar and every referenced series and checks
their structural invariants. Gaps between terms are legal and listed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := cfg.AttributionRule(); err != nil {
			return err
		}
		env, err := initPipeline(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		in, err := env.Pipeline.LoadInputs(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "calendar: %d terms (%s/%s)\n", len(in.Calendar.Terms), in.Calendar.LabelA, in.Calendar.LabelB)
		fmt.Fprintf(out, "series:   %d\n", len(in.Series))
		fmt.Fprintf(out, "metrics:  %d (%d in the correction family)\n", len(in.Family.Definitions), len(in.Family.TestedIDs()))
		for _, g := range in.Calendar.Gaps() {
			fmt.Fprintf(out, "gap:      %s .. %s between %s and %s\n",
				g.From.Format("2006-01-02"), g.To.Format("2006-01-02"), g.After, g.Before)
		}
		fmt.Fprintln(out, "ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
