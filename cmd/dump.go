package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bnema/displayhal/internal/report"
)

var (
	dumpJSON  bool
	dumpPlain bool
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Show the adapter state for the configured scenario",
	Long: `Connect every display of the scenario, probe it, and print the
resulting adapter state. Use --json for machine-readable output.`,
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().BoolVar(&dumpJSON, "json", false, "Output in JSON format")
	dumpCmd.Flags().BoolVar(&dumpPlain, "plain", false, "Output the unstyled adapter dump")
}

func runDump(cmd *cobra.Command, args []string) error {
	s, err := startSimulation()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch {
	case dumpJSON:
		data, err := report.JSON(s.adapter.Snapshot())
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case dumpPlain:
		fmt.Fprint(out, s.adapter.Dump())
	default:
		fmt.Fprintln(out, report.Text(s.adapter.Snapshot()))
	}
	return nil
}
