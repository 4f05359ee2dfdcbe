package cmd

import (
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Rescan the projects root",
	RunE:  runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := scanFleet(cmd.Context()); err != nil {
		return err
	}

	projects := fleet().Registry.List()
	logSuccess("Found %d project(s) under %s", len(projects), fleet().Registry.Root())

	for _, d := range projects {
		if d.Orphaned {
			logWarning("  %s: directory gone but still running", d.Name)
		}
	}
	return nil
}
