package cmd

import (
	"github.com/spf13/cobra"

	"github.com/driftlock/fleetctl/internal/lifecycle"
	"github.com/driftlock/fleetctl/internal/ports"
)

var stopCmd = &cobra.Command{
	Use:   "stop [name]",
	Short: "Stop a project's dev server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStop,
}

var (
	stopComponent string
	stopAll       bool
)

func init() {
	stopCmd.Flags().StringVarP(&stopComponent, "component", "c", ports.ComponentFrontend, "Component to stop")
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "Stop every project in the fleet")
	rootCmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if stopAll {
		if err := scanFleet(ctx); err != nil {
			return err
		}
		return reportBatch("Stopped", manager().StopAll(ctx))
	}

	if len(args) == 0 {
		return cmd.Usage()
	}
	name := args[0]

	if _, err := loadProject(ctx, name); err != nil {
		return err
	}

	if err := manager().Stop(ctx, name, stopComponent); err != nil {
		return err
	}

	logSuccess("Stopped %s", name)
	return nil
}

// reportBatch prints per-project results and returns the first failure.
func reportBatch(verb string, results []lifecycle.Result) error {
	var firstErr error
	for _, res := range results {
		if res.Err != nil {
			logWarning("%s: %v", res.Project, res.Err)
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		logSuccess("%s %s", verb, res.Project)
	}
	return firstErr
}
