package cmd

import (
	"github.com/spf13/cobra"

	"github.com/driftlock/fleetctl/internal/ports"
	"github.com/driftlock/fleetctl/internal/tui"
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactively manage the fleet",
	RunE:  runPick,
}

var pickSimple bool

func init() {
	pickCmd.Flags().BoolVar(&pickSimple, "simple", false, "Print a non-interactive listing instead")
	rootCmd.AddCommand(pickCmd)
}

func runPick(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if err := scanFleet(ctx); err != nil {
		return err
	}

	if pickSimple {
		cmd.Print(tui.SimplePicker(projectViews()))
		return nil
	}

	for {
		result, err := tui.RunPicker(projectViews())
		if err != nil {
			return err
		}

		switch result.Action {
		case tui.ActionStart:
			if err := manager().Start(ctx, result.Project.Name, ports.ComponentFrontend); err != nil {
				logError("Start %s: %v", result.Project.Name, err)
			} else {
				logSuccess("Started %s", result.Project.Name)
			}
		case tui.ActionStop:
			if err := manager().Stop(ctx, result.Project.Name, ports.ComponentFrontend); err != nil {
				logError("Stop %s: %v", result.Project.Name, err)
			} else {
				logSuccess("Stopped %s", result.Project.Name)
			}
		case tui.ActionRestart:
			if err := manager().Restart(ctx, result.Project.Name, ports.ComponentFrontend); err != nil {
				logError("Restart %s: %v", result.Project.Name, err)
			} else {
				logSuccess("Restarted %s", result.Project.Name)
			}
		case tui.ActionRescan:
			if err := scanFleet(ctx); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
