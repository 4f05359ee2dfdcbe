package cmd

import (
	"github.com/spf13/cobra"

	"github.com/driftlock/fleetctl/internal/ports"
)

var restartCmd = &cobra.Command{
	Use:   "restart <name>",
	Short: "Restart a project's dev server",
	Args:  cobra.ExactArgs(1),
	RunE:  runRestart,
}

var restartComponent string

func init() {
	restartCmd.Flags().StringVarP(&restartComponent, "component", "c", ports.ComponentFrontend, "Component to restart")
	rootCmd.AddCommand(restartCmd)
}

func runRestart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := args[0]

	if _, err := loadProject(ctx, name); err != nil {
		return err
	}

	if err := manager().Restart(ctx, name, restartComponent); err != nil {
		return err
	}

	a, _ := fleet().Table.Get(name, restartComponent)
	logSuccess("Restarted %s (%s) on port %d", name, restartComponent, a.Port)
	return nil
}
