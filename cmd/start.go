package cmd

import (
	"github.com/spf13/cobra"

	"github.com/driftlock/fleetctl/internal/ports"
)

var startCmd = &cobra.Command{
	Use:   "start [name]",
	Short: "Start a project's dev server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStart,
}

var (
	startComponent string
	startAll       bool
)

func init() {
	startCmd.Flags().StringVarP(&startComponent, "component", "c", ports.ComponentFrontend, "Component to start (frontend, backend, websocket)")
	startCmd.Flags().BoolVar(&startAll, "all", false, "Start every project in the fleet")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if startAll {
		if err := scanFleet(ctx); err != nil {
			return err
		}
		return reportBatch("Started", manager().StartAll(ctx))
	}

	if len(args) == 0 {
		return cmd.Usage()
	}
	name := args[0]

	if _, err := loadProject(ctx, name); err != nil {
		return err
	}

	if err := manager().Start(ctx, name, startComponent); err != nil {
		return err
	}

	a, _ := fleet().Table.Get(name, startComponent)
	logSuccess("Started %s (%s) on port %d", name, startComponent, a.Port)
	return nil
}
