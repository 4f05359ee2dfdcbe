package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor running projects in the foreground",
	Long: `Periodically reconciles the port table with the processes actually
alive on the host: adopts survivors from a previous run and flags
crashed projects. Runs in the foreground until interrupted.`,
	RunE: runMonitorCmd,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitorCmd(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scanFleet(ctx); err != nil {
		return err
	}

	logInfo("Monitoring fleet (interval: %s)", fleet().HostConfig.MonitorInterval())

	manager().RunMonitor(ctx)
	logInfo("Monitor stopped")
	return nil
}
