package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftlock/fleetctl/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and liveness monitor",
	Long: `Serves the fleet HTTP API on the configured listen address and runs
the liveness monitor alongside it. Runs in the foreground until
interrupted.

Can be wrapped in a systemd service for persistent operation.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := scanFleet(ctx); err != nil {
		return err
	}

	go manager().RunMonitor(ctx)

	logInfo("Serving fleet API on %s", fleet().HostConfig.ListenAddr)

	err := server.New(fleet()).ListenAndServe(ctx)
	if err == context.Canceled {
		logInfo("Server stopped")
		return nil
	}
	return err
}
