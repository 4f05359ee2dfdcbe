package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/driftlock/fleetctl/internal/app"
	"github.com/driftlock/fleetctl/internal/config"
	"github.com/driftlock/fleetctl/internal/logging"
)

var (
	verbose    bool
	jsonOutput bool
	configDir  string
)

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "Single-host frontend fleet manager",
	Long: `fleetctl manages a fleet of frontend projects on one host.

Each project lives in its own directory under the projects root and is
recognized by its fleet.config.js manifest. fleetctl keeps a persistent
port table, supervises dev-server processes, and can move whole projects
around as zip archives or PNG image carriers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logging.Setup(verbose, jsonOutput, os.Stderr)

		if configDir != "" {
			cfg, err := config.LoadHostConfig(configDir)
			if err != nil {
				return err
			}
			app.SetDefault(app.New(
				app.WithHostConfig(cfg),
				app.WithPaths(config.NewPaths(configDir, cfg.StateDir)),
			))
		}
		return nil
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Override the config directory")
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper aliases for user-facing output (delegates to logging package)
var (
	logInfo    = logging.UserInfo
	logSuccess = logging.UserSuccess
	logWarning = logging.UserWarning
	logError   = logging.UserError
)
