package cmd

import (
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm"},
	Short:   "Stop a project and move its directory to a backup",
	Args:    cobra.ExactArgs(1),
	RunE:    runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	ctx := cmd.Context()

	if _, err := loadProject(ctx, name); err != nil {
		return err
	}

	logInfo("Removing project %s...", name)

	backup, err := fleet().DeleteProject(ctx, name)
	if err != nil {
		return err
	}

	if backup != "" {
		logSuccess("Removed project %s (backup at %s)", name, backup)
	} else {
		logSuccess("Removed project %s", name)
	}
	return nil
}
