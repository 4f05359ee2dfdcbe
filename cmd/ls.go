package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/driftlock/fleetctl/internal/lifecycle"
)

var lsCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"ps", "list"},
	Short:   "List all projects",
	RunE:    runLs,
}

func init() {
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	if err := scanFleet(cmd.Context()); err != nil {
		return fmt.Errorf("failed to scan projects: %w", err)
	}

	projects := fleet().Registry.List()
	if len(projects) == 0 {
		logInfo("No projects found. Import one with: fleetctl import <archive.zip>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tCONFIG\tSTATE\tPORTS")
	fmt.Fprintln(w, "----\t----\t------\t-----\t-----")

	for _, d := range projects {
		var running []string
		for _, row := range fleet().Table.Snapshot() {
			if row.Project == d.Name && row.Running {
				running = append(running, strconv.Itoa(row.Port))
			}
		}

		name := d.Name
		if d.Orphaned {
			name += " (orphaned)"
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			name, d.Type, d.ConfigSource,
			formatState(manager().State(d.Name)),
			strings.Join(running, ","))
	}

	return w.Flush()
}

func formatState(state lifecycle.State) string {
	switch state {
	case lifecycle.StateRunning:
		return "✓ running"
	case lifecycle.StateError:
		return "✗ error"
	case lifecycle.StateStarting:
		return "… starting"
	case lifecycle.StateStopping:
		return "… stopping"
	case lifecycle.StateStopped:
		return "○ stopped"
	default:
		return string(state)
	}
}
