package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/driftlock/fleetctl/internal/ports"
)

var logsCmd = &cobra.Command{
	Use:   "logs <name>",
	Short: "View a project's dev-server log",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

var (
	logsFollow    bool
	logsLines     int
	logsComponent string
)

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "Number of lines to show")
	logsCmd.Flags().StringVarP(&logsComponent, "component", "c", ports.ComponentFrontend, "Component log to view")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	name := args[0]

	if _, err := loadProject(cmd.Context(), name); err != nil {
		return err
	}

	logPath := filepath.Join(fleet().Paths.LogsDir, fmt.Sprintf("%s-%s.log", name, logsComponent))
	if _, err := os.Stat(logPath); err != nil {
		logInfo("No log yet for %s (%s)", name, logsComponent)
		return nil
	}

	if logsFollow {
		tailPath, err := exec.LookPath("tail")
		if err != nil {
			return fmt.Errorf("tail not found: %w", err)
		}
		tailArgs := []string{"tail", "-n", fmt.Sprintf("%d", logsLines), "-f", logPath}
		return syscall.Exec(tailPath, tailArgs, os.Environ())
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		return fmt.Errorf("failed to read log: %w", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > logsLines {
		lines = lines[len(lines)-logsLines:]
	}
	for _, line := range lines {
		fmt.Println(line)
	}

	return nil
}
