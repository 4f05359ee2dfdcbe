package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Show the persistent port table",
	RunE:  runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	rows := fleet().Table.Snapshot()
	if len(rows) == 0 {
		logInfo("No port assignments yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROJECT\tCOMPONENT\tPORT\tPID\tRUNNING")
	fmt.Fprintln(w, "-------\t---------\t----\t---\t-------")

	for _, row := range rows {
		pid := "-"
		if row.PID != 0 {
			pid = fmt.Sprintf("%d", row.PID)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%v\n",
			row.Project, row.Component, row.Port, pid, row.Running)
	}

	return w.Flush()
}
