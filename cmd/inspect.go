package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/driftlock/fleetctl/internal/imagebind"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <image.png>",
	Short: "List the payload of a PNG carrier without extracting",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var inspectJSON bool

func init() {
	inspectCmd.Flags().BoolVar(&inspectJSON, "json-output", false, "Output the listing as JSON")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	container, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", imagePath, err)
	}

	if !imagebind.IsEmbedded(container) {
		logInfo("%s carries no embedded payload", imagePath)
		return nil
	}

	entries, err := imagebind.Inspect(container)
	if err != nil {
		return err
	}

	if inspectJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal entries: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tTAG\tSIZE")
	fmt.Fprintln(w, "----\t---\t----")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\n", e.Path, e.Tag, e.Size)
	}
	return w.Flush()
}
