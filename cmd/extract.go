package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftlock/fleetctl/internal/audit"
	"github.com/driftlock/fleetctl/internal/imagebind"
)

var extractCmd = &cobra.Command{
	Use:   "extract <image.png>",
	Short: "Extract embedded files from a PNG carrier",
	Args:  cobra.ExactArgs(1),
	RunE:  runExtract,
}

var (
	extractDir  string
	extractTags []string
)

func init() {
	extractCmd.Flags().StringVarP(&extractDir, "dir", "d", ".", "Directory to write extracted files into")
	extractCmd.Flags().StringSliceVar(&extractTags, "tags", nil, "Only extract files with these tags (WB, RX, CH, PS, PE, OT)")
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	container, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", imagePath, err)
	}

	payload, err := imagebind.ExtractTagged(container, extractTags...)
	if err != nil {
		return err
	}

	if len(payload.Files) == 0 {
		logInfo("No files matched")
		return nil
	}

	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", extractDir, err)
	}

	for _, f := range payload.Files {
		dest := filepath.Join(extractDir, filepath.Base(f.Path))
		if err := os.WriteFile(dest, f.Content, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}
		logInfo("  %s (%s, %d bytes)", dest, f.Tag, len(f.Content))
	}

	_ = fleet().Audit.Log(audit.Event{
		Type:    audit.EventExtract,
		Project: strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath)),
		Details: fmt.Sprintf("%d file(s)", len(payload.Files)),
	})

	logSuccess("Extracted %d file(s) to %s", len(payload.Files), extractDir)
	return nil
}
