package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftlock/fleetctl/internal/ports"
	"github.com/driftlock/fleetctl/internal/tui"
)

var importCmd = &cobra.Command{
	Use:   "import [path]",
	Short: "Import a project from a zip archive or PNG carrier",
	Long: `Imports a project into the projects root. The source is either a
zip archive or a PNG image with an embedded archive. Without arguments
an interactive wizard collects the details.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

var (
	importName      string
	importFromImage bool
	importStart     bool
)

func init() {
	importCmd.Flags().StringVar(&importName, "name", "", "Project name (derived from the archive when empty)")
	importCmd.Flags().BoolVar(&importFromImage, "image", false, "Treat the source as a PNG carrier")
	importCmd.Flags().BoolVar(&importStart, "start", false, "Start the project after import")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var source string
	if len(args) == 1 {
		source = args[0]
	} else {
		opts, err := tui.RunImportWizard()
		if err != nil {
			return err
		}
		if opts == nil {
			logInfo("Import cancelled")
			return nil
		}
		source = opts.ArchivePath
		importName = opts.Name
		importFromImage = opts.FromImage
		importStart = opts.StartAfter
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}

	fromImage := importFromImage || strings.EqualFold(filepath.Ext(source), ".png")

	name, err := doImport(ctx, data, importName, fromImage)
	if err != nil {
		return err
	}

	logSuccess("Imported project %s", name)

	if importStart {
		if err := manager().Start(ctx, name, ports.ComponentFrontend); err != nil {
			return err
		}
		a, _ := fleet().Table.Get(name, ports.ComponentFrontend)
		logSuccess("Started %s on port %d", name, a.Port)
	}

	return nil
}

func doImport(ctx context.Context, data []byte, name string, fromImage bool) (string, error) {
	if fromImage {
		return fleet().Importer.ImportFromImage(ctx, data, name)
	}
	return fleet().Importer.Import(ctx, data, name)
}
