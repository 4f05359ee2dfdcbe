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

var embedCmd = &cobra.Command{
	Use:   "embed <image.png> <file>...",
	Short: "Embed files into a PNG carrier",
	Long: `Embeds one or more files into a PNG image as a private chunk. The
image still renders everywhere; the payload travels with it. Re-embedding
replaces any existing payload.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runEmbed,
}

var (
	embedOutput string
	embedTag    string
)

func init() {
	embedCmd.Flags().StringVarP(&embedOutput, "output", "o", "", "Output path (default: overwrite the carrier)")
	embedCmd.Flags().StringVar(&embedTag, "tag", "", "Tag for all files (default: inferred per file)")
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	imagePath := args[0]

	container, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", imagePath, err)
	}

	var files []imagebind.File
	for _, path := range args[1:] {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		tag := embedTag
		if tag == "" {
			tag = imagebind.TagFor(path)
		}
		files = append(files, imagebind.File{
			Path:    filepath.Base(path),
			Tag:     tag,
			Content: content,
		})
	}

	out, err := imagebind.Embed(container, files)
	if err != nil {
		return err
	}

	outPath := embedOutput
	if outPath == "" {
		outPath = imagePath
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outPath, err)
	}

	_ = fleet().Audit.Log(audit.Event{
		Type:    audit.EventEmbed,
		Project: strings.TrimSuffix(filepath.Base(outPath), filepath.Ext(outPath)),
		Details: fmt.Sprintf("%d file(s)", len(files)),
	})

	logSuccess("Embedded %d file(s) into %s", len(files), outPath)
	return nil
}
