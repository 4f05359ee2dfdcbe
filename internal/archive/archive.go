// Package archive validates and imports project archives into the
// projects root, staging every extraction so no failure leaves partial
// state behind.
package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	securejoin "github.com/cyphar/filepath-securejoin"

	"github.com/driftlock/fleetctl/internal/audit"
	"github.com/driftlock/fleetctl/internal/config"
	"github.com/driftlock/fleetctl/internal/imagebind"
	"github.com/driftlock/fleetctl/internal/logging"
)

// Sentinel errors for import failures.
var (
	ErrArchiveTooLarge = errors.New("archive exceeds size ceiling")
	ErrInvalidArchive  = errors.New("not a valid zip archive")
	ErrMissingManifest = errors.New("archive has no " + config.MarkerFile + " at its project root")
)

var zipSignature = []byte{0x50, 0x4b, 0x03, 0x04}

// Importer moves project archives into the projects root.
type Importer struct {
	root     string
	maxBytes int64
	audit    *audit.Logger

	// rescan is invoked after a successful import so the registry picks
	// up the new project.
	rescan func(ctx context.Context) error
}

// New creates an Importer over the projects root.
func New(root string, maxBytes int64, auditLog *audit.Logger, rescan func(ctx context.Context) error) *Importer {
	if rescan == nil {
		rescan = func(context.Context) error { return nil }
	}
	return &Importer{root: root, maxBytes: maxBytes, audit: auditLog, rescan: rescan}
}

// Validate rejects blobs that are too large or do not carry the zip
// signature, before any extraction work happens.
func (im *Importer) Validate(data []byte) error {
	if im.maxBytes > 0 && int64(len(data)) > im.maxBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrArchiveTooLarge, len(data), im.maxBytes)
	}
	if len(data) < len(zipSignature) || !bytes.Equal(data[:len(zipSignature)], zipSignature) {
		return ErrInvalidArchive
	}
	return nil
}

// Import validates and extracts an archive, places it under the projects
// root as name (derived from the archive layout when empty), and
// triggers a registry rescan. On any failure the staging area is removed
// entirely; the projects root is only touched on the success path.
func (im *Importer) Import(ctx context.Context, data []byte, name string) (string, error) {
	if err := im.Validate(data); err != nil {
		return "", err
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}

	if err := os.MkdirAll(im.root, 0755); err != nil {
		return "", fmt.Errorf("failed to create projects root: %w", err)
	}

	// Stage under the projects root (same filesystem, so the final move
	// is an atomic rename). The dot prefix keeps rescans from seeing it.
	staging, err := os.MkdirTemp(im.root, ".staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	for _, f := range zr.File {
		if err := extractEntry(staging, f); err != nil {
			return "", err
		}
	}

	projectRoot, derived, err := findProjectRoot(staging)
	if err != nil {
		return "", err
	}

	if name == "" {
		name = sanitizeName(derived)
	}
	if err := config.ValidateProjectName(name); err != nil {
		return "", fmt.Errorf("derived project name rejected: %w", err)
	}

	dest, err := config.SafePath(im.root, name, "")
	if err != nil {
		return "", err
	}

	// Never silently destroy an existing project: move it aside first.
	if _, err := os.Stat(dest); err == nil {
		backup := dest + ".bak-" + time.Now().Format("20060102-150405")
		if err := os.Rename(dest, backup); err != nil {
			return "", fmt.Errorf("failed to back up existing project: %w", err)
		}
		logging.Info("existing project moved aside", "project", name, "backup", backup)
	}

	if err := os.Rename(projectRoot, dest); err != nil {
		return "", fmt.Errorf("failed to place project: %w", err)
	}

	if im.audit != nil {
		im.audit.Log(audit.Event{Type: audit.EventImport, Project: name,
			Details: fmt.Sprintf("archive %d bytes", len(data))})
	}

	if err := im.rescan(ctx); err != nil {
		logging.Warn("rescan after import failed", "error", err)
	}

	return name, nil
}

// Remove retires a project by renaming its directory to a timestamped
// backup under the projects root, then triggers a registry rescan. The
// directory contents are never destroyed.
func (im *Importer) Remove(ctx context.Context, name string) (string, error) {
	if err := config.ValidateProjectName(name); err != nil {
		return "", err
	}

	dir, err := config.SafePath(im.root, name, "")
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("no project directory for %s: %w", name, err)
	}

	backup := dir + ".bak-" + time.Now().Format("20060102-150405")
	if err := os.Rename(dir, backup); err != nil {
		return "", fmt.Errorf("failed to back up project: %w", err)
	}

	if err := im.rescan(ctx); err != nil {
		logging.Warn("rescan after remove failed", "error", err)
	}

	return backup, nil
}

// ImportFromImage extracts the archive payload embedded in a PNG and
// imports it.
func (im *Importer) ImportFromImage(ctx context.Context, container []byte, name string) (string, error) {
	payload, err := imagebind.Extract(container)
	if err != nil {
		return "", err
	}

	for _, f := range payload.Files {
		if strings.EqualFold(filepath.Ext(f.Path), ".zip") {
			if name == "" {
				name = sanitizeName(strings.TrimSuffix(filepath.Base(f.Path), filepath.Ext(f.Path)))
			}
			return im.Import(ctx, f.Content, name)
		}
	}

	return "", fmt.Errorf("%w: payload carries no archive", imagebind.ErrNotEmbedded)
}

// extractEntry writes one zip entry under staging, rejecting any path
// that would escape it.
func extractEntry(staging string, f *zip.File) error {
	if strings.Contains(f.Name, "..") || filepath.IsAbs(f.Name) {
		return fmt.Errorf("%w: entry %q escapes archive root", ErrInvalidArchive, f.Name)
	}

	path, err := securejoin.SecureJoin(staging, f.Name)
	if err != nil {
		return fmt.Errorf("%w: entry %q rejected: %v", ErrInvalidArchive, f.Name, err)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(path, 0755)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %q: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", f.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("failed to extract %q: %w", f.Name, err)
	}

	return nil
}

// findProjectRoot locates the directory carrying the marker file:
// either the staging root itself or a single top-level directory.
// Anything else fails with ErrMissingManifest.
func findProjectRoot(staging string) (root, derivedName string, err error) {
	if _, err := os.Stat(filepath.Join(staging, config.MarkerFile)); err == nil {
		return staging, "", nil
	}

	entries, err := os.ReadDir(staging)
	if err != nil {
		return "", "", fmt.Errorf("failed to read staging dir: %w", err)
	}

	var dirs []os.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}

	if len(dirs) == 1 {
		candidate := filepath.Join(staging, dirs[0].Name())
		if _, err := os.Stat(filepath.Join(candidate, config.MarkerFile)); err == nil {
			return candidate, dirs[0].Name(), nil
		}
	}

	return "", "", ErrMissingManifest
}

// sanitizeName lowercases and normalizes a derived name to the project
// naming rules.
func sanitizeName(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '.':
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-_")
}
