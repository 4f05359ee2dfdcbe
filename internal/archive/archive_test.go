package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/driftlock/fleetctl/internal/audit"
	"github.com/driftlock/fleetctl/internal/config"
	"github.com/driftlock/fleetctl/internal/imagebind"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

func newTestImporter(t *testing.T) (*Importer, string, *int) {
	t.Helper()
	root := t.TempDir()
	rescans := 0
	im := New(root, 10<<20, audit.NewLogger(t.TempDir()), func(context.Context) error {
		rescans++
		return nil
	})
	return im, root, &rescans
}

func TestImport_WrappedProject(t *testing.T) {
	im, root, rescans := newTestImporter(t)

	data := buildZip(t, map[string]string{
		"My App/" + config.MarkerFile: "module.exports = {};",
		"My App/package.json":         `{"name":"my-app"}`,
		"My App/src/index.js":         "console.log('hi');",
	})

	name, err := im.Import(context.Background(), data, "")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if name != "my-app" {
		t.Errorf("derived name = %q, want my-app", name)
	}
	if _, err := os.Stat(filepath.Join(root, "my-app", config.MarkerFile)); err != nil {
		t.Errorf("marker missing after import: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "my-app", "src", "index.js")); err != nil {
		t.Errorf("nested file missing after import: %v", err)
	}
	if *rescans != 1 {
		t.Errorf("rescan called %d times, want 1", *rescans)
	}
}

func TestImport_FlatArchiveWithExplicitName(t *testing.T) {
	im, root, _ := newTestImporter(t)

	data := buildZip(t, map[string]string{
		config.MarkerFile: "module.exports = {};",
		"index.html":      "<html></html>",
	})

	name, err := im.Import(context.Background(), data, "landing")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if name != "landing" {
		t.Errorf("name = %q, want landing", name)
	}
	if _, err := os.Stat(filepath.Join(root, "landing", "index.html")); err != nil {
		t.Errorf("file missing after import: %v", err)
	}
}

func TestImport_MissingManifest(t *testing.T) {
	im, root, rescans := newTestImporter(t)

	data := buildZip(t, map[string]string{
		"app/package.json": `{"name":"app"}`,
	})

	_, err := im.Import(context.Background(), data, "app")
	if !errors.Is(err, ErrMissingManifest) {
		t.Fatalf("err = %v, want ErrMissingManifest", err)
	}

	entries, readErr := os.ReadDir(root)
	if readErr != nil {
		t.Fatalf("ReadDir: %v", readErr)
	}
	if len(entries) != 0 {
		t.Errorf("projects root not clean after failed import: %v", entries)
	}
	if *rescans != 0 {
		t.Errorf("rescan called on failed import")
	}
}

func TestImport_ExistingProjectBackedUp(t *testing.T) {
	im, root, _ := newTestImporter(t)

	old := filepath.Join(root, "site")
	if err := os.MkdirAll(old, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(old, "keep.txt"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	data := buildZip(t, map[string]string{
		"site/" + config.MarkerFile: "module.exports = {};",
	})
	if _, err := im.Import(context.Background(), data, "site"); err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatal(err)
	}
	var backup string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "site.bak-") {
			backup = e.Name()
		}
	}
	if backup == "" {
		t.Fatalf("no timestamped backup of previous project, got %v", entries)
	}
	if _, err := os.Stat(filepath.Join(root, backup, "keep.txt")); err != nil {
		t.Errorf("backup missing original file: %v", err)
	}
}

func TestValidate(t *testing.T) {
	im := New(t.TempDir(), 16, nil, nil)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"too large", bytes.Repeat([]byte{0x50}, 32), ErrArchiveTooLarge},
		{"empty", nil, ErrInvalidArchive},
		{"wrong signature", []byte("not a zip at all"), ErrInvalidArchive},
		{"signature ok", append([]byte{0x50, 0x4b, 0x03, 0x04}, 0, 0), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := im.Validate(tt.data)
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestImport_ZipSlipRejected(t *testing.T) {
	im, root, _ := newTestImporter(t)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "../escape.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte("nope")); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := im.Import(context.Background(), buf.Bytes(), "evil"); !errors.Is(err, ErrInvalidArchive) {
		t.Fatalf("err = %v, want ErrInvalidArchive", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape.txt")); !os.IsNotExist(err) {
		t.Errorf("zip slip escaped the staging dir")
	}
}

func TestImport_InvalidName(t *testing.T) {
	im, _, _ := newTestImporter(t)
	data := buildZip(t, map[string]string{"app/" + config.MarkerFile: "x"})
	if _, err := im.Import(context.Background(), data, "Bad Name!"); err == nil {
		t.Fatal("expected error for invalid project name")
	}
}

func TestImportFromImage(t *testing.T) {
	im, root, _ := newTestImporter(t)

	archive := buildZip(t, map[string]string{
		"gallery/" + config.MarkerFile: "module.exports = {};",
	})
	container, err := imagebind.Embed(testPNG(t), []imagebind.File{
		{Path: "gallery.zip", Tag: imagebind.TagOther, Content: archive},
	})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	name, err := im.ImportFromImage(context.Background(), container, "")
	if err != nil {
		t.Fatalf("ImportFromImage failed: %v", err)
	}
	if name != "gallery" {
		t.Errorf("name = %q, want gallery", name)
	}
	if _, err := os.Stat(filepath.Join(root, "gallery", config.MarkerFile)); err != nil {
		t.Errorf("project missing after image import: %v", err)
	}
}

func TestImportFromImage_NoArchivePayload(t *testing.T) {
	im, _, _ := newTestImporter(t)

	container, err := imagebind.Embed(testPNG(t), []imagebind.File{
		{Path: "notes.txt", Tag: imagebind.TagOther, Content: []byte("hello")},
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := im.ImportFromImage(context.Background(), container, ""); !errors.Is(err, imagebind.ErrNotEmbedded) {
		t.Fatalf("err = %v, want ErrNotEmbedded", err)
	}
}

func TestRemove(t *testing.T) {
	im, root, rescans := newTestImporter(t)

	if _, err := im.Import(context.Background(), buildZip(t, map[string]string{
		config.MarkerFile: "// config",
	}), "site"); err != nil {
		t.Fatalf("Import: %v", err)
	}

	backup, err := im.Remove(context.Background(), "site")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := os.Stat(filepath.Join(root, "site")); !os.IsNotExist(err) {
		t.Error("project directory should be gone")
	}
	if !strings.HasPrefix(filepath.Base(backup), "site.bak-") {
		t.Errorf("backup = %q, want site.bak- prefix", backup)
	}
	if _, err := os.Stat(filepath.Join(backup, config.MarkerFile)); err != nil {
		t.Errorf("backup should keep the project contents: %v", err)
	}
	if *rescans != 2 {
		t.Errorf("rescans = %d, want 2 (import + remove)", *rescans)
	}
}

func TestRemove_MissingProject(t *testing.T) {
	im, _, _ := newTestImporter(t)

	if _, err := im.Remove(context.Background(), "ghost"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
}

func TestRemove_InvalidName(t *testing.T) {
	im, _, _ := newTestImporter(t)

	if _, err := im.Remove(context.Background(), "../escape"); err == nil {
		t.Error("Remove should reject a name with path separators")
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"My App", "my-app"},
		{"already-fine", "already-fine"},
		{"Trailing.", "trailing"},
		{"UPPER_case", "upper_case"},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
