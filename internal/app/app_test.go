package app

import (
	"path/filepath"
	"testing"

	"github.com/driftlock/fleetctl/internal/config"
	"github.com/driftlock/fleetctl/internal/registry"
)

func testHostConfig(t *testing.T) *config.HostConfig {
	t.Helper()
	cfg, err := config.LoadHostConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadHostConfig failed: %v", err)
	}
	cfg.ProjectsRoot = filepath.Join(t.TempDir(), "projects")
	cfg.StateDir = filepath.Join(t.TempDir(), "state")
	return cfg
}

func TestNew(t *testing.T) {
	app := New(WithHostConfig(testHostConfig(t)))

	if app == nil {
		t.Fatal("New() returned nil")
	}
	if app.Paths == nil {
		t.Error("Paths should not be nil")
	}
	if app.Registry == nil {
		t.Error("Registry should not be nil")
	}
	if app.Table == nil {
		t.Error("Table should not be nil")
	}
	if app.Manager == nil {
		t.Error("Manager should not be nil")
	}
	if app.Importer == nil {
		t.Error("Importer should not be nil")
	}
}

func TestNew_WithPaths(t *testing.T) {
	customPaths := config.NewPaths("/custom/config", "/custom/state")

	app := New(WithHostConfig(testHostConfig(t)), WithPaths(customPaths))

	if app.Paths != customPaths {
		t.Error("WithPaths did not set custom paths")
	}
	if app.Paths.PortTablePath != filepath.Join("/custom/state", "ports.json") {
		t.Errorf("unexpected port table path %q", app.Paths.PortTablePath)
	}
}

func TestNew_WithHostConfig(t *testing.T) {
	cfg := testHostConfig(t)
	cfg.FrontendBasePort = 4000

	app := New(WithHostConfig(cfg))

	if app.HostConfig != cfg {
		t.Error("WithHostConfig did not set host config")
	}
	if app.HostConfig.FrontendBasePort != 4000 {
		t.Error("custom base port lost")
	}
}

func TestNew_WithRegistry(t *testing.T) {
	cfg := testHostConfig(t)
	reg := registry.New(cfg)

	app := New(WithHostConfig(cfg), WithRegistry(reg))

	if app.Registry != reg {
		t.Error("WithRegistry did not set registry")
	}
}

func TestNew_MultipleOptions(t *testing.T) {
	cfg := testHostConfig(t)
	customPaths := config.NewPaths("/custom", filepath.Join(t.TempDir(), "state"))
	reg := registry.New(cfg)

	app := New(
		WithPaths(customPaths),
		WithHostConfig(cfg),
		WithRegistry(reg),
	)

	if app.Paths != customPaths {
		t.Error("Paths not set correctly")
	}
	if app.HostConfig != cfg {
		t.Error("HostConfig not set correctly")
	}
	if app.Registry != reg {
		t.Error("Registry not set correctly")
	}
}

func TestSetDefault(t *testing.T) {
	// Save original default
	original := Default
	defer func() { Default = original }()

	customApp := New(WithHostConfig(testHostConfig(t)))
	SetDefault(customApp)

	if Default != customApp {
		t.Error("SetDefault did not update Default")
	}
}

func TestResetDefault(t *testing.T) {
	// Save original default
	original := Default
	defer func() { Default = original }()

	customApp := New(WithHostConfig(testHostConfig(t)))
	SetDefault(customApp)

	ResetDefault()

	if Default == customApp {
		t.Error("ResetDefault did not create new Default")
	}
}
