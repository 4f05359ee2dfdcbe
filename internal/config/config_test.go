package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestValidateProjectName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple", "myproject", false},
		{"with hyphen", "my-project", false},
		{"with underscore", "my_project", false},
		{"starts with digit", "1project", false},
		{"max length", strings.Repeat("a", 63), false},
		{"empty", "", true},
		{"uppercase", "MyProject", true},
		{"starts with hyphen", "-project", true},
		{"path separator", "a/b", true},
		{"dotdot", "..", true},
		{"too long", strings.Repeat("a", 64), true},
		{"space", "my project", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProjectName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateProjectName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestSafePath(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid name", "web", false},
		{"valid with suffix chars", "web-2", false},
		{"absolute path", "/etc/passwd", true},
		{"traversal", "../escape", true},
		{"nested", "a/b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, err := SafePath(base, tt.input, ".json")
			if (err != nil) != tt.wantErr {
				t.Fatalf("SafePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && !strings.HasPrefix(path, base) {
				t.Errorf("SafePath(%q) = %q, escapes base %q", tt.input, path, base)
			}
		})
	}
}

func TestLoadHostConfig(t *testing.T) {
	tmpDir := t.TempDir()

	content := `
projects_root = "/srv/fleet/projects"
state_dir = "/var/lib/fleetctl"
frontend_base_port = 4000
probe_timeout_secs = 20
import_max_bytes = 1048576
`
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadHostConfig(tmpDir)
	if err != nil {
		t.Fatalf("LoadHostConfig error: %v", err)
	}

	if cfg.ProjectsRoot != "/srv/fleet/projects" {
		t.Errorf("ProjectsRoot = %q, want %q", cfg.ProjectsRoot, "/srv/fleet/projects")
	}
	if cfg.FrontendBasePort != 4000 {
		t.Errorf("FrontendBasePort = %d, want 4000", cfg.FrontendBasePort)
	}
	if cfg.ProbeTimeout() != 20*time.Second {
		t.Errorf("ProbeTimeout = %v, want 20s", cfg.ProbeTimeout())
	}
	if cfg.ImportMaxBytes != 1048576 {
		t.Errorf("ImportMaxBytes = %d, want 1048576", cfg.ImportMaxBytes)
	}

	// Unset fields pick up defaults
	if cfg.BackendBasePort != BasePortBackend {
		t.Errorf("BackendBasePort = %d, want %d", cfg.BackendBasePort, BasePortBackend)
	}
	if cfg.DescribeTimeout() != DefaultDescribeTimeout {
		t.Errorf("DescribeTimeout = %v, want %v", cfg.DescribeTimeout(), DefaultDescribeTimeout)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
}

func TestLoadHostConfig_MissingFile(t *testing.T) {
	cfg, err := LoadHostConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadHostConfig with no file should use defaults, got error: %v", err)
	}

	if cfg.ProjectsRoot == "" {
		t.Error("ProjectsRoot should have a default")
	}
	if cfg.FrontendBasePort != BasePortFrontend {
		t.Errorf("FrontendBasePort = %d, want %d", cfg.FrontendBasePort, BasePortFrontend)
	}
	if cfg.StopGrace() != DefaultStopGrace {
		t.Errorf("StopGrace = %v, want %v", cfg.StopGrace(), DefaultStopGrace)
	}
	if cfg.MonitorInterval() != DefaultMonitorInterval {
		t.Errorf("MonitorInterval = %v, want %v", cfg.MonitorInterval(), DefaultMonitorInterval)
	}
}

func TestLoadHostConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("projects_root = ["), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := LoadHostConfig(tmpDir); err == nil {
		t.Error("Expected error for invalid TOML")
	}
}

func TestLoadHostConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"relative projects root", `projects_root = "relative/path"`},
		{"relative state dir", `state_dir = "relative"`},
		{"port out of range", `frontend_base_port = 70000`},
		{"negative ceiling", `import_max_bytes = -1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, ConfigFileName)
			if err := os.WriteFile(configPath, []byte(tt.content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}

			if _, err := LoadHostConfig(tmpDir); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestHostConfig_BasePort(t *testing.T) {
	cfg := &HostConfig{
		FrontendBasePort:  3000,
		BackendBasePort:   8050,
		WebsocketBasePort: 8051,
	}

	tests := []struct {
		component string
		want      int
	}{
		{"frontend", 3000},
		{"backend", 8050},
		{"websocket", 8051},
		{"unknown", 3000},
	}

	for _, tt := range tests {
		t.Run(tt.component, func(t *testing.T) {
			if got := cfg.BasePort(tt.component); got != tt.want {
				t.Errorf("BasePort(%q) = %d, want %d", tt.component, got, tt.want)
			}
		})
	}
}

func TestNewPaths(t *testing.T) {
	paths := NewPaths("/etc/fleetctl", "/var/lib/fleetctl")

	if paths.PortTablePath != filepath.Join("/var/lib/fleetctl", "ports.json") {
		t.Errorf("PortTablePath = %q", paths.PortTablePath)
	}
	if paths.LogsDir != filepath.Join("/var/lib/fleetctl", "logs") {
		t.Errorf("LogsDir = %q", paths.LogsDir)
	}
	if paths.EventsDir != filepath.Join("/var/lib/fleetctl", "events") {
		t.Errorf("EventsDir = %q", paths.EventsDir)
	}
}
