package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// projectNameRegex validates project names.
// Names must start with a lowercase letter or digit, followed by lowercase
// letters, digits, underscores, or hyphens. Maximum length is 63 characters.
var projectNameRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidateProjectName checks if a project name is valid.
// Valid names:
//   - Start with a lowercase letter or digit
//   - Contain only lowercase letters, digits, underscores, or hyphens
//   - Are between 1 and 63 characters long
//   - Do not contain path separators or special characters
func ValidateProjectName(name string) error {
	if name == "" {
		return fmt.Errorf("project name cannot be empty")
	}

	if !projectNameRegex.MatchString(name) {
		return fmt.Errorf("invalid project name %q: must start with a lowercase letter or digit, contain only lowercase letters, digits, underscores, or hyphens, and be at most 63 characters", name)
	}

	return nil
}

// SafePath validates that a constructed path stays within the base directory.
// This prevents path traversal where names like "../../../etc/passwd" could
// escape the intended directory.
func SafePath(baseDir, name, suffix string) (string, error) {
	// Reject absolute paths in name
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("name cannot be an absolute path")
	}

	// Reject names containing path separators
	if filepath.Dir(name) != "." {
		return "", fmt.Errorf("name cannot contain path separators")
	}

	// Construct the path
	path := filepath.Join(baseDir, name+suffix)

	// Get absolute paths for comparison
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("invalid base directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("invalid path: %w", err)
	}

	// Ensure the resolved path is within the base directory.
	// Add separator to prevent prefix matching (e.g., /var/lib/fleet vs /var/lib/fleet-evil)
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return "", fmt.Errorf("path escapes base directory")
	}

	return path, nil
}

const (
	// MarkerFile is the per-project manifest executed with --describe.
	MarkerFile = "fleet.config.js"

	// ConfigFileName is the host configuration file under the config dir.
	ConfigFileName = "config.toml"
)

// Component base ports. A component's scan starts at its base when no
// declared port is usable.
const (
	BasePortFrontend  = 3000
	BasePortBackend   = 8050
	BasePortWebsocket = 8051
)

// HostConfig represents the host configuration from config.toml.
type HostConfig struct {
	ProjectsRoot string `toml:"projects_root"`
	StateDir     string `toml:"state_dir"`

	// Component base ports. Zero means the built-in default.
	FrontendBasePort  int `toml:"frontend_base_port"`
	BackendBasePort   int `toml:"backend_base_port"`
	WebsocketBasePort int `toml:"websocket_base_port"`

	// Timeouts in seconds. Zero means the built-in default.
	DescribeTimeoutSecs int `toml:"describe_timeout_secs"`
	ProbeTimeoutSecs    int `toml:"probe_timeout_secs"`
	StopGraceSecs       int `toml:"stop_grace_secs"`
	MonitorIntervalSecs int `toml:"monitor_interval_secs"`
	InstallTimeoutSecs  int `toml:"install_timeout_secs"`

	// ImportMaxBytes caps accepted archive size. Zero means the default.
	ImportMaxBytes int64 `toml:"import_max_bytes"`

	// ListenAddr is the bind address for the HTTP server.
	ListenAddr string `toml:"listen_addr"`
}

// Built-in defaults applied by applyDefaults.
const (
	DefaultDescribeTimeout = 10 * time.Second
	DefaultProbeTimeout    = 15 * time.Second
	DefaultStopGrace       = 5 * time.Second
	DefaultMonitorInterval = 30 * time.Second
	DefaultInstallTimeout  = 10 * time.Minute
	DefaultImportMaxBytes  = 200 << 20
	DefaultListenAddr      = "127.0.0.1:8040"
)

func (c *HostConfig) applyDefaults(home string) {
	if c.ProjectsRoot == "" {
		c.ProjectsRoot = filepath.Join(home, "fleet", "projects")
	}
	if c.StateDir == "" {
		c.StateDir = filepath.Join(home, ".local", "state", "fleetctl")
	}
	if c.FrontendBasePort == 0 {
		c.FrontendBasePort = BasePortFrontend
	}
	if c.BackendBasePort == 0 {
		c.BackendBasePort = BasePortBackend
	}
	if c.WebsocketBasePort == 0 {
		c.WebsocketBasePort = BasePortWebsocket
	}
	if c.DescribeTimeoutSecs == 0 {
		c.DescribeTimeoutSecs = int(DefaultDescribeTimeout.Seconds())
	}
	if c.ProbeTimeoutSecs == 0 {
		c.ProbeTimeoutSecs = int(DefaultProbeTimeout.Seconds())
	}
	if c.StopGraceSecs == 0 {
		c.StopGraceSecs = int(DefaultStopGrace.Seconds())
	}
	if c.MonitorIntervalSecs == 0 {
		c.MonitorIntervalSecs = int(DefaultMonitorInterval.Seconds())
	}
	if c.InstallTimeoutSecs == 0 {
		c.InstallTimeoutSecs = int(DefaultInstallTimeout.Seconds())
	}
	if c.ImportMaxBytes == 0 {
		c.ImportMaxBytes = DefaultImportMaxBytes
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
}

// Validate checks that the HostConfig is valid.
func (c *HostConfig) Validate() error {
	if !filepath.IsAbs(c.ProjectsRoot) {
		return fmt.Errorf("projects_root must be an absolute path (got %q)", c.ProjectsRoot)
	}
	if !filepath.IsAbs(c.StateDir) {
		return fmt.Errorf("state_dir must be an absolute path (got %q)", c.StateDir)
	}
	for _, p := range []struct {
		name string
		port int
	}{
		{"frontend_base_port", c.FrontendBasePort},
		{"backend_base_port", c.BackendBasePort},
		{"websocket_base_port", c.WebsocketBasePort},
	} {
		if p.port < 1 || p.port > 65535 {
			return fmt.Errorf("%s must be between 1 and 65535 (got %d)", p.name, p.port)
		}
	}
	if c.ImportMaxBytes < 0 {
		return fmt.Errorf("import_max_bytes cannot be negative")
	}
	return nil
}

// DescribeTimeout returns the configured --describe subprocess timeout.
func (c *HostConfig) DescribeTimeout() time.Duration {
	return time.Duration(c.DescribeTimeoutSecs) * time.Second
}

// ProbeTimeout returns the configured startup probe ceiling.
func (c *HostConfig) ProbeTimeout() time.Duration {
	return time.Duration(c.ProbeTimeoutSecs) * time.Second
}

// StopGrace returns the SIGTERM-to-SIGKILL grace period.
func (c *HostConfig) StopGrace() time.Duration {
	return time.Duration(c.StopGraceSecs) * time.Second
}

// MonitorInterval returns the liveness monitor tick interval.
func (c *HostConfig) MonitorInterval() time.Duration {
	return time.Duration(c.MonitorIntervalSecs) * time.Second
}

// InstallTimeout returns the ceiling for install commands.
func (c *HostConfig) InstallTimeout() time.Duration {
	return time.Duration(c.InstallTimeoutSecs) * time.Second
}

// BasePort returns the configured base port for a component type.
// Unknown component types fall back to the frontend base.
func (c *HostConfig) BasePort(component string) int {
	switch component {
	case "backend":
		return c.BackendBasePort
	case "websocket":
		return c.WebsocketBasePort
	default:
		return c.FrontendBasePort
	}
}

// Paths holds the configured paths.
type Paths struct {
	ConfigDir string
	StateDir  string

	// Derived from StateDir.
	PortTablePath string
	LogsDir       string
	EventsDir     string
}

// DefaultConfigDir returns the per-user config directory.
func DefaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "fleetctl")
	}
	return filepath.Join(os.TempDir(), "fleetctl")
}

// NewPaths derives the path set from a config dir and a state dir.
func NewPaths(configDir, stateDir string) *Paths {
	return &Paths{
		ConfigDir:     configDir,
		StateDir:      stateDir,
		PortTablePath: filepath.Join(stateDir, "ports.json"),
		LogsDir:       filepath.Join(stateDir, "logs"),
		EventsDir:     filepath.Join(stateDir, "events"),
	}
}

// LoadHostConfig loads the host configuration from config.toml under
// configDir. A missing file yields the full set of defaults.
func LoadHostConfig(configDir string) (*HostConfig, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}

	var config HostConfig

	configPath := filepath.Join(configDir, ConfigFileName)
	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read host config: %w", err)
		}
	} else {
		if err := toml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse host config: %w", err)
		}
	}

	config.applyDefaults(home)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid host config: %w", err)
	}

	return &config, nil
}
