// Package config provides configuration types and loading for fleetctl.
//
// # Configuration Files
//
// Host-level settings are loaded from config.toml under the config dir
// (typically ~/.config/fleetctl). A missing file yields the built-in
// defaults, so fleetctl works with zero configuration.
//
// # Host Configuration
//
// HostConfig contains system-wide settings:
//
//	type HostConfig struct {
//	    ProjectsRoot string // Directory scanned for projects
//	    StateDir     string // Port table, logs, event journal
//	    ...                 // Base ports, timeouts, import ceiling
//	}
//
// # Paths
//
// Paths derives the concrete file locations (port table, log dir, event
// dir) from the state dir.
//
// # Validation
//
// ValidateProjectName enforces the project naming rules, and SafePath
// guards every name-derived path against traversal out of its base
// directory.
package config
