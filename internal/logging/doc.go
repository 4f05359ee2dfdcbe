// Package logging provides logging utilities for fleetctl.
//
// This package provides two categories of output:
//   - Debug logging: Structured logs for debugging (via slog)
//   - User output: Formatted messages for end users
//
// # Debug Logging
//
// Debug logs are written using slog and controlled by verbosity settings:
//
//	logging.Debug("starting project", "name", name, "port", port)
//	logging.Warn("probe timeout", "project", name, "elapsed", elapsed)
//
// # User Output
//
// User-facing messages are formatted with status indicators:
//
//	logging.UserInfo("Scanning %s...", root)
//	logging.UserSuccess("Project %s running on port %d", name, port)
//	logging.UserWarning("Port %d is already in use", port)
//	logging.UserError("Failed to start project: %v", err)
//
// Output destinations:
//   - UserInfo, UserSuccess: stdout
//   - UserWarning, UserError: stderr
//
// # Status Indicators
//
// User functions prepend status indicators:
//   - ℹ (info)
//   - ✓ (success)
//   - ⚠ (warning)
//   - ✗ (error)
package logging
