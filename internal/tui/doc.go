// Package tui provides terminal user interface components for fleetctl.
//
// This package uses the Bubble Tea framework to create interactive terminal
// interfaces, primarily the fleet project picker.
//
// # Project Picker
//
// The picker displays known projects grouped by type and allows selection:
//
//	result, err := tui.RunPicker(projects)
//	switch result.Action {
//	case tui.ActionStart:
//	    // Start result.Project
//	case tui.ActionStop:
//	    // Stop result.Project
//	case tui.ActionRestart:
//	    // Restart result.Project
//	case tui.ActionRescan:
//	    // Rescan the projects root
//	case tui.ActionQuit:
//	    // Exit
//	}
//
// # Picker Features
//
//   - Lists all projects grouped by type, orphans split out
//   - Keyboard navigation (j/k or arrows), headers auto-skipped
//   - Quick actions: Enter (toggle), s (start), x (stop), r (restart), R (rescan), q (quit)
//   - Color-coded state indicators with live ports
//   - Import wizard for bringing archives or image carriers into the fleet
//
// # Dependencies
//
// Uses the Charm libraries:
//   - github.com/charmbracelet/bubbletea - TUI framework
//   - github.com/charmbracelet/bubbles - UI components
//   - github.com/charmbracelet/lipgloss - Styling
package tui
