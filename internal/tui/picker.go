// Package tui provides terminal user interface components for fleetctl
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Project is the display view of one fleet project.
type Project struct {
	Name        string
	DisplayName string
	Type        string
	State       string
	Ports       []int
	Orphaned    bool
	LastError   string
}

// Action represents the action to take after picker selection
type Action int

const (
	ActionNone Action = iota
	ActionStart
	ActionStop
	ActionRestart
	ActionRescan
	ActionQuit
)

// PickerResult holds the result of the picker
type PickerResult struct {
	Action  Action
	Project *Project
}

// projectItem implements list.Item for project display
type projectItem struct {
	project *Project
}

func (i projectItem) Title() string {
	name := i.project.Name
	if i.project.DisplayName != "" && i.project.DisplayName != i.project.Name {
		name = fmt.Sprintf("%s (%s)", i.project.DisplayName, i.project.Name)
	}
	return name
}

func (i projectItem) Description() string {
	statusIcon := "●"
	switch i.project.State {
	case "running":
		statusIcon = "✓"
	case "error":
		statusIcon = "✗"
	case "starting", "stopping":
		statusIcon = "…"
	case "stopped":
		statusIcon = "○"
	}

	parts := []string{
		fmt.Sprintf("%s %s", statusIcon, i.project.State),
		i.project.Type,
	}
	if len(i.project.Ports) > 0 {
		parts = append(parts, formatPorts(i.project.Ports))
	}
	if i.project.Orphaned {
		parts = append(parts, "orphaned")
	}
	if i.project.State == "error" && i.project.LastError != "" {
		parts = append(parts, truncateText(i.project.LastError, 40))
	}

	return strings.Join(parts, " | ")
}

func (i projectItem) FilterValue() string {
	return i.project.Name
}

func formatPorts(ports []int) string {
	strs := make([]string, len(ports))
	for i, p := range ports {
		strs[i] = fmt.Sprintf(":%d", p)
	}
	return strings.Join(strs, " ")
}

func truncateText(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

// Model is the bubbletea model for the fleet picker
type Model struct {
	list     list.Model
	result   PickerResult
	quitting bool
	width    int
	height   int
}

// NewPicker creates a new fleet picker over the given projects,
// grouped by project type.
func NewPicker(projects []*Project) Model {
	items := buildGroupedItems(projects)

	l := list.New(items, newGroupedDelegate(), 80, 20)
	l.Title = "fleetctl - Projects"
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle

	m := Model{list: l}
	skipHeaders(&m.list, 1)
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(msg.Width, msg.Height-4)
		return m, nil

	case tea.KeyMsg:
		// Don't handle keys if filtering
		if m.list.FilterState() == list.Filtering {
			break
		}

		switch msg.String() {
		case "enter", "s":
			if item, ok := m.list.SelectedItem().(projectItem); ok {
				action := ActionStart
				if msg.String() == "enter" && item.project.State == "running" {
					action = ActionStop
				}
				m.result = PickerResult{Action: action, Project: item.project}
				m.quitting = true
				return m, tea.Quit
			}

		case "x":
			if item, ok := m.list.SelectedItem().(projectItem); ok {
				m.result = PickerResult{Action: ActionStop, Project: item.project}
				m.quitting = true
				return m, tea.Quit
			}

		case "r":
			if item, ok := m.list.SelectedItem().(projectItem); ok {
				m.result = PickerResult{Action: ActionRestart, Project: item.project}
				m.quitting = true
				return m, tea.Quit
			}

		case "R":
			m.result = PickerResult{Action: ActionRescan}
			m.quitting = true
			return m, tea.Quit

		case "q", "esc":
			m.result = PickerResult{Action: ActionQuit}
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	if isHeaderSelected(&m.list) {
		if key, ok := msg.(tea.KeyMsg); ok {
			skipHeaders(&m.list, navigationDirection(key))
		}
	}

	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	help := helpStyle.Render("[enter] Toggle  [s] Start  [x] Stop  [r] Restart  [R] Rescan  [/] Filter  [q] Quit")

	return m.list.View() + "\n" + help
}

// Result returns the picker result
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive fleet picker
func RunPicker(projects []*Project) (PickerResult, error) {
	if len(projects) == 0 {
		return PickerResult{Action: ActionRescan}, nil
	}

	m := NewPicker(projects)
	p := tea.NewProgram(m, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}

	return finalModel.(Model).Result(), nil
}

// SimplePicker is a non-interactive renderer that just lists projects
func SimplePicker(projects []*Project) string {
	var sb strings.Builder

	sb.WriteString("fleetctl - Projects\n")
	sb.WriteString(strings.Repeat("─", 60) + "\n\n")

	if len(projects) == 0 {
		sb.WriteString("No projects found.\n")
		sb.WriteString("Import one with: fleetctl import <archive.zip>\n")
		return sb.String()
	}

	for i, p := range projects {
		statusIcon := "○"
		switch p.State {
		case "running":
			statusIcon = "✓"
		case "error":
			statusIcon = "✗"
		}

		sb.WriteString(fmt.Sprintf("%d. %s %s (%s)\n",
			i+1, statusIcon, p.Name, p.Type))
		if len(p.Ports) > 0 {
			sb.WriteString(fmt.Sprintf("   Ports: %s\n", formatPorts(p.Ports)))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
