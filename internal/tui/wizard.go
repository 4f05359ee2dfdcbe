package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/driftlock/fleetctl/internal/config"
)

// ImportOptions is the collected result of the import wizard.
type ImportOptions struct {
	Name        string
	ArchivePath string
	FromImage   bool
	StartAfter  bool
}

// wizardStep identifies the current step.
type wizardStep int

const (
	stepPath wizardStep = iota
	stepName
	stepOptions
	stepConfirm
)

// optionField identifies a field in the options step.
type optionField int

const (
	optFromImage optionField = iota
	optStartAfter
	optFieldCount
)

// wizardModel drives the multi-step import wizard.
type wizardModel struct {
	step wizardStep

	// Step 1: archive path
	pathInput textinput.Model

	// Step 2: project name
	nameInput textinput.Model

	// Step 3: options
	optCursor  optionField
	fromImage  bool
	startAfter bool

	// Collected values
	selectedPath string
	selectedName string

	width  int
	height int
}

// wizardStyles
var (
	wizardTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				MarginBottom(1)

	wizardStepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	wizardActiveStepStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	wizardLabelStyle = lipgloss.NewStyle().
				Bold(true).
				MarginBottom(1)

	wizardValueStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39"))

	wizardDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func newWizardModel() wizardModel {
	pi := textinput.New()
	pi.Placeholder = "/path/to/project.zip"
	pi.Focus()
	pi.CharLimit = 256
	pi.Width = 60
	pi.ShowSuggestions = true

	ni := textinput.New()
	ni.Placeholder = "project-name"
	ni.CharLimit = 63
	ni.Width = 40

	return wizardModel{
		step:      stepPath,
		pathInput: pi,
		nameInput: ni,
	}
}

func (w *wizardModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update processes a message and returns (done, importOptions, cmd).
// done=true with non-nil opts means wizard completed successfully.
// done=true with nil opts means wizard was cancelled.
func (w *wizardModel) Update(msg tea.Msg) (bool, *ImportOptions, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyCtrlC:
			return true, nil, nil
		case tea.KeyEsc:
			return w.handleBack()
		}
	}

	switch w.step {
	case stepPath:
		return w.updatePath(msg)
	case stepName:
		return w.updateName(msg)
	case stepOptions:
		return w.updateOptions(msg)
	case stepConfirm:
		return w.updateConfirm(msg)
	}

	return false, nil, nil
}

func (w *wizardModel) handleBack() (bool, *ImportOptions, tea.Cmd) {
	switch w.step {
	case stepPath:
		// Esc at first step cancels wizard
		return true, nil, nil
	case stepName:
		w.step = stepPath
		w.nameInput.Blur()
		w.pathInput.Focus()
		return false, nil, textinput.Blink
	case stepOptions:
		w.step = stepName
		w.nameInput.Focus()
		return false, nil, textinput.Blink
	case stepConfirm:
		w.step = stepName
		w.nameInput.Focus()
		return false, nil, textinput.Blink
	}
	return false, nil, nil
}

func (w *wizardModel) updatePath(msg tea.Msg) (bool, *ImportOptions, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
		path := strings.TrimSpace(w.pathInput.Value())
		if path == "" {
			return false, nil, nil
		}
		w.selectedPath = path
		w.fromImage = isImagePath(path)
		w.step = stepName
		w.pathInput.Blur()
		w.nameInput.Focus()
		w.nameInput.SetValue(suggestName(path))
		return false, nil, textinput.Blink
	}

	var cmd tea.Cmd
	w.pathInput, cmd = w.pathInput.Update(msg)

	// Update path suggestions after each keystroke
	w.updatePathSuggestions()

	return false, nil, cmd
}

func (w *wizardModel) updateName(msg tea.Msg) (bool, *ImportOptions, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEnter:
			name := strings.TrimSpace(w.nameInput.Value())
			if name == "" {
				return false, nil, nil
			}
			if err := config.ValidateProjectName(name); err != nil {
				return false, nil, nil
			}
			w.selectedName = name
			w.step = stepConfirm
			w.nameInput.Blur()
			return false, nil, nil
		case tea.KeyCtrlA:
			w.selectedName = strings.TrimSpace(w.nameInput.Value())
			w.step = stepOptions
			w.nameInput.Blur()
			return false, nil, nil
		}
	}

	var cmd tea.Cmd
	w.nameInput, cmd = w.nameInput.Update(msg)
	return false, nil, cmd
}

func (w *wizardModel) updateOptions(msg tea.Msg) (bool, *ImportOptions, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter":
			w.step = stepConfirm
			return false, nil, nil
		case "j", "down", "tab":
			w.optCursor = (w.optCursor + 1) % optFieldCount
			return false, nil, nil
		case "k", "up":
			w.optCursor = (w.optCursor - 1 + optFieldCount) % optFieldCount
			return false, nil, nil
		case " ":
			switch w.optCursor {
			case optFromImage:
				w.fromImage = !w.fromImage
			case optStartAfter:
				w.startAfter = !w.startAfter
			}
			return false, nil, nil
		}
	}
	return false, nil, nil
}

func (w *wizardModel) updateConfirm(msg tea.Msg) (bool, *ImportOptions, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "enter", "y":
			return true, &ImportOptions{
				Name:        w.selectedName,
				ArchivePath: w.selectedPath,
				FromImage:   w.fromImage,
				StartAfter:  w.startAfter,
			}, nil
		case "n":
			// Restart wizard
			w.step = stepPath
			w.pathInput.SetValue("")
			w.pathInput.Focus()
			w.selectedPath = ""
			w.selectedName = ""
			w.fromImage = false
			w.startAfter = false
			return false, nil, textinput.Blink
		}
	}
	return false, nil, nil
}

func (w *wizardModel) View() string {
	var b strings.Builder

	b.WriteString(wizardTitleStyle.Render("Import Project"))
	b.WriteString("\n")
	b.WriteString(w.progressBar())
	b.WriteString("\n\n")

	switch w.step {
	case stepPath:
		b.WriteString(wizardLabelStyle.Render("Archive or image path:"))
		b.WriteString("\n")
		b.WriteString(w.pathInput.View())
		b.WriteString("\n\n")
		b.WriteString(wizardDimStyle.Render("Enter the path to a .zip archive or a .png carrier. Tab to complete."))
	case stepName:
		b.WriteString(wizardLabelStyle.Render("Project name:"))
		b.WriteString("\n")
		b.WriteString(w.nameInput.View())
		b.WriteString("\n\n")
		b.WriteString(wizardDimStyle.Render("Enter to confirm, Ctrl+A for options."))
	case stepOptions:
		b.WriteString(wizardLabelStyle.Render("Options:"))
		b.WriteString("\n\n")
		b.WriteString(w.renderToggle(optFromImage, "Import from image", "Treat the source as a PNG with an embedded archive"))
		b.WriteString("\n")
		b.WriteString(w.renderToggle(optStartAfter, "Start after import", "Start the project once it lands in the fleet"))
		b.WriteString("\n\n")
		b.WriteString(wizardDimStyle.Render("Space to toggle, Enter to continue, Esc to go back."))
	case stepConfirm:
		b.WriteString(wizardLabelStyle.Render("Confirm:"))
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("  Source: %s\n", wizardValueStyle.Render(w.selectedPath)))
		b.WriteString(fmt.Sprintf("  Name:   %s\n", wizardValueStyle.Render(w.selectedName)))
		if w.fromImage {
			b.WriteString(fmt.Sprintf("  Image:  %s\n", wizardValueStyle.Render("yes")))
		}
		if w.startAfter {
			b.WriteString(fmt.Sprintf("  Start:  %s\n", wizardValueStyle.Render("yes")))
		}
		b.WriteString("\n")
		b.WriteString(wizardDimStyle.Render("Enter to import, n to restart, Esc to go back."))
	}

	return b.String()
}

func (w *wizardModel) progressBar() string {
	steps := []struct {
		num  int
		name string
	}{
		{1, "Source"},
		{2, "Name"},
		{3, "Confirm"},
	}

	var parts []string
	for _, s := range steps {
		label := fmt.Sprintf("%d. %s", s.num, s.name)
		currentStep := int(w.step) + 1
		// Map stepOptions to stepName for progress display
		if w.step == stepOptions {
			currentStep = int(stepName) + 1
		}
		if w.step == stepConfirm {
			currentStep = 3
		}
		if s.num == currentStep {
			parts = append(parts, wizardActiveStepStyle.Render(label))
		} else {
			parts = append(parts, wizardStepStyle.Render(label))
		}
	}

	return strings.Join(parts, wizardDimStyle.Render(" > "))
}

func (w *wizardModel) renderToggle(field optionField, name, desc string) string {
	cursor := " "
	if w.optCursor == field {
		cursor = ">"
	}

	checked := " "
	switch field {
	case optFromImage:
		if w.fromImage {
			checked = "x"
		}
	case optStartAfter:
		if w.startAfter {
			checked = "x"
		}
	}

	line := fmt.Sprintf("  %s [%s] %s", cursor, checked, name)
	if w.optCursor == field {
		return selectedStyle.Render(line) + "\n" + wizardDimStyle.Render("      "+desc)
	}
	return line + "\n" + wizardDimStyle.Render("      "+desc)
}

func (w *wizardModel) updatePathSuggestions() {
	val := w.pathInput.Value()
	if val == "" {
		w.pathInput.SetSuggestions(nil)
		return
	}

	// Expand ~ to home directory
	expanded := val
	if strings.HasPrefix(val, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = home + val[1:]
		}
	}

	dir := expanded
	prefix := ""

	info, err := os.Stat(expanded)
	if err != nil || !info.IsDir() {
		dir = filepath.Dir(expanded)
		prefix = filepath.Base(expanded)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		w.pathInput.SetSuggestions(nil)
		return
	}

	var suggestions []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		// Offer directories plus importable files
		if !entry.IsDir() && !isArchivePath(name) && !isImagePath(name) {
			continue
		}
		if prefix != "" && !strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)) {
			continue
		}
		full := filepath.Join(dir, name)
		// Convert back to use ~ if original used ~
		if strings.HasPrefix(val, "~") {
			if home, err := os.UserHomeDir(); err == nil {
				full = "~" + strings.TrimPrefix(full, home)
			}
		}
		suggestions = append(suggestions, full)
	}

	w.pathInput.SetSuggestions(suggestions)
}

func isArchivePath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}

func isImagePath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".png")
}

// sanitizeNameRegex matches characters not valid in project names.
var sanitizeNameRegex = regexp.MustCompile(`[^a-z0-9_-]`)

// suggestName generates a project name from an archive path.
func suggestName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(base)
	base = sanitizeNameRegex.ReplaceAllString(base, "-")
	// Trim leading/trailing hyphens
	base = strings.Trim(base, "-")

	if base == "" {
		base = "project"
	}

	// Truncate to 63 chars
	if len(base) > 63 {
		base = base[:63]
	}
	// Trim trailing hyphens from truncation
	base = strings.TrimRight(base, "-")

	return base
}

// RunImportWizard runs the interactive import wizard. A nil result with
// nil error means the user cancelled.
func RunImportWizard() (*ImportOptions, error) {
	m := wizardRunner{model: newWizardModel()}
	p := tea.NewProgram(&m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return nil, err
	}

	return m.opts, nil
}

// wizardRunner adapts wizardModel to the tea.Model interface.
type wizardRunner struct {
	model wizardModel
	opts  *ImportOptions
}

func (r *wizardRunner) Init() tea.Cmd {
	return r.model.Init()
}

func (r *wizardRunner) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if sizeMsg, ok := msg.(tea.WindowSizeMsg); ok {
		r.model.width = sizeMsg.Width
		r.model.height = sizeMsg.Height
		return r, nil
	}

	done, opts, cmd := r.model.Update(msg)
	if done {
		r.opts = opts
		return r, tea.Quit
	}
	return r, cmd
}

func (r *wizardRunner) View() string {
	return r.model.View()
}
