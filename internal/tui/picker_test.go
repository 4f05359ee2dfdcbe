package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestTruncateText(t *testing.T) {
	tests := []struct {
		text   string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly ten chars ok", 20, "exactly ten chars ok"},
		{"a very long error message from the process", 20, "a very long error..."},
		{"", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := truncateText(tt.text, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncateText(%q, %d) = %q, want %q", tt.text, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestProjectItemMethods(t *testing.T) {
	p := &Project{
		Name:        "my-shop",
		DisplayName: "My Shop",
		Type:        "react",
		State:       "running",
		Ports:       []int{3000, 8050},
	}

	item := projectItem{project: p}

	t.Run("Title", func(t *testing.T) {
		if got := item.Title(); got != "My Shop (my-shop)" {
			t.Errorf("Title() = %q", got)
		}
	})

	t.Run("FilterValue", func(t *testing.T) {
		if got := item.FilterValue(); got != "my-shop" {
			t.Errorf("FilterValue() = %q, want %q", got, "my-shop")
		}
	})

	t.Run("Description", func(t *testing.T) {
		desc := item.Description()
		if !strings.Contains(desc, "✓") {
			t.Error("Description should contain running status icon")
		}
		if !strings.Contains(desc, "react") {
			t.Error("Description should contain project type")
		}
		if !strings.Contains(desc, ":3000") {
			t.Error("Description should contain ports")
		}
	})

	t.Run("Title without display name", func(t *testing.T) {
		item := projectItem{project: &Project{Name: "plain"}}
		if got := item.Title(); got != "plain" {
			t.Errorf("Title() = %q, want %q", got, "plain")
		}
	})

	t.Run("Description marks orphans", func(t *testing.T) {
		item := projectItem{project: &Project{Name: "ghost", State: "running", Orphaned: true}}
		if !strings.Contains(item.Description(), "orphaned") {
			t.Error("Description should flag orphaned projects")
		}
	})
}

func TestProjectItemStatusIcons(t *testing.T) {
	tests := []struct {
		state string
		icon  string
	}{
		{"running", "✓"},
		{"error", "✗"},
		{"starting", "…"},
		{"stopped", "○"},
	}

	for _, tt := range tests {
		t.Run(tt.state, func(t *testing.T) {
			item := projectItem{project: &Project{Name: "test", State: tt.state}}
			desc := item.Description()
			if !strings.Contains(desc, tt.icon) {
				t.Errorf("Description for state %q should contain %q", tt.state, tt.icon)
			}
		})
	}
}

func testProjects() []*Project {
	return []*Project{
		{Name: "shop", Type: "react", State: "stopped"},
		{Name: "docs", Type: "static", State: "running", Ports: []int{3001}},
	}
}

func TestModelKeyHandling(t *testing.T) {
	t.Run("quit with q", func(t *testing.T) {
		m := NewPicker(testProjects())
		newModel, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
		model := newModel.(Model)

		if model.result.Action != ActionQuit {
			t.Errorf("Action = %v, want ActionQuit", model.result.Action)
		}
		if !model.quitting {
			t.Error("Model should be quitting")
		}
		if cmd == nil {
			t.Error("Should return tea.Quit command")
		}
	})

	t.Run("quit with esc", func(t *testing.T) {
		m := NewPicker(testProjects())
		newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		model := newModel.(Model)

		if model.result.Action != ActionQuit {
			t.Errorf("Action = %v, want ActionQuit", model.result.Action)
		}
	})

	t.Run("start with s", func(t *testing.T) {
		m := NewPicker(testProjects())
		newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
		model := newModel.(Model)

		if model.result.Action != ActionStart {
			t.Errorf("Action = %v, want ActionStart", model.result.Action)
		}
		if model.result.Project == nil {
			t.Fatal("Project should be set")
		}
	})

	t.Run("stop with x", func(t *testing.T) {
		m := NewPicker(testProjects())
		newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
		model := newModel.(Model)

		if model.result.Action != ActionStop {
			t.Errorf("Action = %v, want ActionStop", model.result.Action)
		}
	})

	t.Run("restart with r", func(t *testing.T) {
		m := NewPicker(testProjects())
		newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
		model := newModel.(Model)

		if model.result.Action != ActionRestart {
			t.Errorf("Action = %v, want ActionRestart", model.result.Action)
		}
	})

	t.Run("rescan with R", func(t *testing.T) {
		m := NewPicker(testProjects())
		newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'R'}})
		model := newModel.(Model)

		if model.result.Action != ActionRescan {
			t.Errorf("Action = %v, want ActionRescan", model.result.Action)
		}
	})

	t.Run("enter toggles running project to stop", func(t *testing.T) {
		running := []*Project{{Name: "docs", Type: "static", State: "running"}}
		m := NewPicker(running)
		newModel, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		model := newModel.(Model)

		if model.result.Action != ActionStop {
			t.Errorf("Action = %v, want ActionStop", model.result.Action)
		}
	})

	t.Run("window size update", func(t *testing.T) {
		m := NewPicker(testProjects())
		newModel, cmd := m.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
		model := newModel.(Model)

		if model.width != 100 {
			t.Errorf("Width = %d, want 100", model.width)
		}
		if model.height != 50 {
			t.Errorf("Height = %d, want 50", model.height)
		}
		if cmd != nil {
			t.Error("Window size update should not return a command")
		}
	})
}

func TestModelInit(t *testing.T) {
	m := Model{}
	cmd := m.Init()
	if cmd != nil {
		t.Error("Init() should return nil")
	}
}

func TestModelView(t *testing.T) {
	t.Run("normal view contains help", func(t *testing.T) {
		m := NewPicker(testProjects())
		view := m.View()

		if !strings.Contains(view, "[s] Start") {
			t.Error("View should contain start help")
		}
		if !strings.Contains(view, "[x] Stop") {
			t.Error("View should contain stop help")
		}
		if !strings.Contains(view, "[q] Quit") {
			t.Error("View should contain quit help")
		}
	})

	t.Run("quitting view is empty", func(t *testing.T) {
		m := NewPicker(testProjects())
		m.quitting = true
		view := m.View()

		if view != "" {
			t.Errorf("Quitting view should be empty, got %q", view)
		}
	})
}

func TestModelResult(t *testing.T) {
	m := Model{
		result: PickerResult{
			Action:  ActionStart,
			Project: &Project{Name: "test"},
		},
	}

	result := m.Result()
	if result.Action != ActionStart {
		t.Errorf("Action = %v, want ActionStart", result.Action)
	}
	if result.Project.Name != "test" {
		t.Errorf("Project.Name = %q, want %q", result.Project.Name, "test")
	}
}

func TestRunPickerEmptyProjects(t *testing.T) {
	result, err := RunPicker(nil)
	if err != nil {
		t.Fatalf("RunPicker with no projects failed: %v", err)
	}

	if result.Action != ActionRescan {
		t.Errorf("Empty fleet should return ActionRescan, got %v", result.Action)
	}
}

func TestSimplePicker(t *testing.T) {
	t.Run("empty projects", func(t *testing.T) {
		output := SimplePicker(nil)

		if !strings.Contains(output, "No projects found") {
			t.Error("Should indicate no projects found")
		}
		if !strings.Contains(output, "fleetctl import") {
			t.Error("Should show how to import a project")
		}
	})

	t.Run("with projects", func(t *testing.T) {
		projects := []*Project{
			{Name: "shop", Type: "react", State: "running", Ports: []int{3000}},
			{Name: "docs", Type: "static", State: "stopped"},
		}

		output := SimplePicker(projects)

		if !strings.Contains(output, "fleetctl") {
			t.Error("Should contain title")
		}
		if !strings.Contains(output, "shop") {
			t.Error("Should contain first project name")
		}
		if !strings.Contains(output, "docs") {
			t.Error("Should contain second project name")
		}
		if !strings.Contains(output, "react") {
			t.Error("Should contain project type")
		}
		if !strings.Contains(output, "3000") {
			t.Error("Should contain port number")
		}
	})
}

func TestActionConstants(t *testing.T) {
	// Verify action constants have distinct values
	actions := []Action{ActionNone, ActionStart, ActionStop, ActionRestart, ActionRescan, ActionQuit}
	seen := make(map[Action]bool)

	for _, a := range actions {
		if seen[a] {
			t.Errorf("Duplicate action value: %v", a)
		}
		seen[a] = true
	}
}
