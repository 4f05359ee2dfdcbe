// Package ports maintains the port assignment table and allocates
// conflict-free ports for project components.
package ports

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/driftlock/fleetctl/internal/logging"
	"github.com/driftlock/fleetctl/internal/system"
)

// Components a project can run.
const (
	ComponentFrontend  = "frontend"
	ComponentBackend   = "backend"
	ComponentWebsocket = "websocket"
)

// ErrPortExhausted is returned when no free port is found within the
// probe attempt budget.
var ErrPortExhausted = errors.New("port range exhausted")

// maxProbeAttempts bounds the scan from a component's base port.
const maxProbeAttempts = 100

// Assignment is one row of the port table.
type Assignment struct {
	Port    int  `json:"port"`
	PID     int  `json:"pid,omitempty"`
	Running bool `json:"running"`
}

// Table is the shared port assignment table keyed by (project, component).
// All access goes through a single table-wide lock; critical sections stay
// short, process spawn/kill happens outside the lock.
type Table struct {
	mu      sync.Mutex
	entries map[string]map[string]*Assignment // project -> component -> assignment
	path    string
	fs      system.FileSystem

	// probe reports whether a port can be bound on the host.
	// Replaceable for tests.
	probe func(port int) bool
}

// NewTable creates a table persisted at path.
func NewTable(path string) *Table {
	return &Table{
		entries: make(map[string]map[string]*Assignment),
		path:    path,
		fs:      system.DefaultFS(),
		probe:   bindProbe,
	}
}

// SetProbe replaces the OS bind probe (useful for testing).
func (t *Table) SetProbe(probe func(port int) bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.probe = probe
}

// bindProbe checks that a port is bindable by binding and immediately
// releasing it.
func bindProbe(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

// Load reads the persisted table. A missing file yields an empty table.
// All running flags are seeded false; the liveness monitor reconciles
// against live processes afterwards.
func (t *Table) Load() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	data, err := t.fs.ReadFile(t.path)
	if err != nil {
		t.entries = make(map[string]map[string]*Assignment)
		return nil
	}

	var entries map[string]map[string]*Assignment
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse port table: %w", err)
	}

	for _, components := range entries {
		for _, a := range components {
			a.Running = false
		}
	}

	t.entries = entries
	return nil
}

// Save persists the table atomically: write to a temp file, keep a
// timestamped backup of the previous file, then rename into place.
func (t *Table) Save() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.saveLocked()
}

func (t *Table) saveLocked() error {
	data, err := json.MarshalIndent(t.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal port table: %w", err)
	}

	tmp := t.path + ".tmp"
	if err := t.fs.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write port table: %w", err)
	}

	if t.fs.Exists(t.path) {
		backup := t.path + ".bak-" + time.Now().Format("20060102-150405")
		if err := t.fs.CopyFile(t.path, backup); err != nil {
			logging.Warn("failed to back up port table", "path", backup, "error", err)
		}
	}

	if err := t.fs.Rename(tmp, t.path); err != nil {
		return fmt.Errorf("failed to replace port table: %w", err)
	}

	return nil
}

// Get returns the assignment for (project, component).
func (t *Table) Get(project, component string) (Assignment, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.entries[project][component]; ok {
		return *a, true
	}
	return Assignment{}, false
}

// Row is a flattened table entry for listing.
type Row struct {
	Project   string `json:"project"`
	Component string `json:"component"`
	Port      int    `json:"port"`
	PID       int    `json:"pid,omitempty"`
	Running   bool   `json:"running"`
}

// Snapshot returns all rows sorted by project then component.
func (t *Table) Snapshot() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()

	var rows []Row
	for project, components := range t.entries {
		for component, a := range components {
			rows = append(rows, Row{
				Project:   project,
				Component: component,
				Port:      a.Port,
				PID:       a.PID,
				Running:   a.Running,
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Project != rows[j].Project {
			return rows[i].Project < rows[j].Project
		}
		return rows[i].Component < rows[j].Component
	})

	return rows
}

// Allocate resolves a port for (project, component). Resolution order:
//
//  1. the previous assignment for this row, if still free (sticky port)
//  2. the project's declared port, if free
//  3. a scan from the component base port, bounded by maxProbeAttempts
//
// A port is free when no other row is assigned it, running or not, and
// the OS bind probe succeeds. Conflicts are rejected here, before the
// assignment is committed; a released row keeps its port reserved for
// sticky reuse.
func (t *Table) Allocate(project, component string, declared, base int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.entries[project][component]; ok && prev.Port != 0 {
		if t.freeLocked(prev.Port, project, component) {
			t.commitLocked(project, component, prev.Port)
			return prev.Port, nil
		}
	}

	if declared != 0 && t.freeLocked(declared, project, component) {
		t.commitLocked(project, component, declared)
		return declared, nil
	}

	for port := base; port < base+maxProbeAttempts; port++ {
		if t.freeLocked(port, project, component) {
			t.commitLocked(project, component, port)
			return port, nil
		}
	}

	return 0, fmt.Errorf("%w: no free port in %d attempts from base %d", ErrPortExhausted, maxProbeAttempts, base)
}

// freeLocked reports whether port can be assigned to (project, component):
// no other row is assigned it and the OS bind probe succeeds. Counting
// not-yet-running rows keeps two overlapping allocations from ever
// receiving the same port.
func (t *Table) freeLocked(port int, project, component string) bool {
	for p, components := range t.entries {
		for c, a := range components {
			if p == project && c == component {
				continue
			}
			if a.Port == port {
				return false
			}
		}
	}
	return t.probe(port)
}

func (t *Table) commitLocked(project, component string, port int) {
	if t.entries[project] == nil {
		t.entries[project] = make(map[string]*Assignment)
	}
	a := t.entries[project][component]
	if a == nil {
		a = &Assignment{}
		t.entries[project][component] = a
	}
	a.Port = port
}

// SetRunning marks a row live with its process ID. Rejected if another
// running row already holds the same port, so the uniqueness invariant
// can never be violated after commit.
func (t *Table) SetRunning(project, component string, pid int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.entries[project][component]
	if !ok || a.Port == 0 {
		return fmt.Errorf("no port assigned for %s/%s", project, component)
	}

	for p, components := range t.entries {
		for c, other := range components {
			if p == project && c == component {
				continue
			}
			if other.Running && other.Port == a.Port {
				return fmt.Errorf("port %d already running for %s/%s", a.Port, p, c)
			}
		}
	}

	a.PID = pid
	a.Running = true
	return t.saveLocked()
}

// Release clears the running flag and PID but keeps the port value as
// the sticky-reuse hint for the next allocation.
func (t *Table) Release(project, component string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.entries[project][component]
	if !ok {
		return nil
	}

	a.PID = 0
	a.Running = false
	return t.saveLocked()
}

// RemoveProject drops all rows for a project.
func (t *Table) RemoveProject(project string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.entries, project)
	return t.saveLocked()
}

// RunningPorts returns the ports of all running rows.
func (t *Table) RunningPorts() []int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []int
	for _, components := range t.entries {
		for _, a := range components {
			if a.Running {
				out = append(out, a.Port)
			}
		}
	}
	sort.Ints(out)
	return out
}
