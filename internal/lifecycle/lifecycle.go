// Package lifecycle orchestrates start/stop/restart of project processes
// through a per-project state machine.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/driftlock/fleetctl/internal/audit"
	"github.com/driftlock/fleetctl/internal/config"
	fleeterrors "github.com/driftlock/fleetctl/internal/errors"
	"github.com/driftlock/fleetctl/internal/logging"
	"github.com/driftlock/fleetctl/internal/ports"
	"github.com/driftlock/fleetctl/internal/registry"
	"github.com/driftlock/fleetctl/internal/supervisor"
	"github.com/driftlock/fleetctl/internal/system"
)

// State is a project's overall lifecycle status.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateError    State = "error"
)

// ErrProbeTimeout is returned when a started process never becomes
// reachable within the probe ceiling.
var ErrProbeTimeout = errors.New("health probe timeout")

// ProbeFunc performs one reachability attempt against a local port.
type ProbeFunc func(ctx context.Context, port int) bool

// defaultProbe considers any HTTP response below 500 as reachable; a
// dev server that answers at all is up, even with a 404.
func defaultProbe(ctx context.Context, port int) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://127.0.0.1:%d/", port), nil)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// proc tracks one live component process.
type proc struct {
	component     string
	port          int
	pid           int
	handle        *supervisor.Handle // nil for processes adopted from persisted state
	stopRequested bool
}

func (p *proc) alive() bool {
	if p.handle != nil {
		return p.handle.Alive()
	}
	return supervisor.IsAlive(p.pid)
}

// machine is the per-project state holder. All transitions happen under
// its mutex; different projects proceed fully in parallel.
type machine struct {
	mu        sync.Mutex
	state     State
	procs     map[string]*proc
	lastError string
	exitCode  int
	tail      string
}

// Manager drives the lifecycle state machine for every project.
type Manager struct {
	cfg   *config.HostConfig
	paths *config.Paths
	reg   *registry.Registry
	table *ports.Table
	sup   *supervisor.Supervisor
	audit *audit.Logger
	fs    system.FileSystem

	mu       sync.Mutex
	machines map[string]*machine

	probe ProbeFunc
}

// Option configures a Manager.
type Option func(*Manager)

// WithProbe overrides the health probe (useful for testing).
func WithProbe(p ProbeFunc) Option {
	return func(m *Manager) { m.probe = p }
}

// WithFileSystem overrides the filesystem implementation.
func WithFileSystem(fs system.FileSystem) Option {
	return func(m *Manager) { m.fs = fs }
}

// New creates a Manager and wires its running check into the registry.
func New(cfg *config.HostConfig, paths *config.Paths, reg *registry.Registry, table *ports.Table, auditLog *audit.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		paths:    paths,
		reg:      reg,
		table:    table,
		sup:      supervisor.New(),
		audit:    auditLog,
		fs:       system.DefaultFS(),
		machines: make(map[string]*machine),
		probe:    defaultProbe,
	}
	for _, opt := range opts {
		opt(m)
	}
	reg.SetRunningCheck(m.IsRunning)
	return m
}

// machineFor returns the state holder for a project, creating it at
// Stopped if needed.
func (mgr *Manager) machineFor(project string) *machine {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	m, ok := mgr.machines[project]
	if !ok {
		m = &machine{state: StateStopped, procs: make(map[string]*proc)}
		mgr.machines[project] = m
	}
	return m
}

// Start moves a project component from Stopped (or Error) to Running:
// allocate a port, spawn the dev command with the port injected, then
// probe until reachable or the probe ceiling expires.
func (mgr *Manager) Start(ctx context.Context, project, component string) error {
	if component == "" {
		component = ports.ComponentFrontend
	}

	m := mgr.machineFor(project)
	m.mu.Lock()
	defer m.mu.Unlock()

	return mgr.startLocked(ctx, m, project, component)
}

func (mgr *Manager) startLocked(ctx context.Context, m *machine, project, component string) error {
	d, ok := mgr.reg.Get(project)
	if !ok {
		return fleeterrors.ProjectNotFound(project)
	}
	if d.Commands.Dev == "" {
		return fleeterrors.ValidationError(fmt.Sprintf("project %s has no dev command", project))
	}

	if p, exists := m.procs[component]; exists && p.alive() {
		return fleeterrors.ValidationError(fmt.Sprintf("%s/%s is already running", project, component))
	}

	m.state = StateStarting
	m.lastError = ""

	port, err := mgr.table.Allocate(project, component, d.DeclaredPorts[component], mgr.cfg.BasePort(component))
	if err != nil {
		m.state = StateError
		m.lastError = err.Error()
		mgr.audit.LogEvent(audit.EventError, project, m.lastError)
		return fleeterrors.PortAllocationFailed(err)
	}

	if err := mgr.installIfNeeded(ctx, d); err != nil {
		m.state = StateError
		m.lastError = err.Error()
		mgr.audit.LogEvent(audit.EventError, project, m.lastError)
		return fleeterrors.ProcessFailed("install", err)
	}

	logPath := filepath.Join(mgr.paths.LogsDir, project+"-"+component+".log")
	env := []string{fmt.Sprintf("PORT=%d", port)}

	h, err := mgr.sup.Spawn(d.Commands.Dev, env, d.RootPath, logPath)
	if err != nil {
		m.state = StateError
		m.lastError = err.Error()
		mgr.audit.LogEvent(audit.EventError, project, m.lastError)
		return fleeterrors.ProcessFailed("start", err)
	}

	if err := mgr.table.SetRunning(project, component, h.PID); err != nil {
		mgr.sup.Terminate(h, mgr.cfg.StopGrace())
		m.state = StateError
		m.lastError = err.Error()
		return fleeterrors.PortAllocationFailed(err)
	}

	logging.Debug("process spawned", "project", project, "component", component, "pid", h.PID, "port", port)
	mgr.audit.Log(audit.Event{Type: audit.EventStart, Project: project, Component: component,
		Details: fmt.Sprintf("pid=%d port=%d", h.PID, port)})

	if err := mgr.awaitReachable(ctx, h, port); err != nil {
		m.exitCode = h.ExitCode()
		m.tail = h.Tail()
		if h.Alive() {
			mgr.sup.Terminate(h, mgr.cfg.StopGrace())
		}
		mgr.table.Release(project, component)
		m.state = StateError
		m.lastError = err.Error()
		mgr.audit.LogEvent(audit.EventError, project, m.lastError)
		return fleeterrors.ProcessFailed("start", err)
	}

	m.procs[component] = &proc{component: component, port: port, pid: h.PID, handle: h}
	m.state = StateRunning
	return nil
}

// awaitReachable polls the health probe with backoff until success, the
// process dies, or the probe ceiling expires.
func (mgr *Manager) awaitReachable(ctx context.Context, h *supervisor.Handle, port int) error {
	deadline := time.Now().Add(mgr.cfg.ProbeTimeout())
	backoff := 250 * time.Millisecond

	for {
		if !h.Alive() {
			return fmt.Errorf("process exited during startup (exit code %d)", h.ExitCode())
		}
		if mgr.probe(ctx, port) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: port %d not reachable after %s", ErrProbeTimeout, port, mgr.cfg.ProbeTimeout())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}

// installIfNeeded runs the install command once, when the project has
// one and no node_modules directory yet.
func (mgr *Manager) installIfNeeded(ctx context.Context, d *registry.Descriptor) error {
	if d.Commands.Install == "" {
		return nil
	}
	if mgr.fs.Exists(filepath.Join(d.RootPath, "node_modules")) {
		return nil
	}

	logging.Debug("installing dependencies", "project", d.Name, "command", d.Commands.Install)
	logPath := filepath.Join(mgr.paths.LogsDir, d.Name+"-install.log")

	h, err := mgr.sup.Spawn(d.Commands.Install, nil, d.RootPath, logPath)
	if err != nil {
		return err
	}

	select {
	case <-h.Done():
	case <-time.After(mgr.cfg.InstallTimeout()):
		mgr.sup.Terminate(h, mgr.cfg.StopGrace())
		return fmt.Errorf("install command timed out after %s", mgr.cfg.InstallTimeout())
	case <-ctx.Done():
		mgr.sup.Terminate(h, mgr.cfg.StopGrace())
		return ctx.Err()
	}

	if code := h.ExitCode(); code != 0 {
		return fmt.Errorf("install command exited with code %d", code)
	}
	return nil
}

// Stop terminates a project component: graceful signal, grace period,
// forced kill, then port release.
func (mgr *Manager) Stop(ctx context.Context, project, component string) error {
	if component == "" {
		component = ports.ComponentFrontend
	}

	m := mgr.machineFor(project)
	m.mu.Lock()
	defer m.mu.Unlock()

	return mgr.stopLocked(m, project, component)
}

func (mgr *Manager) stopLocked(m *machine, project, component string) error {
	p, exists := m.procs[component]
	if !exists {
		// A process may survive from a previous fleetctl run; adopt it
		// by PID from the persisted table.
		if a, ok := mgr.table.Get(project, component); ok && a.PID != 0 && supervisor.IsAlive(a.PID) {
			p = &proc{component: component, port: a.Port, pid: a.PID}
			m.procs[component] = p
		} else {
			return fleeterrors.ProjectNotRunning(project)
		}
	}

	m.state = StateStopping
	p.stopRequested = true

	var err error
	if p.handle != nil {
		err = mgr.sup.Terminate(p.handle, mgr.cfg.StopGrace())
	} else {
		err = supervisor.TerminatePID(p.pid, mgr.cfg.StopGrace())
	}
	if err != nil {
		m.state = StateError
		m.lastError = err.Error()
		return fleeterrors.ProcessFailed("stop", err)
	}

	mgr.table.Release(project, component)
	delete(m.procs, component)
	mgr.audit.Log(audit.Event{Type: audit.EventStop, Project: project, Component: component})

	if len(m.procs) == 0 {
		m.state = StateStopped
	} else {
		m.state = StateRunning
	}
	return nil
}

// Restart stops then starts a component under a single lock acquisition
// so no interleaved start/stop can race it.
func (mgr *Manager) Restart(ctx context.Context, project, component string) error {
	if component == "" {
		component = ports.ComponentFrontend
	}

	m := mgr.machineFor(project)
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := mgr.stopLocked(m, project, component); err != nil {
		var fleetErr *fleeterrors.FleetError
		// Restarting a stopped project is just a start.
		if !errors.As(err, &fleetErr) || fleetErr.Code != fleeterrors.ExitGeneralError {
			return err
		}
	}
	return mgr.startLocked(ctx, m, project, component)
}

// Result is the per-project outcome of a batch operation.
type Result struct {
	Project string
	Err     error
}

// StartAll starts the frontend component of every registered project
// concurrently and gathers per-project results ordered by name. Partial
// failure is the expected, reported outcome.
func (mgr *Manager) StartAll(ctx context.Context) []Result {
	return mgr.fanOut(ctx, mgr.Start)
}

// StopAll stops every registered project concurrently.
func (mgr *Manager) StopAll(ctx context.Context) []Result {
	return mgr.fanOut(ctx, mgr.Stop)
}

func (mgr *Manager) fanOut(ctx context.Context, op func(context.Context, string, string) error) []Result {
	descriptors := mgr.reg.List()
	results := make([]Result, len(descriptors))

	var wg sync.WaitGroup
	for i, d := range descriptors {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			results[i] = Result{Project: name, Err: op(ctx, name, ports.ComponentFrontend)}
		}(i, d.Name)
	}
	wg.Wait()

	return results
}

// State returns the current lifecycle state for a project.
func (mgr *Manager) State(project string) State {
	mgr.mu.Lock()
	m, ok := mgr.machines[project]
	mgr.mu.Unlock()
	if !ok {
		return StateStopped
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError returns the recorded failure detail for a project in Error
// state, with the captured output tail if any.
func (mgr *Manager) LastError(project string) (message, tail string, exitCode int) {
	mgr.mu.Lock()
	m, ok := mgr.machines[project]
	mgr.mu.Unlock()
	if !ok {
		return "", "", 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError, m.tail, m.exitCode
}

// IsRunning reports whether a project has any live process. Used by the
// registry to flag orphans on rescan.
func (mgr *Manager) IsRunning(project string) bool {
	mgr.mu.Lock()
	m, ok := mgr.machines[project]
	mgr.mu.Unlock()

	if ok {
		m.mu.Lock()
		for _, p := range m.procs {
			if p.alive() {
				m.mu.Unlock()
				return true
			}
		}
		m.mu.Unlock()
	}

	// Processes adopted from persisted state may not have a machine yet
	for _, row := range mgr.table.Snapshot() {
		if row.Project == project && row.Running {
			return true
		}
	}
	return false
}

// Tail returns the captured output tail of a component's live process.
func (mgr *Manager) Tail(project, component string) string {
	if component == "" {
		component = ports.ComponentFrontend
	}

	mgr.mu.Lock()
	m, ok := mgr.machines[project]
	mgr.mu.Unlock()
	if !ok {
		return ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if p, exists := m.procs[component]; exists && p.handle != nil {
		return p.handle.Tail()
	}
	return m.tail
}

// RunMonitor runs the background liveness monitor until ctx is
// cancelled. It reconciles persisted PIDs on its first pass, then only
// ever moves Running to Error on unexpected exits.
func (mgr *Manager) RunMonitor(ctx context.Context) {
	mgr.reconcile()

	ticker := time.NewTicker(mgr.cfg.MonitorInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mgr.reconcile()
		}
	}
}

// Reconcile runs one monitor pass: adopt still-live persisted processes
// and detect crashes of supervised ones.
func (mgr *Manager) Reconcile() {
	mgr.reconcile()
}

func (mgr *Manager) reconcile() {
	// Adopt persisted PIDs that are still alive on the host
	for _, row := range mgr.table.Snapshot() {
		if row.Running || row.PID == 0 {
			continue
		}
		if !supervisor.IsAlive(row.PID) {
			continue
		}

		m := mgr.machineFor(row.Project)
		m.mu.Lock()
		if _, exists := m.procs[row.Component]; !exists {
			if err := mgr.table.SetRunning(row.Project, row.Component, row.PID); err == nil {
				m.procs[row.Component] = &proc{component: row.Component, port: row.Port, pid: row.PID}
				m.state = StateRunning
				logging.Debug("adopted live process", "project", row.Project, "component", row.Component, "pid", row.PID)
			}
		}
		m.mu.Unlock()
	}

	// Crash detection
	mgr.mu.Lock()
	names := make([]string, 0, len(mgr.machines))
	for name := range mgr.machines {
		names = append(names, name)
	}
	mgr.mu.Unlock()

	for _, name := range names {
		m := mgr.machineFor(name)
		m.mu.Lock()
		if m.state != StateRunning {
			m.mu.Unlock()
			continue
		}
		for component, p := range m.procs {
			if p.alive() || p.stopRequested {
				continue
			}
			if p.handle != nil {
				m.exitCode = p.handle.ExitCode()
				m.tail = p.handle.Tail()
				m.lastError = fmt.Sprintf("process exited unexpectedly (exit code %d)", m.exitCode)
			} else {
				m.lastError = "adopted process disappeared"
			}
			m.state = StateError
			delete(m.procs, component)
			mgr.table.Release(name, component)
			mgr.audit.Log(audit.Event{Type: audit.EventCrash, Project: name, Component: component, Details: m.lastError})
			logging.Warn("crash detected", "project", name, "component", component, "detail", m.lastError)
		}
		m.mu.Unlock()
	}
}
