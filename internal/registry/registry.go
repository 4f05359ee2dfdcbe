// Package registry discovers manageable projects under the projects root
// and maintains the canonical descriptor set.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/driftlock/fleetctl/internal/config"
	"github.com/driftlock/fleetctl/internal/logging"
	"github.com/driftlock/fleetctl/internal/system"
)

// ProjectType classifies what kind of frontend project a directory holds.
type ProjectType string

const (
	TypeStatic      ProjectType = "static"
	TypeReact       ProjectType = "react"
	TypeVue         ProjectType = "vue"
	TypeAngular     ProjectType = "angular"
	TypeNodeGeneric ProjectType = "node-generic"
	TypeOther       ProjectType = "other"
)

// ConfigSource records how a descriptor's fields were obtained.
type ConfigSource string

const (
	// SourceDeclared means the project's config script was executed and parsed.
	SourceDeclared ConfigSource = "declared"
	// SourceFallback means defaults were synthesized.
	SourceFallback ConfigSource = "fallback"
)

// Commands holds the project's command strings. Opaque to the registry;
// passed through to the supervisor.
type Commands struct {
	Install string `json:"install,omitempty"`
	Dev     string `json:"dev,omitempty"`
	Build   string `json:"build,omitempty"`
}

// Descriptor is the registry's canonical record of one manageable project.
type Descriptor struct {
	Name          string         `json:"name"`
	DisplayName   string         `json:"display_name"`
	Type          ProjectType    `json:"type"`
	RootPath      string         `json:"root_path"`
	ConfigSource  ConfigSource   `json:"config_source"`
	Commands      Commands       `json:"commands"`
	DeclaredPorts map[string]int `json:"declared_ports,omitempty"`

	// Orphaned marks a project whose directory disappeared while its
	// process was still running. It stays listed until explicitly stopped.
	Orphaned bool `json:"orphaned,omitempty"`
}

// describeOutput is the structured document a config script prints
// when invoked with --describe.
type describeOutput struct {
	Name           string `json:"name"`
	DisplayName    string `json:"display_name"`
	Type           string `json:"type"`
	Port           int    `json:"port"`
	BackendPort    int    `json:"backend_port"`
	WebsocketPort  int    `json:"websocket_port"`
	InstallCommand string `json:"install_command"`
	DevCommand     string `json:"dev_command"`
	BuildCommand   string `json:"build_command"`
}

// Registry scans the projects root and owns the descriptor set.
type Registry struct {
	mu       sync.RWMutex
	projects map[string]*Descriptor

	root string
	cfg  *config.HostConfig
	fs   system.FileSystem
	exec system.CommandExecutor

	// isRunning reports whether a project still has a live process.
	// Used to flag orphans on rescan.
	isRunning func(name string) bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithFileSystem overrides the filesystem implementation.
func WithFileSystem(fs system.FileSystem) Option {
	return func(r *Registry) { r.fs = fs }
}

// WithExecutor overrides the command executor.
func WithExecutor(exec system.CommandExecutor) Option {
	return func(r *Registry) { r.exec = exec }
}

// WithRunningCheck supplies the live-process check used to flag orphans.
func WithRunningCheck(fn func(name string) bool) Option {
	return func(r *Registry) { r.isRunning = fn }
}

// New creates a registry over cfg.ProjectsRoot.
func New(cfg *config.HostConfig, opts ...Option) *Registry {
	r := &Registry{
		projects:  make(map[string]*Descriptor),
		root:      cfg.ProjectsRoot,
		cfg:       cfg,
		fs:        system.DefaultFS(),
		exec:      system.DefaultExecutor(),
		isRunning: func(string) bool { return false },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetRunningCheck replaces the live-process check after construction.
// The lifecycle manager wires itself in here once both exist.
func (r *Registry) SetRunningCheck(fn func(name string) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.isRunning = fn
}

// Rescan walks the projects root one level deep and rebuilds the
// descriptor set. It is a pure function from filesystem state to a new
// set; entries are replaced wholesale, never partially mutated. Projects
// that disappeared while still running are kept and flagged orphaned.
func (r *Registry) Rescan(ctx context.Context) error {
	entries, err := r.fs.ReadDir(r.root)
	if err != nil {
		if !r.fs.Exists(r.root) {
			entries = nil
		} else {
			return fmt.Errorf("failed to read projects root: %w", err)
		}
	}

	next := make(map[string]*Descriptor)
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dir := filepath.Join(r.root, entry.Name())
		if !r.fs.Exists(filepath.Join(dir, config.MarkerFile)) {
			continue // not a project
		}

		name := entry.Name()
		if err := config.ValidateProjectName(name); err != nil {
			logging.Warn("skipping project with invalid name", "dir", dir, "error", err)
			continue
		}

		next[name] = r.describe(ctx, name, dir)
	}

	// The running check reaches into the lifecycle manager, which calls
	// back into Get under its own locks. Run it before taking r.mu so
	// the two locks are never held together.
	r.mu.RLock()
	isRunning := r.isRunning
	var candidates []Descriptor
	for name, old := range r.projects {
		if _, ok := next[name]; !ok {
			candidates = append(candidates, *old)
		}
	}
	r.mu.RUnlock()

	for i := range candidates {
		if !isRunning(candidates[i].Name) {
			continue
		}
		orphan := candidates[i]
		orphan.Orphaned = true
		next[orphan.Name] = &orphan
		logging.Warn("project directory removed while running", "project", orphan.Name)
	}

	r.mu.Lock()
	r.projects = next
	r.mu.Unlock()
	return nil
}

// describe builds a descriptor for one project directory, executing its
// config script when possible and synthesizing fallback defaults otherwise.
func (r *Registry) describe(ctx context.Context, name, dir string) *Descriptor {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DescribeTimeout())
	defer cancel()

	out, err := r.exec.Execute(ctx, dir, "node", config.MarkerFile, "--describe")
	if err != nil {
		logging.Debug("describe failed, using fallback", "project", name, "error", err)
		return r.fallback(name, dir)
	}

	var doc describeOutput
	if err := json.Unmarshal(out, &doc); err != nil {
		logging.Debug("describe output malformed, using fallback", "project", name, "error", err)
		return r.fallback(name, dir)
	}

	d := &Descriptor{
		Name:         name,
		DisplayName:  doc.DisplayName,
		Type:         parseType(doc.Type),
		RootPath:     dir,
		ConfigSource: SourceDeclared,
		Commands: Commands{
			Install: doc.InstallCommand,
			Dev:     doc.DevCommand,
			Build:   doc.BuildCommand,
		},
		DeclaredPorts: make(map[string]int),
	}

	if d.DisplayName == "" {
		d.DisplayName = name
	}
	if doc.Port != 0 {
		d.DeclaredPorts["frontend"] = doc.Port
	}
	if doc.BackendPort != 0 {
		d.DeclaredPorts["backend"] = doc.BackendPort
	}
	if doc.WebsocketPort != 0 {
		d.DeclaredPorts["websocket"] = doc.WebsocketPort
	}

	return d
}

// fallback synthesizes a descriptor when no config script output is
// usable. The type is inferred from the directory contents and the
// default port is the component base plus a deterministic name-hash
// offset to reduce collisions before allocation runs.
func (r *Registry) fallback(name, dir string) *Descriptor {
	d := &Descriptor{
		Name:         name,
		DisplayName:  name,
		Type:         r.inferType(dir),
		RootPath:     dir,
		ConfigSource: SourceFallback,
		DeclaredPorts: map[string]int{
			"frontend": r.cfg.FrontendBasePort + portOffset(name),
		},
	}

	if d.Type != TypeStatic && d.Type != TypeOther {
		d.Commands = Commands{
			Install: "npm install",
			Dev:     "npm run dev",
			Build:   "npm run build",
		}
	}

	return d
}

func (r *Registry) inferType(dir string) ProjectType {
	pkgPath := filepath.Join(dir, "package.json")
	if r.fs.Exists(pkgPath) {
		data, err := r.fs.ReadFile(pkgPath)
		if err == nil {
			var pkg struct {
				Dependencies    map[string]string `json:"dependencies"`
				DevDependencies map[string]string `json:"devDependencies"`
			}
			if json.Unmarshal(data, &pkg) == nil {
				deps := make(map[string]bool, len(pkg.Dependencies)+len(pkg.DevDependencies))
				for k := range pkg.Dependencies {
					deps[k] = true
				}
				for k := range pkg.DevDependencies {
					deps[k] = true
				}
				switch {
				case deps["react"]:
					return TypeReact
				case deps["vue"]:
					return TypeVue
				case deps["@angular/core"]:
					return TypeAngular
				}
			}
		}
		return TypeNodeGeneric
	}

	if r.fs.Exists(filepath.Join(dir, "index.html")) {
		return TypeStatic
	}

	return TypeOther
}

func parseType(s string) ProjectType {
	switch ProjectType(s) {
	case TypeStatic, TypeReact, TypeVue, TypeAngular, TypeNodeGeneric:
		return ProjectType(s)
	default:
		return TypeOther
	}
}

// portOffset derives a deterministic offset in [0, 200) from a name.
func portOffset(name string) int {
	h := fnv.New32a()
	h.Write([]byte(name))
	return int(h.Sum32() % 200)
}

// Get returns the descriptor for name.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.projects[name]
	if !ok {
		return nil, false
	}
	cp := *d
	return &cp, true
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Descriptor, 0, len(r.projects))
	for _, d := range r.projects {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Root returns the projects root directory.
func (r *Registry) Root() string {
	return r.root
}
