// Package app provides the application context for fleetctl.
// It allows dependency injection for testing.
package app

import (
	"context"
	"errors"
	"os"

	"github.com/driftlock/fleetctl/internal/archive"
	"github.com/driftlock/fleetctl/internal/audit"
	"github.com/driftlock/fleetctl/internal/config"
	fleeterrors "github.com/driftlock/fleetctl/internal/errors"
	"github.com/driftlock/fleetctl/internal/lifecycle"
	"github.com/driftlock/fleetctl/internal/logging"
	"github.com/driftlock/fleetctl/internal/ports"
	"github.com/driftlock/fleetctl/internal/registry"
)

// App holds the application dependencies
type App struct {
	// Paths holds the configured paths
	Paths *config.Paths

	// HostConfig is the loaded host configuration
	HostConfig *config.HostConfig

	// Registry tracks the projects under the projects root
	Registry *registry.Registry

	// Table is the persistent port assignment table
	Table *ports.Table

	// Manager drives project process lifecycles
	Manager *lifecycle.Manager

	// Audit records lifecycle events per project
	Audit *audit.Logger

	// Importer brings archives into the projects root
	Importer *archive.Importer
}

// Option is a function that configures the App
type Option func(*App)

// WithPaths sets custom paths
func WithPaths(paths *config.Paths) Option {
	return func(a *App) {
		a.Paths = paths
	}
}

// WithHostConfig sets a custom host config
func WithHostConfig(cfg *config.HostConfig) Option {
	return func(a *App) {
		a.HostConfig = cfg
	}
}

// WithRegistry sets a custom registry
func WithRegistry(reg *registry.Registry) Option {
	return func(a *App) {
		a.Registry = reg
	}
}

// WithManager sets a custom lifecycle manager
func WithManager(mgr *lifecycle.Manager) Option {
	return func(a *App) {
		a.Manager = mgr
	}
}

// New creates a new App with the given options. Components not provided
// via options are built from the host configuration.
func New(opts ...Option) *App {
	app := &App{}

	for _, opt := range opts {
		opt(app)
	}

	if app.HostConfig == nil {
		cfg, err := config.LoadHostConfig(config.DefaultConfigDir())
		if err != nil {
			logging.Debug("failed to load host config", "error", err)
			return app
		}
		app.HostConfig = cfg
	}

	if app.Paths == nil {
		app.Paths = config.NewPaths(config.DefaultConfigDir(), app.HostConfig.StateDir)
	}

	if app.Audit == nil {
		app.Audit = audit.NewLogger(app.Paths.EventsDir)
	}

	if app.Table == nil {
		app.Table = ports.NewTable(app.Paths.PortTablePath)
		if err := app.Table.Load(); err != nil {
			logging.Debug("failed to load port table", "error", err)
		}
	}

	if app.Registry == nil {
		app.Registry = registry.New(app.HostConfig)
	}

	if app.Manager == nil {
		app.Manager = lifecycle.New(app.HostConfig, app.Paths, app.Registry, app.Table, app.Audit)
	}

	if app.Importer == nil {
		app.Importer = archive.New(app.HostConfig.ProjectsRoot, app.HostConfig.ImportMaxBytes,
			app.Audit, app.Registry.Rescan)
	}

	return app
}

// Rescan refreshes the registry from the projects root.
func (a *App) Rescan(ctx context.Context) error {
	if a.Registry == nil {
		return nil
	}
	return a.Registry.Rescan(ctx)
}

// DeleteProject retires a project: stop its processes, move its
// directory to a timestamped backup, then drop its port rows and event
// log. Returns the backup path, empty for an orphan whose directory is
// already gone.
func (a *App) DeleteProject(ctx context.Context, name string) (string, error) {
	if _, ok := a.Registry.Get(name); !ok {
		return "", fleeterrors.ProjectNotFound(name)
	}

	for _, row := range a.Table.Snapshot() {
		if row.Project != name {
			continue
		}
		err := a.Manager.Stop(ctx, name, row.Component)
		if err == nil {
			continue
		}
		var fleetErr *fleeterrors.FleetError
		if errors.As(err, &fleetErr) && fleetErr.Code == fleeterrors.ExitGeneralError {
			continue // row held no live process
		}
		return "", err
	}

	backup, err := a.Importer.Remove(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		// Orphan: the directory disappeared while the project ran.
		backup = ""
		if rerr := a.Rescan(ctx); rerr != nil {
			logging.Warn("rescan after delete failed", "error", rerr)
		}
	default:
		return "", err
	}

	if err := a.Table.RemoveProject(name); err != nil {
		logging.Warn("failed to drop port rows", "project", name, "error", err)
	}
	if err := a.Audit.Remove(name); err != nil {
		logging.Warn("failed to remove event log", "project", name, "error", err)
	}

	return backup, nil
}

// Default is the default application instance
var Default = New()

// SetDefault sets the default application instance (used for testing)
func SetDefault(app *App) {
	Default = app
}

// ResetDefault resets to the default application instance
func ResetDefault() {
	Default = New()
}
