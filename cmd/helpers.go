package cmd

import (
	"context"
	"sort"

	"github.com/driftlock/fleetctl/internal/app"
	"github.com/driftlock/fleetctl/internal/errors"
	"github.com/driftlock/fleetctl/internal/lifecycle"
	"github.com/driftlock/fleetctl/internal/registry"
	"github.com/driftlock/fleetctl/internal/tui"
)

// fleet returns the application context.
func fleet() *app.App {
	return app.Default
}

// manager returns the lifecycle manager.
func manager() *lifecycle.Manager {
	return fleet().Manager
}

// scanFleet refreshes the registry from the projects root. Every CLI
// invocation starts from an empty registry, so commands that address
// projects call this first.
func scanFleet(ctx context.Context) error {
	return fleet().Rescan(ctx)
}

// loadProject scans the fleet and resolves a project by name.
func loadProject(ctx context.Context, name string) (*registry.Descriptor, error) {
	if err := scanFleet(ctx); err != nil {
		return nil, err
	}
	d, ok := fleet().Registry.Get(name)
	if !ok {
		return nil, errors.ProjectNotFound(name)
	}
	return d, nil
}

// projectViews converts the registry into display views for the TUI.
func projectViews() []*tui.Project {
	var views []*tui.Project
	for _, d := range fleet().Registry.List() {
		v := &tui.Project{
			Name:        d.Name,
			DisplayName: d.DisplayName,
			Type:        string(d.Type),
			State:       string(manager().State(d.Name)),
			Orphaned:    d.Orphaned,
		}
		if msg, _, _ := manager().LastError(d.Name); msg != "" {
			v.LastError = msg
		}
		for _, row := range fleet().Table.Snapshot() {
			if row.Project == d.Name && row.Running {
				v.Ports = append(v.Ports, row.Port)
			}
		}
		sort.Ints(v.Ports)
		views = append(views, v)
	}
	return views
}
