// Package app provides the application context for fleetctl.
//
// This package manages application-wide dependencies using the functional
// options pattern, enabling easy testing through dependency injection.
//
// # App Context
//
// The App struct holds core dependencies:
//
//	type App struct {
//	    Paths      *config.Paths      // File system paths
//	    HostConfig *config.HostConfig // Host configuration
//	    Registry   *registry.Registry // Known projects
//	    Table      *ports.Table       // Port assignments
//	    Manager    *lifecycle.Manager // Process lifecycles
//	    Audit      *audit.Logger      // Per-project event logs
//	    Importer   *archive.Importer  // Archive imports
//	}
//
// # Creating an App
//
// Use New with functional options:
//
//	// Production usage
//	a := app.New()
//
//	// Testing with custom dependencies
//	a := app.New(
//	    app.WithPaths(testPaths),
//	    app.WithHostConfig(testConfig),
//	    app.WithRegistry(testRegistry),
//	)
//
// # Available Options
//
//	WithPaths(paths)        // Custom path configuration
//	WithHostConfig(config)  // Custom host configuration
//	WithRegistry(registry)  // Custom project registry
//	WithManager(manager)    // Custom lifecycle manager
package app
