package main

import (
	"os"

	"github.com/driftlock/fleetctl/cmd"
	"github.com/driftlock/fleetctl/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(errors.GetExitCode(err))
	}
}
