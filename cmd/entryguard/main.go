package main

import (
	"errors"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"

	"github.com/namelens/entryguard/internal/cmd"
	"github.com/namelens/entryguard/internal/server/handlers"
)

// Set via ldflags:
// go build -ldflags="-X main.version=1.0.0 -X main.commit=abc123 -X main.buildDate=2026-10-17"
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cmd.SetVersionInfo(version, commit, buildDate)
	handlers.SetVersionInfo(version, commit, buildDate)

	if err := cmd.Execute(); err != nil {
		// The report has already been printed; only the exit status changes.
		if errors.Is(err, cmd.ErrValidationFailed) {
			os.Exit(1)
		}
		cmd.ExitWithCodeStderr(foundry.ExitFailure, "Command execution failed", err)
	}
}
