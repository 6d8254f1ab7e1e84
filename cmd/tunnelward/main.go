// Package main is the entry point for the tunnelward binary.
//
// tunnelward supervises long-lived reverse SSH tunnel processes. The
// default invocation opens the live dashboard; subcommands cover profile
// management, session control, and the web control surface. See
// internal/cli for the command tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/tunnelward/tunnelward/internal/cli"
	"github.com/tunnelward/tunnelward/internal/security"
)

func main() {
	// Optional .env for local overrides (TUNNELWARD_* and friends);
	// absence is the normal case.
	_ = godotenv.Load()

	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, security.ErrInterrupted) || errors.Is(err, context.Canceled) {
			os.Exit(security.ExitInterrupted)
		}
		fmt.Fprintln(os.Stderr, "error:", security.RedactMessage(err.Error()))
		os.Exit(security.ExitCode(err))
	}
}
