// Package config loads command configuration from WAYMARK_* environment
// variables and provides the shared fatal-exit path for CLI binaries.
//
// Commands take no flags beyond their verb and arguments; every knob is
// an environment variable so the operator CLI, the scenario runner, and
// deployment scripts all read the same surface.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// ParseEnv fills target from the environment. Parse failures carry a
// "parse env" prefix so the operator sees which layer rejected the value.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Exitf writes a formatted message to stderr and exits with status 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
