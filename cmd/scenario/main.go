// Package main runs Lua acceptance scenarios against an in-process
// engine.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	entrypoint "github.com/waymark-rpg/waymark/internal/platform/cmd"
	"github.com/waymark-rpg/waymark/internal/platform/config"
	"github.com/waymark-rpg/waymark/internal/scenario"
)

func main() {
	cmd, err := scenario.ParseCommand(os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceScenario, func(ctx context.Context) error {
		return scenario.RunCommand(ctx, cmd, os.Stdout, os.Stderr)
	})
	if err != nil {
		config.Exitf("Error: %v", err)
	}
}
