// Package main provides the waymark operator CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	entrypoint "github.com/waymark-rpg/waymark/internal/platform/cmd"
	"github.com/waymark-rpg/waymark/internal/platform/config"
	"github.com/waymark-rpg/waymark/internal/tools/waymark"
)

func main() {
	cfg, err := waymark.ParseConfig(os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	err = entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWaymark, func(ctx context.Context) error {
		return waymark.Run(ctx, cfg, os.Stdout, os.Stderr)
	})
	if err != nil {
		config.Exitf("Error: %v", err)
	}
}
