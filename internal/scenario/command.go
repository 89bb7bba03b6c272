package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/waymark-rpg/waymark/internal/platform/timeouts"
)

const commandUsage = `usage: scenario <file.lua | dir> [more paths]

Runs Lua acceptance scenarios against an in-process engine. Directory
arguments expand to their *.lua files in name order.`

// Command holds the CLI configuration for cmd/scenario. Paths come
// from the command line; everything else from the environment.
type Command struct {
	CampaignDir string        `env:"WAYMARK_CAMPAIGN_DIR"     envDefault:"scenarios/campaigns"`
	Timeout     time.Duration `env:"WAYMARK_SCENARIO_TIMEOUT"`
	Verbose     bool          `env:"WAYMARK_SCENARIO_VERBOSE"`
	Paths       []string
}

// ParseCommand reads the environment and the scenario paths.
func ParseCommand(args []string) (Command, error) {
	var cmd Command
	if err := env.Parse(&cmd); err != nil {
		return Command{}, fmt.Errorf("parse env: %w", err)
	}
	if cmd.Timeout <= 0 {
		cmd.Timeout = timeouts.ScenarioRun
	}
	if len(args) == 0 {
		return Command{}, errors.New(commandUsage)
	}
	cmd.Paths = args
	return cmd, nil
}

// RunCommand executes every named scenario and reports one line per
// run. All scenarios run even when an early one fails; the error
// summarizes the failures.
func RunCommand(ctx context.Context, cmd Command, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	paths, err := expandScenarioPaths(cmd.Paths)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no scenario files found")
	}

	runner, err := NewRunner(Config{
		CampaignDir: cmd.CampaignDir,
		Timeout:     cmd.Timeout,
		Verbose:     cmd.Verbose,
		Logger:      log.New(errOut, "", 0),
	})
	if err != nil {
		return err
	}

	failures := 0
	for _, path := range paths {
		scenario, err := LoadScenarioFromFile(path)
		if err != nil {
			failures++
			fmt.Fprintf(errOut, "Error: %s: %v\n", path, err)
			continue
		}
		start := time.Now()
		if err := runner.RunScenario(ctx, scenario); err != nil {
			failures++
			fmt.Fprintf(errOut, "Error: scenario %s: %v\n", scenario.Name, err)
			fmt.Fprintf(out, "fail  %s\n", scenario.Name)
			continue
		}
		fmt.Fprintf(out, "ok    %s (%d steps, %s)\n",
			scenario.Name, len(scenario.Steps), time.Since(start).Round(time.Millisecond))
	}
	if failures > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failures, len(paths))
	}
	return nil
}

func expandScenarioPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.lua"))
		if err != nil {
			return nil, err
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}
