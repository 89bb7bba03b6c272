// Package scenario runs Lua-scripted acceptance scenarios against an
// in-process engine. A script builds a Scenario out of world intents
// (quests, claims, battles) and expectations over the derived state;
// the runner replays the steps through the same intent handlers the
// server uses, against a fresh in-memory journal per scenario, with a
// scripted clock and deterministic seeds so runs are repeatable.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/waymark-rpg/waymark/internal/engine"
	"github.com/waymark-rpg/waymark/internal/journal"
	"github.com/waymark-rpg/waymark/internal/platform/timeouts"
	"github.com/waymark-rpg/waymark/internal/stateview"
	"github.com/waymark-rpg/waymark/internal/storage/memory"
	"github.com/waymark-rpg/waymark/internal/telemetry"
	"github.com/waymark-rpg/waymark/internal/template"
)

// Config controls scenario execution.
type Config struct {
	CampaignDir string
	Timeout     time.Duration
	Verbose     bool
	Logger      *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		CampaignDir: "scenarios/campaigns",
		Timeout:     timeouts.ScenarioStep,
	}
}

// Runner executes Lua scenarios. Campaign templates are shared across
// scenarios; everything else about the world is rebuilt per run.
type Runner struct {
	campaigns template.Source
	logger    *log.Logger
	verbose   bool
	timeout   time.Duration
}

// NewRunner loads campaign templates and prepares a scenario runner.
func NewRunner(cfg Config) (*Runner, error) {
	campaigns, err := template.LoadDir(cfg.CampaignDir)
	if err != nil {
		return nil, err
	}
	return newRunnerWithDeps(cfg, campaigns)
}

// newRunnerWithDeps builds a Runner from a pre-built campaign source.
// Config defaults (logger, timeout) are applied here so they are
// testable.
func newRunnerWithDeps(cfg Config, campaigns template.Source) (*Runner, error) {
	if campaigns == nil {
		return nil, errors.New("campaign source is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = timeouts.ScenarioStep
	}

	return &Runner{
		campaigns: campaigns,
		logger:    logger,
		verbose:   cfg.Verbose,
		timeout:   timeout,
	}, nil
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	runner, err := NewRunner(cfg)
	if err != nil {
		return err
	}

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return runner.RunScenario(ctx, scenario)
}

// RunScenario executes the scenario steps against a fresh world.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	state := r.newWorld()

	for index, step := range scenario.Steps {
		step := step
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, state, step)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}

// scenarioWorld is the world one scenario runs in: a fresh in-memory
// journal, a scripted clock, and the instance the steps accumulate.
// The clock only moves when a step advances it, so claim windows and
// canonical timestamps are stable across runs.
type scenarioWorld struct {
	store        *memory.Store
	journal      journal.Journal
	handler      engine.Handler
	clock        time.Time
	nextSeed     int64
	nextID       int
	instanceID   string
	heroID       string
	lastBattleID string
}

func (r *Runner) newWorld() *scenarioWorld {
	w := &scenarioWorld{
		store:    memory.New(),
		clock:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		nextSeed: 1,
	}
	w.journal = journal.Journal{
		Instances: w.store,
		Store:     w.store,
		NewID:     w.newID,
		Now:       w.now,
	}
	w.handler = engine.Handler{
		Journal:   w.journal,
		Views:     stateview.View{Instances: w.store, Log: w.store, Campaigns: r.campaigns},
		Instances: w.store,
		Campaigns: r.campaigns,
		Telemetry: telemetry.NewEmitter(w.store),
		NewSeed:   w.newSeed,
		NewID:     w.newID,
		Now:       w.now,
	}
	return w
}

func (w *scenarioWorld) now() time.Time {
	return w.clock
}

func (w *scenarioWorld) newSeed() (int64, error) {
	seed := w.nextSeed
	w.nextSeed++
	return seed, nil
}

func (w *scenarioWorld) newID() (string, error) {
	w.nextID++
	return fmt.Sprintf("sc-%04d", w.nextID), nil
}
