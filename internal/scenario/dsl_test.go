package scenario

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadScenarioBuildsSteps(t *testing.T) {
	path := writeScenarioFixture(t, `local s = Scenario.new("quest run")
s:instance({campaign = "camp-vale", hero = "hero-7"})
s:accept_quest("q-relief")
s:complete_objective({quest = "q-relief", stage = "s-gather", objective = "o-ore"})
s:expect_stage({quest = "q-relief", stage = "s-deliver"})
return s
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "quest run" {
		t.Fatalf("name = %q, want %q", scenario.Name, "quest run")
	}
	if len(scenario.Steps) != 4 {
		t.Fatalf("steps = %d, want %d", len(scenario.Steps), 4)
	}

	instance := scenario.Steps[0]
	if instance.Kind != "instance" {
		t.Fatalf("step kind = %q, want %q", instance.Kind, "instance")
	}
	if instance.Args["campaign"] != "camp-vale" {
		t.Fatalf("campaign = %v, want camp-vale", instance.Args["campaign"])
	}
	if instance.Args["hero"] != "hero-7" {
		t.Fatalf("hero = %v, want hero-7", instance.Args["hero"])
	}

	quest := scenario.Steps[1]
	if quest.Kind != "accept_quest" {
		t.Fatalf("step kind = %q, want %q", quest.Kind, "accept_quest")
	}
	if quest.Args["quest"] != "q-relief" {
		t.Fatalf("quest = %v, want q-relief", quest.Args["quest"])
	}

	objective := scenario.Steps[2]
	if objective.Kind != "complete_objective" {
		t.Fatalf("step kind = %q, want %q", objective.Kind, "complete_objective")
	}
	if objective.Args["objective"] != "o-ore" {
		t.Fatalf("objective = %v, want o-ore", objective.Args["objective"])
	}

	expect := scenario.Steps[3]
	if expect.Kind != "expect_stage" {
		t.Fatalf("step kind = %q, want %q", expect.Kind, "expect_stage")
	}
	if expect.Args["stage"] != "s-deliver" {
		t.Fatalf("stage = %v, want s-deliver", expect.Args["stage"])
	}
}

func TestLoadScenarioMergesOptions(t *testing.T) {
	path := writeScenarioFixture(t, `local s = Scenario.new("options")
s:accept_quest("q-ghost", {rejected = "QUEST_UNKNOWN", rejected_meta = {quest_ref = "q-ghost"}})
s:battle_turn("ability", {param = "ember"})
s:mine({feature = "f-vein", blocks = 5, seconds = 12.5})
return s
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if len(scenario.Steps) != 3 {
		t.Fatalf("steps = %d, want %d", len(scenario.Steps), 3)
	}

	quest := scenario.Steps[0]
	if quest.Args["quest"] != "q-ghost" {
		t.Fatalf("quest = %v, want q-ghost", quest.Args["quest"])
	}
	if quest.Args["rejected"] != "QUEST_UNKNOWN" {
		t.Fatalf("rejected = %v, want QUEST_UNKNOWN", quest.Args["rejected"])
	}
	meta, ok := quest.Args["rejected_meta"].(map[string]any)
	if !ok || meta["quest_ref"] != "q-ghost" {
		t.Fatalf("rejected_meta = %v, want quest_ref q-ghost", quest.Args["rejected_meta"])
	}

	turn := scenario.Steps[1]
	if turn.Args["decision"] != "ability" {
		t.Fatalf("decision = %v, want ability", turn.Args["decision"])
	}
	if turn.Args["param"] != "ember" {
		t.Fatalf("param = %v, want ember", turn.Args["param"])
	}

	mine := scenario.Steps[2]
	if mine.Args["blocks"] != 5 {
		t.Fatalf("blocks = %v (%T), want int 5", mine.Args["blocks"], mine.Args["blocks"])
	}
	if mine.Args["seconds"] != 12.5 {
		t.Fatalf("seconds = %v (%T), want 12.5", mine.Args["seconds"], mine.Args["seconds"])
	}
}

func TestLoadScenarioDefaultsNameFromFile(t *testing.T) {
	path := writeScenarioFixture(t, `local s = Scenario.new()
s:instance({campaign = "camp-vale"})
return s
`)

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "scenario" {
		t.Fatalf("name = %q, want %q", scenario.Name, "scenario")
	}
}

func TestLoadScenarioRequiresScenarioReturn(t *testing.T) {
	path := writeScenarioFixture(t, `return 42`)

	if _, err := LoadScenarioFromFile(path); err == nil || !strings.Contains(err.Error(), "must return Scenario") {
		t.Fatalf("err = %v, want scenario return error", err)
	}
}

func TestLoadScenarioReportsBrokenLua(t *testing.T) {
	path := writeScenarioFixture(t, `local s = (`)

	if _, err := LoadScenarioFromFile(path); err == nil || !strings.Contains(err.Error(), "load lua") {
		t.Fatalf("err = %v, want load error", err)
	}
}

func writeScenarioFixture(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.lua")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}
