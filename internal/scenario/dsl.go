package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "scenario"

// Scenario is a named sequence of steps built by a Lua script.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is one scripted intent or expectation.
type Step struct {
	Kind string
	Args map[string]any
}

// LoadScenarioFromFile runs a Lua script and returns the Scenario it
// builds. The script must end by returning the scenario value; a blank
// name falls back to the file name.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	registerScenarioType(state)
	registerScenarioConstructor(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, scenarioConstructor, 0)
	state.SetGlobal("Scenario")
}

var scenarioConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scenarioNew},
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	scenario := &Scenario{Name: name}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "instance", Function: scenarioInstance},
	{Name: "seed", Function: scenarioSeed},
	{Name: "advance", Function: scenarioAdvance},
	{Name: "accept_quest", Function: scenarioAcceptQuest},
	{Name: "complete_objective", Function: scenarioCompleteObjective},
	{Name: "choose_branch", Function: scenarioChooseBranch},
	{Name: "abandon_quest", Function: scenarioAbandonQuest},
	{Name: "spawn", Function: scenarioSpawn},
	{Name: "visit_dialogue", Function: scenarioVisitDialogue},
	{Name: "interact", Function: scenarioInteract},
	{Name: "activate_trigger", Function: scenarioActivateTrigger},
	{Name: "adjust_reputation", Function: scenarioAdjustReputation},
	{Name: "move", Function: scenarioMove},
	{Name: "mine", Function: scenarioMine},
	{Name: "build", Function: scenarioBuild},
	{Name: "tool_wear", Function: scenarioToolWear},
	{Name: "start_battle", Function: scenarioStartBattle},
	{Name: "battle_turn", Function: scenarioBattleTurn},
	{Name: "end_battle", Function: scenarioEndBattle},
	{Name: "award_loot", Function: scenarioAwardLoot},
	{Name: "change_stat", Function: scenarioChangeStat},
	{Name: "check_failures", Function: scenarioCheckFailures},
	{Name: "expect_stage", Function: scenarioExpectStage},
	{Name: "expect_objective", Function: scenarioExpectObjective},
	{Name: "expect_quest_completed", Function: scenarioExpectQuestCompleted},
	{Name: "expect_quest_failed", Function: scenarioExpectQuestFailed},
	{Name: "expect_quest_absent", Function: scenarioExpectQuestAbsent},
	{Name: "expect_trigger", Function: scenarioExpectTrigger},
	{Name: "expect_token", Function: scenarioExpectToken},
	{Name: "expect_reputation", Function: scenarioExpectReputation},
	{Name: "expect_battle", Function: scenarioExpectBattle},
	{Name: "expect_character", Function: scenarioExpectCharacter},
	{Name: "expect_position", Function: scenarioExpectPosition},
	{Name: "expect_seq", Function: scenarioExpectSeq},
}

func scenarioInstance(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "instance", tableToMap(state, 2))
	return 0
}

func scenarioSeed(state *lua.State) int {
	scenario := checkScenario(state)
	value := int(lua.CheckNumber(state, 2))
	appendStep(scenario, "seed", map[string]any{"value": value})
	return 0
}

func scenarioAdvance(state *lua.State) int {
	scenario := checkScenario(state)
	seconds := lua.CheckNumber(state, 2)
	appendStep(scenario, "advance_time", map[string]any{"seconds": normalizeNumber(seconds)})
	return 0
}

func scenarioAcceptQuest(state *lua.State) int {
	scenario := checkScenario(state)
	ref := lua.CheckString(state, 2)
	data := optionalTable(state, 3)
	data["quest"] = ref
	appendStep(scenario, "accept_quest", data)
	return 0
}

func scenarioCompleteObjective(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "complete_objective", tableToMap(state, 2))
	return 0
}

func scenarioChooseBranch(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "choose_branch", tableToMap(state, 2))
	return 0
}

func scenarioAbandonQuest(state *lua.State) int {
	scenario := checkScenario(state)
	ref := lua.CheckString(state, 2)
	data := optionalTable(state, 3)
	data["quest"] = ref
	appendStep(scenario, "abandon_quest", data)
	return 0
}

func scenarioSpawn(state *lua.State) int {
	scenario := checkScenario(state)
	ref := lua.CheckString(state, 2)
	data := optionalTable(state, 3)
	data["character"] = ref
	appendStep(scenario, "spawn", data)
	return 0
}

func scenarioVisitDialogue(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "visit_dialogue", tableToMap(state, 2))
	return 0
}

func scenarioInteract(state *lua.State) int {
	scenario := checkScenario(state)
	ref := lua.CheckString(state, 2)
	data := optionalTable(state, 3)
	data["feature"] = ref
	appendStep(scenario, "interact", data)
	return 0
}

func scenarioActivateTrigger(state *lua.State) int {
	scenario := checkScenario(state)
	ref := lua.CheckString(state, 2)
	data := optionalTable(state, 3)
	data["trigger"] = ref
	appendStep(scenario, "activate_trigger", data)
	return 0
}

func scenarioAdjustReputation(state *lua.State) int {
	scenario := checkScenario(state)
	faction := lua.CheckString(state, 2)
	amount := int(lua.CheckNumber(state, 3))
	data := optionalTable(state, 4)
	data["faction"] = faction
	data["amount"] = amount
	appendStep(scenario, "adjust_reputation", data)
	return 0
}

func scenarioMove(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "move", tableToMap(state, 2))
	return 0
}

func scenarioMine(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "mine", tableToMap(state, 2))
	return 0
}

func scenarioBuild(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "build", tableToMap(state, 2))
	return 0
}

func scenarioToolWear(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "tool_wear", tableToMap(state, 2))
	return 0
}

func scenarioStartBattle(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "start_battle", tableToMap(state, 2))
	return 0
}

func scenarioBattleTurn(state *lua.State) int {
	scenario := checkScenario(state)
	decision := lua.CheckString(state, 2)
	data := optionalTable(state, 3)
	data["decision"] = decision
	appendStep(scenario, "battle_turn", data)
	return 0
}

func scenarioEndBattle(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "end_battle", optionalTable(state, 2))
	return 0
}

func scenarioAwardLoot(state *lua.State) int {
	scenario := checkScenario(state)
	ref := lua.CheckString(state, 2)
	data := optionalTable(state, 3)
	data["character"] = ref
	appendStep(scenario, "award_loot", data)
	return 0
}

func scenarioChangeStat(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "change_stat", tableToMap(state, 2))
	return 0
}

func scenarioCheckFailures(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "check_failures", optionalTable(state, 2))
	return 0
}

func scenarioExpectStage(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "expect_stage", tableToMap(state, 2))
	return 0
}

func scenarioExpectObjective(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "expect_objective", tableToMap(state, 2))
	return 0
}

func scenarioExpectQuestCompleted(state *lua.State) int {
	scenario := checkScenario(state)
	ref := lua.CheckString(state, 2)
	appendStep(scenario, "expect_quest_completed", map[string]any{"quest": ref})
	return 0
}

func scenarioExpectQuestFailed(state *lua.State) int {
	scenario := checkScenario(state)
	ref := lua.CheckString(state, 2)
	data := optionalTable(state, 3)
	data["quest"] = ref
	appendStep(scenario, "expect_quest_failed", data)
	return 0
}

func scenarioExpectQuestAbsent(state *lua.State) int {
	scenario := checkScenario(state)
	ref := lua.CheckString(state, 2)
	appendStep(scenario, "expect_quest_absent", map[string]any{"quest": ref})
	return 0
}

func scenarioExpectTrigger(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "expect_trigger", tableToMap(state, 2))
	return 0
}

func scenarioExpectToken(state *lua.State) int {
	scenario := checkScenario(state)
	token := lua.CheckString(state, 2)
	appendStep(scenario, "expect_token", map[string]any{"token": token})
	return 0
}

func scenarioExpectReputation(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "expect_reputation", tableToMap(state, 2))
	return 0
}

func scenarioExpectBattle(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "expect_battle", tableToMap(state, 2))
	return 0
}

func scenarioExpectCharacter(state *lua.State) int {
	scenario := checkScenario(state)
	ref := lua.CheckString(state, 2)
	data := optionalTable(state, 3)
	data["character"] = ref
	appendStep(scenario, "expect_character", data)
	return 0
}

func scenarioExpectPosition(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "expect_position", tableToMap(state, 2))
	return 0
}

func scenarioExpectSeq(state *lua.State) int {
	scenario := checkScenario(state)
	value := int(lua.CheckNumber(state, 2))
	appendStep(scenario, "expect_seq", map[string]any{"value": value})
	return 0
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, data map[string]any) {
	if scenario == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	default:
		return nil
	}
}

func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
