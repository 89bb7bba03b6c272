package scenario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/waymark-rpg/waymark/internal/battle"
	"github.com/waymark-rpg/waymark/internal/engine"
	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/replay"
	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// runStep executes one step. A step carrying a rejected option inverts
// the contract: the intent must fail with that error code, and the
// failure is consumed here instead of ending the scenario. A
// rejected_meta table additionally pins values the error metadata must
// carry.
func (r *Runner) runStep(ctx context.Context, w *scenarioWorld, step Step) error {
	want := optionalString(step.Args, "rejected", "")
	err := r.execStep(ctx, w, step)
	if want == "" {
		return err
	}
	if err == nil {
		return fmt.Errorf("expected rejection %s, step succeeded", want)
	}
	if code := apperrors.CodeOf(err); code != apperrors.Code(want) {
		return fmt.Errorf("expected rejection %s, got %s: %v", want, code, err)
	}
	return matchRejectionMetadata(step.Args, err)
}

func matchRejectionMetadata(args map[string]any, err error) error {
	wanted, ok := args["rejected_meta"].(map[string]any)
	if !ok {
		return nil
	}
	meta := apperrors.MetadataOf(err)
	for key, raw := range wanted {
		want, ok := raw.(string)
		if !ok {
			return fmt.Errorf("rejected_meta value for %s must be a string", key)
		}
		if got := meta[key]; got != want {
			return fmt.Errorf("rejection metadata %s is %q, want %q", key, got, want)
		}
	}
	return nil
}

func (r *Runner) execStep(ctx context.Context, w *scenarioWorld, step Step) error {
	switch step.Kind {
	case "instance":
		return r.runInstanceStep(ctx, w, step)
	case "seed":
		return r.runSeedStep(w, step)
	case "advance_time":
		return r.runAdvanceTimeStep(w, step)
	case "accept_quest":
		return r.runAcceptQuestStep(ctx, w, step)
	case "complete_objective":
		return r.runCompleteObjectiveStep(ctx, w, step)
	case "choose_branch":
		return r.runChooseBranchStep(ctx, w, step)
	case "abandon_quest":
		return r.runAbandonQuestStep(ctx, w, step)
	case "spawn":
		return r.runSpawnStep(ctx, w, step)
	case "visit_dialogue":
		return r.runVisitDialogueStep(ctx, w, step)
	case "interact":
		return r.runInteractStep(ctx, w, step)
	case "activate_trigger":
		return r.runActivateTriggerStep(ctx, w, step)
	case "adjust_reputation":
		return r.runAdjustReputationStep(ctx, w, step)
	case "move":
		return r.runMoveStep(ctx, w, step)
	case "mine":
		return r.runMineStep(ctx, w, step)
	case "build":
		return r.runBuildStep(ctx, w, step)
	case "tool_wear":
		return r.runToolWearStep(ctx, w, step)
	case "start_battle":
		return r.runStartBattleStep(ctx, w, step)
	case "battle_turn":
		return r.runBattleTurnStep(ctx, w, step)
	case "end_battle":
		return r.runEndBattleStep(ctx, w)
	case "award_loot":
		return r.runAwardLootStep(ctx, w, step)
	case "change_stat":
		return r.runChangeStatStep(ctx, w, step)
	case "check_failures":
		return r.runCheckFailuresStep(ctx, w, step)
	case "expect_stage":
		return r.runExpectStageStep(ctx, w, step)
	case "expect_objective":
		return r.runExpectObjectiveStep(ctx, w, step)
	case "expect_quest_completed":
		return r.runExpectQuestCompletedStep(ctx, w, step)
	case "expect_quest_failed":
		return r.runExpectQuestFailedStep(ctx, w, step)
	case "expect_quest_absent":
		return r.runExpectQuestAbsentStep(ctx, w, step)
	case "expect_trigger":
		return r.runExpectTriggerStep(ctx, w, step)
	case "expect_token":
		return r.runExpectTokenStep(ctx, w, step)
	case "expect_reputation":
		return r.runExpectReputationStep(ctx, w, step)
	case "expect_battle":
		return r.runExpectBattleStep(ctx, w, step)
	case "expect_character":
		return r.runExpectCharacterStep(ctx, w, step)
	case "expect_position":
		return r.runExpectPositionStep(ctx, w, step)
	case "expect_seq":
		return r.runExpectSeqStep(ctx, w, step)
	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
}

func (r *Runner) runInstanceStep(ctx context.Context, w *scenarioWorld, step Step) error {
	campaignRef := requiredString(step.Args, "campaign")
	if campaignRef == "" {
		return errors.New("instance needs a campaign ref")
	}
	heroID := optionalString(step.Args, "hero", "hero-1")

	rec, err := w.journal.GetOrCreateInstance(ctx, campaignRef, heroID)
	if err != nil {
		return err
	}
	w.instanceID = rec.ID
	w.heroID = heroID
	return nil
}

func (r *Runner) runSeedStep(w *scenarioWorld, step Step) error {
	value, ok := readInt(step.Args, "value")
	if !ok {
		return errors.New("seed needs a value")
	}
	w.nextSeed = int64(value)
	return nil
}

func (r *Runner) runAdvanceTimeStep(w *scenarioWorld, step Step) error {
	seconds, ok := readFloat(step.Args, "seconds")
	if !ok || seconds <= 0 {
		return errors.New("advance needs a positive seconds value")
	}
	w.clock = w.clock.Add(time.Duration(seconds * float64(time.Second)))
	return nil
}

func (r *Runner) runAcceptQuestStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	_, err = w.handler.AcceptQuest(ctx, instanceID, requiredString(step.Args, "quest"))
	return err
}

func (r *Runner) runCompleteObjectiveStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	_, err = w.handler.CompleteObjective(ctx, instanceID,
		requiredString(step.Args, "quest"),
		requiredString(step.Args, "stage"),
		requiredString(step.Args, "objective"))
	return err
}

func (r *Runner) runChooseBranchStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	_, err = w.handler.ChooseBranch(ctx, instanceID,
		requiredString(step.Args, "quest"),
		requiredString(step.Args, "stage"),
		requiredString(step.Args, "branch"))
	return err
}

func (r *Runner) runAbandonQuestStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	_, err = w.handler.AbandonQuest(ctx, instanceID, requiredString(step.Args, "quest"))
	return err
}

func (r *Runner) runSpawnStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	at, err := optionalPosition(step.Args)
	if err != nil {
		return err
	}
	_, err = w.handler.SpawnCharacter(ctx, instanceID, requiredString(step.Args, "character"), at)
	return err
}

func (r *Runner) runVisitDialogueStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	_, err = w.handler.VisitDialogue(ctx, instanceID,
		requiredString(step.Args, "dialogue"),
		requiredString(step.Args, "node"))
	return err
}

func (r *Runner) runInteractStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	_, err = w.handler.InteractFeature(ctx, instanceID, requiredString(step.Args, "feature"))
	return err
}

func (r *Runner) runActivateTriggerStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	at, err := optionalPosition(step.Args)
	if err != nil {
		return err
	}
	_, err = w.handler.ActivateTrigger(ctx, instanceID, requiredString(step.Args, "trigger"), at)
	return err
}

func (r *Runner) runAdjustReputationStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	amount, ok := readInt(step.Args, "amount")
	if !ok {
		return errors.New("adjust_reputation needs an amount")
	}
	_, err = w.handler.AdjustReputation(ctx, instanceID, requiredString(step.Args, "faction"), int64(amount))
	return err
}

func (r *Runner) runMoveStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	seconds, ok := readFloat(step.Args, "seconds")
	if !ok || seconds <= 0 {
		return errors.New("move needs a positive seconds duration")
	}
	toX, okX := readFloat(step.Args, "to_x")
	toY, okY := readFloat(step.Args, "to_y")
	if !okX || !okY {
		return errors.New("move needs to_x and to_y")
	}

	fromX, okFX := readFloat(step.Args, "from_x")
	fromY, okFY := readFloat(step.Args, "from_y")
	if okFX != okFY {
		return errors.New("move needs both from_x and from_y when either is set")
	}
	if !okFX {
		state, err := w.handler.Views.GetState(ctx, instanceID)
		if err != nil {
			return err
		}
		if state.HeroPosition == nil {
			return errors.New("move needs from_x/from_y until a claim anchors the hero")
		}
		fromX, fromY = state.HeroPosition.X, state.HeroPosition.Y
	}

	claim := transaction.ClaimMovement{
		FromX:     fromX,
		FromY:     fromY,
		ToX:       toX,
		ToY:       toY,
		StartedAt: w.clock,
		EndedAt:   w.clock.Add(time.Duration(seconds * float64(time.Second))),
	}
	if _, err := w.handler.SubmitClaim(ctx, instanceID, engine.Claim{Movement: &claim}); err != nil {
		return err
	}
	w.clock = claim.EndedAt
	return nil
}

func (r *Runner) runMineStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	blocks, ok := readInt(step.Args, "blocks")
	if !ok {
		return errors.New("mine needs a blocks count")
	}
	seconds, ok := readFloat(step.Args, "seconds")
	if !ok || seconds <= 0 {
		return errors.New("mine needs a positive seconds duration")
	}
	at, err := claimPosition(ctx, w, step.Args, instanceID)
	if err != nil {
		return err
	}

	claim := transaction.ClaimMining{
		FeatureRef:  requiredString(step.Args, "feature"),
		ResourceRef: optionalString(step.Args, "resource", ""),
		Blocks:      blocks,
		RareYield:   optionalInt(step.Args, "rare", 0),
		ToolRef:     optionalString(step.Args, "tool", ""),
		X:           at.X,
		Y:           at.Y,
		StartedAt:   w.clock,
		EndedAt:     w.clock.Add(time.Duration(seconds * float64(time.Second))),
	}
	if _, err := w.handler.SubmitClaim(ctx, instanceID, engine.Claim{Mining: &claim}); err != nil {
		return err
	}
	w.clock = claim.EndedAt
	return nil
}

func (r *Runner) runBuildStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	blocks, ok := readInt(step.Args, "blocks")
	if !ok {
		return errors.New("build needs a blocks count")
	}
	seconds, ok := readFloat(step.Args, "seconds")
	if !ok || seconds <= 0 {
		return errors.New("build needs a positive seconds duration")
	}
	at, err := claimPosition(ctx, w, step.Args, instanceID)
	if err != nil {
		return err
	}

	claim := transaction.ClaimBuilding{
		FeatureRef: requiredString(step.Args, "feature"),
		Blocks:     blocks,
		X:          at.X,
		Y:          at.Y,
		StartedAt:  w.clock,
		EndedAt:    w.clock.Add(time.Duration(seconds * float64(time.Second))),
	}
	if _, err := w.handler.SubmitClaim(ctx, instanceID, engine.Claim{Building: &claim}); err != nil {
		return err
	}
	w.clock = claim.EndedAt
	return nil
}

func (r *Runner) runToolWearStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	blocks, ok := readInt(step.Args, "blocks")
	if !ok {
		return errors.New("tool_wear needs a blocks count")
	}
	wear, ok := readFloat(step.Args, "wear")
	if !ok {
		return errors.New("tool_wear needs a wear value")
	}

	claim := transaction.ClaimToolWear{
		ToolRef: requiredString(step.Args, "tool"),
		Blocks:  blocks,
		Wear:    wear,
	}
	_, err = w.handler.SubmitClaim(ctx, instanceID, engine.Claim{ToolWear: &claim})
	return err
}

func (r *Runner) runStartBattleStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	req := engine.StartBattleRequest{
		EnemyRef: requiredString(step.Args, "enemy"),
		AllyRef:  optionalString(step.Args, "ally", ""),
		Hero: transaction.BattleProfile{
			Ref:      w.heroID,
			Health:   optionalInt(step.Args, "health", 30),
			Energy:   optionalInt(step.Args, "energy", 10),
			Attack:   optionalInt(step.Args, "attack", 6),
			Defense:  optionalInt(step.Args, "defense", 2),
			Speed:    optionalInt(step.Args, "speed", 4),
			Focus:    optionalInt(step.Args, "focus", 2),
			Affinity: optionalString(step.Args, "affinity", ""),
		},
	}
	result, err := w.handler.StartBattle(ctx, instanceID, req)
	if err != nil {
		return err
	}
	w.lastBattleID = result.Battle.BattleID
	return nil
}

func (r *Runner) runBattleTurnStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	decision, err := parseDecision(requiredString(step.Args, "decision"))
	if err != nil {
		return err
	}
	_, err = w.handler.ExecuteBattleTurn(ctx, instanceID, decision, optionalString(step.Args, "param", ""))
	return err
}

func (r *Runner) runEndBattleStep(ctx context.Context, w *scenarioWorld) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	_, err = w.handler.EndBattle(ctx, instanceID)
	return err
}

func (r *Runner) runAwardLootStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	_, err = w.handler.AwardLoot(ctx, instanceID, requiredString(step.Args, "character"))
	return err
}

func (r *Runner) runChangeStatStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	delta, ok := readInt(step.Args, "delta")
	if !ok {
		return errors.New("change_stat needs a delta")
	}
	change := transaction.HeroStatChanged{
		Stat:   requiredString(step.Args, "stat"),
		Delta:  int64(delta),
		Source: optionalString(step.Args, "source", "scenario"),
	}
	_, err = w.handler.ChangeHeroStat(ctx, instanceID, change)
	return err
}

func (r *Runner) runCheckFailuresStep(ctx context.Context, w *scenarioWorld, step Step) error {
	instanceID, err := w.instance()
	if err != nil {
		return err
	}
	at, err := optionalPosition(step.Args)
	if err != nil {
		return err
	}
	_, err = w.handler.CheckQuestFailures(ctx, instanceID, at)
	return err
}

func (r *Runner) runExpectStageStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	questRef := requiredString(step.Args, "quest")
	quest, ok := state.ActiveQuests[questRef]
	if !ok {
		return fmt.Errorf("quest %s is not active", questRef)
	}
	if want := requiredString(step.Args, "stage"); quest.StageRef != want {
		return fmt.Errorf("quest %s sits at stage %s, want %s", questRef, quest.StageRef, want)
	}
	return nil
}

func (r *Runner) runExpectObjectiveStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	questRef := requiredString(step.Args, "quest")
	quest, ok := state.ActiveQuests[questRef]
	if !ok {
		return fmt.Errorf("quest %s is not active", questRef)
	}
	stageRef := requiredString(step.Args, "stage")
	objectiveRef := requiredString(step.Args, "objective")
	if !quest.ObjectiveDone(stageRef, objectiveRef) {
		return fmt.Errorf("objective %s/%s of quest %s is not done", stageRef, objectiveRef, questRef)
	}
	return nil
}

func (r *Runner) runExpectQuestCompletedStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	questRef := requiredString(step.Args, "quest")
	if !state.CompletedQuests[questRef] {
		return fmt.Errorf("quest %s is not completed", questRef)
	}
	return nil
}

func (r *Runner) runExpectQuestFailedStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	questRef := requiredString(step.Args, "quest")
	quest, ok := state.ActiveQuests[questRef]
	if !ok {
		return fmt.Errorf("quest %s is not active", questRef)
	}
	if !quest.Failed {
		return fmt.Errorf("quest %s has not failed", questRef)
	}
	if want := optionalString(step.Args, "reason", ""); want != "" && !strings.Contains(quest.FailReason, want) {
		return fmt.Errorf("quest %s failed with %q, want %q", questRef, quest.FailReason, want)
	}
	return nil
}

func (r *Runner) runExpectQuestAbsentStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	questRef := requiredString(step.Args, "quest")
	if _, ok := state.ActiveQuests[questRef]; ok {
		return fmt.Errorf("quest %s is still active", questRef)
	}
	return nil
}

func (r *Runner) runExpectTriggerStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	triggerRef := requiredString(step.Args, "trigger")
	want := replay.TriggerStatus(requiredString(step.Args, "status"))
	if got := state.TriggerStatusOf(triggerRef); got != want {
		return fmt.Errorf("trigger %s is %s, want %s", triggerRef, got, want)
	}
	return nil
}

func (r *Runner) runExpectTokenStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	token := requiredString(step.Args, "token")
	if !state.Tokens[token] {
		return fmt.Errorf("token %s is not held", token)
	}
	return nil
}

func (r *Runner) runExpectReputationStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	faction := requiredString(step.Args, "faction")
	amount, ok := readInt(step.Args, "amount")
	if !ok {
		return errors.New("expect_reputation needs an amount")
	}
	if got := state.Reputation[faction]; got != int64(amount) {
		return fmt.Errorf("reputation with %s is %d, want %d", faction, got, amount)
	}
	return nil
}

func (r *Runner) runExpectBattleStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	battleID := optionalString(step.Args, "battle", w.lastBattleID)
	if battleID == "" {
		return errors.New("expect_battle needs a battle, and none was started")
	}
	summary, ok := state.Battles[battleID]
	if !ok {
		return fmt.Errorf("battle %s has no derived record", battleID)
	}
	if want := optionalString(step.Args, "outcome", ""); want != "" && summary.Outcome != want {
		return fmt.Errorf("battle %s ended %q, want %q", battleID, summary.Outcome, want)
	}
	if turns, ok := readInt(step.Args, "turns"); ok && summary.Turns != uint64(turns) {
		return fmt.Errorf("battle %s ran %d turns, want %d", battleID, summary.Turns, turns)
	}
	return nil
}

func (r *Runner) runExpectCharacterStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	characterRef := requiredString(step.Args, "character")
	character, ok := state.Characters[characterRef]
	if !ok {
		return fmt.Errorf("character %s has no derived record", characterRef)
	}
	if want, ok := readBool(step.Args, "spawned"); ok && character.Spawned != want {
		return fmt.Errorf("character %s spawned=%t, want %t", characterRef, character.Spawned, want)
	}
	if want, ok := readBool(step.Args, "alive"); ok && character.Alive != want {
		return fmt.Errorf("character %s alive=%t, want %t", characterRef, character.Alive, want)
	}
	if want, ok := readBool(step.Args, "looted"); ok && character.Looted != want {
		return fmt.Errorf("character %s looted=%t, want %t", characterRef, character.Looted, want)
	}
	return nil
}

func (r *Runner) runExpectPositionStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	x, okX := readFloat(step.Args, "x")
	y, okY := readFloat(step.Args, "y")
	if !okX || !okY {
		return errors.New("expect_position needs x and y")
	}
	if state.HeroPosition == nil {
		return errors.New("no claim has anchored the hero yet")
	}
	if state.HeroPosition.X != x || state.HeroPosition.Y != y {
		return fmt.Errorf("hero stands at (%.2f, %.2f), want (%.2f, %.2f)",
			state.HeroPosition.X, state.HeroPosition.Y, x, y)
	}
	return nil
}

func (r *Runner) runExpectSeqStep(ctx context.Context, w *scenarioWorld, step Step) error {
	state, err := r.derivedState(ctx, w)
	if err != nil {
		return err
	}
	value, ok := readInt(step.Args, "value")
	if !ok {
		return errors.New("expect_seq needs a value")
	}
	if state.LastSeq != uint64(value) {
		return fmt.Errorf("committed tail sits at seq %d, want %d", state.LastSeq, value)
	}
	return nil
}

func (r *Runner) derivedState(ctx context.Context, w *scenarioWorld) (*replay.DerivedState, error) {
	instanceID, err := w.instance()
	if err != nil {
		return nil, err
	}
	return w.handler.Views.GetState(ctx, instanceID)
}

func (w *scenarioWorld) instance() (string, error) {
	if w.instanceID == "" {
		return "", errors.New("no instance: open the scenario with an instance step")
	}
	return w.instanceID, nil
}

func parseDecision(raw string) (battle.Decision, error) {
	switch battle.Decision(raw) {
	case battle.DecisionAttack, battle.DecisionAbility, battle.DecisionGuard, battle.DecisionFlee:
		return battle.Decision(raw), nil
	default:
		return "", fmt.Errorf("unknown battle decision %q", raw)
	}
}

// claimPosition resolves where a positioned claim acts: explicit x/y
// when the step gives them, the hero's last anchored position
// otherwise.
func claimPosition(ctx context.Context, w *scenarioWorld, args map[string]any, instanceID string) (template.Position, error) {
	at, err := optionalPosition(args)
	if err != nil {
		return template.Position{}, err
	}
	if at != nil {
		return *at, nil
	}
	state, err := w.handler.Views.GetState(ctx, instanceID)
	if err != nil {
		return template.Position{}, err
	}
	if state.HeroPosition == nil {
		return template.Position{}, errors.New("claim needs x/y until a claim anchors the hero")
	}
	return *state.HeroPosition, nil
}

func optionalPosition(args map[string]any) (*template.Position, error) {
	x, okX := readFloat(args, "x")
	y, okY := readFloat(args, "y")
	if !okX && !okY {
		return nil, nil
	}
	if !okX || !okY {
		return nil, errors.New("a position needs both x and y")
	}
	return &template.Position{X: x, Y: y}, nil
}

func requiredString(args map[string]any, key string) string {
	value, ok := args[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if ok && text != "" {
		return text
	}
	return ""
}

func optionalString(args map[string]any, key, fallback string) string {
	value, ok := args[key]
	if !ok {
		return fallback
	}
	text, ok := value.(string)
	if ok && text != "" {
		return text
	}
	return fallback
}

func readInt(args map[string]any, key string) (int, bool) {
	value, ok := args[key]
	if !ok {
		return 0, false
	}
	switch typed := value.(type) {
	case int:
		return typed, true
	case float64:
		return int(typed), true
	default:
		return 0, false
	}
}

func optionalInt(args map[string]any, key string, fallback int) int {
	if value, ok := readInt(args, key); ok {
		return value
	}
	return fallback
}

func readFloat(args map[string]any, key string) (float64, bool) {
	value, ok := args[key]
	if !ok {
		return 0, false
	}
	switch typed := value.(type) {
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	default:
		return 0, false
	}
}

func readBool(args map[string]any, key string) (bool, bool) {
	value, ok := args[key]
	if !ok {
		return false, false
	}
	typed, ok := value.(bool)
	if !ok {
		return false, false
	}
	return typed, true
}
