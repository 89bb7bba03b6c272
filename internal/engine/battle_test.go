package engine

import (
	"context"
	"reflect"
	"testing"

	"github.com/waymark-rpg/waymark/internal/battle"
	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// battleHero is sturdy enough that a couple of rounds never resolves
// the battle on their own.
func battleHero() transaction.BattleProfile {
	return transaction.BattleProfile{Health: 100, Energy: 20, Attack: 6, Defense: 2, Speed: 5, Focus: 3}
}

func startDuel(t *testing.T, f *engineFixture) StartBattleResult {
	t.Helper()
	ctx := context.Background()
	if _, err := f.handler.SpawnCharacter(ctx, f.instanceID, "c-bandit", nil); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	res, err := f.handler.StartBattle(ctx, f.instanceID, StartBattleRequest{EnemyRef: "c-bandit", Hero: battleHero()})
	if err != nil {
		t.Fatalf("start battle: %v", err)
	}
	return res
}

func TestStartBattle(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	res := startDuel(t, f)
	if res.Committed.Kind != transaction.KindBattleStarted {
		t.Fatalf("kind = %s, want %s", res.Committed.Kind, transaction.KindBattleStarted)
	}
	payload, err := transaction.DecodeBattleStarted(res.Committed.Attrs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Seed != 77 {
		t.Fatalf("seed = %d, want the fixture seed 77", payload.Seed)
	}
	if payload.Hero.Ref != "hero-9" {
		t.Fatalf("hero ref = %q, want the instance hero", payload.Hero.Ref)
	}
	if payload.Enemy.Ref != "c-bandit" || payload.Ally != nil {
		t.Fatalf("sides = %+v", payload)
	}
	if res.Battle.BattleID == "" || res.Battle.ActiveSide != battle.SideHero || res.Battle.Outcome != "" {
		t.Fatalf("battle state = %+v", res.Battle)
	}
	if got := f.state(t).ActiveBattleID; got != res.Battle.BattleID {
		t.Fatalf("active battle = %q, want %q", got, res.Battle.BattleID)
	}

	_, err = f.handler.StartBattle(ctx, f.instanceID, StartBattleRequest{EnemyRef: "c-bandit", Hero: battleHero()})
	if !apperrors.HasCode(err, apperrors.CodeBattleAlreadyActive) {
		t.Fatalf("second start error = %v, want %s", err, apperrors.CodeBattleAlreadyActive)
	}
}

func TestStartBattleValidation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.handler.StartBattle(ctx, f.instanceID, StartBattleRequest{EnemyRef: "c-ghost", Hero: battleHero()})
	if !apperrors.HasCode(err, apperrors.CodeCharacterUnknown) {
		t.Fatalf("unknown enemy error = %v, want %s", err, apperrors.CodeCharacterUnknown)
	}

	_, err = f.handler.StartBattle(ctx, f.instanceID, StartBattleRequest{EnemyRef: "c-bandit", Hero: battleHero()})
	if !apperrors.HasCode(err, apperrors.CodeCharacterNotSpawned) {
		t.Fatalf("unspawned enemy error = %v, want %s", err, apperrors.CodeCharacterNotSpawned)
	}

	if _, err := f.handler.SpawnCharacter(ctx, f.instanceID, "c-bandit", nil); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	f.defeatCharacter(t, "c-bandit")
	_, err = f.handler.StartBattle(ctx, f.instanceID, StartBattleRequest{EnemyRef: "c-bandit", Hero: battleHero()})
	if !apperrors.HasCode(err, apperrors.CodeCharacterAlreadyDown) {
		t.Fatalf("downed enemy error = %v, want %s", err, apperrors.CodeCharacterAlreadyDown)
	}

	if _, err := f.handler.SpawnCharacter(ctx, f.instanceID, "c-bandit", nil); err != nil {
		t.Fatalf("respawn: %v", err)
	}
	_, err = f.handler.StartBattle(ctx, f.instanceID, StartBattleRequest{EnemyRef: "c-bandit"})
	if !apperrors.HasCode(err, apperrors.CodeBattleProfileInvalid) {
		t.Fatalf("empty hero error = %v, want %s", err, apperrors.CodeBattleProfileInvalid)
	}
}

func TestStartBattleWithAlly(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	for _, ref := range []string{"c-bandit", "c-keeper"} {
		if _, err := f.handler.SpawnCharacter(ctx, f.instanceID, ref, nil); err != nil {
			t.Fatalf("spawn %s: %v", ref, err)
		}
	}
	res, err := f.handler.StartBattle(ctx, f.instanceID, StartBattleRequest{
		EnemyRef: "c-bandit",
		AllyRef:  "c-keeper",
		Hero:     battleHero(),
	})
	if err != nil {
		t.Fatalf("start battle: %v", err)
	}
	payload, err := transaction.DecodeBattleStarted(res.Committed.Attrs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Ally == nil || payload.Ally.Ref != "c-keeper" {
		t.Fatalf("ally payload = %+v, want c-keeper", payload.Ally)
	}
	if res.Battle.Ally == nil {
		t.Fatal("battle state has no ally")
	}
}

func TestExecuteBattleTurnGuard(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	startDuel(t, f)
	before := len(f.committedLog(t))

	res, err := f.handler.ExecuteBattleTurn(ctx, f.instanceID, battle.DecisionGuard, "")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if len(res.Played) != 2 {
		t.Fatalf("played %d turns, want hero and enemy", len(res.Played))
	}
	if res.Played[0].Turn != 1 || res.Played[0].Side != battle.SideHero || res.Played[0].Decision != battle.DecisionGuard {
		t.Fatalf("hero turn = %+v", res.Played[0])
	}
	if res.Played[1].Side != battle.SideEnemy {
		t.Fatalf("second turn side = %s, want enemy", res.Played[1].Side)
	}
	if res.Battle.ActiveSide != battle.SideHero || res.Battle.Outcome != "" {
		t.Fatalf("battle state = %+v, want hero to act next", res.Battle)
	}
	if got := len(f.committedLog(t)); got != before+2 {
		t.Fatalf("log grew by %d, want 2 turn records", got-before)
	}

	// The next round reconstructs the battle from the log.
	res, err = f.handler.ExecuteBattleTurn(ctx, f.instanceID, battle.DecisionGuard, "")
	if err != nil {
		t.Fatalf("second round: %v", err)
	}
	if res.Played[0].Turn != 3 {
		t.Fatalf("second round opens at turn %d, want 3", res.Played[0].Turn)
	}
}

func TestExecuteBattleTurnAllyRotation(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	for _, ref := range []string{"c-bandit", "c-keeper"} {
		if _, err := f.handler.SpawnCharacter(ctx, f.instanceID, ref, nil); err != nil {
			t.Fatalf("spawn %s: %v", ref, err)
		}
	}
	if _, err := f.handler.StartBattle(ctx, f.instanceID, StartBattleRequest{
		EnemyRef: "c-bandit",
		AllyRef:  "c-keeper",
		Hero:     battleHero(),
	}); err != nil {
		t.Fatalf("start battle: %v", err)
	}

	res, err := f.handler.ExecuteBattleTurn(ctx, f.instanceID, battle.DecisionGuard, "")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if len(res.Played) != 3 {
		t.Fatalf("played %d turns, want hero, ally and enemy", len(res.Played))
	}
	sides := []battle.Side{res.Played[0].Side, res.Played[1].Side, res.Played[2].Side}
	want := []battle.Side{battle.SideHero, battle.SideAlly, battle.SideEnemy}
	if !reflect.DeepEqual(sides, want) {
		t.Fatalf("rotation = %v, want %v", sides, want)
	}
}

func TestExecuteBattleTurnDeterministic(t *testing.T) {
	ctx := context.Background()
	run := func() BattleTurnResult {
		f := newEngineFixture(t)
		startDuel(t, f)
		res, err := f.handler.ExecuteBattleTurn(ctx, f.instanceID, battle.DecisionAttack, "")
		if err != nil {
			t.Fatalf("turn: %v", err)
		}
		return res
	}

	first, second := run(), run()
	if !reflect.DeepEqual(first.Played, second.Played) {
		t.Fatalf("same seed diverged:\n%+v\n%+v", first.Played, second.Played)
	}
}

func TestExecuteBattleTurnRequiresActiveBattle(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.handler.ExecuteBattleTurn(context.Background(), f.instanceID, battle.DecisionGuard, "")
	if !apperrors.HasCode(err, apperrors.CodeBattleNotActive) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeBattleNotActive)
	}
}

func TestExecuteBattleTurnInvalidDecision(t *testing.T) {
	f := newEngineFixture(t)
	startDuel(t, f)
	before := len(f.committedLog(t))

	_, err := f.handler.ExecuteBattleTurn(context.Background(), f.instanceID, battle.Decision("dance"), "")
	if !apperrors.HasCode(err, apperrors.CodeBattleDecisionInvalid) {
		t.Fatalf("error = %v, want %s", err, apperrors.CodeBattleDecisionInvalid)
	}
	if got := len(f.committedLog(t)); got != before {
		t.Fatalf("rejected decision appended %d records", got-before)
	}
}

func TestEndBattleForfeit(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	started := startDuel(t, f)

	if _, err := f.handler.ExecuteBattleTurn(ctx, f.instanceID, battle.DecisionGuard, ""); err != nil {
		t.Fatalf("turn: %v", err)
	}

	res, err := f.handler.EndBattle(ctx, f.instanceID)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if res.Outcome != battle.OutcomeForfeit {
		t.Fatalf("outcome = %s, want %s", res.Outcome, battle.OutcomeForfeit)
	}
	if res.Turns != 2 {
		t.Fatalf("turns = %d, want 2", res.Turns)
	}
	if len(res.Committed) != 1 || res.Committed[0].Kind != transaction.KindBattleEnded {
		t.Fatalf("committed = %+v, want one battle.ended", res.Committed)
	}
	payload, err := transaction.DecodeBattleEnded(res.Committed[0].Attrs)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.BattleID != started.Battle.BattleID || payload.Outcome != string(battle.OutcomeForfeit) {
		t.Fatalf("ended payload = %+v", payload)
	}
	if got := f.state(t).ActiveBattleID; got != "" {
		t.Fatalf("active battle = %q after forfeit, want none", got)
	}

	if _, err := f.handler.EndBattle(ctx, f.instanceID); !apperrors.HasCode(err, apperrors.CodeBattleNotActive) {
		t.Fatalf("second end error = %v, want %s", err, apperrors.CodeBattleNotActive)
	}
}
