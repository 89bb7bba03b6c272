package battle

import (
	"reflect"
	"testing"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// recordBattle plays a scripted fight and returns the records an engine
// would commit for it: the opening snapshot, one record per turn, and
// the closing record.
func recordBattle(t *testing.T, seed int64, withAlly bool) (*Battle, transaction.BattleStarted, []transaction.BattleTurn, transaction.BattleEnded) {
	t.Helper()

	started := transaction.BattleStarted{
		BattleID: "btl-rec",
		Seed:     seed,
		Hero:     heroProfile(),
		Enemy:    enemyProfile(),
	}
	if withAlly {
		ally := allyProfile()
		started.Ally = &ally
	}

	b := New(started.BattleID, started.Seed, started.Hero, started.Enemy, started.Ally)
	script := []Decision{DecisionAttack, DecisionAbility, DecisionAttack, DecisionGuard}

	var turns []transaction.BattleTurn
	step := 0
	for b.Outcome() == "" {
		if len(turns) >= 200 {
			t.Fatalf("recorded battle did not resolve within 200 turns")
		}
		var result TurnResult
		var err error
		if b.ActiveSide() == SideHero {
			result, err = b.ExecuteTurn(SideHero, script[step%len(script)], "")
			step++
		} else {
			result, err = b.ExecuteAutoTurn()
		}
		if err != nil {
			t.Fatalf("turn %d: %v", len(turns)+1, err)
		}
		turns = append(turns, transaction.BattleTurn{
			BattleID:     started.BattleID,
			Turn:         result.Turn,
			Side:         string(result.Side),
			Decision:     string(result.Decision),
			Param:        result.Param,
			TargetHealth: result.TargetHealth,
			ActorEnergy:  result.ActorEnergy,
		})
	}

	ended := transaction.BattleEnded{
		BattleID: started.BattleID,
		Outcome:  string(b.Outcome()),
		Turns:    b.Turn(),
	}
	return b, started, turns, ended
}

func cloneTurns(turns []transaction.BattleTurn) []transaction.BattleTurn {
	out := make([]transaction.BattleTurn, len(turns))
	copy(out, turns)
	return out
}

func TestReconstructReplaysCleanLog(t *testing.T) {
	live, started, turns, ended := recordBattle(t, 2024, false)

	replayed, err := Reconstruct(started, turns)
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	if replayed.Outcome() != live.Outcome() {
		t.Fatalf("replayed outcome = %q, want %q", replayed.Outcome(), live.Outcome())
	}
	if replayed.Turn() != live.Turn() {
		t.Fatalf("replayed turns = %d, want %d", replayed.Turn(), live.Turn())
	}
	if !reflect.DeepEqual(replayed.Hero(), live.Hero()) {
		t.Fatalf("replayed hero = %+v, want %+v", replayed.Hero(), live.Hero())
	}
	if !reflect.DeepEqual(replayed.Enemy(), live.Enemy()) {
		t.Fatalf("replayed enemy = %+v, want %+v", replayed.Enemy(), live.Enemy())
	}

	if err := VerifyEnded(replayed, ended); err != nil {
		t.Fatalf("VerifyEnded() error = %v", err)
	}
}

func TestReconstructReplaysAllyBattle(t *testing.T) {
	live, started, turns, ended := recordBattle(t, 4096, true)

	replayed, err := Reconstruct(started, turns)
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	liveAlly, ok := live.Ally()
	if !ok {
		t.Fatal("recorded battle lost its ally")
	}
	replayedAlly, ok := replayed.Ally()
	if !ok {
		t.Fatal("replayed battle lost its ally")
	}
	if !reflect.DeepEqual(replayedAlly, liveAlly) {
		t.Fatalf("replayed ally = %+v, want %+v", replayedAlly, liveAlly)
	}
	if err := VerifyEnded(replayed, ended); err != nil {
		t.Fatalf("VerifyEnded() error = %v", err)
	}
}

func TestReconstructDetectsTamperedCheckpoint(t *testing.T) {
	_, started, turns, _ := recordBattle(t, 2024, false)

	tampered := cloneTurns(turns)
	tampered[0].TargetHealth++

	_, err := Reconstruct(started, tampered)
	if !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("tampered checkpoint: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}
}

func TestReconstructDetectsGap(t *testing.T) {
	_, started, turns, _ := recordBattle(t, 2024, false)
	if len(turns) < 3 {
		t.Fatalf("recorded battle too short to cut: %d turns", len(turns))
	}

	gapped := append(cloneTurns(turns[:1]), turns[2:]...)

	_, err := Reconstruct(started, gapped)
	if !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("gapped log: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}
}

func TestReconstructDetectsOutOfOrderTurns(t *testing.T) {
	_, started, turns, _ := recordBattle(t, 2024, false)
	if len(turns) < 2 {
		t.Fatalf("recorded battle too short to swap: %d turns", len(turns))
	}

	swapped := cloneTurns(turns)
	swapped[0], swapped[1] = swapped[1], swapped[0]

	_, err := Reconstruct(started, swapped)
	if !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("out-of-order log: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}
}

func TestReconstructDetectsForeignTurn(t *testing.T) {
	_, started, turns, _ := recordBattle(t, 2024, false)

	foreign := cloneTurns(turns)
	foreign[0].BattleID = "btl-other"

	_, err := Reconstruct(started, foreign)
	if !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("foreign turn: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}
}

func TestReconstructDetectsTrailingTurns(t *testing.T) {
	_, started, turns, _ := recordBattle(t, 2024, false)

	trailing := cloneTurns(turns)
	extra := trailing[len(trailing)-1]
	extra.Turn++
	trailing = append(trailing, extra)

	_, err := Reconstruct(started, trailing)
	if !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("trailing turn: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}
}

func TestReconstructDetectsRewrittenHeroDecision(t *testing.T) {
	_, started, turns, _ := recordBattle(t, 2024, false)

	rewritten := cloneTurns(turns)
	rewritten[0].Decision = string(DecisionGuard)

	_, err := Reconstruct(started, rewritten)
	if !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("rewritten hero decision: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}
}

func TestReconstructDetectsUnplayableHeroDecision(t *testing.T) {
	_, started, turns, _ := recordBattle(t, 2024, false)

	rewritten := cloneTurns(turns)
	rewritten[0].Decision = "dance"

	_, err := Reconstruct(started, rewritten)
	if !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("unplayable decision: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}
}

func TestReconstructDetectsOpponentDecisionDivergence(t *testing.T) {
	_, started, turns, _ := recordBattle(t, 2024, false)

	diverged := cloneTurns(turns)
	flipped := false
	for i := range diverged {
		if Side(diverged[i].Side) == SideHero {
			continue
		}
		if Decision(diverged[i].Decision) == DecisionGuard {
			diverged[i].Decision = string(DecisionAttack)
		} else {
			diverged[i].Decision = string(DecisionGuard)
		}
		flipped = true
		break
	}
	if !flipped {
		t.Fatal("recorded battle had no opponent turns to rewrite")
	}

	_, err := Reconstruct(started, diverged)
	if !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("diverged opponent decision: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}
}

func TestVerifyEndedMismatches(t *testing.T) {
	_, started, turns, ended := recordBattle(t, 2024, false)
	replayed, err := Reconstruct(started, turns)
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}

	wrongOutcome := ended
	if wrongOutcome.Outcome == string(OutcomeVictory) {
		wrongOutcome.Outcome = string(OutcomeDefeat)
	} else {
		wrongOutcome.Outcome = string(OutcomeVictory)
	}
	if err := VerifyEnded(replayed, wrongOutcome); !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("wrong outcome: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}

	wrongTurns := ended
	wrongTurns.Turns++
	if err := VerifyEnded(replayed, wrongTurns); !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("wrong turn count: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}

	wrongBattle := ended
	wrongBattle.BattleID = "btl-other"
	if err := VerifyEnded(replayed, wrongBattle); !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("wrong battle id: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}
}

func TestVerifyEndedForfeit(t *testing.T) {
	_, started, turns, ended := recordBattle(t, 2024, false)

	// A forfeit closes the battle partway through: drop the resolving
	// suffix and end with a surrender record.
	cut := len(turns) / 2
	partial, err := Reconstruct(started, turns[:cut])
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	forfeit := transaction.BattleEnded{
		BattleID: started.BattleID,
		Outcome:  string(OutcomeForfeit),
		Turns:    uint64(cut),
	}
	if err := VerifyEnded(partial, forfeit); err != nil {
		t.Fatalf("VerifyEnded(forfeit mid-battle) error = %v", err)
	}

	// Forfeiting a battle the turns already resolved is corruption.
	full, err := Reconstruct(started, turns)
	if err != nil {
		t.Fatalf("Reconstruct() error = %v", err)
	}
	resolved := transaction.BattleEnded{
		BattleID: started.BattleID,
		Outcome:  string(OutcomeForfeit),
		Turns:    ended.Turns,
	}
	if err := VerifyEnded(full, resolved); !apperrors.HasCode(err, apperrors.CodeBattleReplayCorrupted) {
		t.Fatalf("forfeit after resolution: code = %v, want %v", apperrors.CodeOf(err), apperrors.CodeBattleReplayCorrupted)
	}
}
