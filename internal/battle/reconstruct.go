package battle

import (
	"fmt"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// Reconstruct rebuilds a battle from its committed opening snapshot and
// turn records, re-executing every decision against the recorded seed.
//
// Hero turns replay the recorded decision. Ally and enemy turns are
// recomputed from the seeded policy and compared against what the log
// says happened; a divergence means the log was not produced by this
// seed. After every turn the recomputed target health and actor energy
// are compared against the recorded checkpoints. Any mismatch, gap, or
// out-of-order turn reports the log as corrupted rather than guessing.
func Reconstruct(started transaction.BattleStarted, turns []transaction.BattleTurn) (*Battle, error) {
	b := New(started.BattleID, started.Seed, started.Hero, started.Enemy, started.Ally)

	for i, recorded := range turns {
		if recorded.BattleID != started.BattleID {
			return nil, corrupted(started.BattleID,
				fmt.Sprintf("turn %d belongs to battle %s", recorded.Turn, recorded.BattleID),
				map[string]string{"turn_battle_id": recorded.BattleID})
		}
		want := uint64(i) + 1
		if recorded.Turn != want {
			return nil, corrupted(started.BattleID,
				fmt.Sprintf("turn out of order: expected %d got %d", want, recorded.Turn),
				map[string]string{"expected": fmt.Sprint(want), "got": fmt.Sprint(recorded.Turn)})
		}
		if b.Outcome() != "" {
			return nil, corrupted(started.BattleID,
				fmt.Sprintf("turn %d recorded after the battle resolved", recorded.Turn),
				map[string]string{"outcome": string(b.Outcome())})
		}
		side := Side(recorded.Side)
		if side != b.ActiveSide() {
			return nil, corrupted(started.BattleID,
				fmt.Sprintf("turn %d acted by %s during the %s turn", recorded.Turn, side, b.ActiveSide()),
				map[string]string{"expected": string(b.ActiveSide()), "got": recorded.Side})
		}

		result, err := replayTurn(b, side, recorded)
		if err != nil {
			return nil, err
		}
		if result.TargetHealth != recorded.TargetHealth || result.ActorEnergy != recorded.ActorEnergy {
			return nil, corrupted(started.BattleID,
				fmt.Sprintf("turn %d checkpoint mismatch", recorded.Turn),
				map[string]string{
					"recorded_target_health": fmt.Sprint(recorded.TargetHealth),
					"replayed_target_health": fmt.Sprint(result.TargetHealth),
					"recorded_actor_energy":  fmt.Sprint(recorded.ActorEnergy),
					"replayed_actor_energy":  fmt.Sprint(result.ActorEnergy),
				})
		}
	}
	return b, nil
}

// VerifyEnded checks a closing record against the reconstructed battle.
// A forfeit closing is valid only for a battle whose turns never reached
// a terminal outcome.
func VerifyEnded(b *Battle, ended transaction.BattleEnded) error {
	if ended.BattleID != b.ID() {
		return corrupted(b.ID(),
			fmt.Sprintf("closing record belongs to battle %s", ended.BattleID),
			map[string]string{"ended_battle_id": ended.BattleID})
	}
	if ended.Turns != b.Turn() {
		return corrupted(b.ID(),
			fmt.Sprintf("recorded %d turns, replay executed %d", ended.Turns, b.Turn()),
			map[string]string{"recorded": fmt.Sprint(ended.Turns), "replayed": fmt.Sprint(b.Turn())})
	}
	if Outcome(ended.Outcome) == OutcomeForfeit {
		if b.Outcome() != "" {
			return corrupted(b.ID(),
				fmt.Sprintf("forfeit recorded after the battle resolved %q", b.Outcome()),
				map[string]string{"replayed": string(b.Outcome())})
		}
		return nil
	}
	if Outcome(ended.Outcome) != b.Outcome() {
		return corrupted(b.ID(),
			fmt.Sprintf("recorded outcome %q, replay produced %q", ended.Outcome, b.Outcome()),
			map[string]string{"recorded": ended.Outcome, "replayed": string(b.Outcome())})
	}
	return nil
}

func replayTurn(b *Battle, side Side, recorded transaction.BattleTurn) (TurnResult, error) {
	if side == SideHero {
		result, err := b.ExecuteTurn(side, Decision(recorded.Decision), recorded.Param)
		if err != nil {
			return TurnResult{}, corrupted(b.ID(),
				fmt.Sprintf("turn %d replays an unplayable decision %q", recorded.Turn, recorded.Decision),
				map[string]string{"decision": recorded.Decision, "cause": err.Error()})
		}
		return result, nil
	}

	result, err := b.ExecuteAutoTurn()
	if err != nil {
		return TurnResult{}, corrupted(b.ID(),
			fmt.Sprintf("turn %d cannot be recomputed", recorded.Turn),
			map[string]string{"cause": err.Error()})
	}
	if result.Decision != Decision(recorded.Decision) {
		return TurnResult{}, corrupted(b.ID(),
			fmt.Sprintf("turn %d decision diverged: recorded %q, seed yields %q", recorded.Turn, recorded.Decision, result.Decision),
			map[string]string{"recorded": recorded.Decision, "replayed": string(result.Decision)})
	}
	return result, nil
}

func corrupted(battleID, msg string, metadata map[string]string) error {
	md := map[string]string{"battle_id": battleID}
	for k, v := range metadata {
		md[k] = v
	}
	return apperrors.WithMetadata(apperrors.CodeBattleReplayCorrupted, msg, md)
}
