package engine

import (
	"context"
	"fmt"

	"github.com/waymark-rpg/waymark/internal/battle"
	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/telemetry"
	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// StartBattleRequest opens combat against a spawned enemy. The hero
// profile is snapshotted by the caller from the authoritative hero
// record; AllyRef optionally brings a spawned companion along.
type StartBattleRequest struct {
	EnemyRef string
	AllyRef  string
	Hero     transaction.BattleProfile
}

// BattleState is a point-in-time view of a battle for callers.
type BattleState struct {
	BattleID   string
	Seed       int64
	Turn       uint64
	ActiveSide battle.Side
	Outcome    battle.Outcome
	Hero       battle.Combatant
	Enemy      battle.Combatant
	Ally       *battle.Combatant
}

// StartBattleResult reports an opened battle.
type StartBattleResult struct {
	Committed transaction.Transaction
	Battle    BattleState
}

// BattleTurnResult reports one hero decision plus the opponent turns it
// triggered, through to the next hero turn or the battle's resolution.
type BattleTurnResult struct {
	Committed []transaction.Transaction
	Played    []battle.TurnResult
	Battle    BattleState
}

// BattleEndResult reports a closed battle.
type BattleEndResult struct {
	Committed []transaction.Transaction
	Outcome   battle.Outcome
	Turns     uint64
}

// StartBattle snapshots both sides and the generated seed into the log
// and opens the encounter. One battle runs per instance at a time, and
// the enemy must be standing in the world.
func (h Handler) StartBattle(ctx context.Context, instanceID string, req StartBattleRequest) (StartBattleResult, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return StartBattleResult{}, err
	}
	if sc.state.ActiveBattleID != "" {
		return StartBattleResult{}, apperrors.WithMetadata(apperrors.CodeBattleAlreadyActive,
			fmt.Sprintf("battle %s is already running", sc.state.ActiveBattleID),
			map[string]string{"battle_id": sc.state.ActiveBattleID})
	}
	if req.Hero.Health <= 0 {
		return StartBattleResult{}, apperrors.New(apperrors.CodeBattleProfileInvalid,
			"hero profile needs positive health")
	}
	hero := req.Hero
	if hero.Ref == "" {
		hero.Ref = sc.rec.HeroID
	}
	enemy, err := standingCombatant(sc, req.EnemyRef)
	if err != nil {
		return StartBattleResult{}, err
	}
	var ally *transaction.BattleProfile
	if req.AllyRef != "" {
		companion, err := standingCombatant(sc, req.AllyRef)
		if err != nil {
			return StartBattleResult{}, err
		}
		ally = &companion
	}

	battleID, err := h.newID()
	if err != nil {
		return StartBattleResult{}, fmt.Errorf("new battle id: %w", err)
	}
	seed, err := h.newSeed()
	if err != nil {
		return StartBattleResult{}, fmt.Errorf("new battle seed: %w", err)
	}

	started := transaction.BattleStarted{
		BattleID: battleID,
		Seed:     seed,
		Hero:     hero,
		Enemy:    enemy,
		Ally:     ally,
	}
	committed, err := h.commitBatch(ctx, instanceID, []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindBattleStarted, started.Encode()),
	})
	if err != nil {
		return StartBattleResult{}, err
	}
	b := battle.New(battleID, seed, hero, enemy, ally)
	return StartBattleResult{Committed: committed[0], Battle: battleState(b)}, nil
}

// ExecuteBattleTurn plays the hero's decision on the active battle,
// then the seeded opponent turns until the hero acts again or the
// battle resolves. Every executed turn commits with its checkpoint; a
// resolving turn commits the closing record in the same batch, plus the
// enemy's defeat on victory.
func (h Handler) ExecuteBattleTurn(ctx context.Context, instanceID string, decision battle.Decision, param string) (BattleTurnResult, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return BattleTurnResult{}, err
	}
	b, err := h.activeBattle(ctx, sc)
	if err != nil {
		return BattleTurnResult{}, err
	}

	played := make([]battle.TurnResult, 0, 4)
	result, err := b.ExecuteTurn(battle.SideHero, decision, param)
	if err != nil {
		return BattleTurnResult{}, err
	}
	played = append(played, result)
	for b.Outcome() == "" && b.ActiveSide() != battle.SideHero {
		auto, err := b.ExecuteAutoTurn()
		if err != nil {
			return BattleTurnResult{}, err
		}
		played = append(played, auto)
	}

	batch := make([]transaction.Transaction, 0, len(played)+2)
	for _, r := range played {
		batch = append(batch, h.newTx(sc.rec.HeroID, transaction.KindBattleTurn, turnPayload(b.ID(), r).Encode()))
	}
	if outcome := b.Outcome(); outcome != "" {
		batch = append(batch, h.newTx(sc.rec.HeroID, transaction.KindBattleEnded, transaction.BattleEnded{
			BattleID: b.ID(),
			Outcome:  string(outcome),
			Turns:    b.Turn(),
		}.Encode()))
		if outcome == battle.OutcomeVictory {
			batch = append(batch, h.newTx(sc.rec.HeroID, transaction.KindCharacterDefeated, transaction.CharacterDefeated{
				CharacterRef: b.Enemy().Ref,
				BattleID:     b.ID(),
			}.Encode()))
		}
	}

	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return BattleTurnResult{}, err
	}
	if outcome := b.Outcome(); outcome != "" {
		h.emit(ctx, storage.TelemetryEvent{
			EventName:  "battle.ended",
			Severity:   string(telemetry.SeverityInfo),
			InstanceID: sc.rec.ID,
			HeroID:     sc.rec.HeroID,
			Attributes: map[string]any{
				"battle_id": b.ID(),
				"outcome":   string(outcome),
				"turns":     b.Turn(),
			},
		})
	}
	return BattleTurnResult{Committed: committed, Played: played, Battle: battleState(b)}, nil
}

// EndBattle closes the active battle. A battle whose turns never
// resolved it closes as a forfeit; otherwise the replayed outcome is
// recorded, with the enemy's defeat on victory.
func (h Handler) EndBattle(ctx context.Context, instanceID string) (BattleEndResult, error) {
	sc, err := h.load(ctx, instanceID)
	if err != nil {
		return BattleEndResult{}, err
	}
	b, err := h.activeBattle(ctx, sc)
	if err != nil {
		return BattleEndResult{}, err
	}

	outcome := b.Outcome()
	if outcome == "" {
		outcome = battle.OutcomeForfeit
	}
	batch := []transaction.Transaction{
		h.newTx(sc.rec.HeroID, transaction.KindBattleEnded, transaction.BattleEnded{
			BattleID: b.ID(),
			Outcome:  string(outcome),
			Turns:    b.Turn(),
		}.Encode()),
	}
	if outcome == battle.OutcomeVictory {
		batch = append(batch, h.newTx(sc.rec.HeroID, transaction.KindCharacterDefeated, transaction.CharacterDefeated{
			CharacterRef: b.Enemy().Ref,
			BattleID:     b.ID(),
		}.Encode()))
	}
	committed, err := h.commitBatch(ctx, instanceID, batch)
	if err != nil {
		return BattleEndResult{}, err
	}
	h.emit(ctx, storage.TelemetryEvent{
		EventName:  "battle.ended",
		Severity:   string(telemetry.SeverityInfo),
		InstanceID: sc.rec.ID,
		HeroID:     sc.rec.HeroID,
		Attributes: map[string]any{
			"battle_id": b.ID(),
			"outcome":   string(outcome),
			"turns":     b.Turn(),
		},
	})
	return BattleEndResult{Committed: committed, Outcome: outcome, Turns: b.Turn()}, nil
}

// activeBattle reconstructs the running battle from its committed
// records. Reconstruction replays every decision against the recorded
// seed, so a corrupted log surfaces here rather than playing on.
func (h Handler) activeBattle(ctx context.Context, sc instanceScope) (*battle.Battle, error) {
	if sc.state.ActiveBattleID == "" {
		return nil, apperrors.New(apperrors.CodeBattleNotActive, "no battle is running")
	}
	log, err := h.Journal.LoadLog(ctx, sc.rec.ID)
	if err != nil {
		return nil, fmt.Errorf("load log: %w", err)
	}
	started, turns, err := battleRecords(log, sc.state.ActiveBattleID)
	if err != nil {
		return nil, err
	}
	return battle.Reconstruct(started, turns)
}

// battleRecords filters one battle's opening and turn payloads out of a
// committed log.
func battleRecords(log []transaction.Transaction, battleID string) (transaction.BattleStarted, []transaction.BattleTurn, error) {
	var (
		started transaction.BattleStarted
		opened  bool
		turns   []transaction.BattleTurn
	)
	for _, tx := range log {
		switch tx.Kind {
		case transaction.KindBattleStarted:
			payload, err := transaction.DecodeBattleStarted(tx.Attrs)
			if err != nil {
				return transaction.BattleStarted{}, nil, corruptRecord(tx, err)
			}
			if payload.BattleID == battleID {
				started = payload
				opened = true
			}
		case transaction.KindBattleTurn:
			payload, err := transaction.DecodeBattleTurn(tx.Attrs)
			if err != nil {
				return transaction.BattleStarted{}, nil, corruptRecord(tx, err)
			}
			if payload.BattleID == battleID {
				turns = append(turns, payload)
			}
		}
	}
	if !opened {
		return transaction.BattleStarted{}, nil, apperrors.WithMetadata(apperrors.CodeLogCorrupted,
			fmt.Sprintf("battle %s has no opening record", battleID),
			map[string]string{"battle_id": battleID})
	}
	return started, turns, nil
}

func corruptRecord(tx transaction.Transaction, err error) error {
	return apperrors.WrapWithMetadata(apperrors.CodeLogCorrupted,
		fmt.Sprintf("undecodable %s transaction %s", tx.Kind, tx.ID),
		map[string]string{"transaction_id": tx.ID, "kind": string(tx.Kind)}, err)
}

// standingCombatant snapshots a template character's profile, requiring
// the character spawned and alive.
func standingCombatant(sc instanceScope, characterRef string) (transaction.BattleProfile, error) {
	def, ok := sc.tpl.Character(characterRef)
	if !ok {
		return transaction.BattleProfile{}, characterUnknown(characterRef)
	}
	cs := sc.state.Characters[characterRef]
	if !cs.Spawned {
		return transaction.BattleProfile{}, apperrors.WithMetadata(apperrors.CodeCharacterNotSpawned,
			fmt.Sprintf("character %q is not in the world", characterRef),
			map[string]string{"character_ref": characterRef})
	}
	if !cs.Alive {
		return transaction.BattleProfile{}, apperrors.WithMetadata(apperrors.CodeCharacterAlreadyDown,
			fmt.Sprintf("character %q is already down", characterRef),
			map[string]string{"character_ref": characterRef})
	}
	return profileFromTemplate(characterRef, def.Profile), nil
}

func profileFromTemplate(ref string, p template.CombatProfile) transaction.BattleProfile {
	slots := make(map[string]string, len(p.Slots))
	for slot, item := range p.Slots {
		slots[slot] = item
	}
	return transaction.BattleProfile{
		Ref:      ref,
		Health:   p.Health,
		Energy:   p.Energy,
		Attack:   p.Attack,
		Defense:  p.Defense,
		Speed:    p.Speed,
		Focus:    p.Focus,
		Affinity: p.Affinity,
		Slots:    slots,
	}
}

func turnPayload(battleID string, r battle.TurnResult) transaction.BattleTurn {
	return transaction.BattleTurn{
		BattleID:     battleID,
		Turn:         r.Turn,
		Side:         string(r.Side),
		Decision:     string(r.Decision),
		Param:        r.Param,
		TargetHealth: r.TargetHealth,
		ActorEnergy:  r.ActorEnergy,
	}
}

func battleState(b *battle.Battle) BattleState {
	state := BattleState{
		BattleID:   b.ID(),
		Seed:       b.Seed(),
		Turn:       b.Turn(),
		ActiveSide: b.ActiveSide(),
		Outcome:    b.Outcome(),
		Hero:       b.Hero(),
		Enemy:      b.Enemy(),
	}
	if ally, ok := b.Ally(); ok {
		state.Ally = &ally
	}
	return state
}
