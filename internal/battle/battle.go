// Package battle is the deterministic turn-based combat sub-engine.
//
// # Determinism
//
// Every formula that touches combat, damage, critical rolls, flee
// chances, and the opponent decision policy, is a pure function of the
// combatant state and a seeded generator. The generator is math/rand's
// default Source seeded with the battle seed; the Go 1 compatibility
// promise keeps its sequence stable across releases, so a committed
// battle log replays bit-identically years later. Each decision consumes
// a fixed number of draws in a fixed order, which makes the draw stream
// part of the battle's wire contract.
package battle

import (
	"fmt"
	"math/rand"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// Side identifies an acting combatant.
type Side string

const (
	SideHero  Side = "hero"
	SideAlly  Side = "ally"
	SideEnemy Side = "enemy"
)

// Decision is a turn action. Attack and ability consume two draws (damage
// die, critical check), flee consumes one, guard consumes none.
type Decision string

const (
	DecisionAttack  Decision = "attack"
	DecisionAbility Decision = "ability"
	DecisionGuard   Decision = "guard"
	DecisionFlee    Decision = "flee"
)

// Outcome is a terminal battle result, empty while the battle runs.
type Outcome string

const (
	OutcomeVictory Outcome = "victory"
	OutcomeDefeat  Outcome = "defeat"
	OutcomeFled    Outcome = "fled"
	// OutcomeForfeit is recorded by an explicit surrender, never produced
	// by turn resolution.
	OutcomeForfeit Outcome = "forfeit"
)

const (
	attackDieSides = 6
	// criticalBonus adds the die maximum on a critical, the same bonus
	// shape as rolling the die at full value again.
	criticalBonus      = attackDieSides
	abilityCost        = 10
	guardEnergyRestore = 5
	baseFleeChance     = 40
	fleeSpeedWeight    = 5
	maxCritChance      = 30
)

// Combatant is the live battle state of one profile.
type Combatant struct {
	Ref       string
	Side      Side
	Health    int
	MaxHealth int
	Energy    int
	MaxEnergy int
	Attack    int
	Defense   int
	Speed     int
	Focus     int
	Affinity  string
	Slots     map[string]string
	Guarding  bool
}

// Alive reports whether the combatant can still act.
func (c Combatant) Alive() bool {
	return c.Health > 0
}

// NewCombatant builds battle state from a snapshot profile. The snapshot
// values are both current and maximum; battles always open at full
// vitals.
func NewCombatant(side Side, profile transaction.BattleProfile) Combatant {
	slots := make(map[string]string, len(profile.Slots))
	for slot, item := range profile.Slots {
		slots[slot] = item
	}
	return Combatant{
		Ref:       profile.Ref,
		Side:      side,
		Health:    profile.Health,
		MaxHealth: profile.Health,
		Energy:    profile.Energy,
		MaxEnergy: profile.Energy,
		Attack:    profile.Attack,
		Defense:   profile.Defense,
		Speed:     profile.Speed,
		Focus:     profile.Focus,
		Affinity:  profile.Affinity,
		Slots:     slots,
	}
}

// TurnResult captures one executed turn, checkpoint values included. The
// fields map one-to-one onto the battle.turn transaction payload.
type TurnResult struct {
	Turn         uint64
	Side         Side
	Decision     Decision
	Param        string
	TargetHealth int
	ActorEnergy  int
	Outcome      Outcome
}

// Battle is a running combat encounter. The hero opens; allies and the
// enemy follow in a fixed rotation that skips absent or downed actors.
type Battle struct {
	id      string
	seed    int64
	rng     *rand.Rand
	hero    Combatant
	ally    *Combatant
	enemy   Combatant
	turn    uint64
	next    Side
	outcome Outcome
}

// New opens a battle from snapshot profiles. A nil ally means a duel.
func New(battleID string, seed int64, hero, enemy transaction.BattleProfile, ally *transaction.BattleProfile) *Battle {
	b := &Battle{
		id:    battleID,
		seed:  seed,
		rng:   rand.New(rand.NewSource(seed)),
		hero:  NewCombatant(SideHero, hero),
		enemy: NewCombatant(SideEnemy, enemy),
		next:  SideHero,
	}
	if ally != nil {
		companion := NewCombatant(SideAlly, *ally)
		b.ally = &companion
	}
	return b
}

// ID returns the battle identifier.
func (b *Battle) ID() string { return b.id }

// Seed returns the battle seed.
func (b *Battle) Seed() int64 { return b.seed }

// Turn returns the number of executed turns.
func (b *Battle) Turn() uint64 { return b.turn }

// Outcome returns the terminal outcome, empty while the battle runs.
func (b *Battle) Outcome() Outcome { return b.outcome }

// ActiveSide returns the side that must act next.
func (b *Battle) ActiveSide() Side { return b.next }

// Hero returns a copy of the hero's state.
func (b *Battle) Hero() Combatant { return b.hero }

// Enemy returns a copy of the enemy's state.
func (b *Battle) Enemy() Combatant { return b.enemy }

// Ally returns a copy of the companion's state, if one fights.
func (b *Battle) Ally() (Combatant, bool) {
	if b.ally == nil {
		return Combatant{}, false
	}
	return *b.ally, true
}

// ExecuteTurn applies a decision for the side whose turn it is. The hero
// side carries player decisions; ally and enemy turns normally come from
// ExecuteAutoTurn, but recorded decisions replay through here as well.
func (b *Battle) ExecuteTurn(side Side, decision Decision, param string) (TurnResult, error) {
	if b.outcome != "" {
		return TurnResult{}, apperrors.WithMetadata(apperrors.CodeBattleOver,
			"battle already resolved",
			map[string]string{"battle_id": b.id, "outcome": string(b.outcome)})
	}
	if side != b.next {
		return TurnResult{}, apperrors.WithMetadata(apperrors.CodeBattleWrongTurn,
			fmt.Sprintf("it is the %s turn", b.next),
			map[string]string{"battle_id": b.id, "expected": string(b.next), "got": string(side)})
	}
	return b.resolve(side, decision, param)
}

// ExecuteAutoTurn decides and executes the next non-hero turn using the
// seeded decision policy.
func (b *Battle) ExecuteAutoTurn() (TurnResult, error) {
	if b.outcome != "" {
		return TurnResult{}, apperrors.WithMetadata(apperrors.CodeBattleOver,
			"battle already resolved",
			map[string]string{"battle_id": b.id, "outcome": string(b.outcome)})
	}
	if b.next == SideHero {
		return TurnResult{}, apperrors.WithMetadata(apperrors.CodeBattleWrongTurn,
			"the hero turn requires a player decision",
			map[string]string{"battle_id": b.id})
	}
	actor := b.actor(b.next)
	decision := b.decideAuto(actor)
	return b.resolve(b.next, decision, "")
}

// decideAuto is the opponent policy: guard when badly hurt, spend energy
// on an ability when charged, attack otherwise. Exactly one draw per
// decision, so replay recomputes the identical choice.
func (b *Battle) decideAuto(actor *Combatant) Decision {
	draw := b.rng.Intn(100)
	switch {
	case actor.Health*4 < actor.MaxHealth && draw < 25:
		return DecisionGuard
	case actor.Energy >= abilityCost && draw < 60:
		return DecisionAbility
	default:
		return DecisionAttack
	}
}

func (b *Battle) resolve(side Side, decision Decision, param string) (TurnResult, error) {
	actor := b.actor(side)
	target := b.target(side)

	switch decision {
	case DecisionAttack:
		b.applyDamage(actor, target, actor.Attack)
	case DecisionAbility:
		if actor.Energy < abilityCost {
			return TurnResult{}, apperrors.WithMetadata(apperrors.CodeBattleDecisionInvalid,
				"not enough energy for an ability",
				map[string]string{"battle_id": b.id, "energy": fmt.Sprint(actor.Energy)})
		}
		actor.Energy -= abilityCost
		b.applyDamage(actor, target, actor.Attack+actor.Focus)
	case DecisionGuard:
		actor.Guarding = true
		actor.Energy += guardEnergyRestore
		if actor.Energy > actor.MaxEnergy {
			actor.Energy = actor.MaxEnergy
		}
	case DecisionFlee:
		if side != SideHero {
			return TurnResult{}, apperrors.WithMetadata(apperrors.CodeBattleDecisionInvalid,
				"only the hero can flee",
				map[string]string{"battle_id": b.id, "side": string(side)})
		}
		chance := baseFleeChance + (actor.Speed-b.enemy.Speed)*fleeSpeedWeight
		if chance < 5 {
			chance = 5
		}
		if chance > 95 {
			chance = 95
		}
		if b.rng.Intn(100) < chance {
			b.outcome = OutcomeFled
		}
	default:
		return TurnResult{}, apperrors.WithMetadata(apperrors.CodeBattleDecisionInvalid,
			fmt.Sprintf("unknown decision %q", decision),
			map[string]string{"battle_id": b.id, "decision": string(decision)})
	}

	if !b.enemy.Alive() {
		b.outcome = OutcomeVictory
	}
	if !b.hero.Alive() {
		b.outcome = OutcomeDefeat
	}

	b.turn++
	result := TurnResult{
		Turn:         b.turn,
		Side:         side,
		Decision:     decision,
		Param:        param,
		TargetHealth: target.Health,
		ActorEnergy:  actor.Energy,
		Outcome:      b.outcome,
	}
	if b.outcome == "" {
		b.advance(side)
	}
	return result, nil
}

// applyDamage rolls the damage die, checks the critical, and applies
// mitigation. Draw order is fixed: damage die first, critical check
// second.
func (b *Battle) applyDamage(actor, target *Combatant, power int) {
	roll := b.rng.Intn(attackDieSides) + 1
	crit := b.rng.Intn(100) < critChance(actor.Focus)

	total := power + roll
	if crit {
		total += criticalBonus
	}
	total -= target.Defense / 2
	if target.Guarding {
		total /= 2
		target.Guarding = false
	}
	if total < 1 {
		total = 1
	}
	target.Health -= total
	if target.Health < 0 {
		target.Health = 0
	}
}

// critChance derives the critical percentage from focus, capped so high
// focus never makes criticals routine.
func critChance(focus int) int {
	chance := 5 + focus/2
	if chance > maxCritChance {
		return maxCritChance
	}
	return chance
}

func (b *Battle) actor(side Side) *Combatant {
	switch side {
	case SideAlly:
		return b.ally
	case SideEnemy:
		return &b.enemy
	default:
		return &b.hero
	}
}

// target resolves who a side strikes: the enemy faces the hero, everyone
// else faces the enemy.
func (b *Battle) target(side Side) *Combatant {
	if side == SideEnemy {
		return &b.hero
	}
	return &b.enemy
}

// advance moves the rotation to the next present, standing side.
func (b *Battle) advance(from Side) {
	order := []Side{SideHero, SideAlly, SideEnemy}
	start := 0
	for i, side := range order {
		if side == from {
			start = i
			break
		}
	}
	for step := 1; step <= len(order); step++ {
		side := order[(start+step)%len(order)]
		if side == SideAlly && (b.ally == nil || !b.ally.Alive()) {
			continue
		}
		b.next = side
		return
	}
}
