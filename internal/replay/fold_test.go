package replay

import (
	"fmt"
	"testing"
	"time"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
	"github.com/waymark-rpg/waymark/internal/trigger"
)

var foldBase = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func foldTemplate() *template.Template {
	return &template.Template{
		CampaignRef: "camp-ember",
		Name:        "Embers of the Road",
		Characters: map[string]template.Character{
			"c-warden": {
				Ref:        "c-warden",
				Name:       "Road Warden",
				FactionRef: "fac-wardens",
				Spawn:      template.Position{X: 12, Y: 40},
				Traits:     []string{"guardian"},
				Inventory:  []string{"rusted-key", "ember-charm"},
			},
		},
		Features: map[string]template.Feature{
			"f-vein": {Ref: "f-vein", Kind: "ore_vein", ResourceRef: "iron", ExpectedRareRate: 0.05},
		},
		Dialogues: map[string]template.Dialogue{
			"d-warden": {
				Ref:          "d-warden",
				CharacterRef: "c-warden",
				EntryNode:    "n-greet",
				Nodes: map[string]template.DialogueNode{
					"n-greet": {Ref: "n-greet", Next: []string{"n-task"}},
					"n-task":  {Ref: "n-task"},
				},
			},
		},
		Factions: map[string]template.Faction{
			"fac-wardens": {Ref: "fac-wardens", Name: "The Wardens"},
		},
		Quests: map[string]template.Quest{
			"q-ember": {
				Ref:  "q-ember",
				Name: "Embers",
				Stages: []template.Stage{
					{Ref: "s-scout", Objectives: []string{"o-scout", "o-signal"}, Next: "s-cross"},
					{Ref: "s-cross", Exclusive: true, Branches: []template.Branch{
						{Ref: "b-west", Next: "s-ward"},
						{Ref: "b-east", Next: "s-ford"},
					}},
					{Ref: "s-ward", Objectives: []string{"o-ward"}},
					{Ref: "s-ford", Objectives: []string{"o-ford"}},
				},
			},
			"q-any": {
				Ref: "q-any",
				Stages: []template.Stage{
					{Ref: "s-pick", Objectives: []string{"o-left", "o-right"}, AnyObjective: true, Next: "s-done"},
					{Ref: "s-done"},
				},
			},
		},
		Patterns: map[string]template.TriggerPattern{
			"ember-road": {
				Ref:                "ember-road",
				EnforceProgression: true,
				Members: []template.TriggerDef{
					{Ref: "t-shrine", Position: template.Position{X: 50, Y: 0}, Radius: 50},
					{Ref: "t-gate", Position: template.Position{X: 0, Y: 0}, Radius: 100},
				},
			},
		},
	}
}

func foldTriggers(t *testing.T, tpl *template.Template) trigger.Set {
	t.Helper()
	expanded, err := trigger.Expand(tpl, "ember-road", "inst-1")
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	return trigger.NewSet(expanded)
}

func committedTx(seq uint64, kind transaction.Kind, attrs map[string]string) transaction.Transaction {
	return transaction.Transaction{
		ID:          fmt.Sprintf("tx-%03d", seq),
		InstanceID:  "inst-1",
		Kind:        kind,
		Status:      transaction.StatusCommitted,
		HeroID:      "hero-1",
		Seq:         seq,
		OccurredAt:  foldBase.Add(time.Duration(seq) * time.Minute),
		CanonicalAt: foldBase.Add(time.Duration(seq) * time.Minute),
		Attrs:       attrs,
	}
}

func foldAll(t *testing.T, engine *Engine, tpl *template.Template, triggers trigger.Set, state *DerivedState, txs ...transaction.Transaction) {
	t.Helper()
	for _, tx := range txs {
		if err := engine.Fold(tpl, triggers, state, tx); err != nil {
			t.Fatalf("Fold(%s seq %d) error = %v", tx.Kind, tx.Seq, err)
		}
	}
}

func TestFoldDispatchCoversAllKinds(t *testing.T) {
	dispatched := map[transaction.Kind]bool{}
	for _, kind := range NewEngine().DispatchedKinds() {
		dispatched[kind] = true
	}
	for _, kind := range transaction.Kinds() {
		if !dispatched[kind] {
			t.Errorf("kind %s has no fold arm", kind)
		}
	}
	if got, want := len(dispatched), len(transaction.Kinds()); got != want {
		t.Errorf("dispatched kinds = %d, want %d", got, want)
	}
}

func TestFoldRejectsSequenceGap(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	first := committedTx(1, transaction.KindFeatureInteracted, transaction.FeatureInteracted{FeatureRef: "f-vein"}.Encode())
	if err := engine.Fold(tpl, triggers, state, first); err != nil {
		t.Fatalf("Fold(seq 1) error = %v", err)
	}
	skipped := committedTx(3, transaction.KindFeatureInteracted, transaction.FeatureInteracted{FeatureRef: "f-vein"}.Encode())
	err := engine.Fold(tpl, triggers, state, skipped)
	if !apperrors.HasCode(err, apperrors.CodeLogCorrupted) {
		t.Fatalf("Fold(seq 3 after 1) error = %v, want code %s", err, apperrors.CodeLogCorrupted)
	}
	if state.LastSeq != 1 {
		t.Fatalf("LastSeq after rejected fold = %d, want 1", state.LastSeq)
	}
}

func TestFoldRejectsUncommittedTransaction(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	tx := committedTx(1, transaction.KindFeatureInteracted, transaction.FeatureInteracted{FeatureRef: "f-vein"}.Encode())
	tx.Status = transaction.StatusPending
	err := engine.Fold(tpl, triggers, state, tx)
	if !apperrors.HasCode(err, apperrors.CodeLogCorrupted) {
		t.Fatalf("Fold(pending) error = %v, want code %s", err, apperrors.CodeLogCorrupted)
	}
}

func TestFoldRejectsUnknownKind(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	tx := committedTx(1, transaction.Kind("mystery.kind"), map[string]string{})
	err := engine.Fold(tpl, triggers, state, tx)
	if !apperrors.HasCode(err, apperrors.CodeLogCorrupted) {
		t.Fatalf("Fold(unknown kind) error = %v, want code %s", err, apperrors.CodeLogCorrupted)
	}
}

func TestFoldCharacterLifecycle(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindCharacterSpawned, transaction.CharacterSpawned{CharacterRef: "c-warden", X: 12, Y: 40}.Encode()),
	)
	spawned := state.Characters["c-warden"]
	if !spawned.Spawned || !spawned.Alive {
		t.Fatalf("after spawn: Spawned=%v Alive=%v, want true/true", spawned.Spawned, spawned.Alive)
	}
	if len(spawned.Inventory) != 2 || spawned.Inventory[0] != "rusted-key" {
		t.Fatalf("spawn inventory = %v, want template inventory", spawned.Inventory)
	}
	if spawned.Position.X != 12 || spawned.Position.Y != 40 {
		t.Fatalf("spawn position = %+v, want {12 40}", spawned.Position)
	}

	foldAll(t, engine, tpl, triggers, state,
		committedTx(2, transaction.KindCharacterDefeated, transaction.CharacterDefeated{CharacterRef: "c-warden", BattleID: "b-1"}.Encode()),
	)
	defeated := state.Characters["c-warden"]
	if defeated.Alive {
		t.Fatal("after defeat: Alive = true, want false")
	}
	if defeated.Looted {
		t.Fatal("after defeat: Looted = true, want false")
	}

	foldAll(t, engine, tpl, triggers, state,
		committedTx(3, transaction.KindCharacterLooted, transaction.CharacterLooted{CharacterRef: "c-warden", ItemRefs: []string{"rusted-key"}}.Encode()),
	)
	looted := state.Characters["c-warden"]
	if !looted.Looted {
		t.Fatal("after loot: Looted = false, want true")
	}
	if looted.Inventory != nil {
		t.Fatalf("after loot: Inventory = %v, want nil", looted.Inventory)
	}
}

func TestFoldSpawnOutsideTemplateGetsDefaults(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindCharacterSpawned, transaction.CharacterSpawned{CharacterRef: "c-stranger", X: 1, Y: 2}.Encode()),
	)
	got := state.Characters["c-stranger"]
	if !got.Spawned || !got.Alive {
		t.Fatalf("Spawned=%v Alive=%v, want true/true", got.Spawned, got.Alive)
	}
	if len(got.Inventory) != 0 || len(got.Traits) != 0 {
		t.Fatalf("inventory=%v traits=%v, want empty", got.Inventory, got.Traits)
	}
}

func TestFoldFeatureInteractionCounters(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindFeatureInteracted, transaction.FeatureInteracted{FeatureRef: "f-vein"}.Encode()),
		committedTx(2, transaction.KindFeatureInteracted, transaction.FeatureInteracted{FeatureRef: "f-vein"}.Encode()),
	)
	got := state.Features["f-vein"]
	if got.InteractionCount != 2 {
		t.Fatalf("InteractionCount = %d, want 2", got.InteractionCount)
	}
	if want := foldBase.Add(2 * time.Minute); !got.LastInteraction.Equal(want) {
		t.Fatalf("LastInteraction = %v, want %v", got.LastInteraction, want)
	}
}

func TestFoldDialogueVisits(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindDialogueVisited, transaction.DialogueVisited{DialogueRef: "d-warden", NodeRef: "n-greet"}.Encode()),
		committedTx(2, transaction.KindDialogueVisited, transaction.DialogueVisited{DialogueRef: "d-warden", NodeRef: "n-task"}.Encode()),
	)
	got := state.Dialogues["d-warden"]
	if !got.NodesVisited["n-greet"] || !got.NodesVisited["n-task"] {
		t.Fatalf("NodesVisited = %v, want both nodes", got.NodesVisited)
	}
	if got.LastNode != "n-task" {
		t.Fatalf("LastNode = %q, want n-task", got.LastNode)
	}
}

func TestFoldQuestLinearAdvance(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindQuestAccepted, transaction.QuestAccepted{QuestRef: "q-ember"}.Encode()),
		committedTx(2, transaction.KindQuestObjectiveCompleted, transaction.QuestObjectiveCompleted{QuestRef: "q-ember", StageRef: "s-scout", ObjectiveRef: "o-scout"}.Encode()),
	)
	if got := state.ActiveQuests["q-ember"].StageRef; got != "s-scout" {
		t.Fatalf("stage after one of two objectives = %q, want s-scout", got)
	}

	foldAll(t, engine, tpl, triggers, state,
		committedTx(3, transaction.KindQuestObjectiveCompleted, transaction.QuestObjectiveCompleted{QuestRef: "q-ember", StageRef: "s-scout", ObjectiveRef: "o-signal"}.Encode()),
	)
	if got := state.ActiveQuests["q-ember"].StageRef; got != "s-cross" {
		t.Fatalf("stage after both objectives = %q, want s-cross", got)
	}
	if !state.ActiveQuests["q-ember"].AcceptedAt.Equal(foldBase.Add(time.Minute)) {
		t.Fatalf("AcceptedAt = %v, want accept canonical time", state.ActiveQuests["q-ember"].AcceptedAt)
	}
}

func TestFoldQuestAnyObjectiveAdvances(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindQuestAccepted, transaction.QuestAccepted{QuestRef: "q-any"}.Encode()),
		committedTx(2, transaction.KindQuestObjectiveCompleted, transaction.QuestObjectiveCompleted{QuestRef: "q-any", StageRef: "s-pick", ObjectiveRef: "o-right"}.Encode()),
	)
	if got := state.ActiveQuests["q-any"].StageRef; got != "s-done" {
		t.Fatalf("stage after one OR objective = %q, want s-done", got)
	}
}

func TestFoldQuestBranchExclusiveKeepsFirstChoice(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindQuestAccepted, transaction.QuestAccepted{QuestRef: "q-ember"}.Encode()),
		committedTx(2, transaction.KindQuestObjectiveCompleted, transaction.QuestObjectiveCompleted{QuestRef: "q-ember", StageRef: "s-scout", ObjectiveRef: "o-scout"}.Encode()),
		committedTx(3, transaction.KindQuestObjectiveCompleted, transaction.QuestObjectiveCompleted{QuestRef: "q-ember", StageRef: "s-scout", ObjectiveRef: "o-signal"}.Encode()),
		committedTx(4, transaction.KindQuestBranchChosen, transaction.QuestBranchChosen{QuestRef: "q-ember", StageRef: "s-cross", BranchRef: "b-west"}.Encode()),
	)
	if got := state.ActiveQuests["q-ember"].StageRef; got != "s-ward" {
		t.Fatalf("stage after branch choice = %q, want s-ward", got)
	}

	// A second, conflicting choice on an exclusive stage is a historical
	// record only; the fold keeps the first.
	foldAll(t, engine, tpl, triggers, state,
		committedTx(5, transaction.KindQuestBranchChosen, transaction.QuestBranchChosen{QuestRef: "q-ember", StageRef: "s-cross", BranchRef: "b-east"}.Encode()),
	)
	entry := state.ActiveQuests["q-ember"]
	if got := entry.ChosenBranches["s-cross"]; got != "b-west" {
		t.Fatalf("chosen branch = %q, want b-west", got)
	}
	if entry.StageRef != "s-ward" {
		t.Fatalf("stage after conflicting choice = %q, want s-ward", entry.StageRef)
	}
	if state.LastSeq != 5 {
		t.Fatalf("LastSeq = %d, want 5 (conflicting choice still consumes its slot)", state.LastSeq)
	}
}

func TestFoldQuestCompleteAndAbandon(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindQuestAccepted, transaction.QuestAccepted{QuestRef: "q-ember"}.Encode()),
		committedTx(2, transaction.KindQuestCompleted, transaction.QuestCompleted{QuestRef: "q-ember"}.Encode()),
		committedTx(3, transaction.KindQuestAccepted, transaction.QuestAccepted{QuestRef: "q-any"}.Encode()),
		committedTx(4, transaction.KindQuestAbandoned, transaction.QuestAbandoned{QuestRef: "q-any"}.Encode()),
	)
	if _, active := state.ActiveQuests["q-ember"]; active {
		t.Fatal("completed quest still active")
	}
	if !state.CompletedQuests["q-ember"] {
		t.Fatal("completed quest not recorded")
	}
	if _, active := state.ActiveQuests["q-any"]; active {
		t.Fatal("abandoned quest still active")
	}
	if state.CompletedQuests["q-any"] {
		t.Fatal("abandoned quest recorded as completed")
	}
}

func TestFoldQuestFailedStaysActive(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindQuestAccepted, transaction.QuestAccepted{QuestRef: "q-ember"}.Encode()),
		committedTx(2, transaction.KindQuestFailed, transaction.QuestFailed{QuestRef: "q-ember", Reason: "time_limit"}.Encode()),
	)
	entry, active := state.ActiveQuests["q-ember"]
	if !active {
		t.Fatal("failed quest dropped from active set")
	}
	if !entry.Failed || entry.FailReason != "time_limit" {
		t.Fatalf("Failed=%v FailReason=%q, want true/time_limit", entry.Failed, entry.FailReason)
	}
}

func TestFoldTriggerChainUnlocks(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	// Widest radius expands first and gates the narrower one.
	if got := state.TriggerStatusOf("t-gate"); got != TriggerActive {
		t.Fatalf("t-gate initial status = %s, want %s", got, TriggerActive)
	}
	if got := state.TriggerStatusOf("t-shrine"); got != TriggerInactive {
		t.Fatalf("t-shrine initial status = %s, want %s", got, TriggerInactive)
	}

	token := trigger.CompletionToken("inst-1", "t-gate")
	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindTriggerActivated, transaction.TriggerActivated{TriggerRef: "t-gate", Token: token}.Encode()),
	)
	if got := state.TriggerStatusOf("t-gate"); got != TriggerCompleted {
		t.Fatalf("t-gate status after activation = %s, want %s", got, TriggerCompleted)
	}
	if got := state.TriggerStatusOf("t-shrine"); got != TriggerActive {
		t.Fatalf("t-shrine status after token grant = %s, want %s", got, TriggerActive)
	}
	if !state.HasToken(token) {
		t.Fatalf("token %q not granted", token)
	}
	if got := state.TriggerStatusOf("t-elsewhere"); got != TriggerUndiscovered {
		t.Fatalf("unknown trigger status = %s, want %s", got, TriggerUndiscovered)
	}
}

func TestFoldBattleTurnOrderCorruption(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	hero := transaction.BattleProfile{Ref: "hero-1", Health: 30, Energy: 10, Attack: 6, Defense: 3, Speed: 5, Focus: 4}
	enemy := transaction.BattleProfile{Ref: "c-warden", Health: 24, Energy: 8, Attack: 5, Defense: 2, Speed: 4, Focus: 3}
	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindBattleStarted, transaction.BattleStarted{BattleID: "b-1", Seed: 99, Hero: hero, Enemy: enemy}.Encode()),
		committedTx(2, transaction.KindBattleTurn, transaction.BattleTurn{BattleID: "b-1", Turn: 1, Side: "hero", Decision: "attack", TargetHealth: 19, ActorEnergy: 10}.Encode()),
	)
	if state.ActiveBattleID != "b-1" {
		t.Fatalf("ActiveBattleID = %q, want b-1", state.ActiveBattleID)
	}

	outOfOrder := committedTx(3, transaction.KindBattleTurn, transaction.BattleTurn{BattleID: "b-1", Turn: 3, Side: "enemy", Decision: "attack", TargetHealth: 25, ActorEnergy: 8}.Encode())
	err := engine.Fold(tpl, triggers, state, outOfOrder)
	if !apperrors.HasCode(err, apperrors.CodeLogCorrupted) {
		t.Fatalf("Fold(turn 3 after 1) error = %v, want code %s", err, apperrors.CodeLogCorrupted)
	}

	foldAll(t, engine, tpl, triggers, state,
		committedTx(3, transaction.KindBattleTurn, transaction.BattleTurn{BattleID: "b-1", Turn: 2, Side: "enemy", Decision: "attack", TargetHealth: 25, ActorEnergy: 8}.Encode()),
		committedTx(4, transaction.KindBattleEnded, transaction.BattleEnded{BattleID: "b-1", Outcome: "victory", Turns: 2}.Encode()),
	)
	if state.ActiveBattleID != "" {
		t.Fatalf("ActiveBattleID after end = %q, want empty", state.ActiveBattleID)
	}
	summary := state.Battles["b-1"]
	if summary.Outcome != "victory" || summary.Turns != 2 {
		t.Fatalf("battle summary = %+v, want victory in 2 turns", summary)
	}
}

func TestFoldClaimsTouchFeatures(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindClaimMovement, transaction.ClaimMovement{
			FromX: 0, FromY: 0, ToX: 10, ToY: 0,
			StartedAt: foldBase, EndedAt: foldBase.Add(10 * time.Second),
		}.Encode()),
		committedTx(2, transaction.KindClaimMining, transaction.ClaimMining{
			FeatureRef: "f-vein", ResourceRef: "iron", Blocks: 12, RareYield: 1,
			X: 10, Y: 0, StartedAt: foldBase, EndedAt: foldBase.Add(time.Minute),
		}.Encode()),
		committedTx(3, transaction.KindClaimBuilding, transaction.ClaimBuilding{
			FeatureRef: "f-vein", Blocks: 4,
			X: 10, Y: 0, StartedAt: foldBase, EndedAt: foldBase.Add(2 * time.Minute),
		}.Encode()),
		committedTx(4, transaction.KindClaimToolWear, transaction.ClaimToolWear{ToolRef: "pickaxe", Blocks: 12, Wear: 0.6}.Encode()),
	)
	if got := state.Features["f-vein"].InteractionCount; got != 2 {
		t.Fatalf("feature interactions from claims = %d, want 2", got)
	}
	if len(state.Features) != 1 {
		t.Fatalf("features touched = %d, want 1 (movement and wear carry no feature)", len(state.Features))
	}
	if state.HeroPosition == nil || state.HeroPosition.X != 10 || state.HeroPosition.Y != 0 {
		t.Fatalf("hero position = %+v, want (10, 0)", state.HeroPosition)
	}
}

func TestFoldMovementTracksHeroPosition(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	if state.HeroPosition != nil {
		t.Fatalf("hero position before any claim = %+v, want nil", state.HeroPosition)
	}
	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindClaimMovement, transaction.ClaimMovement{
			FromX: 0, FromY: 0, ToX: 30, ToY: 40,
			StartedAt: foldBase, EndedAt: foldBase.Add(10 * time.Second),
		}.Encode()),
	)
	if state.HeroPosition == nil || state.HeroPosition.X != 30 || state.HeroPosition.Y != 40 {
		t.Fatalf("hero position = %+v, want (30, 40)", state.HeroPosition)
	}
	cloned := state.Clone()
	cloned.HeroPosition.X = 99
	if state.HeroPosition.X != 30 {
		t.Fatalf("clone shares hero position with source")
	}
}

func TestFoldReversalRecorded(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindHeroItemGranted, transaction.HeroItemGranted{ItemRef: "ember-charm", Quantity: 1, Source: "quest:q-ember"}.Encode()),
		committedTx(2, transaction.KindReversed, transaction.Reversed{OriginalID: "tx-001", OriginalKind: transaction.KindHeroItemGranted, Reason: "hero push failed"}.Encode()),
	)
	if got := state.Reversals["tx-001"]; got != "hero push failed" {
		t.Fatalf("reversal reason = %q, want recorded", got)
	}
}

func TestFoldReputationAccumulates(t *testing.T) {
	tpl := foldTemplate()
	triggers := foldTriggers(t, tpl)
	engine := NewEngine()
	state := NewState(tpl.CampaignRef, triggers)

	foldAll(t, engine, tpl, triggers, state,
		committedTx(1, transaction.KindReputationChanged, transaction.ReputationChanged{FactionRef: "fac-wardens", Amount: 10}.Encode()),
		committedTx(2, transaction.KindReputationChanged, transaction.ReputationChanged{FactionRef: "fac-wardens", Amount: -3}.Encode()),
	)
	if got := state.Reputation["fac-wardens"]; got != 7 {
		t.Fatalf("reputation = %d, want 7", got)
	}
}
