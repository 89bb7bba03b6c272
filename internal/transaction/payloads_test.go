package transaction

import (
	"testing"
	"time"
)

func TestBattleStartedRoundTrip(t *testing.T) {
	payload := BattleStarted{
		BattleID: "b-1",
		Seed:     991188,
		Hero: BattleProfile{
			Ref:      "hero-1",
			Health:   40,
			Energy:   12,
			Attack:   9,
			Defense:  5,
			Speed:    7,
			Focus:    3,
			Affinity: "ember",
			Slots:    map[string]string{"weapon": "iron-sword", "charm": "fox-talisman"},
		},
		Enemy: BattleProfile{
			Ref:     "ashen-wolf",
			Health:  28,
			Energy:  8,
			Attack:  7,
			Defense: 3,
			Speed:   9,
			Focus:   1,
		},
	}

	decoded, err := DecodeBattleStarted(payload.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Seed != payload.Seed {
		t.Fatalf("seed = %d, want %d", decoded.Seed, payload.Seed)
	}
	if decoded.Hero.Slots["weapon"] != "iron-sword" {
		t.Fatalf("hero weapon slot = %q, want %q", decoded.Hero.Slots["weapon"], "iron-sword")
	}
	if decoded.Enemy.Health != 28 {
		t.Fatalf("enemy health = %d, want 28", decoded.Enemy.Health)
	}
	if decoded.Ally != nil {
		t.Fatal("expected no ally profile")
	}
}

func TestBattleStartedAllyPresence(t *testing.T) {
	ally := BattleProfile{Ref: "marsh-hound", Health: 15, Energy: 6, Attack: 4, Defense: 2, Speed: 6, Focus: 2}
	payload := BattleStarted{
		BattleID: "b-2",
		Seed:     7,
		Hero:     BattleProfile{Ref: "hero-1", Health: 30, Energy: 10, Attack: 5, Defense: 5, Speed: 5, Focus: 5},
		Enemy:    BattleProfile{Ref: "bog-wisp", Health: 20, Energy: 9, Attack: 6, Defense: 1, Speed: 8, Focus: 4},
		Ally:     &ally,
	}

	decoded, err := DecodeBattleStarted(payload.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Ally == nil {
		t.Fatal("expected ally profile")
	}
	if decoded.Ally.Ref != "marsh-hound" {
		t.Fatalf("ally ref = %q, want %q", decoded.Ally.Ref, "marsh-hound")
	}
}

func TestClaimMovementRoundTrip(t *testing.T) {
	started := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	payload := ClaimMovement{
		FromX:     10.5,
		FromY:     -3.25,
		ToX:       42,
		ToY:       18.75,
		StartedAt: started,
		EndedAt:   started.Add(45 * time.Second),
	}

	decoded, err := DecodeClaimMovement(payload.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.FromY != -3.25 {
		t.Fatalf("from_y = %v, want -3.25", decoded.FromY)
	}
	if !decoded.EndedAt.Equal(payload.EndedAt) {
		t.Fatalf("ended_at = %v, want %v", decoded.EndedAt, payload.EndedAt)
	}
}

func TestCharacterLootedItemList(t *testing.T) {
	payload := CharacterLooted{CharacterRef: "ashen-wolf", ItemRefs: []string{"pelt", "fang", "ember-shard"}}

	decoded, err := DecodeCharacterLooted(payload.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.ItemRefs) != 3 {
		t.Fatalf("items = %d, want 3", len(decoded.ItemRefs))
	}
	if decoded.ItemRefs[2] != "ember-shard" {
		t.Fatalf("item[2] = %q, want %q", decoded.ItemRefs[2], "ember-shard")
	}

	empty, err := DecodeCharacterLooted(CharacterLooted{CharacterRef: "bog-wisp"}.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(empty.ItemRefs) != 0 {
		t.Fatalf("expected no items, got %v", empty.ItemRefs)
	}
}

func TestReversedRoundTrip(t *testing.T) {
	payload := Reversed{
		OriginalID:   "tx-99",
		OriginalKind: KindHeroItemGranted,
		Reason:       "hero store rejected grant",
	}

	decoded, err := DecodeReversed(payload.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.OriginalKind != KindHeroItemGranted {
		t.Fatalf("original kind = %s, want %s", decoded.OriginalKind, KindHeroItemGranted)
	}
	if decoded.Reason != payload.Reason {
		t.Fatalf("reason = %q, want %q", decoded.Reason, payload.Reason)
	}
}

func TestDecodeBattleTurnRejectsBadNumbers(t *testing.T) {
	attrs := BattleTurn{
		BattleID:     "b-1",
		Turn:         4,
		Side:         "player",
		Decision:     "attack",
		TargetHealth: 12,
		ActorEnergy:  9,
	}.Encode()
	attrs["turn"] = "not-a-number"

	if _, err := DecodeBattleTurn(attrs); err == nil {
		t.Fatal("expected parse error")
	}
}
