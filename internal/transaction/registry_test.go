package transaction

import (
	"errors"
	"testing"
	"time"
)

func pendingTx(kind Kind, attrs map[string]string) Transaction {
	return Transaction{
		ID:         "tx-1",
		InstanceID: "inst-1",
		Kind:       kind,
		Status:     StatusPending,
		HeroID:     "hero-1",
		OccurredAt: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		Attrs:      attrs,
	}
}

func TestRegistryValidateForAppend_UnknownKind(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.ValidateForAppend(pendingTx(Kind("mystery.kind"), nil))
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrKindUnknown) {
		t.Fatalf("expected ErrKindUnknown, got %v", err)
	}
}

func TestRegistryValidateForAppend_RequiresHero(t *testing.T) {
	tx := pendingTx(KindQuestAccepted, map[string]string{"quest": "q-ember"})
	tx.HeroID = "  "

	_, err := DefaultRegistry().ValidateForAppend(tx)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrHeroRequired) {
		t.Fatalf("expected ErrHeroRequired, got %v", err)
	}
}

func TestRegistryValidateForAppend_RequiresPendingStatus(t *testing.T) {
	tx := pendingTx(KindQuestAccepted, map[string]string{"quest": "q-ember"})
	tx.Status = StatusCommitted

	_, err := DefaultRegistry().ValidateForAppend(tx)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
}

func TestRegistryValidateForAppend_RequiredAttrs(t *testing.T) {
	_, err := DefaultRegistry().ValidateForAppend(pendingTx(KindQuestBranchChosen, map[string]string{
		"quest": "q-ember",
		"stage": "s1",
	}))
	if err == nil {
		t.Fatal("expected missing branch attribute error")
	}
	if !errors.Is(err, ErrAttrRequired) {
		t.Fatalf("expected ErrAttrRequired, got %v", err)
	}

	valid := pendingTx(KindQuestBranchChosen, map[string]string{
		"quest":  "q-ember",
		"stage":  "s1",
		"branch": "west",
	})
	if _, err := DefaultRegistry().ValidateForAppend(valid); err != nil {
		t.Fatalf("valid transaction rejected: %v", err)
	}
}

func TestRegistryValidateForAppend_NormalizesAttrs(t *testing.T) {
	tx := pendingTx(KindQuestAccepted, map[string]string{" quest ": "q-ember"})

	normalized, err := DefaultRegistry().ValidateForAppend(tx)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got := normalized.Attrs["quest"]; got != "q-ember" {
		t.Fatalf("quest attr = %q, want %q", got, "q-ember")
	}
	if normalized.CanonicalAt != tx.OccurredAt {
		t.Fatalf("canonical at = %v, want occurred at %v", normalized.CanonicalAt, tx.OccurredAt)
	}
	// The input transaction must stay untouched.
	if _, ok := tx.Attrs["quest"]; ok {
		t.Fatal("expected original attrs unchanged")
	}
}

func TestRegistryValidateForAppend_KeepsAssignedCanonicalTime(t *testing.T) {
	tx := pendingTx(KindQuestAccepted, map[string]string{"quest": "q-ember"})
	canonical := time.Date(2025, 3, 9, 23, 50, 0, 0, time.UTC)
	tx.CanonicalAt = canonical

	normalized, err := DefaultRegistry().ValidateForAppend(tx)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if normalized.CanonicalAt != canonical {
		t.Fatalf("canonical at = %v, want %v", normalized.CanonicalAt, canonical)
	}
}

func TestRegisterRejectsDuplicateKind(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Definition{Kind: KindQuestAccepted}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(Definition{Kind: KindQuestAccepted}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestDefaultRegistryCoversAllKinds(t *testing.T) {
	registry := DefaultRegistry()
	for _, kind := range Kinds() {
		if _, ok := registry.Definition(kind); !ok {
			t.Fatalf("kind %s is not registered", kind)
		}
	}
}
