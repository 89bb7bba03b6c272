package transaction

import (
	"testing"
	"time"
)

func TestContentHashDeterministic(t *testing.T) {
	ts := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	tx := Transaction{
		ID:          "tx-1",
		InstanceID:  "inst-1",
		Kind:        KindQuestAccepted,
		HeroID:      "hero-1",
		CanonicalAt: ts,
		Attrs:       map[string]string{"quest": "q-ember"},
	}

	first, err := ContentHash(tx)
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	second, err := ContentHash(tx)
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	if first != second {
		t.Fatalf("expected deterministic hash, got %s and %s", first, second)
	}
}

func TestContentHashIgnoresAttrInsertionOrder(t *testing.T) {
	ts := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	base := Transaction{
		ID:          "tx-1",
		InstanceID:  "inst-1",
		Kind:        KindReputationChanged,
		HeroID:      "hero-1",
		CanonicalAt: ts,
	}

	forward := base.Clone()
	forward.Attrs = map[string]string{}
	forward.Attrs["faction"] = "emberguard"
	forward.Attrs["amount"] = "5"

	backward := base.Clone()
	backward.Attrs = map[string]string{}
	backward.Attrs["amount"] = "5"
	backward.Attrs["faction"] = "emberguard"

	h1, err := ContentHash(forward)
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	h2, err := ContentHash(backward)
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	if h1 != h2 {
		t.Fatal("expected identical hashes regardless of attr insertion order")
	}
}

func TestContentHashChangesWithAttrs(t *testing.T) {
	ts := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	tx := Transaction{
		ID:          "tx-1",
		InstanceID:  "inst-1",
		Kind:        KindQuestAccepted,
		HeroID:      "hero-1",
		CanonicalAt: ts,
		Attrs:       map[string]string{"quest": "q-ember"},
	}

	baseline, err := ContentHash(tx)
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}

	other := tx.Clone()
	other.Attrs["quest"] = "q-frost"
	changed, err := ContentHash(other)
	if err != nil {
		t.Fatalf("content hash: %v", err)
	}
	if baseline == changed {
		t.Fatal("expected hash to change when attrs change")
	}
}

func TestContentHashRequiresIdentity(t *testing.T) {
	if _, err := ContentHash(Transaction{InstanceID: "inst-1", Kind: KindQuestAccepted}); err == nil {
		t.Fatal("expected error without id")
	}
	if _, err := ContentHash(Transaction{ID: "tx-1", Kind: KindQuestAccepted}); err == nil {
		t.Fatal("expected error without instance id")
	}
}

func TestChainHashRequiresContentHashAndSeq(t *testing.T) {
	tx := Transaction{ID: "tx-1", InstanceID: "inst-1", Kind: KindQuestAccepted, Seq: 3}
	if _, err := ChainHash(tx, "prev"); err == nil {
		t.Fatal("expected error when content hash is missing")
	}

	tx.Hash = "contenthash"
	tx.Seq = 0
	if _, err := ChainHash(tx, "prev"); err == nil {
		t.Fatal("expected error when seq is missing")
	}
}

func TestChainHashLinksPredecessor(t *testing.T) {
	tx := Transaction{ID: "tx-1", InstanceID: "inst-1", Kind: KindQuestAccepted, Hash: "contenthash", Seq: 2}

	first, err := ChainHash(tx, "prev-a")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	second, err := ChainHash(tx, "prev-b")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	if first == second {
		t.Fatal("expected chain hash to depend on predecessor")
	}

	repeat, err := ChainHash(tx, "prev-a")
	if err != nil {
		t.Fatalf("chain hash: %v", err)
	}
	if repeat != first {
		t.Fatal("expected deterministic chain hash")
	}
}
