package filter

import (
	"reflect"
	"testing"
)

func TestParseHistoryFilter_KindEquals(t *testing.T) {
	cond, err := ParseHistoryFilter(`kind = "quest.accepted"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "kind = ?" {
		t.Errorf("expected 'kind = ?', got %q", cond.Clause)
	}
	if len(cond.Params) != 1 {
		t.Fatalf("expected 1 param, got %d", len(cond.Params))
	}
	if cond.Params[0] != "quest.accepted" {
		t.Errorf("expected 'quest.accepted', got %v", cond.Params[0])
	}
}

func TestParseHistoryFilter_Empty(t *testing.T) {
	cond, err := ParseHistoryFilter("  ")
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "" || cond.Params != nil {
		t.Fatalf("expected empty condition, got %+v", cond)
	}
}

func TestParseHistoryFilter_AndOr(t *testing.T) {
	cond, err := ParseHistoryFilter(`kind = "battle.started" AND hero_id = "hero-1"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(kind = ? AND hero_id = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{"battle.started", "hero-1"}) {
		t.Fatalf("Params = %v", cond.Params)
	}

	cond, err = ParseHistoryFilter(`hero_id = "hero-1" OR hero_id = "hero-2"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(hero_id = ? OR hero_id = ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
}

func TestParseHistoryFilter_SeqRange(t *testing.T) {
	cond, err := ParseHistoryFilter(`seq >= 10 AND seq < 20`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "(seq >= ? AND seq < ?)" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if !reflect.DeepEqual(cond.Params, []any{int64(10), int64(20)}) {
		t.Fatalf("Params = %v", cond.Params)
	}
}

func TestParseHistoryFilter_TimestampBecomesMillis(t *testing.T) {
	cond, err := ParseHistoryFilter(`canonical_at > timestamp("2026-04-02T08:00:00Z")`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	if cond.Clause != "canonical_at > ?" {
		t.Fatalf("Clause = %q", cond.Clause)
	}
	if len(cond.Params) != 1 {
		t.Fatalf("Params len = %d", len(cond.Params))
	}
	// 2026-04-02T08:00:00Z in milliseconds since epoch.
	if cond.Params[0] != int64(1775116800000) {
		t.Fatalf("timestamp param = %v", cond.Params[0])
	}
}

func TestParseHistoryFilter_UnknownField(t *testing.T) {
	if _, err := ParseHistoryFilter(`villain = "x"`); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseHistoryFilter_UnsupportedValueFunc(t *testing.T) {
	if _, err := ParseHistoryFilter(`canonical_at = duration("1h")`); err == nil {
		t.Fatal("expected error for unsupported value function")
	}
}

func TestParseHistoryFilter_InvalidTimestamp(t *testing.T) {
	if _, err := ParseHistoryFilter(`committed_at = timestamp("not-a-time")`); err == nil {
		t.Fatal("expected error for invalid timestamp")
	}
}
