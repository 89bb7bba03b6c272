package i18n

import (
	"testing"

	i18ncatalog "github.com/waymark-rpg/waymark/internal/platform/i18n/catalog"
)

func TestGetCatalogFallback(t *testing.T) {
	base := GetCatalog("en-US")
	if base == nil {
		t.Fatal("expected base catalog")
	}
	fallback := GetCatalog("missing-locale")
	if fallback != base {
		t.Fatal("expected fallback to en-US catalog")
	}
	if empty := GetCatalog(""); empty != base {
		t.Fatal("expected empty locale to resolve to en-US catalog")
	}
}

func TestGetCatalogMatchesPartialTag(t *testing.T) {
	cat := GetCatalog("pt")
	if cat.Locale() != "pt-BR" {
		t.Fatalf("locale = %q, want pt-BR", cat.Locale())
	}
	got := cat.Format(CodeQuestAlreadyActive, map[string]string{"quest_ref": "q-embers"})
	if got != "A missão q-embers já está ativa" {
		t.Fatalf("formatted message = %q", got)
	}
}

func TestBuiltinCatalogMatchesEmbeddedBaseLocale(t *testing.T) {
	_, embedded := i18ncatalog.Default().NamespaceMessagesWithFallback(i18ncatalog.BaseLocale, "errors")
	if len(embedded) != len(enUSCatalog.messages) {
		t.Fatalf("embedded catalog has %d messages, builtin has %d", len(embedded), len(enUSCatalog.messages))
	}
	for code, want := range enUSCatalog.messages {
		if got, ok := embedded[code]; !ok || got != want {
			t.Errorf("code %s: embedded %q, builtin %q", code, got, want)
		}
	}
}

func TestFormatRendersMetadata(t *testing.T) {
	cat := GetCatalog("en-US")
	got := cat.Format(CodeTransactionNotPending, map[string]string{
		"transaction_id": "tx-9",
		"status":         "committed",
	})
	if got != "Transaction tx-9 is committed, not pending" {
		t.Fatalf("formatted message = %q", got)
	}
}

func TestFormatFallbacks(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "hello {{.Name}}",
	})

	if cat.Format("unknown", nil) != "unknown" {
		t.Fatal("expected code fallback when template missing")
	}
	if cat.Format("code", nil) != "hello <no value>" {
		t.Fatal("expected template to render missing metadata")
	}
}

func TestFormatTemplateErrorFallback(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "{{ if .Name }}",
	})
	if cat.Format("code", map[string]string{"Name": "X"}) != "{{ if .Name }}" {
		t.Fatal("expected template fallback on parse error")
	}
}

func TestFormatTemplateExecutionErrorFallback(t *testing.T) {
	cat := NewCatalog("test", map[Code]string{
		"code": "{{ call .Name }}",
	})
	if cat.Format("code", map[string]string{"Name": "X"}) != "{{ call .Name }}" {
		t.Fatal("expected template fallback on execute error")
	}
}

func TestRegisterCatalog(t *testing.T) {
	custom := NewCatalog("custom", map[Code]string{"code": "ok"})
	RegisterCatalog("custom", custom)
	if got := GetCatalog("custom"); got != custom {
		t.Fatal("expected registered catalog")
	}
}
