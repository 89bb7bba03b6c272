package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbeddedHasExpectedLocales(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	if !bundle.HasLocale(BaseLocale) {
		t.Fatalf("expected base locale %s", BaseLocale)
	}
	if !bundle.HasLocale("pt-BR") {
		t.Fatalf("expected locale pt-BR")
	}

	if got := len(bundle.NamespaceMessages("en-US", "errors")); got == 0 {
		t.Fatal("expected en-US errors namespace messages")
	}
	if got := len(bundle.NamespaceMessages("pt-BR", "errors")); got == 0 {
		t.Fatal("expected pt-BR errors namespace messages")
	}
}

func TestLoadFromFSRejectsLocalePathMismatch(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/errors.yaml"), `locale: "pt-BR"
namespace: "errors"
messages:
  A_KEY: "a"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected locale mismatch error")
	}
}

func TestLoadFromFSRejectsDuplicateKeysAcrossNamespaces(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/errors.yaml"), `locale: "en-US"
namespace: "errors"
messages:
  A_KEY: "a"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/cli.yaml"), `locale: "en-US"
namespace: "cli"
messages:
  A_KEY: "b"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestLoadFromFSRequiresBaseLocale(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/pt-BR/errors.yaml"), `locale: "pt-BR"
namespace: "errors"
messages:
  A_KEY: "a"
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected missing base locale error")
	}
}

func TestLoadFromFSRejectsMalformedYAML(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/errors.yaml"), `locale: [broken
`)

	_, err := LoadFromFS(os.DirFS(tempDir))
	if err == nil {
		t.Fatal("expected parse error")
	}
}

func TestMatchLocale(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}

	cases := []struct {
		requested string
		want      string
	}{
		{"", "en-US"},
		{"en-US", "en-US"},
		{"pt-BR", "pt-BR"},
		{"pt", "pt-BR"},
		{"pt-PT", "pt-BR"},
		{"en-GB", "en-US"},
		{"fr-FR", "en-US"},
		{"!!not-a-tag!!", "en-US"},
	}
	for _, tc := range cases {
		if got := bundle.MatchLocale(tc.requested); got != tc.want {
			t.Errorf("MatchLocale(%q) = %q, want %q", tc.requested, got, tc.want)
		}
	}
}

func TestNamespaceMessagesWithFallback(t *testing.T) {
	bundle, err := LoadEmbedded()
	if err != nil {
		t.Fatalf("load embedded catalogs: %v", err)
	}
	resolved, messages := bundle.NamespaceMessagesWithFallback("fr-FR", "errors")
	if resolved != "en-US" {
		t.Fatalf("resolved locale = %q, want en-US", resolved)
	}
	if len(messages) == 0 {
		t.Fatal("expected fallback errors namespace messages")
	}
}

func TestMessageFallsBackToBaseLocale(t *testing.T) {
	tempDir := t.TempDir()
	mustWriteFile(t, filepath.Join(tempDir, "locales/en-US/errors.yaml"), `locale: "en-US"
namespace: "errors"
messages:
  SHARED: "shared"
  ONLY_BASE: "base only"
`)
	mustWriteFile(t, filepath.Join(tempDir, "locales/pt-BR/errors.yaml"), `locale: "pt-BR"
namespace: "errors"
messages:
  SHARED: "compartilhado"
`)

	bundle, err := LoadFromFS(os.DirFS(tempDir))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}

	if got, ok := bundle.Message("pt-BR", "SHARED"); !ok || got != "compartilhado" {
		t.Fatalf("Message(pt-BR, SHARED) = %q, %v", got, ok)
	}
	if got, ok := bundle.Message("pt-BR", "ONLY_BASE"); !ok || got != "base only" {
		t.Fatalf("Message(pt-BR, ONLY_BASE) = %q, %v", got, ok)
	}
	if _, ok := bundle.Message("pt-BR", "MISSING"); ok {
		t.Fatal("expected missing key to report not found")
	}
}

func mustWriteFile(t *testing.T, path string, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
