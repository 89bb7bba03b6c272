package requestctx

import (
	"context"
	"testing"
)

func TestHeroIDRoundTrip(t *testing.T) {
	ctx := WithHeroID(context.Background(), "hero-42")
	if got := HeroIDFromContext(ctx); got != "hero-42" {
		t.Fatalf("HeroIDFromContext = %q, want %q", got, "hero-42")
	}
}

func TestHeroIDEmpty(t *testing.T) {
	if got := HeroIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	if got := HeroIDFromContext(nil); got != "" {
		t.Fatalf("expected empty string for nil context, got %q", got)
	}
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(nil, "req-7")
	if ctx == nil {
		t.Fatal("expected non-nil context")
	}
	if got := RequestIDFromContext(ctx); got != "req-7" {
		t.Fatalf("RequestIDFromContext = %q, want %q", got, "req-7")
	}
}

func TestRequestIDEmpty(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
