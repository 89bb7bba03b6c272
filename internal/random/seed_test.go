package random

import "testing"

func TestNewSeedPositive(t *testing.T) {
	for i := 0; i < 64; i++ {
		seed, err := NewSeed()
		if err != nil {
			t.Fatalf("new seed: %v", err)
		}
		if seed <= 0 {
			t.Fatalf("seed = %d, want positive", seed)
		}
	}
}

func TestNewSeedVaries(t *testing.T) {
	first, err := NewSeed()
	if err != nil {
		t.Fatalf("new seed: %v", err)
	}
	for i := 0; i < 16; i++ {
		next, err := NewSeed()
		if err != nil {
			t.Fatalf("new seed: %v", err)
		}
		if next != first {
			return
		}
	}
	t.Fatal("expected seeds to vary across generations")
}
