package stateview

import (
	"context"

	"github.com/waymark-rpg/waymark/internal/replay"
)

// Noop never caches, so every read replays the full committed log.
// Verification tooling uses it to force derivation from scratch.
type Noop struct{}

// NewNoop creates a cache that always misses.
func NewNoop() *Noop {
	return &Noop{}
}

// Get always reports a miss.
func (n *Noop) Get(ctx context.Context, _ string) (*replay.DerivedState, uint64, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
	}
	return nil, 0, ErrCacheMiss
}

// Save is a no-op.
func (n *Noop) Save(ctx context.Context, _ string, _ *replay.DerivedState, _ uint64) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate is a no-op.
func (n *Noop) Invalidate(ctx context.Context, _ string) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
