package stateview

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/waymark-rpg/waymark/internal/replay"
)

// ErrInstanceIDRequired indicates a missing instance id.
var ErrInstanceIDRequired = errors.New("instance id is required")

type memoryEntry struct {
	state   *replay.DerivedState
	lastSeq uint64
}

// Memory caches derived state in process memory. Entries are cloned on
// both save and read so no two callers share a state.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

// NewMemory creates an empty in-memory state cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Get returns the cached state and its last folded sequence.
func (m *Memory) Get(ctx context.Context, instanceID string) (*replay.DerivedState, uint64, error) {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
	}
	if m == nil {
		return nil, 0, errors.New("state cache is required")
	}
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return nil, 0, ErrInstanceIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[instanceID]
	if !ok {
		return nil, 0, ErrCacheMiss
	}
	return entry.state.Clone(), entry.lastSeq, nil
}

// Save stores a clone of the state stamped with its last folded sequence.
func (m *Memory) Save(ctx context.Context, instanceID string, state *replay.DerivedState, lastSeq uint64) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if m == nil {
		return errors.New("state cache is required")
	}
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return ErrInstanceIDRequired
	}
	if state == nil {
		return errors.New("state is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[instanceID] = memoryEntry{state: state.Clone(), lastSeq: lastSeq}
	return nil
}

// Invalidate drops the cached entry for an instance.
func (m *Memory) Invalidate(ctx context.Context, instanceID string) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if m == nil {
		return errors.New("state cache is required")
	}
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return ErrInstanceIDRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, instanceID)
	return nil
}
