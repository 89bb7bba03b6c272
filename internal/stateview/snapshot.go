package stateview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/waymark-rpg/waymark/internal/replay"
	"github.com/waymark-rpg/waymark/internal/storage"
)

// SnapshotCache persists derived state through a storage.SnapshotStore so
// a restarted process resumes folding from the last snapshot instead of
// sequence zero. Snapshots are accelerators only; a decode failure is
// reported as a miss and the caller rebuilds from the log.
type SnapshotCache struct {
	Snapshots storage.SnapshotStore
	// Keep bounds retained snapshots per instance after each save.
	// Zero keeps every snapshot.
	Keep int
	Now  func() time.Time
}

func (c SnapshotCache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Get decodes the latest snapshot for an instance.
func (c SnapshotCache) Get(ctx context.Context, instanceID string) (*replay.DerivedState, uint64, error) {
	if c.Snapshots == nil {
		return nil, 0, errors.New("snapshot store is required")
	}
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return nil, 0, ErrInstanceIDRequired
	}

	snap, err := c.Snapshots.GetLatestSnapshot(ctx, instanceID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, 0, ErrCacheMiss
		}
		return nil, 0, fmt.Errorf("latest snapshot: %w", err)
	}
	state, err := DecodeState(snap.StateJSON)
	if err != nil {
		// A snapshot that no longer decodes is treated as absent; the
		// committed log can always rebuild it.
		return nil, 0, ErrCacheMiss
	}
	return state, snap.Seq, nil
}

// Save encodes the state and stores it as a snapshot at lastSeq.
func (c SnapshotCache) Save(ctx context.Context, instanceID string, state *replay.DerivedState, lastSeq uint64) error {
	if c.Snapshots == nil {
		return errors.New("snapshot store is required")
	}
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return ErrInstanceIDRequired
	}
	if state == nil {
		return errors.New("state is required")
	}

	encoded, err := EncodeState(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	snap := storage.Snapshot{
		InstanceID: instanceID,
		Seq:        lastSeq,
		StateJSON:  encoded,
		CreatedAt:  c.now(),
	}
	if err := c.Snapshots.PutSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	if c.Keep > 0 {
		if err := c.Snapshots.PruneSnapshots(ctx, instanceID, c.Keep); err != nil {
			return fmt.Errorf("prune snapshots: %w", err)
		}
	}
	return nil
}

// Invalidate deletes every snapshot for an instance.
func (c SnapshotCache) Invalidate(ctx context.Context, instanceID string) error {
	if c.Snapshots == nil {
		return errors.New("snapshot store is required")
	}
	instanceID = strings.TrimSpace(instanceID)
	if instanceID == "" {
		return ErrInstanceIDRequired
	}
	return c.Snapshots.PruneSnapshots(ctx, instanceID, 0)
}

// EncodeState renders derived state as canonical snapshot JSON.
func EncodeState(state *replay.DerivedState) ([]byte, error) {
	if state == nil {
		return nil, errors.New("state is required")
	}
	return json.Marshal(state)
}

// DecodeState parses snapshot JSON back into derived state.
func DecodeState(data []byte) (*replay.DerivedState, error) {
	if len(data) == 0 {
		return nil, errors.New("snapshot payload is empty")
	}
	var state replay.DerivedState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &state, nil
}
