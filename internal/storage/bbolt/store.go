// Package bbolt persists derived-state snapshots in a local BoltDB file.
//
// Snapshots are replay accelerators, never the source of authority, so
// this store deliberately holds nothing else: losing the file costs a
// replay from sequence zero and no data. Single-writer BoltDB semantics
// fit that role on embedded and single-node deployments where the
// journal itself lives in SQLite.
package bbolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/waymark-rpg/waymark/internal/storage"
)

const snapshotBucket = "snapshot"

// Store is a BoltDB-backed storage.SnapshotStore.
type Store struct {
	db *bbolt.DB
}

// Open opens the snapshot database at path, creating it when absent.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// snapshotRecord is the stored form. State stays raw JSON so the file is
// inspectable with plain tooling.
type snapshotRecord struct {
	Seq       uint64          `json:"seq"`
	State     json.RawMessage `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

// PutSnapshot stores a snapshot keyed by sequence, replacing any existing
// snapshot at the same sequence.
func (s *Store) PutSnapshot(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(snap.InstanceID) == "" {
		return fmt.Errorf("instance id is required")
	}
	if len(snap.StateJSON) == 0 {
		return fmt.Errorf("snapshot state is required")
	}

	payload, err := json.Marshal(snapshotRecord{
		Seq:       snap.Seq,
		State:     json.RawMessage(snap.StateJSON),
		CreatedAt: snap.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(snapshotBucket))
		if root == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		bucket, err := root.CreateBucketIfNotExists([]byte(snap.InstanceID))
		if err != nil {
			return fmt.Errorf("create instance bucket: %w", err)
		}
		return bucket.Put(seqKey(snap.Seq), payload)
	})
}

// GetLatestSnapshot returns the snapshot with the highest sequence for an
// instance, or storage.ErrNotFound when none exists.
func (s *Store) GetLatestSnapshot(ctx context.Context, instanceID string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.db == nil {
		return storage.Snapshot{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(instanceID) == "" {
		return storage.Snapshot{}, fmt.Errorf("instance id is required")
	}

	var snap storage.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := instanceBucket(tx, instanceID)
		if bucket == nil {
			return storage.ErrNotFound
		}
		key, payload := bucket.Cursor().Last()
		if key == nil {
			return storage.ErrNotFound
		}
		decoded, err := decodeSnapshot(instanceID, payload)
		if err != nil {
			return err
		}
		snap = decoded
		return nil
	})
	if err != nil {
		return storage.Snapshot{}, err
	}
	return snap, nil
}

// ListSnapshots returns snapshots ordered by sequence descending, at most
// limit. A non-positive limit returns every snapshot.
func (s *Store) ListSnapshots(ctx context.Context, instanceID string, limit int) ([]storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(instanceID) == "" {
		return nil, fmt.Errorf("instance id is required")
	}

	var snaps []storage.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := instanceBucket(tx, instanceID)
		if bucket == nil {
			return nil
		}
		cursor := bucket.Cursor()
		for key, payload := cursor.Last(); key != nil; key, payload = cursor.Prev() {
			if limit > 0 && len(snaps) >= limit {
				return nil
			}
			decoded, err := decodeSnapshot(instanceID, payload)
			if err != nil {
				return err
			}
			snaps = append(snaps, decoded)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snaps, nil
}

// PruneSnapshots deletes all but the newest keep snapshots. keep zero or
// negative removes every snapshot for the instance.
func (s *Store) PruneSnapshots(ctx context.Context, instanceID string, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(instanceID) == "" {
		return fmt.Errorf("instance id is required")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket([]byte(snapshotBucket))
		if root == nil {
			return fmt.Errorf("snapshot bucket is missing")
		}
		bucket := root.Bucket([]byte(instanceID))
		if bucket == nil {
			return nil
		}
		if keep <= 0 {
			return root.DeleteBucket([]byte(instanceID))
		}

		var stale [][]byte
		seen := 0
		cursor := bucket.Cursor()
		for key, _ := cursor.Last(); key != nil; key, _ = cursor.Prev() {
			seen++
			if seen > keep {
				stale = append(stale, append([]byte(nil), key...))
			}
		}
		for _, key := range stale {
			if err := bucket.Delete(key); err != nil {
				return fmt.Errorf("delete snapshot: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(snapshotBucket)); err != nil {
			return fmt.Errorf("create snapshot bucket: %w", err)
		}
		return nil
	})
}

func instanceBucket(tx *bbolt.Tx, instanceID string) *bbolt.Bucket {
	root := tx.Bucket([]byte(snapshotBucket))
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(instanceID))
}

func decodeSnapshot(instanceID string, payload []byte) (storage.Snapshot, error) {
	var record snapshotRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return storage.Snapshot{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return storage.Snapshot{
		InstanceID: instanceID,
		Seq:        record.Seq,
		StateJSON:  []byte(record.State),
		CreatedAt:  record.CreatedAt,
	}, nil
}

// seqKey renders sequences in big-endian so byte order matches numeric
// order and cursor scans walk the log in sequence.
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
