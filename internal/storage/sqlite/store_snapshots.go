package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/waymark-rpg/waymark/internal/storage"
)

// PutSnapshot stores a snapshot, replacing any existing one at the same
// sequence.
func (s *Store) PutSnapshot(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(snap.InstanceID) == "" {
		return fmt.Errorf("instance id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO snapshots (instance_id, seq, state_json, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(instance_id, seq) DO UPDATE SET
			state_json = excluded.state_json,
			created_at = excluded.created_at`,
		snap.InstanceID,
		snap.Seq,
		snap.StateJSON,
		toMillis(snap.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("put snapshot: %w", err)
	}
	return nil
}

// GetLatestSnapshot retrieves the highest-sequence snapshot for an instance.
func (s *Store) GetLatestSnapshot(ctx context.Context, instanceID string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Snapshot{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(instanceID) == "" {
		return storage.Snapshot{}, fmt.Errorf("instance id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT instance_id, seq, state_json, created_at FROM snapshots WHERE instance_id = ? ORDER BY seq DESC LIMIT 1",
		instanceID)
	return scanSnapshot(row)
}

// ListSnapshots returns snapshots ordered by sequence descending. A
// non-positive limit returns every snapshot.
func (s *Store) ListSnapshots(ctx context.Context, instanceID string, limit int) ([]storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(instanceID) == "" {
		return nil, fmt.Errorf("instance id is required")
	}

	query := "SELECT instance_id, seq, state_json, created_at FROM snapshots WHERE instance_id = ? ORDER BY seq DESC"
	args := []any{instanceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []storage.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// PruneSnapshots deletes all but the newest keep snapshots.
func (s *Store) PruneSnapshots(ctx context.Context, instanceID string, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if keep < 0 {
		keep = 0
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		DELETE FROM snapshots
		WHERE instance_id = ? AND seq NOT IN (
			SELECT seq FROM snapshots WHERE instance_id = ? ORDER BY seq DESC LIMIT ?
		)`,
		instanceID, instanceID, keep)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

func scanSnapshot(row rowScanner) (storage.Snapshot, error) {
	var (
		snap      storage.Snapshot
		createdAt int64
	)
	err := row.Scan(&snap.InstanceID, &snap.Seq, &snap.StateJSON, &createdAt)
	if err == sql.ErrNoRows {
		return storage.Snapshot{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	snap.CreatedAt = fromMillis(createdAt)
	return snap, nil
}
