package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/waymark-rpg/waymark/internal/storage"
)

// PutInstance persists an instance record. Returns ErrInstanceExists when
// a different instance already owns the (campaign, hero) pair.
func (s *Store) PutInstance(ctx context.Context, rec storage.InstanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("instance id is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO instances (id, campaign_ref, hero_id, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    campaign_ref = excluded.campaign_ref,
    hero_id = excluded.hero_id,
    updated_at = excluded.updated_at`,
		rec.ID, rec.CampaignRef, rec.HeroID, toMillis(rec.CreatedAt), toMillis(rec.UpdatedAt))
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrInstanceExists
		}
		return fmt.Errorf("put instance: %w", err)
	}
	return nil
}

// GetInstance retrieves an instance by id.
func (s *Store) GetInstance(ctx context.Context, id string) (storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.InstanceRecord{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(id) == "" {
		return storage.InstanceRecord{}, fmt.Errorf("instance id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT id, campaign_ref, hero_id, created_at, updated_at FROM instances WHERE id = ?", id)
	return scanInstance(row)
}

// FindInstance retrieves the instance for a campaign/hero pair.
func (s *Store) FindInstance(ctx context.Context, campaignRef, heroID string) (storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.InstanceRecord{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT id, campaign_ref, hero_id, created_at, updated_at FROM instances WHERE campaign_ref = ? AND hero_id = ?",
		campaignRef, heroID)
	return scanInstance(row)
}

// ListInstancesByHero returns every instance a hero has started, ordered
// by creation time.
func (s *Store) ListInstancesByHero(ctx context.Context, heroID string) ([]storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT id, campaign_ref, hero_id, created_at, updated_at FROM instances WHERE hero_id = ? ORDER BY created_at, id",
		heroID)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var out []storage.InstanceRecord
	for rows.Next() {
		rec, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (storage.InstanceRecord, error) {
	var rec storage.InstanceRecord
	var createdAt, updatedAt int64
	if err := row.Scan(&rec.ID, &rec.CampaignRef, &rec.HeroID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.InstanceRecord{}, storage.ErrNotFound
		}
		return storage.InstanceRecord{}, fmt.Errorf("scan instance: %w", err)
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}
