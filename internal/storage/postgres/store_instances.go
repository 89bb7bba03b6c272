package postgres

import (
	"context"
	"database/sql"
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
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			campaign_ref = EXCLUDED.campaign_ref,
			hero_id = EXCLUDED.hero_id,
			updated_at = EXCLUDED.updated_at`,
		rec.ID,
		rec.CampaignRef,
		rec.HeroID,
		toMillis(rec.CreatedAt),
		toMillis(rec.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrInstanceExists
		}
		return fmt.Errorf("put instance %s: %w", rec.ID, err)
	}
	return nil
}

// GetInstance retrieves an instance by ID.
func (s *Store) GetInstance(ctx context.Context, id string) (storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.InstanceRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT id, campaign_ref, hero_id, created_at, updated_at FROM instances WHERE id = $1", id)
	return scanInstance(row)
}

// FindInstance retrieves the instance owning a (campaign, hero) pair.
func (s *Store) FindInstance(ctx context.Context, campaignRef, heroID string) (storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InstanceRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.InstanceRecord{}, fmt.Errorf("storage is not configured")
	}
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT id, campaign_ref, hero_id, created_at, updated_at FROM instances WHERE campaign_ref = $1 AND hero_id = $2",
		campaignRef, heroID)
	return scanInstance(row)
}

// ListInstancesByHero returns a hero's instances in creation order.
func (s *Store) ListInstancesByHero(ctx context.Context, heroID string) ([]storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx,
		"SELECT id, campaign_ref, hero_id, created_at, updated_at FROM instances WHERE hero_id = $1 ORDER BY created_at, id",
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

func scanInstance(row rowScanner) (storage.InstanceRecord, error) {
	var (
		rec       storage.InstanceRecord
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&rec.ID, &rec.CampaignRef, &rec.HeroID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return storage.InstanceRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.InstanceRecord{}, fmt.Errorf("scan instance: %w", err)
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	return rec, nil
}
