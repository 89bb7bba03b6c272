// Package stateview serves derived instance state from the committed log
// through a sequence-gated cache: a cached state is valid only while its
// last folded sequence equals the committed tail, and a stale entry is
// caught up by folding the missing suffix rather than replaying from
// scratch. Pending transactions never reach a view.
package stateview

import (
	"context"
	"errors"
	"fmt"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/replay"
	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
	"github.com/waymark-rpg/waymark/internal/trigger"
)

const defaultPageSize = 200

var (
	// ErrInstanceSourceRequired indicates a missing instance source.
	ErrInstanceSourceRequired = errors.New("instance source is required")
	// ErrLogSourceRequired indicates a missing log source.
	ErrLogSourceRequired = errors.New("log source is required")
	// ErrCampaignSourceRequired indicates a missing campaign source.
	ErrCampaignSourceRequired = errors.New("campaign source is required")
	// ErrCacheMiss indicates no cached state exists for an instance.
	ErrCacheMiss = errors.New("state cache miss")
)

// Cache stores derived state keyed by instance, stamped with the last
// folded sequence. Implementations return ErrCacheMiss when no entry
// exists and must never hand the same state to two callers.
type Cache interface {
	Get(ctx context.Context, instanceID string) (*replay.DerivedState, uint64, error)
	Save(ctx context.Context, instanceID string, state *replay.DerivedState, lastSeq uint64) error
	Invalidate(ctx context.Context, instanceID string) error
}

// LogSource reads the committed log for folding.
type LogSource interface {
	ListCommitted(ctx context.Context, instanceID string, afterSeq uint64, limit int) ([]transaction.Transaction, error)
	LastCommittedSeq(ctx context.Context, instanceID string) (uint64, error)
}

// InstanceSource resolves instance records.
type InstanceSource interface {
	GetInstance(ctx context.Context, id string) (storage.InstanceRecord, error)
}

// View derives instance state on demand. The zero value is not usable;
// Instances, Log, and Campaigns must be set. A nil Cache disables caching
// and every read replays the full log.
type View struct {
	Instances InstanceSource
	Log       LogSource
	Cache     Cache
	Campaigns template.Source
	Engine    *replay.Engine
	PageSize  int
}

func (v View) engine() *replay.Engine {
	if v.Engine != nil {
		return v.Engine
	}
	return &replay.Engine{}
}

func (v View) pageSize() int {
	if v.PageSize > 0 {
		return v.PageSize
	}
	return defaultPageSize
}

// GetState returns the derived state of an instance at the committed
// tail. The returned state is owned by the caller and safe to mutate.
func (v View) GetState(ctx context.Context, instanceID string) (*replay.DerivedState, error) {
	if v.Instances == nil {
		return nil, ErrInstanceSourceRequired
	}
	if v.Log == nil {
		return nil, ErrLogSourceRequired
	}
	if v.Campaigns == nil {
		return nil, ErrCampaignSourceRequired
	}

	rec, err := v.Instances.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	tpl, ok := v.Campaigns.Campaign(rec.CampaignRef)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeCampaignUnknown,
			"campaign template is not loaded",
			map[string]string{"campaign_ref": rec.CampaignRef})
	}
	triggers, err := trigger.ExpandAll(tpl, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("expand triggers: %w", err)
	}

	tail, err := v.Log.LastCommittedSeq(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("committed tail: %w", err)
	}

	state, cachedSeq, err := v.cachedState(ctx, instanceID)
	switch {
	case err != nil:
		return nil, err
	case state != nil && cachedSeq == tail:
		return state, nil
	case state != nil && cachedSeq < tail:
		// Stale but behind the tail: fold only the missing suffix.
	default:
		// Miss, or a cache that claims to be ahead of the log. The log
		// is the source of truth, so rebuild from the start.
		state = replay.NewState(rec.CampaignRef, triggers)
		cachedSeq = 0
	}

	if err := v.foldRange(ctx, tpl, triggers, state, instanceID, cachedSeq, tail); err != nil {
		return nil, err
	}
	if v.Cache != nil {
		if err := v.Cache.Save(ctx, instanceID, state, tail); err != nil {
			return nil, fmt.Errorf("save state cache: %w", err)
		}
	}
	return state, nil
}

// StateAt replays an instance up to untilSeq without touching the cache,
// for audit and history tooling. untilSeq 0 means the committed tail.
func (v View) StateAt(ctx context.Context, instanceID string, untilSeq uint64) (*replay.DerivedState, error) {
	if v.Instances == nil {
		return nil, ErrInstanceSourceRequired
	}
	if v.Log == nil {
		return nil, ErrLogSourceRequired
	}
	if v.Campaigns == nil {
		return nil, ErrCampaignSourceRequired
	}

	rec, err := v.Instances.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("load instance: %w", err)
	}
	tpl, ok := v.Campaigns.Campaign(rec.CampaignRef)
	if !ok {
		return nil, apperrors.WithMetadata(apperrors.CodeCampaignUnknown,
			"campaign template is not loaded",
			map[string]string{"campaign_ref": rec.CampaignRef})
	}
	triggers, err := trigger.ExpandAll(tpl, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("expand triggers: %w", err)
	}

	state := replay.NewState(rec.CampaignRef, triggers)
	engine := v.engine()
	pageSize := v.pageSize()
	var afterSeq uint64
	for {
		page, err := v.Log.ListCommitted(ctx, instanceID, afterSeq, pageSize)
		if err != nil {
			return nil, fmt.Errorf("list committed after %d: %w", afterSeq, err)
		}
		for _, tx := range page {
			if untilSeq > 0 && tx.Seq > untilSeq {
				return state, nil
			}
			if err := engine.Fold(tpl, triggers, state, tx); err != nil {
				return nil, err
			}
		}
		if len(page) < pageSize {
			return state, nil
		}
		afterSeq = page[len(page)-1].Seq
	}
}

// Invalidate drops the cached state for an instance. Commits call it to
// free entries the moved tail has outdated; reads stay gated on the
// tail, so a missed invalidation is never served. Operations that
// replace the log wholesale, such as archive import, must call it.
func (v View) Invalidate(ctx context.Context, instanceID string) error {
	if v.Cache == nil {
		return nil
	}
	return v.Cache.Invalidate(ctx, instanceID)
}

func (v View) cachedState(ctx context.Context, instanceID string) (*replay.DerivedState, uint64, error) {
	if v.Cache == nil {
		return nil, 0, nil
	}
	state, seq, err := v.Cache.Get(ctx, instanceID)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("read state cache: %w", err)
	}
	return state, seq, nil
}

func (v View) foldRange(ctx context.Context, tpl *template.Template, triggers trigger.Set, state *replay.DerivedState, instanceID string, afterSeq, untilSeq uint64) error {
	engine := v.engine()
	pageSize := v.pageSize()
	for afterSeq < untilSeq {
		page, err := v.Log.ListCommitted(ctx, instanceID, afterSeq, pageSize)
		if err != nil {
			return fmt.Errorf("list committed after %d: %w", afterSeq, err)
		}
		if len(page) == 0 {
			return apperrors.WithMetadata(apperrors.CodeLogCorrupted,
				"committed log ended before its tail",
				map[string]string{"instance_id": instanceID, "after_seq": fmt.Sprint(afterSeq)})
		}
		for _, tx := range page {
			if tx.Seq > untilSeq {
				return nil
			}
			if err := engine.Fold(tpl, triggers, state, tx); err != nil {
				return err
			}
			afterSeq = tx.Seq
		}
	}
	return nil
}
