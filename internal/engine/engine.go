// Package engine executes campaign intents. Every intent follows the
// same pipeline: derive the instance's current state from the committed
// log, validate the intent's preconditions against that state, stage the
// resulting transactions, and commit them as one atomic batch. Rejected
// intents append nothing. External reward pushes run only after commit
// and are compensated by reversal when they fail, so the log stays the
// source of truth for what happened.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/waymark-rpg/waymark/internal/claim"
	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/platform/id"
	"github.com/waymark-rpg/waymark/internal/random"
	"github.com/waymark-rpg/waymark/internal/replay"
	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/telemetry"
	"github.com/waymark-rpg/waymark/internal/template"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

var (
	// ErrJournalRequired indicates a missing journal.
	ErrJournalRequired = errors.New("journal is required")
	// ErrStateViewRequired indicates a missing state view.
	ErrStateViewRequired = errors.New("state view is required")
	// ErrInstanceSourceRequired indicates a missing instance source.
	ErrInstanceSourceRequired = errors.New("instance source is required")
	// ErrCampaignSourceRequired indicates a missing campaign source.
	ErrCampaignSourceRequired = errors.New("campaign source is required")
)

// Journal stages, commits, and reverses transactions for an instance.
type Journal interface {
	Append(ctx context.Context, instanceID string, batch []transaction.Transaction) ([]transaction.Transaction, error)
	Commit(ctx context.Context, instanceID string, txIDs []string) ([]transaction.Transaction, error)
	Discard(ctx context.Context, instanceID string, txIDs []string) error
	Reverse(ctx context.Context, instanceID, originalID, reason string) (transaction.Transaction, error)
	LoadLog(ctx context.Context, instanceID string) ([]transaction.Transaction, error)
}

// StateSource derives instance state at the committed tail and drops
// cached entries once the tail moves past them.
type StateSource interface {
	GetState(ctx context.Context, instanceID string) (*replay.DerivedState, error)
	Invalidate(ctx context.Context, instanceID string) error
}

// InstanceSource resolves instance records.
type InstanceSource interface {
	GetInstance(ctx context.Context, id string) (storage.InstanceRecord, error)
}

// HeroStore pushes already-derived reward effects onto the external hero
// record. It is write-only: the engine never reads authoritative hero
// state, it only mirrors what the log committed.
type HeroStore interface {
	GrantItem(ctx context.Context, heroID string, grant transaction.HeroItemGranted) error
	ChangeStat(ctx context.Context, heroID string, change transaction.HeroStatChanged) error
}

// Handler wires the collaborators intents execute against. The zero
// value is not usable; Journal, Views, Instances, and Campaigns must be
// set. Gate falls back to the embedded default tuning, NewSeed to
// crypto-random seeds, NewID to id.NewID, and Now to time.Now. A nil
// Heroes skips external pushes and a nil Telemetry skips emission.
type Handler struct {
	Journal   Journal
	Views     StateSource
	Instances InstanceSource
	Campaigns template.Source
	Gate      *claim.Gate
	Heroes    HeroStore
	Telemetry *telemetry.Emitter
	NewSeed   func() (int64, error)
	NewID     func() (string, error)
	Now       func() time.Time
}

func (h Handler) check() error {
	if h.Journal == nil {
		return ErrJournalRequired
	}
	if h.Views == nil {
		return ErrStateViewRequired
	}
	if h.Instances == nil {
		return ErrInstanceSourceRequired
	}
	if h.Campaigns == nil {
		return ErrCampaignSourceRequired
	}
	return nil
}

func (h Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h Handler) gate() *claim.Gate {
	if h.Gate != nil {
		return h.Gate
	}
	return claim.NewGate(claim.DefaultTuning())
}

func (h Handler) newSeed() (int64, error) {
	if h.NewSeed != nil {
		return h.NewSeed()
	}
	return random.NewSeed()
}

func (h Handler) newID() (string, error) {
	if h.NewID != nil {
		return h.NewID()
	}
	return id.NewID()
}

// instanceScope bundles the inputs every intent validates against.
type instanceScope struct {
	rec   storage.InstanceRecord
	tpl   *template.Template
	state *replay.DerivedState
}

func (h Handler) load(ctx context.Context, instanceID string) (instanceScope, error) {
	if err := h.check(); err != nil {
		return instanceScope{}, err
	}
	rec, err := h.Instances.GetInstance(ctx, instanceID)
	if err != nil {
		return instanceScope{}, fmt.Errorf("load instance: %w", err)
	}
	tpl, ok := h.Campaigns.Campaign(rec.CampaignRef)
	if !ok {
		return instanceScope{}, apperrors.WithMetadata(apperrors.CodeCampaignUnknown,
			"campaign template is not loaded",
			map[string]string{"campaign_ref": rec.CampaignRef})
	}
	state, err := h.Views.GetState(ctx, instanceID)
	if err != nil {
		return instanceScope{}, err
	}
	return instanceScope{rec: rec, tpl: tpl, state: state}, nil
}

func (h Handler) newTx(heroID string, kind transaction.Kind, attrs map[string]string) transaction.Transaction {
	return transaction.Transaction{
		Kind:       kind,
		HeroID:     heroID,
		OccurredAt: h.now(),
		Attrs:      attrs,
	}
}

// commitBatch stages and commits a batch as one unit. On commit conflict
// the staged rows are discarded before the conflict is returned, so a
// retry starts from a clean pending set.
func (h Handler) commitBatch(ctx context.Context, instanceID string, batch []transaction.Transaction) ([]transaction.Transaction, error) {
	staged, err := h.Journal.Append(ctx, instanceID, batch)
	if err != nil {
		return nil, err
	}
	txIDs := make([]string, len(staged))
	for i, tx := range staged {
		txIDs[i] = tx.ID
	}
	committed, err := h.Journal.Commit(ctx, instanceID, txIDs)
	if err != nil {
		if errors.Is(err, storage.ErrCommitConflict) {
			if derr := h.Journal.Discard(ctx, instanceID, txIDs); derr != nil {
				return nil, fmt.Errorf("discard conflicted batch: %w", derr)
			}
		}
		return nil, err
	}
	h.invalidate(ctx, instanceID)
	return committed, nil
}

// invalidate drops the cached view after the committed tail moves.
// Invalidation failures never fail the intent that committed; the
// sequence gate still refuses the stale entry on the next read.
func (h Handler) invalidate(ctx context.Context, instanceID string) {
	_ = h.Views.Invalidate(ctx, instanceID)
}

// emit records advisory telemetry. Emission failures never fail the
// intent that produced the event.
func (h Handler) emit(ctx context.Context, evt storage.TelemetryEvent) {
	if h.Telemetry == nil {
		return
	}
	_ = h.Telemetry.Emit(ctx, evt)
}

// pushRewards mirrors committed reward transactions onto the external
// hero record. On the first failed push, the failed transaction and
// every not-yet-pushed one after it are reversed; pushes that already
// succeeded stand, since log and hero record agree on them. The
// returned slice holds the reversed transaction IDs.
func (h Handler) pushRewards(ctx context.Context, sc instanceScope, rewards []transaction.Transaction) ([]string, error) {
	if h.Heroes == nil || len(rewards) == 0 {
		return nil, nil
	}
	for i, tx := range rewards {
		var err error
		switch tx.Kind {
		case transaction.KindHeroItemGranted:
			var grant transaction.HeroItemGranted
			if grant, err = transaction.DecodeHeroItemGranted(tx.Attrs); err == nil {
				err = h.Heroes.GrantItem(ctx, sc.rec.HeroID, grant)
			}
		case transaction.KindHeroStatChanged:
			var change transaction.HeroStatChanged
			if change, err = transaction.DecodeHeroStatChanged(tx.Attrs); err == nil {
				err = h.Heroes.ChangeStat(ctx, sc.rec.HeroID, change)
			}
		}
		if err == nil {
			continue
		}

		reversed, reverseErr := h.reverseFrom(ctx, sc.rec.ID, rewards[i:], err.Error())
		metadata := map[string]string{
			"transaction_id": tx.ID,
			"kind":           string(tx.Kind),
			"reversed":       fmt.Sprint(len(reversed)),
		}
		if reverseErr != nil {
			metadata["reversal_error"] = reverseErr.Error()
		}
		h.emit(ctx, storage.TelemetryEvent{
			EventName:  "hero.push_failed",
			Severity:   string(telemetry.SeverityError),
			InstanceID: sc.rec.ID,
			HeroID:     sc.rec.HeroID,
			Attributes: map[string]any{
				"transaction_id": tx.ID,
				"kind":           string(tx.Kind),
				"error":          err.Error(),
			},
		})
		return reversed, apperrors.WrapWithMetadata(apperrors.CodeHeroPushFailed,
			"hero record rejected a committed reward", metadata, err)
	}
	return nil, nil
}

func (h Handler) reverseFrom(ctx context.Context, instanceID string, txs []transaction.Transaction, reason string) ([]string, error) {
	var reversed []string
	for _, tx := range txs {
		if _, err := h.Journal.Reverse(ctx, instanceID, tx.ID, reason); err != nil {
			if len(reversed) > 0 {
				h.invalidate(ctx, instanceID)
			}
			return reversed, fmt.Errorf("reverse %s: %w", tx.ID, err)
		}
		reversed = append(reversed, tx.ID)
	}
	if len(reversed) > 0 {
		h.invalidate(ctx, instanceID)
	}
	return reversed, nil
}
