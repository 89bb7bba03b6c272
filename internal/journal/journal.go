// Package journal owns the transaction lifecycle of campaign instances:
// validated append into the pending set, atomic promotion onto the
// committed hash chain, discard, and compensating reversal. It never
// interprets transaction payloads; derivation belongs to replay.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/platform/id"
	"github.com/waymark-rpg/waymark/internal/platform/requestctx"
	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/storage/integrity"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

var (
	// ErrInstanceStoreRequired indicates a missing instance store.
	ErrInstanceStoreRequired = errors.New("instance store is required")
	// ErrTransactionStoreRequired indicates a missing transaction store.
	ErrTransactionStoreRequired = errors.New("transaction store is required")
)

// replayPageSize is the committed-log page size used when loading a full
// log for replay or verification.
const replayPageSize = 200

// reverseAttempts bounds baseline re-stamping when a reversal loses a
// commit race to a concurrent writer.
const reverseAttempts = 3

// Journal coordinates instance identity and the transaction lifecycle.
// The zero value is not usable; Instances and Store must be set. NewID,
// Now, and Registry fall back to id.NewID, time.Now, and the built-in
// kind registry. A nil Keyring leaves committed chains unsigned.
type Journal struct {
	Instances storage.InstanceStore
	Store     storage.TransactionStore
	Registry  *transaction.Registry
	Keyring   *integrity.Keyring
	NewID     func() (string, error)
	Now       func() time.Time
}

func (j Journal) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

func (j Journal) newID() (string, error) {
	if j.NewID != nil {
		return j.NewID()
	}
	return id.NewID()
}

func (j Journal) registry() *transaction.Registry {
	if j.Registry != nil {
		return j.Registry
	}
	return transaction.DefaultRegistry()
}

// GetOrCreateInstance returns the instance for a campaign/hero pair,
// creating it on first contact. Racing creators converge on one record.
func (j Journal) GetOrCreateInstance(ctx context.Context, campaignRef, heroID string) (storage.InstanceRecord, error) {
	if j.Instances == nil {
		return storage.InstanceRecord{}, ErrInstanceStoreRequired
	}
	if strings.TrimSpace(campaignRef) == "" {
		return storage.InstanceRecord{}, apperrors.New(apperrors.CodeInstanceCampaignEmpty, "campaign ref is required")
	}
	if strings.TrimSpace(heroID) == "" {
		return storage.InstanceRecord{}, apperrors.New(apperrors.CodeInstanceHeroEmpty, "hero id is required")
	}

	rec, err := j.Instances.FindInstance(ctx, campaignRef, heroID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return storage.InstanceRecord{}, fmt.Errorf("find instance: %w", err)
	}

	instanceID, err := j.newID()
	if err != nil {
		return storage.InstanceRecord{}, fmt.Errorf("new instance id: %w", err)
	}
	now := j.now()
	rec = storage.InstanceRecord{
		ID:          instanceID,
		CampaignRef: campaignRef,
		HeroID:      heroID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	switch err := j.Instances.PutInstance(ctx, rec); {
	case err == nil:
		return rec, nil
	case errors.Is(err, storage.ErrInstanceExists):
		// Lost the creation race; the winner's record is authoritative.
		return j.Instances.FindInstance(ctx, campaignRef, heroID)
	default:
		return storage.InstanceRecord{}, fmt.Errorf("create instance: %w", err)
	}
}

// Append validates and stages a batch of transactions as pending. Each
// transaction receives an identifier, the current committed tail as its
// baseline sequence, its content hash, and the request identifier from
// context. Sequence numbers stay unassigned until commit. The returned
// batch carries the stamped copies in input order.
func (j Journal) Append(ctx context.Context, instanceID string, batch []transaction.Transaction) ([]transaction.Transaction, error) {
	if j.Store == nil {
		return nil, ErrTransactionStoreRequired
	}
	if len(batch) == 0 {
		return nil, apperrors.New(apperrors.CodeTransactionBatchEmpty, "transaction batch is empty")
	}

	tail, err := j.Store.LastCommittedSeq(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("committed tail: %w", err)
	}
	requestID := requestctx.RequestIDFromContext(ctx)
	registry := j.registry()

	// Validate and stamp the whole batch before touching the store so a
	// bad transaction rejects the batch without staging a partial one.
	stamped := make([]transaction.Transaction, 0, len(batch))
	for _, tx := range batch {
		tx.InstanceID = instanceID
		tx.Status = transaction.StatusPending
		if tx.OccurredAt.IsZero() {
			tx.OccurredAt = j.now()
		}
		normalized, err := registry.ValidateForAppend(tx)
		if err != nil {
			return nil, err
		}
		if normalized.ID == "" {
			txID, err := j.newID()
			if err != nil {
				return nil, fmt.Errorf("new transaction id: %w", err)
			}
			normalized.ID = txID
		}
		normalized.BaselineSeq = tail
		if normalized.RequestID == "" {
			normalized.RequestID = requestID
		}
		hash, err := transaction.ContentHash(normalized)
		if err != nil {
			return nil, fmt.Errorf("content hash %s: %w", normalized.ID, err)
		}
		normalized.Hash = hash
		stamped = append(stamped, normalized)
	}
	for _, tx := range stamped {
		if err := j.Store.AppendPending(ctx, tx); err != nil {
			return nil, fmt.Errorf("append pending %s: %w", tx.ID, err)
		}
	}
	return stamped, nil
}

// Commit atomically promotes pending transactions onto the committed
// chain. Returns storage.ErrCommitConflict when the committed tail moved
// past any baseline; on conflict nothing is committed and the batch stays
// pending for discard or re-append.
func (j Journal) Commit(ctx context.Context, instanceID string, txIDs []string) ([]transaction.Transaction, error) {
	if j.Store == nil {
		return nil, ErrTransactionStoreRequired
	}
	if len(txIDs) == 0 {
		return nil, apperrors.New(apperrors.CodeTransactionBatchEmpty, "transaction batch is empty")
	}
	return j.Store.CommitBatch(ctx, instanceID, txIDs, j.now())
}

// Discard flips pending transactions to discarded. Discarded rows stay in
// the store for audit and never gain a sequence number.
func (j Journal) Discard(ctx context.Context, instanceID string, txIDs []string) error {
	if j.Store == nil {
		return ErrTransactionStoreRequired
	}
	if len(txIDs) == 0 {
		return apperrors.New(apperrors.CodeTransactionBatchEmpty, "transaction batch is empty")
	}
	return j.Store.DiscardPending(ctx, instanceID, txIDs, j.now())
}

// Reverse appends and commits a compensating record for an earlier
// committed transaction whose external side effect failed. The original
// record stays in the log untouched; derived state simply counts the
// reversal. Losing a commit race re-stamps the reversal against the new
// tail up to reverseAttempts times.
func (j Journal) Reverse(ctx context.Context, instanceID, originalID, reason string) (transaction.Transaction, error) {
	if j.Store == nil {
		return transaction.Transaction{}, ErrTransactionStoreRequired
	}
	original, err := j.Store.GetTransaction(ctx, instanceID, originalID)
	if err != nil {
		return transaction.Transaction{}, fmt.Errorf("load original: %w", err)
	}
	if original.Status != transaction.StatusCommitted {
		return transaction.Transaction{}, apperrors.WithMetadata(
			apperrors.CodeTransactionNotCommitted,
			"only committed transactions can be reversed",
			map[string]string{"transaction_id": originalID, "status": string(original.Status)},
		)
	}

	payload := transaction.Reversed{
		OriginalID:   original.ID,
		OriginalKind: original.Kind,
		Reason:       reason,
	}

	var lastErr error
	for attempt := 0; attempt < reverseAttempts; attempt++ {
		reversal := transaction.Transaction{
			Kind:       transaction.KindReversed,
			HeroID:     original.HeroID,
			OccurredAt: j.now(),
			Attrs:      payload.Encode(),
		}
		stamped, err := j.Append(ctx, instanceID, []transaction.Transaction{reversal})
		if err != nil {
			return transaction.Transaction{}, err
		}
		committed, err := j.Commit(ctx, instanceID, []string{stamped[0].ID})
		if err == nil {
			return committed[0], nil
		}
		if !errors.Is(err, storage.ErrCommitConflict) {
			return transaction.Transaction{}, err
		}
		lastErr = err
		// Stale baseline: drop the losing pending row and retry against
		// the advanced tail.
		if err := j.Discard(ctx, instanceID, []string{stamped[0].ID}); err != nil {
			return transaction.Transaction{}, fmt.Errorf("discard stale reversal: %w", err)
		}
	}
	return transaction.Transaction{}, fmt.Errorf("reverse %s: %w", originalID, lastErr)
}

// LoadLog returns the full committed log for an instance in sequence
// order, paging through the store so a long journal never needs a single
// unbounded read.
func (j Journal) LoadLog(ctx context.Context, instanceID string) ([]transaction.Transaction, error) {
	if j.Store == nil {
		return nil, ErrTransactionStoreRequired
	}
	var log []transaction.Transaction
	var afterSeq uint64
	for {
		page, err := j.Store.ListCommitted(ctx, instanceID, afterSeq, replayPageSize)
		if err != nil {
			return nil, fmt.Errorf("list committed after %d: %w", afterSeq, err)
		}
		log = append(log, page...)
		if len(page) < replayPageSize {
			return log, nil
		}
		afterSeq = page[len(page)-1].Seq
	}
}

// VerifyIntegrity replays the committed chain and checks every content
// hash, chain link, and signature. A nil journal keyring skips signature
// verification only; hash and link checks always run.
func (j Journal) VerifyIntegrity(ctx context.Context, instanceID string) error {
	log, err := j.LoadLog(ctx, instanceID)
	if err != nil {
		return err
	}
	return integrity.VerifyChain(instanceID, log, j.Keyring)
}
