// Package memory provides an in-memory Store for tests, scenario runs,
// and single-process tooling. It implements the same commit semantics as
// the durable engines, including the optimistic baseline check and hash
// chain linking, so journal behavior is identical across backends.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/storage/cursor"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

type txLocator struct {
	instanceID string
	txID       string
}

// Store is an in-memory implementation of storage.Store. Safe for
// concurrent use.
type Store struct {
	mu     sync.RWMutex
	signer storage.ChainSigner

	instances  map[string]storage.InstanceRecord
	pairIndex  map[string]string
	txs        map[string]map[string]transaction.Transaction
	appendSeen map[string][]string
	committed  map[string][]transaction.Transaction
	hashIndex  map[string]txLocator
	snapshots  map[string][]storage.Snapshot
	telemetry  []storage.TelemetryEvent
}

// Option configures a Store.
type Option func(*Store)

// WithSigner signs committed chain hashes with the given signer.
func WithSigner(signer storage.ChainSigner) Option {
	return func(s *Store) { s.signer = signer }
}

// New returns an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		instances:  map[string]storage.InstanceRecord{},
		pairIndex:  map[string]string{},
		txs:        map[string]map[string]transaction.Transaction{},
		appendSeen: map[string][]string{},
		committed:  map[string][]transaction.Transaction{},
		hashIndex:  map[string]txLocator{},
		snapshots:  map[string][]storage.Snapshot{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func pairKey(campaignRef, heroID string) string {
	return campaignRef + "\x00" + heroID
}

// PutInstance stores an instance record. Returns ErrInstanceExists when a
// different instance already owns the (campaign, hero) pair.
func (s *Store) PutInstance(ctx context.Context, rec storage.InstanceRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID == "" {
		return fmt.Errorf("instance id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(rec.CampaignRef, rec.HeroID)
	if ownerID, taken := s.pairIndex[key]; taken && ownerID != rec.ID {
		return storage.ErrInstanceExists
	}
	s.instances[rec.ID] = rec
	s.pairIndex[key] = rec.ID
	return nil
}

// GetInstance retrieves an instance by id.
func (s *Store) GetInstance(ctx context.Context, id string) (storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InstanceRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.instances[id]
	if !ok {
		return storage.InstanceRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

// FindInstance retrieves the instance for a campaign/hero pair.
func (s *Store) FindInstance(ctx context.Context, campaignRef, heroID string) (storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.InstanceRecord{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.pairIndex[pairKey(campaignRef, heroID)]
	if !ok {
		return storage.InstanceRecord{}, storage.ErrNotFound
	}
	return s.instances[id], nil
}

// ListInstancesByHero returns every instance a hero has started, ordered
// by creation time.
func (s *Store) ListInstancesByHero(ctx context.Context, heroID string) ([]storage.InstanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []storage.InstanceRecord
	for _, rec := range s.instances {
		if rec.HeroID == heroID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// AppendPending stores a pending transaction.
func (s *Store) AppendPending(ctx context.Context, tx transaction.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx.ID == "" || tx.InstanceID == "" {
		return fmt.Errorf("transaction id and instance id are required")
	}
	if tx.Status != transaction.StatusPending {
		return apperrors.New(apperrors.CodeTransactionNotPending, "append requires a pending transaction")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.txs[tx.InstanceID]
	if byID == nil {
		byID = map[string]transaction.Transaction{}
		s.txs[tx.InstanceID] = byID
	}
	if _, exists := byID[tx.ID]; exists {
		return fmt.Errorf("transaction %s already appended", tx.ID)
	}
	byID[tx.ID] = tx.Clone()
	s.appendSeen[tx.InstanceID] = append(s.appendSeen[tx.InstanceID], tx.ID)
	if tx.Hash != "" {
		s.hashIndex[tx.Hash] = txLocator{instanceID: tx.InstanceID, txID: tx.ID}
	}
	return nil
}

// GetTransaction retrieves a transaction in any status.
func (s *Store) GetTransaction(ctx context.Context, instanceID, txID string) (transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return transaction.Transaction{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[instanceID][txID]
	if !ok {
		return transaction.Transaction{}, storage.ErrNotFound
	}
	return tx.Clone(), nil
}

// GetTransactionByHash retrieves a transaction by content hash.
func (s *Store) GetTransactionByHash(ctx context.Context, hash string) (transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return transaction.Transaction{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	loc, ok := s.hashIndex[hash]
	if !ok {
		return transaction.Transaction{}, storage.ErrNotFound
	}
	return s.txs[loc.instanceID][loc.txID].Clone(), nil
}

// ListPending returns pending transactions in append order.
func (s *Store) ListPending(ctx context.Context, instanceID string) ([]transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []transaction.Transaction
	for _, id := range s.appendSeen[instanceID] {
		tx := s.txs[instanceID][id]
		if tx.Status == transaction.StatusPending {
			out = append(out, tx.Clone())
		}
	}
	return out, nil
}

// CommitBatch promotes pending transactions to the committed log.
func (s *Store) CommitBatch(ctx context.Context, instanceID string, txIDs []string, at time.Time) ([]transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(txIDs) == 0 {
		return nil, apperrors.New(apperrors.CodeTransactionBatchEmpty, "commit batch is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := s.txs[instanceID]
	tail := uint64(len(s.committed[instanceID]))
	batch := make([]transaction.Transaction, 0, len(txIDs))
	for _, id := range txIDs {
		tx, ok := byID[id]
		if !ok {
			return nil, storage.ErrNotFound
		}
		if tx.Status != transaction.StatusPending {
			return nil, apperrors.WithMetadata(apperrors.CodeTransactionNotPending,
				fmt.Sprintf("transaction %s is %s", id, tx.Status),
				map[string]string{"transaction_id": id, "status": string(tx.Status)})
		}
		if tx.BaselineSeq != tail {
			return nil, storage.ErrCommitConflict
		}
		batch = append(batch, tx)
	}

	prevChain := ""
	prevHash := ""
	if tail > 0 {
		last := s.committed[instanceID][tail-1]
		prevChain = last.ChainHash
		prevHash = last.Hash
	}
	committed := make([]transaction.Transaction, 0, len(batch))
	for i, tx := range batch {
		tx.Seq = tail + uint64(i) + 1
		tx.Status = transaction.StatusCommitted
		tx.CommittedAt = at
		tx.PrevHash = prevHash
		chain, err := transaction.ChainHash(tx, prevChain)
		if err != nil {
			return nil, fmt.Errorf("chain transaction %s: %w", tx.ID, err)
		}
		tx.ChainHash = chain
		if s.signer != nil {
			sig, keyID, err := s.signer.SignChainHash(instanceID, chain)
			if err != nil {
				return nil, fmt.Errorf("sign transaction %s: %w", tx.ID, err)
			}
			tx.Signature = sig
			tx.SignatureKeyID = keyID
		}
		prevChain = chain
		prevHash = tx.Hash
		committed = append(committed, tx)
	}

	for _, tx := range committed {
		byID[tx.ID] = tx
		s.committed[instanceID] = append(s.committed[instanceID], tx)
	}
	out := make([]transaction.Transaction, len(committed))
	for i, tx := range committed {
		out[i] = tx.Clone()
	}
	return out, nil
}

// DiscardPending flips pending transactions to discarded.
func (s *Store) DiscardPending(ctx context.Context, instanceID string, txIDs []string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.txs[instanceID]
	for _, id := range txIDs {
		tx, ok := byID[id]
		if !ok {
			return storage.ErrNotFound
		}
		if tx.Status != transaction.StatusPending {
			return apperrors.WithMetadata(apperrors.CodeTransactionNotPending,
				fmt.Sprintf("transaction %s is %s", id, tx.Status),
				map[string]string{"transaction_id": id, "status": string(tx.Status)})
		}
	}
	for _, id := range txIDs {
		tx := byID[id]
		tx.Status = transaction.StatusDiscarded
		tx.DiscardedAt = at
		byID[id] = tx
	}
	return nil
}

// ListCommitted returns committed transactions after afterSeq, ascending.
func (s *Store) ListCommitted(ctx context.Context, instanceID string, afterSeq uint64, limit int) ([]transaction.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.committed[instanceID]
	if afterSeq >= uint64(len(log)) {
		return nil, nil
	}
	rest := log[afterSeq:]
	if limit > 0 && limit < len(rest) {
		rest = rest[:limit]
	}
	out := make([]transaction.Transaction, len(rest))
	for i, tx := range rest {
		out[i] = tx.Clone()
	}
	return out, nil
}

// LastCommittedSeq returns the committed tail.
func (s *Store) LastCommittedSeq(ctx context.Context, instanceID string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.committed[instanceID])), nil
}

// ImportCommitted restores an archived committed log verbatim.
func (s *Store) ImportCommitted(ctx context.Context, instanceID string, txs []transaction.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if instanceID == "" {
		return fmt.Errorf("instance id is required")
	}
	if len(txs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.txs[instanceID]) > 0 || len(s.committed[instanceID]) > 0 {
		return fmt.Errorf("instance %s journal is not empty", instanceID)
	}
	for i, tx := range txs {
		if tx.Status != transaction.StatusCommitted {
			return apperrors.WithMetadata(apperrors.CodeTransactionNotCommitted,
				fmt.Sprintf("transaction %s is %s", tx.ID, tx.Status),
				map[string]string{"transaction_id": tx.ID, "status": string(tx.Status)})
		}
		if want := uint64(i) + 1; tx.Seq != want {
			return fmt.Errorf("transaction %s has seq %d, want %d", tx.ID, tx.Seq, want)
		}
	}
	byID := map[string]transaction.Transaction{}
	s.txs[instanceID] = byID
	for _, tx := range txs {
		cp := tx.Clone()
		byID[cp.ID] = cp
		s.appendSeen[instanceID] = append(s.appendSeen[instanceID], cp.ID)
		s.committed[instanceID] = append(s.committed[instanceID], cp)
		if cp.Hash != "" {
			s.hashIndex[cp.Hash] = txLocator{instanceID: instanceID, txID: cp.ID}
		}
	}
	return nil
}

// ListTransactionsPage returns a paginated view of the committed log.
// The memory store does not evaluate SQL filter clauses; requests carrying
// one are rejected so callers fail loudly instead of silently unfiltered.
func (s *Store) ListTransactionsPage(ctx context.Context, req storage.ListTransactionsPageRequest) (storage.ListTransactionsPageResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.ListTransactionsPageResult{}, err
	}
	if req.InstanceID == "" {
		return storage.ListTransactionsPageResult{}, fmt.Errorf("instance id is required")
	}
	if req.FilterClause != "" {
		return storage.ListTransactionsPageResult{}, fmt.Errorf("memory store does not support filter clauses")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.committed[req.InstanceID]
	matching := make([]transaction.Transaction, 0, len(log))
	for _, tx := range log {
		if tx.Seq <= req.AfterSeq {
			continue
		}
		matching = append(matching, tx)
	}
	total := len(matching)

	// Cursor narrows to one side of the sequence the caller saw last.
	visible := matching
	if !req.Cursor.Zero() {
		visible = visible[:0:0]
		for _, tx := range matching {
			switch req.Cursor.Dir {
			case cursor.Backward:
				if tx.Seq < req.Cursor.Seq {
					visible = append(visible, tx)
				}
			default:
				if tx.Seq > req.Cursor.Seq {
					visible = append(visible, tx)
				}
			}
		}
	}

	descending := req.Descending
	if req.Cursor.Reverse {
		descending = !descending
	}
	if descending {
		for i, j := 0, len(visible)-1; i < j; i, j = i+1, j-1 {
			visible[i], visible[j] = visible[j], visible[i]
		}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}
	hasMore := len(visible) > pageSize
	if hasMore {
		visible = visible[:pageSize]
	}
	if req.Cursor.Reverse {
		for i, j := 0, len(visible)-1; i < j; i, j = i+1, j-1 {
			visible[i], visible[j] = visible[j], visible[i]
		}
	}

	out := make([]transaction.Transaction, len(visible))
	for i, tx := range visible {
		out[i] = tx.Clone()
	}
	result := storage.ListTransactionsPageResult{
		Transactions: out,
		TotalCount:   total,
	}
	if req.Cursor.Reverse {
		result.HasPrevPage = hasMore
		result.HasNextPage = true
	} else {
		result.HasNextPage = hasMore
		result.HasPrevPage = !req.Cursor.Zero()
	}
	return result, nil
}

// PutSnapshot stores a snapshot, replacing any existing one at the same
// sequence.
func (s *Store) PutSnapshot(ctx context.Context, snap storage.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.InstanceID == "" {
		return fmt.Errorf("instance id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := snap
	stored.StateJSON = append([]byte(nil), snap.StateJSON...)
	list := s.snapshots[snap.InstanceID]
	for i, existing := range list {
		if existing.Seq == snap.Seq {
			list[i] = stored
			return nil
		}
	}
	list = append(list, stored)
	sort.Slice(list, func(i, j int) bool { return list[i].Seq < list[j].Seq })
	s.snapshots[snap.InstanceID] = list
	return nil
}

// GetLatestSnapshot retrieves the highest-sequence snapshot.
func (s *Store) GetLatestSnapshot(ctx context.Context, instanceID string) (storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return storage.Snapshot{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.snapshots[instanceID]
	if len(list) == 0 {
		return storage.Snapshot{}, storage.ErrNotFound
	}
	return cloneSnapshot(list[len(list)-1]), nil
}

// ListSnapshots returns snapshots ordered by sequence descending.
func (s *Store) ListSnapshots(ctx context.Context, instanceID string, limit int) ([]storage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.snapshots[instanceID]
	var out []storage.Snapshot
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, cloneSnapshot(list[i]))
	}
	return out, nil
}

// PruneSnapshots deletes all but the newest keep snapshots.
func (s *Store) PruneSnapshots(ctx context.Context, instanceID string, keep int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if keep < 0 {
		keep = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.snapshots[instanceID]
	if len(list) <= keep {
		return nil
	}
	s.snapshots[instanceID] = append([]storage.Snapshot(nil), list[len(list)-keep:]...)
	return nil
}

// AppendTelemetryEvent records a telemetry event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := evt
	if evt.Attributes != nil {
		stored.Attributes = make(map[string]any, len(evt.Attributes))
		for k, v := range evt.Attributes {
			stored.Attributes[k] = v
		}
	}
	stored.AttributesJSON = append([]byte(nil), evt.AttributesJSON...)
	s.telemetry = append(s.telemetry, stored)
	return nil
}

// TelemetryEvents returns a copy of recorded telemetry, for tests.
func (s *Store) TelemetryEvents() []storage.TelemetryEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]storage.TelemetryEvent(nil), s.telemetry...)
}

// GetJournalStatistics returns aggregate counts.
func (s *Store) GetJournalStatistics(ctx context.Context, since *time.Time) (storage.JournalStatistics, error) {
	if err := ctx.Err(); err != nil {
		return storage.JournalStatistics{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats storage.JournalStatistics
	for _, rec := range s.instances {
		if since == nil || !rec.CreatedAt.Before(*since) {
			stats.InstanceCount++
		}
	}
	for _, byID := range s.txs {
		for _, tx := range byID {
			switch tx.Status {
			case transaction.StatusCommitted:
				if since != nil && tx.CommittedAt.Before(*since) {
					continue
				}
				stats.CommittedCount++
				if tx.Kind == transaction.KindReversed {
					stats.ReversalCount++
				}
			case transaction.StatusPending:
				if since != nil && tx.OccurredAt.Before(*since) {
					continue
				}
				stats.PendingCount++
			case transaction.StatusDiscarded:
				if since != nil && tx.DiscardedAt.Before(*since) {
					continue
				}
				stats.DiscardedCount++
			}
		}
	}
	for _, list := range s.snapshots {
		for _, snap := range list {
			if since == nil || !snap.CreatedAt.Before(*since) {
				stats.SnapshotCount++
			}
		}
	}
	return stats, nil
}

// Close releases nothing; it exists to satisfy storage.Store.
func (s *Store) Close() error {
	return nil
}

func cloneSnapshot(snap storage.Snapshot) storage.Snapshot {
	out := snap
	out.StateJSON = append([]byte(nil), snap.StateJSON...)
	return out
}
