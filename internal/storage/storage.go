package storage

import (
	"context"
	"time"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/storage/cursor"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// ErrNotFound indicates a requested persistence record is missing.
// Callers use this to differentiate between legitimate "no such entity"
// states and transport or data corruption failures.
var ErrNotFound = apperrors.New(apperrors.CodeNotFound, "record not found")

// ErrCommitConflict indicates a commit raced another writer: the committed
// tail moved past the batch's baseline between validation and commit. The
// caller discards the batch and re-derives against current state.
var ErrCommitConflict = apperrors.New(apperrors.CodeCommitConflict, "committed tail moved past baseline")

// ErrInstanceExists indicates a create raced another creator for the same
// (campaign, hero) pair. Callers re-fetch and use the winner.
var ErrInstanceExists = apperrors.New(apperrors.CodeInstanceExists, "instance already exists for campaign and hero")

// ChainSigner signs committed chain hashes with a per-instance key. A nil
// signer leaves Signature and SignatureKeyID empty.
type ChainSigner interface {
	SignChainHash(instanceID, chainHash string) (signature string, keyID string, err error)
}

// InstanceRecord is one hero's run of one campaign. The pair
// (CampaignRef, HeroID) is unique; all journal state hangs off the
// instance ID.
type InstanceRecord struct {
	ID          string
	CampaignRef string
	HeroID      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InstanceStore owns campaign instance identity and the uniqueness of the
// (campaign, hero) pairing.
type InstanceStore interface {
	PutInstance(ctx context.Context, rec InstanceRecord) error
	GetInstance(ctx context.Context, id string) (InstanceRecord, error)
	// FindInstance returns the instance for a campaign/hero pair.
	// Returns ErrNotFound when the hero has never started the campaign.
	FindInstance(ctx context.Context, campaignRef, heroID string) (InstanceRecord, error)
	// ListInstancesByHero returns every instance a hero has started.
	ListInstancesByHero(ctx context.Context, heroID string) ([]InstanceRecord, error)
}

// TransactionStore owns the journal itself: the pending staging area and
// the committed, hash-chained, contiguous log that is the source of truth
// for state reconstruction.
type TransactionStore interface {
	// AppendPending stores a validated pending transaction. The content
	// hash and baseline sequence must already be set; the committed log
	// is untouched.
	AppendPending(ctx context.Context, tx transaction.Transaction) error
	// GetTransaction retrieves a transaction in any status.
	GetTransaction(ctx context.Context, instanceID, txID string) (transaction.Transaction, error)
	// GetTransactionByHash retrieves a transaction by its content hash.
	GetTransactionByHash(ctx context.Context, hash string) (transaction.Transaction, error)
	// ListPending returns pending transactions for an instance in append
	// order.
	ListPending(ctx context.Context, instanceID string) ([]transaction.Transaction, error)
	// CommitBatch atomically promotes pending transactions to the
	// committed log: it verifies every id is pending and its baseline
	// still equals the committed tail, assigns contiguous sequence
	// numbers, links the hash chain, and signs it. Returns
	// ErrCommitConflict when any baseline is stale; on conflict nothing
	// is committed.
	CommitBatch(ctx context.Context, instanceID string, txIDs []string, at time.Time) ([]transaction.Transaction, error)
	// DiscardPending flips pending transactions to discarded. Discarded
	// rows are retained for audit and never folded.
	DiscardPending(ctx context.Context, instanceID string, txIDs []string, at time.Time) error
	// ListCommitted returns committed transactions with seq greater than
	// afterSeq, ascending, at most limit.
	ListCommitted(ctx context.Context, instanceID string, afterSeq uint64, limit int) ([]transaction.Transaction, error)
	// LastCommittedSeq returns the committed tail, 0 for an empty log.
	LastCommittedSeq(ctx context.Context, instanceID string) (uint64, error)
	// ImportCommitted restores an archived committed log verbatim:
	// sequence numbers, timestamps, hash chain, and signatures land as
	// recorded. The instance's journal must be empty.
	ImportCommitted(ctx context.Context, instanceID string, txs []transaction.Transaction) error
	// ListTransactionsPage returns a paginated, filtered view of the
	// committed log for history tooling.
	ListTransactionsPage(ctx context.Context, req ListTransactionsPageRequest) (ListTransactionsPageResult, error)
}

// ListTransactionsPageRequest describes request filters for operator and
// tooling history views.
type ListTransactionsPageRequest struct {
	// InstanceID scopes the query to a specific instance (required).
	InstanceID string
	// AfterSeq returns only transactions with seq greater than this value.
	AfterSeq uint64
	// PageSize is the maximum number of transactions to return
	// (default: 50, max: 200).
	PageSize int
	// Cursor is the resume point from a previous page. The zero value
	// reads the first page.
	Cursor cursor.Cursor
	// Descending orders results by seq desc (newest first) when true.
	Descending bool
	// FilterClause is an optional SQL WHERE clause fragment.
	FilterClause string
	// FilterParams are the positional parameters for the filter clause.
	FilterParams []any
}

// ListTransactionsPageResult contains paginated journal history for
// introspection tooling.
type ListTransactionsPageResult struct {
	Transactions []transaction.Transaction
	HasNextPage  bool
	HasPrevPage  bool
	TotalCount   int
}

// Snapshot is a materialized derived-state checkpoint at a committed
// sequence number. Snapshots are accelerators for replay, not the source
// of authority; deleting them loses nothing.
type Snapshot struct {
	InstanceID string
	Seq        uint64
	StateJSON  []byte
	CreatedAt  time.Time
}

// SnapshotStore persists replay checkpoints used to jump fold work.
type SnapshotStore interface {
	PutSnapshot(ctx context.Context, snap Snapshot) error
	// GetLatestSnapshot retrieves the snapshot with the highest sequence
	// for an instance.
	GetLatestSnapshot(ctx context.Context, instanceID string) (Snapshot, error)
	// ListSnapshots returns snapshots ordered by sequence descending.
	ListSnapshots(ctx context.Context, instanceID string, limit int) ([]Snapshot, error)
	// PruneSnapshots deletes all but the newest keep snapshots.
	PruneSnapshots(ctx context.Context, instanceID string, keep int) error
}

// TelemetryEvent captures operational observations emitted during intent
// execution, including claim warnings that were accepted but flagged.
type TelemetryEvent struct {
	Timestamp      time.Time
	EventName      string
	Severity       string
	InstanceID     string
	HeroID         string
	RequestID      string
	TraceID        string
	SpanID         string
	Attributes     map[string]any
	AttributesJSON []byte
}

// TelemetryStore persists operational telemetry records for audits and
// anti-cheat review.
type TelemetryStore interface {
	AppendTelemetryEvent(ctx context.Context, evt TelemetryEvent) error
}

// JournalStatistics contains aggregate counters used by dashboards and
// housekeeping.
type JournalStatistics struct {
	InstanceCount  int64
	CommittedCount int64
	PendingCount   int64
	DiscardedCount int64
	ReversalCount  int64
	SnapshotCount  int64
}

// StatisticsStore centralizes aggregate count queries for operational
// observability.
type StatisticsStore interface {
	// GetJournalStatistics returns aggregate counts. When since is nil,
	// counts are for all time.
	GetJournalStatistics(ctx context.Context, since *time.Time) (JournalStatistics, error)
}

// Store is a composite interface for all persistence concerns used across
// journaling, derived-state caching, and queries.
type Store interface {
	InstanceStore
	TransactionStore
	SnapshotStore
	TelemetryStore
	StatisticsStore
	Close() error
}
