package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/storage/cursor"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

var base = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func pendingTx(t *testing.T, id string, baseline uint64) transaction.Transaction {
	t.Helper()
	tx := transaction.Transaction{
		ID:          id,
		InstanceID:  "inst-1",
		Kind:        transaction.KindFeatureInteracted,
		Status:      transaction.StatusPending,
		HeroID:      "hero-1",
		BaselineSeq: baseline,
		OccurredAt:  base,
		CanonicalAt: base,
		Attrs:       map[string]string{"feature": "f-vein"},
	}
	hash, err := transaction.ContentHash(tx)
	if err != nil {
		t.Fatalf("ContentHash() error = %v", err)
	}
	tx.Hash = hash
	return tx
}

func TestInstancePairUniqueness(t *testing.T) {
	ctx := context.Background()
	store := New()

	first := storage.InstanceRecord{ID: "inst-1", CampaignRef: "camp-ember", HeroID: "hero-1", CreatedAt: base, UpdatedAt: base}
	if err := store.PutInstance(ctx, first); err != nil {
		t.Fatalf("PutInstance() error = %v", err)
	}
	// Upserting the same instance is fine.
	if err := store.PutInstance(ctx, first); err != nil {
		t.Fatalf("PutInstance(same) error = %v", err)
	}
	rival := storage.InstanceRecord{ID: "inst-2", CampaignRef: "camp-ember", HeroID: "hero-1", CreatedAt: base}
	if err := store.PutInstance(ctx, rival); !errors.Is(err, storage.ErrInstanceExists) {
		t.Fatalf("PutInstance(rival pair) error = %v, want ErrInstanceExists", err)
	}

	found, err := store.FindInstance(ctx, "camp-ember", "hero-1")
	if err != nil {
		t.Fatalf("FindInstance() error = %v", err)
	}
	if found.ID != "inst-1" {
		t.Fatalf("FindInstance() = %q, want inst-1", found.ID)
	}
	if _, err := store.FindInstance(ctx, "camp-ember", "hero-9"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("FindInstance(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestListInstancesByHeroOrdered(t *testing.T) {
	ctx := context.Background()
	store := New()
	for i, campaign := range []string{"camp-c", "camp-a", "camp-b"} {
		rec := storage.InstanceRecord{
			ID:          fmt.Sprintf("inst-%d", i),
			CampaignRef: campaign,
			HeroID:      "hero-1",
			CreatedAt:   base.Add(time.Duration(i) * time.Hour),
		}
		if err := store.PutInstance(ctx, rec); err != nil {
			t.Fatalf("PutInstance() error = %v", err)
		}
	}
	list, err := store.ListInstancesByHero(ctx, "hero-1")
	if err != nil {
		t.Fatalf("ListInstancesByHero() error = %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("instances = %d, want 3", len(list))
	}
	if list[0].ID != "inst-0" || list[2].ID != "inst-2" {
		t.Fatalf("instances out of creation order: %v", list)
	}
}

func TestCommitBatchAssignsContiguousChain(t *testing.T) {
	ctx := context.Background()
	store := New()

	for _, id := range []string{"tx-a", "tx-b"} {
		if err := store.AppendPending(ctx, pendingTx(t, id, 0)); err != nil {
			t.Fatalf("AppendPending(%s) error = %v", id, err)
		}
	}
	committed, err := store.CommitBatch(ctx, "inst-1", []string{"tx-a", "tx-b"}, base.Add(time.Minute))
	if err != nil {
		t.Fatalf("CommitBatch() error = %v", err)
	}
	if len(committed) != 2 {
		t.Fatalf("committed = %d, want 2", len(committed))
	}
	if committed[0].Seq != 1 || committed[1].Seq != 2 {
		t.Fatalf("seqs = %d,%d, want 1,2", committed[0].Seq, committed[1].Seq)
	}
	if committed[0].PrevHash != "" {
		t.Fatalf("first PrevHash = %q, want empty", committed[0].PrevHash)
	}
	if committed[1].PrevHash != committed[0].Hash {
		t.Fatal("second PrevHash does not link to first content hash")
	}
	wantChain, err := transaction.ChainHash(committed[1], committed[0].ChainHash)
	if err != nil {
		t.Fatalf("ChainHash() error = %v", err)
	}
	if committed[1].ChainHash != wantChain {
		t.Fatal("second ChainHash does not extend first")
	}
	if !committed[0].CommittedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("CommittedAt = %v, want commit time", committed[0].CommittedAt)
	}

	tail, err := store.LastCommittedSeq(ctx, "inst-1")
	if err != nil {
		t.Fatalf("LastCommittedSeq() error = %v", err)
	}
	if tail != 2 {
		t.Fatalf("tail = %d, want 2", tail)
	}

	byHash, err := store.GetTransactionByHash(ctx, committed[0].Hash)
	if err != nil {
		t.Fatalf("GetTransactionByHash() error = %v", err)
	}
	if byHash.ID != "tx-a" || byHash.Status != transaction.StatusCommitted {
		t.Fatalf("GetTransactionByHash() = %s/%s, want tx-a committed", byHash.ID, byHash.Status)
	}
}

func TestCommitBatchConflictOnStaleBaseline(t *testing.T) {
	ctx := context.Background()
	store := New()

	// Two writers append against the same empty tail.
	if err := store.AppendPending(ctx, pendingTx(t, "tx-win", 0)); err != nil {
		t.Fatalf("AppendPending() error = %v", err)
	}
	if err := store.AppendPending(ctx, pendingTx(t, "tx-lose", 0)); err != nil {
		t.Fatalf("AppendPending() error = %v", err)
	}
	if _, err := store.CommitBatch(ctx, "inst-1", []string{"tx-win"}, base); err != nil {
		t.Fatalf("CommitBatch(winner) error = %v", err)
	}
	_, err := store.CommitBatch(ctx, "inst-1", []string{"tx-lose"}, base)
	if !errors.Is(err, storage.ErrCommitConflict) {
		t.Fatalf("CommitBatch(loser) error = %v, want ErrCommitConflict", err)
	}
	// The losing transaction is untouched and still pending.
	lost, err := store.GetTransaction(ctx, "inst-1", "tx-lose")
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if lost.Status != transaction.StatusPending || lost.Seq != 0 {
		t.Fatalf("loser status/seq = %s/%d, want pending/0", lost.Status, lost.Seq)
	}
	tail, err := store.LastCommittedSeq(ctx, "inst-1")
	if err != nil {
		t.Fatalf("LastCommittedSeq() error = %v", err)
	}
	if tail != 1 {
		t.Fatalf("tail = %d, want 1 (conflict commits nothing)", tail)
	}
}

func TestCommitBatchRejectsNonPending(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.AppendPending(ctx, pendingTx(t, "tx-a", 0)); err != nil {
		t.Fatalf("AppendPending() error = %v", err)
	}
	if _, err := store.CommitBatch(ctx, "inst-1", []string{"tx-a"}, base); err != nil {
		t.Fatalf("CommitBatch() error = %v", err)
	}
	if _, err := store.CommitBatch(ctx, "inst-1", []string{"tx-a"}, base); err == nil {
		t.Fatal("CommitBatch(committed id) error = nil, want not-pending")
	}
	if _, err := store.CommitBatch(ctx, "inst-1", []string{"tx-missing"}, base); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("CommitBatch(missing id) error = %v, want ErrNotFound", err)
	}
}

func TestDiscardPendingRetainsRecord(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.AppendPending(ctx, pendingTx(t, "tx-a", 0)); err != nil {
		t.Fatalf("AppendPending() error = %v", err)
	}
	if err := store.DiscardPending(ctx, "inst-1", []string{"tx-a"}, base.Add(time.Minute)); err != nil {
		t.Fatalf("DiscardPending() error = %v", err)
	}
	got, err := store.GetTransaction(ctx, "inst-1", "tx-a")
	if err != nil {
		t.Fatalf("GetTransaction() error = %v", err)
	}
	if got.Status != transaction.StatusDiscarded {
		t.Fatalf("status = %s, want discarded", got.Status)
	}
	if !got.DiscardedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("DiscardedAt = %v, want discard time", got.DiscardedAt)
	}
	pending, err := store.ListPending(ctx, "inst-1")
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after discard = %d, want 0", len(pending))
	}
	if err := store.DiscardPending(ctx, "inst-1", []string{"tx-a"}, base); err == nil {
		t.Fatal("DiscardPending(discarded id) error = nil, want not-pending")
	}
}

func TestListCommittedWindow(t *testing.T) {
	ctx := context.Background()
	store := New()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("tx-%d", i)
		if err := store.AppendPending(ctx, pendingTx(t, id, 0)); err != nil {
			t.Fatalf("AppendPending() error = %v", err)
		}
		ids = append(ids, id)
	}
	if _, err := store.CommitBatch(ctx, "inst-1", ids, base); err != nil {
		t.Fatalf("CommitBatch() error = %v", err)
	}

	window, err := store.ListCommitted(ctx, "inst-1", 2, 2)
	if err != nil {
		t.Fatalf("ListCommitted() error = %v", err)
	}
	if len(window) != 2 || window[0].Seq != 3 || window[1].Seq != 4 {
		t.Fatalf("window = %+v, want seqs 3,4", window)
	}
	empty, err := store.ListCommitted(ctx, "inst-1", 9, 0)
	if err != nil {
		t.Fatalf("ListCommitted(past tail) error = %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("past-tail window = %d, want 0", len(empty))
	}
}

func TestListTransactionsPage(t *testing.T) {
	ctx := context.Background()
	store := New()

	ids := make([]string, 0, 7)
	for i := 0; i < 7; i++ {
		id := fmt.Sprintf("tx-%d", i)
		if err := store.AppendPending(ctx, pendingTx(t, id, 0)); err != nil {
			t.Fatalf("AppendPending() error = %v", err)
		}
		ids = append(ids, id)
	}
	if _, err := store.CommitBatch(ctx, "inst-1", ids, base); err != nil {
		t.Fatalf("CommitBatch() error = %v", err)
	}

	page, err := store.ListTransactionsPage(ctx, storage.ListTransactionsPageRequest{InstanceID: "inst-1", PageSize: 3})
	if err != nil {
		t.Fatalf("ListTransactionsPage() error = %v", err)
	}
	if len(page.Transactions) != 3 || page.Transactions[0].Seq != 1 {
		t.Fatalf("first page = %+v, want seqs 1..3", page.Transactions)
	}
	if !page.HasNextPage || page.TotalCount != 7 {
		t.Fatalf("HasNextPage=%v TotalCount=%d, want true/7", page.HasNextPage, page.TotalCount)
	}

	next, err := store.ListTransactionsPage(ctx, storage.ListTransactionsPageRequest{
		InstanceID: "inst-1", PageSize: 3, Cursor: cursor.NextPage(3, false),
	})
	if err != nil {
		t.Fatalf("ListTransactionsPage(next) error = %v", err)
	}
	if len(next.Transactions) != 3 || next.Transactions[0].Seq != 4 {
		t.Fatalf("second page = %+v, want seqs 4..6", next.Transactions)
	}

	newest, err := store.ListTransactionsPage(ctx, storage.ListTransactionsPageRequest{
		InstanceID: "inst-1", PageSize: 2, Descending: true,
	})
	if err != nil {
		t.Fatalf("ListTransactionsPage(desc) error = %v", err)
	}
	if len(newest.Transactions) != 2 || newest.Transactions[0].Seq != 7 {
		t.Fatalf("descending page = %+v, want newest first", newest.Transactions)
	}

	if _, err := store.ListTransactionsPage(ctx, storage.ListTransactionsPageRequest{
		InstanceID: "inst-1", FilterClause: "kind = ?", FilterParams: []any{"feature.interacted"},
	}); err == nil {
		t.Fatal("ListTransactionsPage(filter) error = nil, want unsupported")
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	ctx := context.Background()
	store := New()

	for _, seq := range []uint64{10, 30, 20} {
		snap := storage.Snapshot{
			InstanceID: "inst-1",
			Seq:        seq,
			StateJSON:  []byte(fmt.Sprintf(`{"seq":%d}`, seq)),
			CreatedAt:  base,
		}
		if err := store.PutSnapshot(ctx, snap); err != nil {
			t.Fatalf("PutSnapshot(%d) error = %v", seq, err)
		}
	}
	latest, err := store.GetLatestSnapshot(ctx, "inst-1")
	if err != nil {
		t.Fatalf("GetLatestSnapshot() error = %v", err)
	}
	if latest.Seq != 30 {
		t.Fatalf("latest seq = %d, want 30", latest.Seq)
	}
	list, err := store.ListSnapshots(ctx, "inst-1", 2)
	if err != nil {
		t.Fatalf("ListSnapshots() error = %v", err)
	}
	if len(list) != 2 || list[0].Seq != 30 || list[1].Seq != 20 {
		t.Fatalf("snapshots = %+v, want 30,20", list)
	}
	if err := store.PruneSnapshots(ctx, "inst-1", 1); err != nil {
		t.Fatalf("PruneSnapshots() error = %v", err)
	}
	remaining, err := store.ListSnapshots(ctx, "inst-1", 0)
	if err != nil {
		t.Fatalf("ListSnapshots(after prune) error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].Seq != 30 {
		t.Fatalf("after prune = %+v, want only 30", remaining)
	}
	if _, err := store.GetLatestSnapshot(ctx, "inst-9"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetLatestSnapshot(unknown) error = %v, want ErrNotFound", err)
	}
}

type fakeSigner struct{}

func (fakeSigner) SignChainHash(instanceID, chainHash string) (string, string, error) {
	return "sig:" + instanceID + ":" + chainHash[:8], "k-test", nil
}

func TestCommitSignsChainWhenConfigured(t *testing.T) {
	ctx := context.Background()
	store := New(WithSigner(fakeSigner{}))

	if err := store.AppendPending(ctx, pendingTx(t, "tx-a", 0)); err != nil {
		t.Fatalf("AppendPending() error = %v", err)
	}
	committed, err := store.CommitBatch(ctx, "inst-1", []string{"tx-a"}, base)
	if err != nil {
		t.Fatalf("CommitBatch() error = %v", err)
	}
	if committed[0].Signature == "" || committed[0].SignatureKeyID != "k-test" {
		t.Fatalf("signature = %q key = %q, want signed with k-test", committed[0].Signature, committed[0].SignatureKeyID)
	}
}

func TestJournalStatistics(t *testing.T) {
	ctx := context.Background()
	store := New()

	if err := store.PutInstance(ctx, storage.InstanceRecord{ID: "inst-1", CampaignRef: "camp-ember", HeroID: "hero-1", CreatedAt: base}); err != nil {
		t.Fatalf("PutInstance() error = %v", err)
	}
	for _, id := range []string{"tx-a", "tx-b", "tx-c"} {
		if err := store.AppendPending(ctx, pendingTx(t, id, 0)); err != nil {
			t.Fatalf("AppendPending() error = %v", err)
		}
	}
	if _, err := store.CommitBatch(ctx, "inst-1", []string{"tx-a"}, base); err != nil {
		t.Fatalf("CommitBatch() error = %v", err)
	}
	if err := store.DiscardPending(ctx, "inst-1", []string{"tx-b"}, base); err != nil {
		t.Fatalf("DiscardPending() error = %v", err)
	}
	stats, err := store.GetJournalStatistics(ctx, nil)
	if err != nil {
		t.Fatalf("GetJournalStatistics() error = %v", err)
	}
	want := storage.JournalStatistics{InstanceCount: 1, CommittedCount: 1, PendingCount: 1, DiscardedCount: 1}
	if stats != want {
		t.Fatalf("stats = %+v, want %+v", stats, want)
	}
}

func TestImportCommittedRestoresJournalVerbatim(t *testing.T) {
	ctx := context.Background()
	source := New()
	for _, id := range []string{"tx-a", "tx-b", "tx-c"} {
		if err := source.AppendPending(ctx, pendingTx(t, id, 0)); err != nil {
			t.Fatalf("AppendPending(%s) error = %v", id, err)
		}
	}
	if _, err := source.CommitBatch(ctx, "inst-1", []string{"tx-a", "tx-b", "tx-c"}, base.Add(time.Minute)); err != nil {
		t.Fatalf("CommitBatch() error = %v", err)
	}
	log, err := source.ListCommitted(ctx, "inst-1", 0, 0)
	if err != nil {
		t.Fatalf("ListCommitted() error = %v", err)
	}

	target := New()
	if err := target.ImportCommitted(ctx, "inst-1", log); err != nil {
		t.Fatalf("ImportCommitted() error = %v", err)
	}
	tail, err := target.LastCommittedSeq(ctx, "inst-1")
	if err != nil {
		t.Fatalf("LastCommittedSeq() error = %v", err)
	}
	if tail != 3 {
		t.Fatalf("tail = %d, want 3", tail)
	}
	restored, err := target.ListCommitted(ctx, "inst-1", 0, 0)
	if err != nil {
		t.Fatalf("ListCommitted(target) error = %v", err)
	}
	for i, tx := range restored {
		if tx.ChainHash != log[i].ChainHash || tx.Seq != log[i].Seq || !tx.CommittedAt.Equal(log[i].CommittedAt) {
			t.Fatalf("restored[%d] = %+v, want %+v", i, tx, log[i])
		}
	}
	if _, err := target.GetTransactionByHash(ctx, log[0].Hash); err != nil {
		t.Fatalf("GetTransactionByHash() error = %v", err)
	}

	// A second import cannot overwrite the journal.
	err = target.ImportCommitted(ctx, "inst-1", log)
	if err == nil || !strings.Contains(err.Error(), "not empty") {
		t.Fatalf("ImportCommitted(again) error = %v, want journal-not-empty error", err)
	}
}

func TestImportCommittedRejectsBrokenBatches(t *testing.T) {
	ctx := context.Background()
	store := New()

	pending := pendingTx(t, "tx-a", 0)
	pending.Seq = 1
	if err := store.ImportCommitted(ctx, "inst-1", []transaction.Transaction{pending}); err == nil {
		t.Fatal("ImportCommitted(pending) error = nil, want status error")
	}

	gapped := pendingTx(t, "tx-b", 0)
	gapped.Status = transaction.StatusCommitted
	gapped.Seq = 2
	err := store.ImportCommitted(ctx, "inst-1", []transaction.Transaction{gapped})
	if err == nil || !strings.Contains(err.Error(), "want 1") {
		t.Fatalf("ImportCommitted(gap) error = %v, want contiguity error", err)
	}

	if err := store.ImportCommitted(ctx, "inst-1", nil); err != nil {
		t.Fatalf("ImportCommitted(empty) error = %v, want nil", err)
	}
}
