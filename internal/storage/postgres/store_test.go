package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/waymark-rpg/waymark/internal/platform/errors"
	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

var base = time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)

func openStubStore(t *testing.T) (*Store, *stubConn) {
	t.Helper()
	db, conn := newStubDB(t)
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	t.Cleanup(restore)

	store, err := Open("stub://journal")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store, conn
}

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
		Attrs:       map[string]string{"feature": "f-vein"},
	}
	hash, err := transaction.ContentHash(tx)
	if err != nil {
		t.Fatalf("ContentHash() error = %v", err)
	}
	tx.Hash = hash
	return tx
}

func TestOpenDefaultsDSNAndAppliesSchema(t *testing.T) {
	db, conn := newStubDB(t)
	var recordedDSN string
	restore := OverrideSQLOpen(func(_, dsn string) (*sql.DB, error) {
		recordedDSN = dsn
		return db, nil
	})
	defer restore()

	store, err := Open("")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if recordedDSN != defaultDSN {
		t.Fatalf("Open(blank) dsn = %q, want %q", recordedDSN, defaultDSN)
	}
	var sawTransactions, sawSnapshots bool
	for _, stmt := range conn.execs {
		upper := strings.ToUpper(stmt)
		if strings.Contains(upper, "CREATE TABLE IF NOT EXISTS TRANSACTIONS") {
			sawTransactions = true
		}
		if strings.Contains(upper, "CREATE TABLE IF NOT EXISTS SNAPSHOTS") {
			sawSnapshots = true
		}
	}
	if !sawTransactions || !sawSnapshots {
		t.Fatalf("expected schema DDL on open, got execs: %v", conn.execs)
	}
}

func TestOpenFailsWhenPingFails(t *testing.T) {
	db, conn := newStubDB(t)
	conn.failPing = true
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := Open("stub://journal"); err == nil {
		t.Fatal("Open() error = nil, want ping failure")
	}
}

func TestRebind(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"instance_id = ? AND status = ?", "instance_id = $1 AND status = $2"},
		{"seq > ?", "seq > $1"},
		{"no placeholders here", "no placeholders here"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := rebind(tc.in); got != tc.want {
			t.Fatalf("rebind(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestAppendPendingValidatesBeforeWrite(t *testing.T) {
	ctx := context.Background()
	store, conn := openStubStore(t)

	if err := store.AppendPending(ctx, transaction.Transaction{}); err == nil {
		t.Fatal("AppendPending(empty) error = nil, want id validation error")
	}
	committed := pendingTx(t, "tx-a", 0)
	committed.Status = transaction.StatusCommitted
	if err := store.AppendPending(ctx, committed); !apperrors.HasCode(err, apperrors.CodeTransactionNotPending) {
		t.Fatalf("AppendPending(committed) error = %v, want CodeTransactionNotPending", err)
	}
	for _, stmt := range conn.execs {
		if strings.HasPrefix(strings.TrimSpace(strings.ToUpper(stmt)), "INSERT") {
			t.Fatalf("rejected append reached the database: %q", stmt)
		}
	}

	if err := store.AppendPending(ctx, pendingTx(t, "tx-a", 0)); err != nil {
		t.Fatalf("AppendPending() error = %v", err)
	}
	var sawInsert bool
	for _, stmt := range conn.execs {
		if strings.Contains(strings.ToUpper(stmt), "INSERT INTO TRANSACTIONS") {
			sawInsert = true
			break
		}
	}
	if !sawInsert {
		t.Fatalf("expected transaction insert, got execs: %v", conn.execs)
	}
}

func TestCommitBatchRejectsEmptyBatch(t *testing.T) {
	store, _ := openStubStore(t)

	_, err := store.CommitBatch(context.Background(), "inst-1", nil, base)
	if !apperrors.HasCode(err, apperrors.CodeTransactionBatchEmpty) {
		t.Fatalf("CommitBatch(empty) error = %v, want CodeTransactionBatchEmpty", err)
	}
}

func TestListPendingEmptyJournal(t *testing.T) {
	store, _ := openStubStore(t)

	pending, err := store.ListPending(context.Background(), "inst-1")
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("ListPending() = %d transactions, want 0", len(pending))
	}
}

func TestGetInstanceMapsMissingRow(t *testing.T) {
	store, _ := openStubStore(t)

	if _, err := store.GetInstance(context.Background(), "inst-missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetInstance(missing) error = %v, want ErrNotFound", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505"}
	if !isUniqueViolation(unique) {
		t.Fatal("isUniqueViolation(23505) = false, want true")
	}
	if !isUniqueViolation(fmt.Errorf("insert: %w", unique)) {
		t.Fatal("isUniqueViolation(wrapped 23505) = false, want true")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "40001"}) {
		t.Fatal("isUniqueViolation(40001) = true, want false")
	}
	if isUniqueViolation(errors.New("plain")) {
		t.Fatal("isUniqueViolation(plain) = true, want false")
	}
}

// stubConn records statements so open and validation paths can be tested
// without a live server. Queries always return zero rows.
type stubConn struct {
	execs    []string
	failPing bool
}

var stubSeq atomic.Int64

func newStubDB(t *testing.T) (*sql.DB, *stubConn) {
	t.Helper()
	conn := &stubConn{}
	name := fmt.Sprintf("waymarkpgstub%d", stubSeq.Add(1))
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		t.Fatalf("open stub db: %v", err)
	}
	return db, conn
}

type stubDriver struct {
	conn *stubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *stubConn) Ping(context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	return stubTx{}, nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(context.Context, string, []driver.NamedValue) (driver.Rows, error) {
	return &stubRows{}, nil
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubRows struct{}

func (r *stubRows) Columns() []string { return nil }

func (r *stubRows) Close() error { return nil }

func (r *stubRows) Next([]driver.Value) error { return io.EOF }
