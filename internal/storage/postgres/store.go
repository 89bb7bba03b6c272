// Package postgres provides a Postgres-backed storage.Store that mirrors
// the SQLite engine's semantics while applying its DDL on startup.
//
// The engine keeps the same storage conventions as the SQLite store:
//
//   - timestamps are stored as millisecond UTC integers so rows round-trip
//     through the content hash unchanged
//   - committed rows carry a unique (instance_id, seq) pair; pending and
//     discarded rows keep seq NULL
//   - commit batches run inside one database transaction serialized per
//     instance with an advisory lock
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/waymark-rpg/waymark/internal/storage"
)

var _ storage.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	// Default DSN keeps parity with config defaults while allowing overrides via env.
	defaultDSN = "postgres://localhost/waymark?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists the journal, snapshots, and telemetry in Postgres.
type Store struct {
	sqlDB  *sql.DB
	signer storage.ChainSigner
}

// Option configures optional collaborators on the store.
type Option func(*Store)

// WithSigner attaches a chain signer used during commit.
func WithSigner(signer storage.ChainSigner) Option {
	return func(s *Store) {
		s.signer = signer
	}
}

// Open opens a Postgres-backed store using the provided DSN (falls back to
// defaultDSN) and applies the schema DDL.
func Open(dsn string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	sqlDB, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applySchema(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	store := &Store{sqlDB: sqlDB}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

// Close closes the underlying database handle. Close is nil-safe so callers
// can defer it in all startup paths.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS instances (
		id TEXT PRIMARY KEY,
		campaign_ref TEXT NOT NULL,
		hero_id TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_instances_campaign_hero ON instances (campaign_ref, hero_id)`,
	`CREATE INDEX IF NOT EXISTS idx_instances_hero ON instances (hero_id)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		append_id BIGSERIAL PRIMARY KEY,
		instance_id TEXT NOT NULL,
		id TEXT NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL,
		hero_id TEXT NOT NULL DEFAULT '',
		seq BIGINT,
		baseline_seq BIGINT NOT NULL DEFAULT 0,
		occurred_at BIGINT NOT NULL,
		canonical_at BIGINT,
		committed_at BIGINT,
		discarded_at BIGINT,
		attrs_json JSONB NOT NULL DEFAULT '{}',
		content_hash TEXT NOT NULL,
		prev_hash TEXT NOT NULL DEFAULT '',
		chain_hash TEXT NOT NULL DEFAULT '',
		signature TEXT NOT NULL DEFAULT '',
		signature_key_id TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_instance_id ON transactions (instance_id, id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_instance_seq ON transactions (instance_id, seq) WHERE seq IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions (instance_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_hash ON transactions (content_hash)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		instance_id TEXT NOT NULL,
		seq BIGINT NOT NULL,
		state_json BYTEA NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (instance_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS telemetry_events (
		id BIGSERIAL PRIMARY KEY,
		timestamp BIGINT NOT NULL,
		event_name TEXT NOT NULL,
		severity TEXT NOT NULL,
		instance_id TEXT NOT NULL DEFAULT '',
		hero_id TEXT NOT NULL DEFAULT '',
		request_id TEXT NOT NULL DEFAULT '',
		trace_id TEXT NOT NULL DEFAULT '',
		span_id TEXT NOT NULL DEFAULT '',
		attributes_json BYTEA
	)`,
	`CREATE INDEX IF NOT EXISTS idx_telemetry_instance ON telemetry_events (instance_id, timestamp)`,
}

func applySchema(ctx context.Context, sqlDB *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := sqlDB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}

// rebind numbers engine-agnostic ? placeholders as $1..$n for Postgres.
// Filter fragments arrive in ? form so the same clause works on both SQL
// engines.
func rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value time.Time) sql.NullInt64 {
	if value.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return fromMillis(value.Int64)
}

func toNullSeq(seq uint64) sql.NullInt64 {
	if seq == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(seq), Valid: true}
}

func marshalAttrs(attrs map[string]string) (string, error) {
	if len(attrs) == 0 {
		return "{}", nil
	}
	payload, err := json.Marshal(attrs)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

func unmarshalAttrs(raw []byte) (map[string]string, error) {
	if len(raw) == 0 || string(raw) == "{}" {
		return nil, nil
	}
	var attrs map[string]string
	if err := json.Unmarshal(raw, &attrs); err != nil {
		return nil, err
	}
	if len(attrs) == 0 {
		return nil, nil
	}
	return attrs, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

type rowScanner interface {
	Scan(dest ...any) error
}
