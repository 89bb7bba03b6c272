package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/waymark-rpg/waymark/internal/storage"
	"github.com/waymark-rpg/waymark/internal/transaction"
)

// AppendTelemetryEvent records an operational telemetry event.
func (s *Store) AppendTelemetryEvent(ctx context.Context, evt storage.TelemetryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.EventName) == "" {
		return fmt.Errorf("event name is required")
	}
	if strings.TrimSpace(evt.Severity) == "" {
		return fmt.Errorf("severity is required")
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	if len(evt.AttributesJSON) == 0 && len(evt.Attributes) > 0 {
		payload, err := json.Marshal(evt.Attributes)
		if err != nil {
			return fmt.Errorf("marshal telemetry attributes: %w", err)
		}
		evt.AttributesJSON = payload
	}

	_, err := s.sqlDB.ExecContext(ctx, `
		INSERT INTO telemetry_events (
			timestamp, event_name, severity, instance_id, hero_id,
			request_id, trace_id, span_id, attributes_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		toMillis(evt.Timestamp),
		evt.EventName,
		evt.Severity,
		evt.InstanceID,
		evt.HeroID,
		evt.RequestID,
		evt.TraceID,
		evt.SpanID,
		evt.AttributesJSON,
	)
	if err != nil {
		return fmt.Errorf("append telemetry event: %w", err)
	}
	return nil
}

// GetJournalStatistics returns aggregate counts across the journal data set.
// When since is nil, counts cover all time.
func (s *Store) GetJournalStatistics(ctx context.Context, since *time.Time) (storage.JournalStatistics, error) {
	if err := ctx.Err(); err != nil {
		return storage.JournalStatistics{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.JournalStatistics{}, fmt.Errorf("storage is not configured")
	}

	var sinceValue sql.NullInt64
	if since != nil {
		sinceValue = sql.NullInt64{Int64: toMillis(*since), Valid: true}
	}

	// Each status counts against the timestamp that marks its terminal
	// state: committed_at, occurred_at, or discarded_at.
	const query = `
		SELECT
			(SELECT COUNT(*) FROM instances WHERE ?1 IS NULL OR created_at >= ?1) AS instance_count,
			(SELECT COUNT(*) FROM transactions WHERE status = ?2 AND (?1 IS NULL OR committed_at >= ?1)) AS committed_count,
			(SELECT COUNT(*) FROM transactions WHERE status = ?3 AND (?1 IS NULL OR occurred_at >= ?1)) AS pending_count,
			(SELECT COUNT(*) FROM transactions WHERE status = ?4 AND (?1 IS NULL OR discarded_at >= ?1)) AS discarded_count,
			(SELECT COUNT(*) FROM transactions WHERE status = ?2 AND kind = ?5 AND (?1 IS NULL OR committed_at >= ?1)) AS reversal_count,
			(SELECT COUNT(*) FROM snapshots WHERE ?1 IS NULL OR created_at >= ?1) AS snapshot_count`

	var stats storage.JournalStatistics
	err := s.sqlDB.QueryRowContext(ctx, query,
		sinceValue,
		string(transaction.StatusCommitted),
		string(transaction.StatusPending),
		string(transaction.StatusDiscarded),
		string(transaction.KindReversed),
	).Scan(
		&stats.InstanceCount,
		&stats.CommittedCount,
		&stats.PendingCount,
		&stats.DiscardedCount,
		&stats.ReversalCount,
		&stats.SnapshotCount,
	)
	if err != nil {
		return storage.JournalStatistics{}, fmt.Errorf("get journal statistics: %w", err)
	}
	return stats, nil
}
