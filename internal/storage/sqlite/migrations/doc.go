// Package migrations embeds SQL migration scripts for the SQLite store.
//
// Why this package exists:
// - It centralizes schema history for the journal, snapshot, and telemetry tables.
// - It allows upgrade-safe evolution without manual operator SQL.
// - It supports both development bootstrap and production migration workflows.
package migrations
