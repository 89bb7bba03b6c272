// Package storage defines the persistence interfaces for the Waymark
// journal core.
//
// It abstracts the transaction journal, instance identity, derived-state
// snapshots, and operational telemetry behind narrow interfaces.
// Implementations live in subpackages: sqlite and postgres are the
// durable engines, memory backs tests and scenario runs, and bbolt holds
// snapshot checkpoints for single-node deployments.
//
// # Error Types
//
// The package defines common error types used across implementations:
//   - ErrNotFound: a requested record is missing.
//   - ErrCommitConflict: a commit batch lost the optimistic concurrency
//     race and nothing was committed.
package storage
