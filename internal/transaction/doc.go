// Package transaction defines the canonical transaction record and the
// kind registry used by the journal write path.
//
// Transactions are immutable business facts recorded for every consequential
// hero action. The registry enforces kind addressing rules and attribute
// validity before persistence assigns sequence and integrity fields.
//
// A stable transaction contract is the foundation for replay, derived-state
// correctness, and every consumer that depends on the same semantic names.
package transaction
