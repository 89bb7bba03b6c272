// Package integrity provides transaction hash and signing helpers used to
// protect the journal's tamper-evident chain.
//
// Why this package exists:
// - It ensures each stored transaction carries a deterministic hash input.
// - It links committed transactions into a chain so replay order and
//   authenticity can be verified.
// - It isolates cryptographic details from higher-level storage and
//   journal code.
package integrity
