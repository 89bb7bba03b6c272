package transaction

import "time"

// Status tracks a transaction's lifecycle in the journal.
type Status string

const (
	// StatusPending marks a transaction appended but not yet committed.
	// Pending records are visible only to the writer that created them.
	StatusPending Status = "pending"
	// StatusCommitted marks a transaction sequenced into the instance log.
	// Once committed, a transaction's fields are frozen forever.
	StatusCommitted Status = "committed"
	// StatusDiscarded marks an abandoned pending transaction. Discarded
	// records never receive a sequence number and never replay.
	StatusDiscarded Status = "discarded"
)

// Transaction is one immutable record in an instance log.
//
// Seq stays zero until commit assigns it; committed sequence numbers start
// at 1 and are strictly increasing and contiguous within an instance.
// BaselineSeq captures the committed tail the writer observed at append
// time and drives the optimistic commit check. CanonicalAt is the timestamp
// all time-based logic reads; it defaults to OccurredAt but may be assigned
// separately when the canonical ordering differs from local wall clock.
type Transaction struct {
	ID          string
	InstanceID  string
	Kind        Kind
	Status      Status
	HeroID      string
	Seq         uint64
	BaselineSeq uint64
	OccurredAt  time.Time
	CanonicalAt time.Time
	CommittedAt time.Time
	DiscardedAt time.Time
	Attrs       map[string]string

	// Hash is the content hash, assigned at append. The remaining
	// integrity fields link and sign the chain at commit.
	Hash           string
	PrevHash       string
	ChainHash      string
	Signature      string
	SignatureKeyID string

	RequestID string
}

// Clone returns a deep copy safe to hand across goroutines.
func (t Transaction) Clone() Transaction {
	out := t
	if t.Attrs != nil {
		out.Attrs = make(map[string]string, len(t.Attrs))
		for k, v := range t.Attrs {
			out.Attrs[k] = v
		}
	}
	return out
}

// Attr returns the named attribute value, or "" when absent.
func (t Transaction) Attr(key string) string {
	return t.Attrs[key]
}

// CanonicalTime returns CanonicalAt, falling back to OccurredAt when the
// canonical timestamp was never assigned.
func (t Transaction) CanonicalTime() time.Time {
	if t.CanonicalAt.IsZero() {
		return t.OccurredAt
	}
	return t.CanonicalAt
}
