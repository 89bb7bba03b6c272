package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// ContentHash computes the canonical content hash for a transaction.
//
// The hash covers identity, kind, actor, canonical timestamp, request
// correlation, and attributes in sorted key order. Sequencing and chain
// fields are excluded: they are assigned at commit and covered by the
// chain hash instead.
func ContentHash(tx Transaction) (string, error) {
	if tx.ID == "" {
		return "", fmt.Errorf("transaction id is required")
	}
	if tx.InstanceID == "" {
		return "", fmt.Errorf("instance id is required")
	}
	if tx.Kind == "" {
		return "", fmt.Errorf("transaction kind is required")
	}

	h := sha256.New()
	writeField := func(name, value string) {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write([]byte(value))
		h.Write([]byte{0})
	}
	writeField("id", tx.ID)
	writeField("instance", tx.InstanceID)
	writeField("kind", string(tx.Kind))
	writeField("hero", tx.HeroID)
	writeField("canonical_at", strconv.FormatInt(tx.CanonicalTime().UTC().UnixMilli(), 10))
	writeField("request", tx.RequestID)
	for _, key := range SortedAttrKeys(tx.Attrs) {
		writeField("attr:"+key, tx.Attrs[key])
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChainHash links a committed transaction to its predecessor in the
// instance log. The content hash and sequence number must be assigned
// first; the first transaction of an instance links from an empty
// predecessor.
func ChainHash(tx Transaction, prevChain string) (string, error) {
	if tx.Hash == "" {
		return "", fmt.Errorf("transaction hash is required")
	}
	if tx.Seq == 0 {
		return "", fmt.Errorf("transaction seq is required")
	}

	h := sha256.New()
	h.Write([]byte(prevChain))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(tx.Seq, 10)))
	h.Write([]byte{0})
	h.Write([]byte(tx.Hash))
	return hex.EncodeToString(h.Sum(nil)), nil
}
