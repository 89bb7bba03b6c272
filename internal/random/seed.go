// Package random provides cryptographic seed generation helpers.
//
// Seeds produced here initialize the deterministic generators used by
// battle replay; the seed itself is the only nondeterministic input and
// it is recorded in the transaction log.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewSeed generates a random positive seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	seed := int64(binary.LittleEndian.Uint64(b[:]))
	if seed < 0 {
		seed = -seed
	}
	if seed == 0 {
		seed = 1
	}
	return seed, nil
}
