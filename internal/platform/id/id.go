// Package id generates compact, URL-safe unique identifiers.
package id

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a 26-character lowercase base32 identifier wrapping a
// random UUID. The decoded form keeps the UUIDv4 version and variant bits
// so identifiers remain convertible back to canonical UUIDs.
func NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ToLower(encoding.EncodeToString(u[:])), nil
}
