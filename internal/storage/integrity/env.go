package integrity

import (
	"fmt"
	"os"
	"strings"
)

// Journal signing configuration. A single key covers most deployments;
// the key-spec form holds every key still needed to verify chain entries
// signed before a rotation, as comma-separated "id=secret" pairs.
const (
	envHMACKeys  = "WAYMARK_JOURNAL_HMAC_KEYS"
	envHMACKey   = "WAYMARK_JOURNAL_HMAC_KEY"
	envHMACKeyID = "WAYMARK_JOURNAL_HMAC_KEY_ID"
	defaultKeyID = "v1"
)

// KeyringFromEnv builds the signing keyring from the
// WAYMARK_JOURNAL_HMAC_* variables. The active key id defaults to v1.
func KeyringFromEnv() (*Keyring, error) {
	active := strings.TrimSpace(os.Getenv(envHMACKeyID))
	if active == "" {
		active = defaultKeyID
	}

	if spec := strings.TrimSpace(os.Getenv(envHMACKeys)); spec != "" {
		keys, err := parseKeySpec(spec)
		if err != nil {
			return nil, err
		}
		return NewKeyring(keys, active)
	}

	single := strings.TrimSpace(os.Getenv(envHMACKey))
	if single == "" {
		return nil, fmt.Errorf("%s is required", envHMACKey)
	}
	return NewKeyring(map[string][]byte{active: []byte(single)}, active)
}

// parseKeySpec reads id=secret pairs, skipping blank entries. Malformed
// entries are rejected without echoing their contents.
func parseKeySpec(spec string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, secret, ok := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		secret = strings.TrimSpace(secret)
		if !ok || id == "" || secret == "" {
			return nil, fmt.Errorf("%s holds a malformed entry", envHMACKeys)
		}
		keys[id] = []byte(secret)
	}
	return keys, nil
}
