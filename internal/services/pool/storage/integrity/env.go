package integrity

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables read by KeyringFromEnv.
const (
	EnvHMACKeys  = "CELLARPOOL_POOL_EVENT_HMAC_KEYS"
	EnvHMACKey   = "CELLARPOOL_POOL_EVENT_HMAC_KEY"
	EnvHMACKeyID = "CELLARPOOL_POOL_EVENT_HMAC_KEY_ID"
	defaultKeyID = "v1"
)

// KeyringFromEnv loads the keyring. CELLARPOOL_POOL_EVENT_HMAC_KEYS holds
// "id=secret" pairs separated by commas; otherwise the single
// CELLARPOOL_POOL_EVENT_HMAC_KEY is registered under the active key id.
func KeyringFromEnv() (*Keyring, error) {
	keyID := strings.TrimSpace(os.Getenv(EnvHMACKeyID))
	if keyID == "" {
		keyID = defaultKeyID
	}

	keySpec := strings.TrimSpace(os.Getenv(EnvHMACKeys))
	if keySpec == "" {
		raw := strings.TrimSpace(os.Getenv(EnvHMACKey))
		if raw == "" {
			return nil, fmt.Errorf("%s is required", EnvHMACKey)
		}
		return NewKeyring(map[string][]byte{keyID: []byte(raw)}, keyID)
	}

	keys, err := ParseKeySpec(keySpec)
	if err != nil {
		return nil, err
	}
	return NewKeyring(keys, keyID)
}

// ParseKeySpec decodes comma separated "id=secret" pairs.
func ParseKeySpec(keySpec string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	for _, entry := range strings.Split(keySpec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, value, ok := strings.Cut(entry, "=")
		id, value = strings.TrimSpace(id), strings.TrimSpace(value)
		if !ok || id == "" || value == "" {
			return nil, fmt.Errorf("invalid %s entry", EnvHMACKeys)
		}
		keys[id] = []byte(value)
	}
	return keys, nil
}

// OptionalKeyringFromEnv is KeyringFromEnv, returning nil when no key is
// configured so journals are chained but unsigned.
func OptionalKeyringFromEnv() (*Keyring, error) {
	if strings.TrimSpace(os.Getenv(EnvHMACKeys)) == "" && strings.TrimSpace(os.Getenv(EnvHMACKey)) == "" {
		return nil, nil
	}
	return KeyringFromEnv()
}
