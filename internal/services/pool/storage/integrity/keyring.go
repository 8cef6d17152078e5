package integrity

import (
	"crypto/hkdf"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

// journalKeyInfo prefixes the HKDF info of every per-pool journal key.
const journalKeyInfo = "cellarpool/journal/pool:"

// Keyring holds root HMAC keys by id. Journal signatures use a key derived
// per pool from the active root, and older ids stay available for
// verification after a rotation.
type Keyring struct {
	keys        map[string][]byte
	activeKeyID string

	derived sync.Map // poolKey -> []byte
}

type poolKey struct {
	keyID  string
	poolID ledger.PoolID
}

// NewKeyring copies keys and selects activeKeyID for signing.
func NewKeyring(keys map[string][]byte, activeKeyID string) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("hmac keys are required")
	}
	activeKeyID = strings.TrimSpace(activeKeyID)
	if activeKeyID == "" {
		return nil, fmt.Errorf("active hmac key id is required")
	}
	owned := make(map[string][]byte, len(keys))
	for id, material := range keys {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, fmt.Errorf("hmac key id is required")
		}
		if len(material) == 0 {
			return nil, fmt.Errorf("hmac key %q is empty", id)
		}
		owned[id] = slices.Clone(material)
	}
	if _, ok := owned[activeKeyID]; !ok {
		return nil, fmt.Errorf("active hmac key id %q is not configured", activeKeyID)
	}
	return &Keyring{keys: owned, activeKeyID: activeKeyID}, nil
}

// ActiveKeyID returns the id new journal entries are signed with.
func (k *Keyring) ActiveKeyID() string {
	if k == nil {
		return ""
	}
	return k.activeKeyID
}

// KeyIDs lists every id the keyring verifies, sorted.
func (k *Keyring) KeyIDs() []string {
	if k == nil {
		return nil
	}
	ids := make([]string, 0, len(k.keys))
	for id := range k.keys {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// SignChainHash signs a pool's chain hash with the active key.
func (k *Keyring) SignChainHash(poolID ledger.PoolID, chainHash string) (signature, keyID string, err error) {
	if k == nil {
		return "", "", fmt.Errorf("hmac keyring is not configured")
	}
	key, err := k.poolKey(k.activeKeyID, poolID)
	if err != nil {
		return "", "", err
	}
	return hmacSHA256Hex(key, chainHash), k.activeKeyID, nil
}

// VerifyChainHash checks a chain hash signature made with keyID.
func (k *Keyring) VerifyChainHash(poolID ledger.PoolID, chainHash, signature, keyID string) error {
	if k == nil {
		return fmt.Errorf("hmac keyring is not configured")
	}
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return fmt.Errorf("signature key id is required")
	}
	key, err := k.poolKey(keyID, poolID)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(hmacSHA256Hex(key, chainHash)), []byte(signature)) {
		return fmt.Errorf("signature mismatch for pool %s", poolID)
	}
	return nil
}

// poolKey derives, once per key id and pool, the HMAC key for that journal.
func (k *Keyring) poolKey(keyID string, poolID ledger.PoolID) ([]byte, error) {
	if poolID == 0 {
		return nil, fmt.Errorf("pool id is required")
	}
	cacheKey := poolKey{keyID: keyID, poolID: poolID}
	if cached, ok := k.derived.Load(cacheKey); ok {
		return cached.([]byte), nil
	}
	root, ok := k.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("signature key id %q is unknown", keyID)
	}
	key, err := hkdf.Key(sha256.New, root, nil, journalKeyInfo+poolID.String(), 32)
	if err != nil {
		return nil, fmt.Errorf("derive pool key: %w", err)
	}
	actual, _ := k.derived.LoadOrStore(cacheKey, key)
	return actual.([]byte), nil
}

func hmacSHA256Hex(key []byte, value string) string {
	mac := hmac.New(sha256.New, key)
	_, _ = mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
