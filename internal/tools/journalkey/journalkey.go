// Package journalkey generates HMAC keys for signing pool journals and
// prints them as environment assignments, optionally rotating an existing
// key set.
package journalkey

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
)

// Config controls key generation.
type Config struct {
	Bytes int
	KeyID string
	// Existing is a key spec in the CELLARPOOL_POOL_EVENT_HMAC_KEYS format.
	// Its keys are kept so older journals still verify after rotation.
	Existing string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: 32, KeyID: "v1"}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes")
	fs.StringVar(&cfg.KeyID, "key-id", cfg.KeyID, "id of the new active key")
	fs.StringVar(&cfg.Existing, "rotate", "", "existing id=secret key spec to carry over")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates the key and writes the keyring environment to out. reader
// defaults to crypto/rand.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes <= 0 {
		return errors.New("bytes must be greater than zero")
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" || strings.ContainsAny(keyID, "=,") {
		return fmt.Errorf("invalid key id %q", cfg.KeyID)
	}
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}

	keys := map[string][]byte{}
	if strings.TrimSpace(cfg.Existing) != "" {
		existing, err := integrity.ParseKeySpec(cfg.Existing)
		if err != nil {
			return err
		}
		if _, taken := existing[keyID]; taken {
			return fmt.Errorf("key id %q already exists", keyID)
		}
		keys = existing
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	keys[keyID] = []byte(hex.EncodeToString(buf))
	if _, err := integrity.NewKeyring(keys, keyID); err != nil {
		return err
	}

	ids := make([]string, 0, len(keys))
	for id := range keys {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	pairs := make([]string, 0, len(ids))
	for _, id := range ids {
		pairs = append(pairs, id+"="+string(keys[id]))
	}
	_, err := fmt.Fprintf(out, "%s=%s\n%s=%s\n", integrity.EnvHMACKeys, strings.Join(pairs, ","), integrity.EnvHMACKeyID, keyID)
	return err
}
