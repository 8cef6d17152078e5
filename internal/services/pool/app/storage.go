package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/memory"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/sqlite"
)

// Backend is a ledger that also exposes its outbox.
type Backend interface {
	storage.Ledger
	storage.Outbox
}

// openLedger opens the in-memory ledger for MemoryDBPath and the SQLite
// ledger otherwise, creating the parent directory as needed.
func openLedger(ctx context.Context, path string, keyring *integrity.Keyring) (Backend, error) {
	path = strings.TrimSpace(path)
	if path == MemoryDBPath {
		return memory.New(memory.WithKeyring(keyring)), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(ctx, path, sqlite.WithKeyring(keyring))
	if err != nil {
		return nil, fmt.Errorf("open pool sqlite store: %w", err)
	}
	return store, nil
}
