package sqlite

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/storagetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pool.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestStoreBehavior(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Backend {
		return openTestStore(t)
	})
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestReopenKeepsState(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pool.db")
	store, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	deadline := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	err = store.Update(ctx, func(tx storage.Tx) error {
		id, err := tx.NextPoolID(ctx)
		if err != nil {
			return err
		}
		return tx.PutPool(ctx, pool.New(id, pool.Params{
			Issuer: "issuer", Target: 10, MinContribution: 1, MaxContribution: 10, Deadline: deadline,
		}, deadline.Add(-time.Hour)))
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	err = reopened.View(ctx, func(tx storage.Tx) error {
		height, err := tx.Height(ctx)
		if err != nil {
			return err
		}
		if height != 1 {
			t.Fatalf("expected height 1 after reopen, got %d", height)
		}
		p, err := tx.GetPool(ctx, 1)
		if err != nil {
			return err
		}
		if p.Status != ledger.StatusOpen || !p.Deadline.Equal(deadline) {
			t.Fatalf("unexpected pool after reopen %+v", p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestAmountsRoundTripFullRange(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	err := store.Update(ctx, func(tx storage.Tx) error {
		return tx.PutVaultBalance(ctx, 1, math.MaxUint64)
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	err = store.View(ctx, func(tx storage.Tx) error {
		balance, err := tx.VaultBalance(ctx, 1)
		if err != nil {
			return err
		}
		if balance != math.MaxUint64 {
			t.Fatalf("expected max uint64, got %d", balance)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestClosedStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	err = store.Update(context.Background(), func(storage.Tx) error { return nil })
	if !errors.Is(err, storage.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
