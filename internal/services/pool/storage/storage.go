// Package storage defines the persistence contract of the pool ledger.
//
// A Ledger runs units of work. Update executes fn inside one atomic unit:
// every write made through the Tx commits together when fn returns nil and is
// discarded otherwise. Units are serialized, so a Tx observes no concurrent
// writes.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/distribution"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/registry"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/shares"
)

// ErrClosed is returned by ledgers used after Close.
var ErrClosed = errors.New("storage is closed")

// Ledger executes atomic units of work.
type Ledger interface {
	// Update runs fn in a read-write unit and commits when fn returns nil.
	// A successful Update advances the ledger height by one.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn in a read-only unit.
	View(ctx context.Context, fn func(Tx) error) error
	Close() error
}

// Tx is the store surface available inside a unit of work.
type Tx interface {
	registry.Store
	shares.Store
	escrow.BalanceStore
	distribution.Store
	Journal
	TransferLog

	// Height returns the ledger height this unit commits at. Inside View it is
	// the last committed height.
	Height(ctx context.Context) (uint64, error)
}

// Journal is the per-pool, hash-chained event log.
type Journal interface {
	// AppendEvent assigns the next per-pool Seq, hashes and signs the event.
	AppendEvent(ctx context.Context, evt event.Event) (event.Event, error)
	// ListEvents returns events of a pool with Seq greater than q.AfterSeq
	// that match q.Filter, in order. A zero limit returns everything.
	ListEvents(ctx context.Context, poolID ledger.PoolID, q event.Query) ([]event.Event, error)
}

// TransferLog reads recorded vault transfers.
type TransferLog interface {
	ListTransfers(ctx context.Context, poolID ledger.PoolID) ([]escrow.Transfer, error)
}

// EventKey identifies a journal entry.
type EventKey struct {
	PoolID ledger.PoolID
	Seq    uint64
}

// Outbox exposes committed events that have not been relayed yet.
type Outbox interface {
	// ListUnpublished returns up to limit unpublished events in commit order.
	ListUnpublished(ctx context.Context, limit int) ([]event.Event, error)
	MarkPublished(ctx context.Context, keys []EventKey, at time.Time) error
}
