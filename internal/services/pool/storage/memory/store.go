// Package memory provides an in-process pool ledger.
//
// Every Update works on a private copy of the committed state and replaces it
// when the unit succeeds, so a failed unit leaves no trace.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
)

// Store is an in-memory storage.Ledger and storage.Outbox.
type Store struct {
	mu        sync.Mutex
	committed *state
	published map[storage.EventKey]time.Time
	keyring   *integrity.Keyring
	closed    bool
}

// Option configures a Store.
type Option func(*Store)

// WithKeyring signs appended events with keyring.
func WithKeyring(keyring *integrity.Keyring) Option {
	return func(s *Store) {
		s.keyring = keyring
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		committed: newState(),
		published: make(map[storage.EventKey]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update runs fn against a copy of the committed state and commits it when fn
// returns nil. Every call clones the whole state, so its cost grows with the
// number of pools and events held; the store is meant for tests and single
// process demos, and the sqlite ledger is the backend for real volumes.
func (s *Store) Update(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("memory store is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}

	working := s.committed.clone()
	working.height++
	tx := &tx{state: working, keyring: s.keyring, writable: true}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.committed = working
	return nil
}

// View runs fn against the committed state. Writes fail inside View.
func (s *Store) View(ctx context.Context, fn func(storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil {
		return errors.New("memory store is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	return fn(&tx{state: s.committed, keyring: s.keyring})
}

// Close marks the store closed.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ListUnpublished returns committed events not yet marked published, in
// commit order.
func (s *Store) ListUnpublished(ctx context.Context, limit int) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrClosed
	}

	var out []event.Event
	for _, key := range s.committed.commitOrder {
		if _, done := s.published[key]; done {
			continue
		}
		out = append(out, s.committed.events[key.PoolID][key.Seq-1])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// MarkPublished records keys as relayed.
func (s *Store) MarkPublished(ctx context.Context, keys []storage.EventKey, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	for _, key := range keys {
		s.published[key] = at.UTC()
	}
	return nil
}
