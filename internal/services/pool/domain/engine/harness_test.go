package engine_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/engine"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/memory"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recordingSink struct {
	mu        sync.Mutex
	transfers []escrow.Transfer
	err       error
}

func (s *recordingSink) Deliver(_ context.Context, transfers []escrow.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = append(s.transfers, transfers...)
	return s.err
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	clock  *clock
	store  *memory.Store
	sink   *recordingSink
	engine *engine.Engine
}

func newHarness(t *testing.T, governance ...ledger.Address) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		clock: &clock{now: start},
		store: memory.New(),
		sink:  &recordingSink{},
	}
	eng, err := engine.New(engine.Config{
		Ledger:     h.store,
		Now:        h.clock.Now,
		Governance: governance,
		Sink:       h.sink,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h.engine = eng
	return h
}

// deadline is the default pool deadline.
func (h *harness) deadline() time.Time {
	return start.Add(72 * time.Hour)
}

func (h *harness) create(params pool.Params) pool.Pool {
	h.t.Helper()
	p, err := h.engine.CreatePool(h.ctx, params)
	if err != nil {
		h.t.Fatalf("create pool: %v", err)
	}
	return p
}

// standardPool creates target 1000, bounds [10, 800] owned by "issuer".
func (h *harness) standardPool() pool.Pool {
	return h.create(pool.Params{
		Issuer:          "issuer",
		Treasury:        "treasury",
		Target:          1000,
		MinContribution: 10,
		MaxContribution: 800,
		Deadline:        h.deadline(),
	})
}

func (h *harness) contribute(id ledger.PoolID, who ledger.Address, amount uint64) pool.ContributeResult {
	h.t.Helper()
	res, err := h.engine.Contribute(h.ctx, id, who, amount)
	if err != nil {
		h.t.Fatalf("contribute %d from %s: %v", amount, who, err)
	}
	return res
}

func (h *harness) balance(id ledger.PoolID) uint64 {
	h.t.Helper()
	balance, err := h.engine.BalanceOf(h.ctx, id)
	if err != nil {
		h.t.Fatalf("balance: %v", err)
	}
	return balance
}

func (h *harness) height() uint64 {
	h.t.Helper()
	var height uint64
	if err := h.store.View(h.ctx, func(tx storage.Tx) error {
		var err error
		height, err = tx.Height(h.ctx)
		return err
	}); err != nil {
		h.t.Fatalf("height: %v", err)
	}
	return height
}
