package pool

import (
	"context"
	"sort"
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/shares"
)

type shareKey struct {
	pool   ledger.PoolID
	holder ledger.Address
}

// fakeStore backs the pool, vault and share ledgers in memory.
type fakeStore struct {
	pools         map[ledger.PoolID]Pool
	contributions map[ledger.PoolID][]Contribution
	balances      map[ledger.PoolID]uint64
	transfers     []escrow.Transfer
	records       map[shareKey]shares.Record
	supply        map[ledger.PoolID]uint64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		pools:         make(map[ledger.PoolID]Pool),
		contributions: make(map[ledger.PoolID][]Contribution),
		balances:      make(map[ledger.PoolID]uint64),
		records:       make(map[shareKey]shares.Record),
		supply:        make(map[ledger.PoolID]uint64),
	}
}

func (s *fakeStore) GetPool(_ context.Context, id ledger.PoolID) (Pool, error) {
	p, ok := s.pools[id]
	if !ok {
		return Pool{}, ledger.NotFound(id)
	}
	return p, nil
}

func (s *fakeStore) PutPool(_ context.Context, p Pool) error {
	s.pools[p.ID] = p
	return nil
}

func (s *fakeStore) PutContribution(_ context.Context, c Contribution) error {
	list := s.contributions[c.PoolID]
	for i := range list {
		if list[i].Index == c.Index {
			list[i] = c
			return nil
		}
	}
	s.contributions[c.PoolID] = append(list, c)
	return nil
}

func (s *fakeStore) ListContributions(_ context.Context, poolID ledger.PoolID, filter ContributionFilter) ([]Contribution, error) {
	var out []Contribution
	for _, c := range s.contributions[poolID] {
		if filter.Contributor != "" && c.Contributor != filter.Contributor {
			continue
		}
		if filter.ActiveOnly && c.Refunded {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

func (s *fakeStore) VaultBalance(_ context.Context, poolID ledger.PoolID) (uint64, error) {
	return s.balances[poolID], nil
}

func (s *fakeStore) PutVaultBalance(_ context.Context, poolID ledger.PoolID, balance uint64) error {
	s.balances[poolID] = balance
	return nil
}

func (s *fakeStore) RecordTransfer(_ context.Context, transfer escrow.Transfer) (escrow.Transfer, error) {
	transfer.Seq = uint64(len(s.transfers) + 1)
	s.transfers = append(s.transfers, transfer)
	return transfer, nil
}

func (s *fakeStore) ShareRecord(_ context.Context, poolID ledger.PoolID, holder ledger.Address) (shares.Record, error) {
	return s.records[shareKey{poolID, holder}], nil
}

func (s *fakeStore) PutShareRecord(_ context.Context, record shares.Record) error {
	s.records[shareKey{record.PoolID, record.Holder}] = record
	return nil
}

func (s *fakeStore) ListShareRecords(_ context.Context, poolID ledger.PoolID) ([]shares.Record, error) {
	var out []shares.Record
	for key, record := range s.records {
		if key.pool == poolID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Holder < out[j].Holder })
	return out, nil
}

func (s *fakeStore) ShareSupply(_ context.Context, poolID ledger.PoolID) (uint64, error) {
	return s.supply[poolID], nil
}

func (s *fakeStore) PutShareSupply(_ context.Context, poolID ledger.PoolID, supply uint64) error {
	s.supply[poolID] = supply
	return nil
}

// testClock is a settable clock.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	store   *fakeStore
	clock   *testClock
	machine *Machine
}

var testStart = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func newHarness() *harness {
	store := newFakeStore()
	clock := &testClock{now: testStart}
	machine := NewMachine(store, escrow.NewVault(store, clock.Now), shares.NewLedger(store, clock.Now), clock.Now)
	return &harness{store: store, clock: clock, machine: machine}
}

// seed stores an Open pool with target 1000, bounds [100, 800] and a 72h
// deadline.
func (h *harness) seed(id ledger.PoolID, mutate ...func(*Params)) Pool {
	params := Params{
		Issuer:          "issuer",
		Target:          1000,
		MinContribution: 100,
		MaxContribution: 800,
		Deadline:        testStart.Add(72 * time.Hour),
	}
	for _, fn := range mutate {
		fn(&params)
	}
	p := New(id, params, h.clock.Now())
	h.store.pools[id] = p
	return p
}
