package memory

import (
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/distribution"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/shares"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
)

// state is one committed version of the ledger. Updates work on a clone and
// swap it in on commit.
type state struct {
	height        uint64
	lastPoolID    uint64
	pools         map[ledger.PoolID]pool.Pool
	contributions map[ledger.PoolID][]pool.Contribution
	shares        map[ledger.PoolID]map[ledger.Address]shares.Record
	supply        map[ledger.PoolID]uint64
	balances      map[ledger.PoolID]uint64
	distributions map[ledger.PoolID]distribution.Record
	events        map[ledger.PoolID][]event.Event
	transfers     map[ledger.PoolID][]escrow.Transfer
	// commitOrder lists journal keys in the order they were committed.
	commitOrder []storage.EventKey
}

func newState() *state {
	return &state{
		pools:         make(map[ledger.PoolID]pool.Pool),
		contributions: make(map[ledger.PoolID][]pool.Contribution),
		shares:        make(map[ledger.PoolID]map[ledger.Address]shares.Record),
		supply:        make(map[ledger.PoolID]uint64),
		balances:      make(map[ledger.PoolID]uint64),
		distributions: make(map[ledger.PoolID]distribution.Record),
		events:        make(map[ledger.PoolID][]event.Event),
		transfers:     make(map[ledger.PoolID][]escrow.Transfer),
	}
}

func (s *state) clone() *state {
	cloned := newState()
	cloned.height = s.height
	cloned.lastPoolID = s.lastPoolID
	for id, p := range s.pools {
		cloned.pools[id] = p
	}
	for id, list := range s.contributions {
		cloned.contributions[id] = append([]pool.Contribution(nil), list...)
	}
	for id, records := range s.shares {
		copied := make(map[ledger.Address]shares.Record, len(records))
		for holder, record := range records {
			copied[holder] = record
		}
		cloned.shares[id] = copied
	}
	for id, supply := range s.supply {
		cloned.supply[id] = supply
	}
	for id, balance := range s.balances {
		cloned.balances[id] = balance
	}
	for id, record := range s.distributions {
		cloned.distributions[id] = record
	}
	for id, list := range s.events {
		cloned.events[id] = append([]event.Event(nil), list...)
	}
	for id, list := range s.transfers {
		cloned.transfers[id] = append([]escrow.Transfer(nil), list...)
	}
	cloned.commitOrder = append([]storage.EventKey(nil), s.commitOrder...)
	return cloned
}
