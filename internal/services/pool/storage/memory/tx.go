package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/distribution"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/registry"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/shares"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
)

var errReadOnly = errors.New("write attempted in a read-only unit")

type tx struct {
	state    *state
	keyring  *integrity.Keyring
	writable bool
}

var _ storage.Tx = (*tx)(nil)

func (t *tx) guardWrite() error {
	if !t.writable {
		return errReadOnly
	}
	return nil
}

func (t *tx) Height(context.Context) (uint64, error) {
	return t.state.height, nil
}

func (t *tx) NextPoolID(context.Context) (ledger.PoolID, error) {
	if err := t.guardWrite(); err != nil {
		return 0, err
	}
	t.state.lastPoolID++
	return ledger.PoolID(t.state.lastPoolID), nil
}

func (t *tx) GetPool(_ context.Context, id ledger.PoolID) (pool.Pool, error) {
	p, ok := t.state.pools[id]
	if !ok {
		return pool.Pool{}, ledger.NotFound(id)
	}
	return p, nil
}

func (t *tx) PutPool(_ context.Context, p pool.Pool) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	if p.ID == 0 {
		return fmt.Errorf("pool id is required")
	}
	t.state.pools[p.ID] = p
	return nil
}

func (t *tx) ListPools(_ context.Context, filter registry.Filter) ([]pool.Pool, error) {
	ids := make([]ledger.PoolID, 0, len(t.state.pools))
	for id := range t.state.pools {
		if id > filter.AfterID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []pool.Pool
	for _, id := range ids {
		p := t.state.pools[id]
		if filter.Issuer != "" && p.Issuer != filter.Issuer {
			continue
		}
		if filter.Status != ledger.StatusUnspecified && p.Status != filter.Status {
			continue
		}
		match, err := filter.Expr.Match(p.FilterValue)
		if err != nil {
			return nil, err
		}
		if !match {
			continue
		}
		out = append(out, p)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (t *tx) PutContribution(_ context.Context, c pool.Contribution) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	if c.PoolID == 0 || c.Index == 0 {
		return fmt.Errorf("contribution pool id and index are required")
	}
	list := t.state.contributions[c.PoolID]
	for i := range list {
		if list[i].Index == c.Index {
			list[i] = c
			return nil
		}
	}
	t.state.contributions[c.PoolID] = append(list, c)
	return nil
}

func (t *tx) ListContributions(_ context.Context, poolID ledger.PoolID, filter pool.ContributionFilter) ([]pool.Contribution, error) {
	var out []pool.Contribution
	for _, c := range t.state.contributions[poolID] {
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

func (t *tx) ShareRecord(_ context.Context, poolID ledger.PoolID, holder ledger.Address) (shares.Record, error) {
	record, ok := t.state.shares[poolID][holder]
	if !ok {
		return shares.Record{PoolID: poolID, Holder: holder}, nil
	}
	return record, nil
}

func (t *tx) PutShareRecord(_ context.Context, record shares.Record) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	records, ok := t.state.shares[record.PoolID]
	if !ok {
		records = make(map[ledger.Address]shares.Record)
		t.state.shares[record.PoolID] = records
	}
	records[record.Holder] = record
	return nil
}

func (t *tx) ListShareRecords(_ context.Context, poolID ledger.PoolID) ([]shares.Record, error) {
	records := t.state.shares[poolID]
	out := make([]shares.Record, 0, len(records))
	for _, record := range records {
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Holder < out[j].Holder })
	return out, nil
}

func (t *tx) ShareSupply(_ context.Context, poolID ledger.PoolID) (uint64, error) {
	return t.state.supply[poolID], nil
}

func (t *tx) PutShareSupply(_ context.Context, poolID ledger.PoolID, supply uint64) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	t.state.supply[poolID] = supply
	return nil
}

func (t *tx) VaultBalance(_ context.Context, poolID ledger.PoolID) (uint64, error) {
	return t.state.balances[poolID], nil
}

func (t *tx) PutVaultBalance(_ context.Context, poolID ledger.PoolID, balance uint64) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	t.state.balances[poolID] = balance
	return nil
}

func (t *tx) RecordTransfer(_ context.Context, transfer escrow.Transfer) (escrow.Transfer, error) {
	if err := t.guardWrite(); err != nil {
		return escrow.Transfer{}, err
	}
	list := t.state.transfers[transfer.PoolID]
	transfer.Seq = uint64(len(list)) + 1
	t.state.transfers[transfer.PoolID] = append(list, transfer)
	return transfer, nil
}

func (t *tx) ListTransfers(_ context.Context, poolID ledger.PoolID) ([]escrow.Transfer, error) {
	return append([]escrow.Transfer(nil), t.state.transfers[poolID]...), nil
}

func (t *tx) Distribution(_ context.Context, poolID ledger.PoolID) (distribution.Record, bool, error) {
	record, ok := t.state.distributions[poolID]
	if !ok {
		return distribution.Record{}, false, nil
	}
	record.Payouts = append([]distribution.Payout(nil), record.Payouts...)
	return record, true, nil
}

func (t *tx) PutDistribution(_ context.Context, record distribution.Record) error {
	if err := t.guardWrite(); err != nil {
		return err
	}
	if _, exists := t.state.distributions[record.PoolID]; exists {
		return fmt.Errorf("pool %s already has a distribution", record.PoolID)
	}
	record.Payouts = append([]distribution.Payout(nil), record.Payouts...)
	t.state.distributions[record.PoolID] = record
	return nil
}

func (t *tx) AppendEvent(_ context.Context, evt event.Event) (event.Event, error) {
	if err := t.guardWrite(); err != nil {
		return event.Event{}, err
	}
	if err := evt.Validate(); err != nil {
		return event.Event{}, err
	}
	journal := t.state.events[evt.PoolID]
	prevChainHash := ""
	if n := len(journal); n > 0 {
		prevChainHash = journal[n-1].ChainHash
	}
	evt.Seq = uint64(len(journal)) + 1
	if evt.Height == 0 {
		evt.Height = t.state.height
	}
	sealed, err := integrity.Seal(evt, prevChainHash, t.keyring)
	if err != nil {
		return event.Event{}, err
	}
	t.state.events[evt.PoolID] = append(journal, sealed)
	t.state.commitOrder = append(t.state.commitOrder, storage.EventKey{PoolID: sealed.PoolID, Seq: sealed.Seq})
	return sealed, nil
}

func (t *tx) ListEvents(_ context.Context, poolID ledger.PoolID, q event.Query) ([]event.Event, error) {
	journal := t.state.events[poolID]
	if q.AfterSeq >= uint64(len(journal)) {
		return nil, nil
	}
	var out []event.Event
	for _, evt := range journal[q.AfterSeq:] {
		match, err := q.Filter.Match(evt.FilterValue)
		if err != nil {
			return nil, err
		}
		if !match {
			continue
		}
		out = append(out, evt)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out, nil
}
