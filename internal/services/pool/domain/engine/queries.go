package engine

import (
	"context"
	"fmt"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/distribution"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/registry"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
)

// requirePool runs fn read-only after confirming the pool exists.
func (e *Engine) requirePool(ctx context.Context, poolID ledger.PoolID, fn func(u unit) error) error {
	return e.ledger.View(ctx, func(tx storage.Tx) error {
		u := e.bind(tx)
		if _, err := u.registry.Get(ctx, poolID); err != nil {
			return err
		}
		return fn(u)
	})
}

// GetPool returns the pool. It does not apply pending expiry.
func (e *Engine) GetPool(ctx context.Context, poolID ledger.PoolID) (p pool.Pool, err error) {
	err = e.ledger.View(ctx, func(tx storage.Tx) error {
		p, err = e.bind(tx).registry.Get(ctx, poolID)
		return err
	})
	return p, err
}

// BalanceOf returns the escrow balance held for the pool.
func (e *Engine) BalanceOf(ctx context.Context, poolID ledger.PoolID) (balance uint64, err error) {
	err = e.requirePool(ctx, poolID, func(u unit) error {
		balance, err = u.vault.BalanceOf(ctx, poolID)
		return err
	})
	return balance, err
}

// SharesOf returns holder's shares in the pool.
func (e *Engine) SharesOf(ctx context.Context, poolID ledger.PoolID, holder ledger.Address) (count uint64, err error) {
	holder = holder.Normalize()
	if holder == "" {
		return 0, ledger.InvalidArgument("holder", "holder is required")
	}
	err = e.requirePool(ctx, poolID, func(u unit) error {
		count, err = u.shares.SharesOf(ctx, poolID, holder)
		return err
	})
	return count, err
}

// Holders returns the pool's positive share positions ordered by holder.
func (e *Engine) Holders(ctx context.Context, poolID ledger.PoolID) (records []ShareRecord, err error) {
	err = e.requirePool(ctx, poolID, func(u unit) error {
		holders, err := u.shares.Holders(ctx, poolID)
		if err != nil {
			return err
		}
		for _, h := range holders {
			records = append(records, ShareRecord{Holder: h.Holder, Shares: h.Shares, Contributed: h.Contributed})
		}
		return nil
	})
	return records, err
}

// ShareRecord is one holder's position.
type ShareRecord struct {
	Holder      ledger.Address
	Shares      uint64
	Contributed uint64
}

// ListPools returns pools matching filter ordered by id.
func (e *Engine) ListPools(ctx context.Context, filter registry.Filter) (pools []pool.Pool, err error) {
	filter.Issuer = filter.Issuer.Normalize()
	err = e.ledger.View(ctx, func(tx storage.Tx) error {
		pools, err = e.bind(tx).registry.List(ctx, filter)
		return err
	})
	return pools, err
}

// Stats aggregates every pool.
func (e *Engine) Stats(ctx context.Context) (stats registry.Stats, err error) {
	err = e.ledger.View(ctx, func(tx storage.Tx) error {
		stats, err = e.bind(tx).registry.Stats(ctx)
		return err
	})
	return stats, err
}

// ListContributions returns the pool's contributions ordered by index.
func (e *Engine) ListContributions(ctx context.Context, poolID ledger.PoolID, filter pool.ContributionFilter) (contributions []pool.Contribution, err error) {
	filter.Contributor = filter.Contributor.Normalize()
	err = e.requirePool(ctx, poolID, func(u unit) error {
		contributions, err = u.tx.ListContributions(ctx, poolID, filter)
		return err
	})
	return contributions, err
}

// GetDistribution returns the pool's distribution record.
func (e *Engine) GetDistribution(ctx context.Context, poolID ledger.PoolID) (record distribution.Record, err error) {
	err = e.requirePool(ctx, poolID, func(u unit) error {
		rec, ok, err := u.tx.Distribution(ctx, poolID)
		if err != nil {
			return err
		}
		if !ok {
			return ledger.PoolError(apperrors.CodePoolInvalidState, poolID,
				fmt.Sprintf("pool %s has not been distributed", poolID), "operation", "get_distribution")
		}
		record = rec
		return nil
	})
	return record, err
}

// ListEvents returns the pool's journal after afterSeq. A zero limit returns
// everything.
func (e *Engine) ListEvents(ctx context.Context, poolID ledger.PoolID, afterSeq uint64, limit int) ([]event.Event, error) {
	return e.QueryEvents(ctx, poolID, event.Query{AfterSeq: afterSeq, Limit: limit})
}

// QueryEvents returns the page of the pool's journal described by q.
func (e *Engine) QueryEvents(ctx context.Context, poolID ledger.PoolID, q event.Query) (events []event.Event, err error) {
	if q.Limit < 0 {
		return nil, ledger.InvalidArgument("limit", "limit must not be negative")
	}
	err = e.requirePool(ctx, poolID, func(u unit) error {
		events, err = u.tx.ListEvents(ctx, poolID, q)
		return err
	})
	return events, err
}

// ListTransfers returns the pool's recorded vault transfers in order.
func (e *Engine) ListTransfers(ctx context.Context, poolID ledger.PoolID) (transfers []escrow.Transfer, err error) {
	err = e.requirePool(ctx, poolID, func(u unit) error {
		transfers, err = u.tx.ListTransfers(ctx, poolID)
		return err
	})
	return transfers, err
}

// VerifyJournal recomputes the pool's event chain and checks signatures when
// a keyring is configured.
func (e *Engine) VerifyJournal(ctx context.Context, poolID ledger.PoolID) (err error) {
	ctx, span := e.startSpan(ctx, "verify_journal", poolID)
	defer func() { endSpan(span, err) }()

	var events []event.Event
	err = e.requirePool(ctx, poolID, func(u unit) error {
		events, err = u.tx.ListEvents(ctx, poolID, event.Query{})
		return err
	})
	if err != nil {
		return err
	}
	return integrity.VerifyChain(poolID, events, e.keyring)
}
