// Package shares tracks proportional claims on a pool.
//
// Shares are minted 1:1 with contributed amounts, so before a distribution a
// holder's shares always equal the sum of their non-refunded contributions.
package shares

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

// Record is one holder's position in one pool.
type Record struct {
	PoolID      ledger.PoolID
	Holder      ledger.Address
	Shares      uint64
	Contributed uint64
	UpdatedAt   time.Time
}

// Store persists share records and the per-pool supply.
type Store interface {
	// ShareRecord returns the holder's record, or a zero record when absent.
	ShareRecord(ctx context.Context, poolID ledger.PoolID, holder ledger.Address) (Record, error)
	PutShareRecord(ctx context.Context, record Record) error
	// ListShareRecords returns every record of the pool ordered by holder.
	ListShareRecords(ctx context.Context, poolID ledger.PoolID) ([]Record, error)
	ShareSupply(ctx context.Context, poolID ledger.PoolID) (uint64, error)
	PutShareSupply(ctx context.Context, poolID ledger.PoolID, supply uint64) error
}

// Ledger mints and burns pool shares.
type Ledger struct {
	store Store
	now   func() time.Time
}

// NewLedger builds a share ledger over store.
func NewLedger(store Store, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, now: now}
}

// Mint issues shares for a contribution of amount while the pool is in status
// and returns the number minted. raisedBefore is the pool's active raised
// amount before this contribution; it must match the current supply.
func (l *Ledger) Mint(ctx context.Context, poolID ledger.PoolID, status ledger.PoolStatus, holder ledger.Address, amount, raisedBefore uint64) (uint64, error) {
	if !status.AcceptsContributions() {
		return 0, ledger.InvalidState(poolID, status, "mint")
	}
	supply, err := l.store.ShareSupply(ctx, poolID)
	if err != nil {
		return 0, fmt.Errorf("load share supply: %w", err)
	}
	if supply != raisedBefore {
		return 0, ledger.PoolError(apperrors.CodeInvariantViolation, poolID,
			fmt.Sprintf("share supply %d does not match raised %d", supply, raisedBefore))
	}
	minted := amount

	record, err := l.store.ShareRecord(ctx, poolID, holder)
	if err != nil {
		return 0, fmt.Errorf("load share record: %w", err)
	}
	nextShares, err := ledger.Add(record.Shares, minted)
	if err != nil {
		return 0, overflow(poolID, "holder shares")
	}
	nextContributed, err := ledger.Add(record.Contributed, amount)
	if err != nil {
		return 0, overflow(poolID, "holder contributed")
	}
	nextSupply, err := ledger.Add(supply, minted)
	if err != nil {
		return 0, overflow(poolID, "share supply")
	}

	record.PoolID = poolID
	record.Holder = holder
	record.Shares = nextShares
	record.Contributed = nextContributed
	record.UpdatedAt = l.now().UTC()
	if err := l.store.PutShareRecord(ctx, record); err != nil {
		return 0, fmt.Errorf("store share record: %w", err)
	}
	if err := l.store.PutShareSupply(ctx, poolID, nextSupply); err != nil {
		return 0, fmt.Errorf("store share supply: %w", err)
	}
	return minted, nil
}

// Burn removes shares from holder. The holder's contributed amount drops by
// the same count since shares are minted 1:1.
func (l *Ledger) Burn(ctx context.Context, poolID ledger.PoolID, holder ledger.Address, count uint64) error {
	record, err := l.store.ShareRecord(ctx, poolID, holder)
	if err != nil {
		return fmt.Errorf("load share record: %w", err)
	}
	if count > record.Shares {
		return ledger.PoolError(apperrors.CodePoolInsufficientFunds, poolID,
			fmt.Sprintf("holder has %d shares, cannot burn %d", record.Shares, count),
			"holder", holder, "shares", record.Shares, "burn", count)
	}
	supply, err := l.store.ShareSupply(ctx, poolID)
	if err != nil {
		return fmt.Errorf("load share supply: %w", err)
	}
	if count > supply {
		return ledger.PoolError(apperrors.CodeInvariantViolation, poolID,
			fmt.Sprintf("share supply %d below burn %d", supply, count))
	}

	record.Shares -= count
	if count > record.Contributed {
		record.Contributed = 0
	} else {
		record.Contributed -= count
	}
	record.UpdatedAt = l.now().UTC()
	if err := l.store.PutShareRecord(ctx, record); err != nil {
		return fmt.Errorf("store share record: %w", err)
	}
	if err := l.store.PutShareSupply(ctx, poolID, supply-count); err != nil {
		return fmt.Errorf("store share supply: %w", err)
	}
	return nil
}

// TotalShares returns the outstanding share supply of the pool.
func (l *Ledger) TotalShares(ctx context.Context, poolID ledger.PoolID) (uint64, error) {
	supply, err := l.store.ShareSupply(ctx, poolID)
	if err != nil {
		return 0, fmt.Errorf("load share supply: %w", err)
	}
	return supply, nil
}

// SharesOf returns holder's shares in the pool.
func (l *Ledger) SharesOf(ctx context.Context, poolID ledger.PoolID, holder ledger.Address) (uint64, error) {
	record, err := l.store.ShareRecord(ctx, poolID, holder)
	if err != nil {
		return 0, fmt.Errorf("load share record: %w", err)
	}
	return record.Shares, nil
}

// Holders returns the records with a positive share count, ordered by holder.
func (l *Ledger) Holders(ctx context.Context, poolID ledger.PoolID) ([]Record, error) {
	records, err := l.store.ListShareRecords(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("list share records: %w", err)
	}
	holders := records[:0:0]
	for _, record := range records {
		if record.Shares > 0 {
			holders = append(holders, record)
		}
	}
	return holders, nil
}

// Verify checks that the supply equals the sum of holder shares.
func (l *Ledger) Verify(ctx context.Context, poolID ledger.PoolID) error {
	records, err := l.store.ListShareRecords(ctx, poolID)
	if err != nil {
		return fmt.Errorf("list share records: %w", err)
	}
	var sum uint64
	for _, record := range records {
		sum, err = ledger.Add(sum, record.Shares)
		if err != nil {
			return overflow(poolID, "share sum")
		}
	}
	supply, err := l.TotalShares(ctx, poolID)
	if err != nil {
		return err
	}
	if sum != supply {
		return ledger.PoolError(apperrors.CodeInvariantViolation, poolID,
			fmt.Sprintf("share records sum to %d but supply is %d", sum, supply))
	}
	return nil
}

func overflow(poolID ledger.PoolID, what string) error {
	return ledger.PoolError(apperrors.CodePoolArithmeticOverflow, poolID, what+" overflows")
}
