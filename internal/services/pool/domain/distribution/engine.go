// Package distribution pays a locked pool's proceeds out to its shareholders
// exactly once.
//
// The payout rate is proceeds divided by total shares using integer division.
// Each holder receives rate times their shares and the undistributable
// remainder goes to the pool treasury, so every unit of proceeds leaves the
// vault. The escrowed contributions are released to the issuer in the same
// call as settlement for the underlying asset.
package distribution

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/shares"
)

// Payout is one holder's distribution.
type Payout struct {
	Holder ledger.Address
	Shares uint64
	Amount uint64
}

// Record is the single distribution of a pool. Its presence marks the pool as
// distributed.
type Record struct {
	PoolID          ledger.PoolID
	Proceeds        uint64
	PayoutRate      uint64
	TotalShares     uint64
	Remainder       uint64
	Treasury        ledger.Address
	CapitalReleased uint64
	Issuer          ledger.Address
	TotalPaid       uint64
	Payouts         []Payout
	Height          uint64
	ExecutedBy      ledger.Address
	ExecutedAt      time.Time
}

// Store persists distribution records.
type Store interface {
	// Distribution returns the pool's record and whether one exists.
	Distribution(ctx context.Context, poolID ledger.PoolID) (Record, bool, error)
	PutDistribution(ctx context.Context, record Record) error
}

// Engine executes distributions.
type Engine struct {
	pools      pool.Store
	store      Store
	vault      *escrow.Vault
	shares     *shares.Ledger
	governance map[ledger.Address]struct{}
	now        func() time.Time
}

// NewEngine builds an engine. governance lists addresses allowed to trigger
// any pool's distribution in addition to its issuer and distributor.
func NewEngine(pools pool.Store, store Store, vault *escrow.Vault, shareLedger *shares.Ledger, governance []ledger.Address, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	set := make(map[ledger.Address]struct{}, len(governance))
	for _, addr := range governance {
		if addr = addr.Normalize(); addr != "" {
			set[addr] = struct{}{}
		}
	}
	return &Engine{pools: pools, store: store, vault: vault, shares: shareLedger, governance: set, now: now}
}

// Authorized reports whether caller may trigger p's distribution.
func (e *Engine) Authorized(p pool.Pool, caller ledger.Address) bool {
	caller = caller.Normalize()
	if caller == "" {
		return false
	}
	if caller == p.Issuer || (p.Distributor != "" && caller == p.Distributor) {
		return true
	}
	_, ok := e.governance[caller]
	return ok
}

// Trigger distributes proceeds for a locked pool. height is the ledger height
// the call commits at.
func (e *Engine) Trigger(ctx context.Context, poolID ledger.PoolID, caller ledger.Address, proceeds, height uint64) (Record, []event.Event, error) {
	now := e.now().UTC()
	caller = caller.Normalize()

	p, err := e.pools.GetPool(ctx, poolID)
	if err != nil {
		return Record{}, nil, err
	}
	if _, exists, err := e.store.Distribution(ctx, poolID); err != nil {
		return Record{}, nil, fmt.Errorf("load distribution: %w", err)
	} else if exists {
		return Record{}, nil, ledger.PoolError(apperrors.CodePoolInvalidState, poolID,
			fmt.Sprintf("pool %s was already distributed", poolID),
			"status", p.Status, "operation", pool.OpDistribute)
	}
	if err := pool.ValidateOperation(poolID, p.Status, pool.OpDistribute); err != nil {
		return Record{}, nil, err
	}
	if !e.Authorized(p, caller) {
		return Record{}, nil, ledger.PoolError(apperrors.CodePoolUnauthorized, poolID,
			fmt.Sprintf("%q may not distribute pool %s", caller, poolID),
			"caller", caller, "operation", pool.OpDistribute)
	}

	supply, err := e.shares.TotalShares(ctx, poolID)
	if err != nil {
		return Record{}, nil, err
	}
	if supply == 0 {
		return Record{}, nil, ledger.PoolError(apperrors.CodePoolInvalidState, poolID,
			"pool has no outstanding shares", "status", p.Status, "operation", pool.OpDistribute)
	}
	if supply != p.TotalShares {
		return Record{}, nil, ledger.PoolError(apperrors.CodeInvariantViolation, poolID,
			fmt.Sprintf("share supply %d, pool records %d", supply, p.TotalShares))
	}
	holders, err := e.shares.Holders(ctx, poolID)
	if err != nil {
		return Record{}, nil, err
	}

	rate := proceeds / supply
	payouts := make([]Payout, 0, len(holders))
	var paid uint64
	for _, holder := range holders {
		amount, err := ledger.Mul(rate, holder.Shares)
		if err != nil {
			return Record{}, nil, ledger.PoolError(apperrors.CodePoolArithmeticOverflow, poolID, "payout overflows")
		}
		paid, err = ledger.Add(paid, amount)
		if err != nil {
			return Record{}, nil, ledger.PoolError(apperrors.CodePoolArithmeticOverflow, poolID, "total payout overflows")
		}
		payouts = append(payouts, Payout{Holder: holder.Holder, Shares: holder.Shares, Amount: amount})
	}
	remainder, err := ledger.Sub(proceeds, paid)
	if err != nil {
		return Record{}, nil, ledger.PoolError(apperrors.CodeInvariantViolation, poolID, "payouts exceed proceeds")
	}

	capital := p.ActiveRaised()
	balance, err := e.vault.BalanceOf(ctx, poolID)
	if err != nil {
		return Record{}, nil, err
	}
	if balance != capital {
		return Record{}, nil, ledger.PoolError(apperrors.CodeInvariantViolation, poolID,
			fmt.Sprintf("vault holds %d, locked capital is %d", balance, capital))
	}
	if _, err := ledger.Add(balance, proceeds); err != nil {
		return Record{}, nil, ledger.PoolError(apperrors.CodePoolArithmeticOverflow, poolID,
			"proceeds overflow the vault", "balance", balance, "proceeds", proceeds)
	}

	if err := pool.Transition(&p, ledger.StatusDistributing, now); err != nil {
		return Record{}, nil, err
	}
	if _, err := e.vault.Deposit(ctx, poolID, proceeds); err != nil {
		return Record{}, nil, err
	}
	p.ProceedsDeposited = proceeds
	p.CapitalReleased = capital
	p.TotalDistributed = proceeds

	record := Record{
		PoolID:          poolID,
		Proceeds:        proceeds,
		PayoutRate:      rate,
		TotalShares:     supply,
		Remainder:       remainder,
		Treasury:        p.Treasury,
		CapitalReleased: capital,
		Issuer:          p.Issuer,
		TotalPaid:       paid,
		Payouts:         payouts,
		Height:          height,
		ExecutedBy:      caller,
		ExecutedAt:      now,
	}
	if err := e.store.PutDistribution(ctx, record); err != nil {
		return Record{}, nil, fmt.Errorf("store distribution: %w", err)
	}
	if err := pool.Transition(&p, ledger.StatusClosed, now); err != nil {
		return Record{}, nil, err
	}
	if err := e.pools.PutPool(ctx, p); err != nil {
		return Record{}, nil, fmt.Errorf("store pool: %w", err)
	}

	if capital > 0 {
		if _, err := e.vault.Withdraw(ctx, poolID, p.Issuer, capital, escrow.TransferCapital); err != nil {
			return Record{}, nil, err
		}
	}
	for _, payout := range payouts {
		if payout.Amount == 0 {
			continue
		}
		if _, err := e.vault.Withdraw(ctx, poolID, payout.Holder, payout.Amount, escrow.TransferPayout); err != nil {
			return Record{}, nil, err
		}
	}
	if remainder > 0 {
		if _, err := e.vault.Withdraw(ctx, poolID, p.Treasury, remainder, escrow.TransferRemainder); err != nil {
			return Record{}, nil, err
		}
	}

	executed, err := event.New(poolID, event.TypeDistributionExecuted, caller, now, Payload(record))
	if err != nil {
		return Record{}, nil, err
	}
	return record, []event.Event{executed}, nil
}

// Payload converts a record into its journal payload.
func Payload(record Record) event.DistributionExecutedPayload {
	payouts := make([]event.Payout, 0, len(record.Payouts))
	for _, payout := range record.Payouts {
		payouts = append(payouts, event.Payout{Holder: payout.Holder, Shares: payout.Shares, Amount: payout.Amount})
	}
	return event.DistributionExecutedPayload{
		Proceeds:        record.Proceeds,
		PayoutRate:      record.PayoutRate,
		TotalShares:     record.TotalShares,
		Remainder:       record.Remainder,
		Treasury:        record.Treasury,
		CapitalReleased: record.CapitalReleased,
		Issuer:          record.Issuer,
		Payouts:         payouts,
	}
}
