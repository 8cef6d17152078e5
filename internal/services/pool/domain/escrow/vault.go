// Package escrow holds contributed and distributable funds per pool.
//
// The vault only moves value: it never decides whether a movement is allowed
// by pool state. Every withdrawal records a Transfer in the same unit of work
// so the outbound side effect commits or rolls back with the balance change.
package escrow

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

// TransferKind classifies an outbound transfer.
type TransferKind string

const (
	TransferRefund    TransferKind = "refund"
	TransferPayout    TransferKind = "payout"
	TransferRemainder TransferKind = "remainder"
	TransferCapital   TransferKind = "capital"
)

// Transfer is a recorded outbound value movement. Seq is assigned per pool by
// the store.
type Transfer struct {
	PoolID    ledger.PoolID
	Seq       uint64
	Recipient ledger.Address
	Amount    uint64
	Kind      TransferKind
	CreatedAt time.Time
}

// BalanceStore persists vault balances and the transfer log.
type BalanceStore interface {
	// VaultBalance returns the held balance, zero when none was recorded.
	VaultBalance(ctx context.Context, poolID ledger.PoolID) (uint64, error)
	PutVaultBalance(ctx context.Context, poolID ledger.PoolID, balance uint64) error
	// RecordTransfer appends a transfer and returns it with Seq assigned.
	RecordTransfer(ctx context.Context, transfer Transfer) (Transfer, error)
}

// Vault moves pool funds.
type Vault struct {
	store BalanceStore
	now   func() time.Time
}

// NewVault builds a vault over store.
func NewVault(store BalanceStore, now func() time.Time) *Vault {
	if now == nil {
		now = time.Now
	}
	return &Vault{store: store, now: now}
}

// Deposit adds amount to the pool's held balance and returns the new balance.
func (v *Vault) Deposit(ctx context.Context, poolID ledger.PoolID, amount uint64) (uint64, error) {
	balance, err := v.store.VaultBalance(ctx, poolID)
	if err != nil {
		return 0, fmt.Errorf("load vault balance: %w", err)
	}
	next, err := ledger.Add(balance, amount)
	if err != nil {
		return 0, ledger.PoolError(apperrors.CodePoolArithmeticOverflow, poolID,
			"vault deposit overflows", "balance", balance, "amount", amount)
	}
	if err := v.store.PutVaultBalance(ctx, poolID, next); err != nil {
		return 0, fmt.Errorf("store vault balance: %w", err)
	}
	return next, nil
}

// Withdraw moves amount out of the pool's balance to recipient and records the
// transfer. Amount must be positive.
func (v *Vault) Withdraw(ctx context.Context, poolID ledger.PoolID, recipient ledger.Address, amount uint64, kind TransferKind) (Transfer, error) {
	recipient = recipient.Normalize()
	if recipient == "" {
		return Transfer{}, ledger.InvalidArgument("recipient", "withdraw recipient is required")
	}
	if amount == 0 {
		return Transfer{}, ledger.PoolError(apperrors.CodePoolOutOfBounds, poolID, "withdraw amount must be positive")
	}
	balance, err := v.store.VaultBalance(ctx, poolID)
	if err != nil {
		return Transfer{}, fmt.Errorf("load vault balance: %w", err)
	}
	if amount > balance {
		return Transfer{}, ledger.PoolError(apperrors.CodePoolInsufficientFunds, poolID,
			fmt.Sprintf("vault holds %d, cannot withdraw %d", balance, amount),
			"balance", balance, "amount", amount)
	}
	if err := v.store.PutVaultBalance(ctx, poolID, balance-amount); err != nil {
		return Transfer{}, fmt.Errorf("store vault balance: %w", err)
	}
	transfer, err := v.store.RecordTransfer(ctx, Transfer{
		PoolID:    poolID,
		Recipient: recipient,
		Amount:    amount,
		Kind:      kind,
		CreatedAt: v.now().UTC(),
	})
	if err != nil {
		return Transfer{}, fmt.Errorf("record transfer: %w", err)
	}
	return transfer, nil
}

// BalanceOf returns the pool's held balance.
func (v *Vault) BalanceOf(ctx context.Context, poolID ledger.PoolID) (uint64, error) {
	balance, err := v.store.VaultBalance(ctx, poolID)
	if err != nil {
		return 0, fmt.Errorf("load vault balance: %w", err)
	}
	return balance, nil
}
