// Package pool implements the investment pool lifecycle: contribution
// admission, locking, cancellation, deadline expiry and refunds.
//
// Lifecycle status is an enumerated value checked against a single
// (status, operation) dispatch table; there are no per-state types. The pool
// addresses its vault balance and share records by pool id through the escrow
// and shares components and never holds references into their storage.
package pool

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

// Params are the creation inputs of a pool.
type Params struct {
	Issuer          ledger.Address
	Treasury        ledger.Address
	Distributor     ledger.Address
	Target          uint64
	MinContribution uint64
	MaxContribution uint64
	// HardCap bounds the active raised amount. Zero means no cap.
	HardCap  uint64
	Deadline time.Time
}

// Pool is the persisted pool record.
type Pool struct {
	ID          ledger.PoolID
	Issuer      ledger.Address
	Treasury    ledger.Address
	Distributor ledger.Address

	Target          uint64
	MinContribution uint64
	MaxContribution uint64
	HardCap         uint64
	Deadline        time.Time
	Status          ledger.PoolStatus

	// TotalRaised is the gross amount ever contributed.
	TotalRaised       uint64
	TotalRefunded     uint64
	TotalShares       uint64
	CapitalReleased   uint64
	ProceedsDeposited uint64
	TotalDistributed  uint64
	ContributionCount uint32

	CreatedAt    time.Time
	UpdatedAt    time.Time
	FundedAt     *time.Time
	LockedAt     *time.Time
	CancelledAt  *time.Time
	ClosedAt     *time.Time
	CancelReason string
}

// ActiveRaised is the amount raised by contributions that were not refunded.
func (p Pool) ActiveRaised() uint64 {
	return p.TotalRaised - p.TotalRefunded
}

// Expired reports whether the deadline has been reached at now.
func (p Pool) Expired(now time.Time) bool {
	return !now.Before(p.Deadline)
}

// ExpectedVault is the balance the escrow vault must hold for this pool.
func (p Pool) ExpectedVault() (uint64, error) {
	in, err := ledger.Add(p.TotalRaised, p.ProceedsDeposited)
	if err != nil {
		return 0, err
	}
	out, err := ledger.Sum(p.TotalRefunded, p.CapitalReleased, p.TotalDistributed)
	if err != nil {
		return 0, err
	}
	return ledger.Sub(in, out)
}

// Contribution is a single admitted contribution.
type Contribution struct {
	PoolID      ledger.PoolID
	Index       uint32
	Contributor ledger.Address
	Amount      uint64
	Shares      uint64
	CreatedAt   time.Time
	Refunded    bool
	RefundedAt  *time.Time
}

// ContributionFilter narrows ListContributions.
type ContributionFilter struct {
	// Contributor restricts the listing to one contributor when set.
	Contributor ledger.Address
	// ActiveOnly excludes refunded contributions.
	ActiveOnly bool
}

// Store persists pools and their contributions.
type Store interface {
	// GetPool returns the pool or an error matching ledger.ErrPoolNotFound.
	GetPool(ctx context.Context, id ledger.PoolID) (Pool, error)
	PutPool(ctx context.Context, p Pool) error
	PutContribution(ctx context.Context, c Contribution) error
	// ListContributions returns contributions ordered by index.
	ListContributions(ctx context.Context, poolID ledger.PoolID, filter ContributionFilter) ([]Contribution, error)
}

// CheckConservation verifies the vault balance and share supply against the
// pool's accounting.
func CheckConservation(p Pool, vaultBalance, shareSupply uint64) error {
	expected, err := p.ExpectedVault()
	if err != nil {
		return ledger.PoolError(apperrors.CodeInvariantViolation, p.ID, "pool accounting does not balance")
	}
	if vaultBalance != expected {
		return ledger.PoolError(apperrors.CodeInvariantViolation, p.ID,
			fmt.Sprintf("vault holds %d, accounting expects %d", vaultBalance, expected),
			"vault", vaultBalance, "expected", expected)
	}
	if shareSupply != p.TotalShares {
		return ledger.PoolError(apperrors.CodeInvariantViolation, p.ID,
			fmt.Sprintf("share supply %d, pool records %d", shareSupply, p.TotalShares))
	}
	if p.Status != ledger.StatusClosed && p.Status != ledger.StatusDistributing && p.TotalShares != p.ActiveRaised() {
		return ledger.PoolError(apperrors.CodeInvariantViolation, p.ID,
			fmt.Sprintf("share supply %d does not match active raised %d", p.TotalShares, p.ActiveRaised()))
	}
	return nil
}

// CheckContributions verifies that the active contributions sum to the pool's
// active raised amount.
func CheckContributions(p Pool, contributions []Contribution) error {
	var active uint64
	var err error
	for _, c := range contributions {
		if c.Refunded {
			continue
		}
		active, err = ledger.Add(active, c.Amount)
		if err != nil {
			return err
		}
	}
	if active != p.ActiveRaised() {
		return ledger.PoolError(apperrors.CodeInvariantViolation, p.ID,
			fmt.Sprintf("active contributions sum to %d, pool records %d", active, p.ActiveRaised()))
	}
	return nil
}

// FilterValue resolves filter.PoolFields against p.
func (p Pool) FilterValue(name string) (any, bool) {
	switch name {
	case "issuer":
		return string(p.Issuer), true
	case "treasury":
		return string(p.Treasury), true
	case "distributor":
		return string(p.Distributor), true
	case "status":
		return p.Status.String(), true
	case "target":
		return p.Target, true
	case "total_raised":
		return p.TotalRaised, true
	case "deadline":
		return p.Deadline.UTC(), true
	case "created_at":
		return p.CreatedAt.UTC(), true
	default:
		return nil, false
	}
}
