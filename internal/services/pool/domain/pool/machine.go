package pool

import (
	"context"
	"fmt"
	"math"
	"time"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/shares"
)

// Machine runs pool lifecycle operations inside one unit of work. Every
// operation validates first, mutates ledgers second and withdraws from the
// vault last.
type Machine struct {
	store  Store
	vault  *escrow.Vault
	shares *shares.Ledger
	now    func() time.Time
}

// NewMachine builds a machine over the unit's stores.
func NewMachine(store Store, vault *escrow.Vault, shareLedger *shares.Ledger, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{store: store, vault: vault, shares: shareLedger, now: now}
}

// ContributeResult is the outcome of an admitted contribution.
type ContributeResult struct {
	Pool         Pool
	Contribution Contribution
}

// RefundResult is the outcome of a refund claim.
type RefundResult struct {
	Pool          Pool
	Amount        uint64
	SharesBurned  uint64
	Contributions []uint32
	Transfer      escrow.Transfer
}

// Contribute admits amount from contributor into the pool.
func (m *Machine) Contribute(ctx context.Context, poolID ledger.PoolID, contributor ledger.Address, amount uint64) (ContributeResult, []event.Event, error) {
	now := m.now().UTC()
	contributor = contributor.Normalize()
	if contributor == "" {
		return ContributeResult{}, nil, ledger.InvalidArgument("contributor", "contributor is required")
	}
	p, err := m.store.GetPool(ctx, poolID)
	if err != nil {
		return ContributeResult{}, nil, err
	}
	if err := ValidateOperation(poolID, p.Status, OpContribute); err != nil {
		return ContributeResult{}, nil, err
	}
	if p.Expired(now) {
		return ContributeResult{}, nil, ledger.PoolError(apperrors.CodePoolDeadlineExpired, poolID,
			fmt.Sprintf("pool %s deadline %s has passed", poolID, p.Deadline.Format(time.RFC3339)))
	}
	if amount == 0 || amount < p.MinContribution || amount > p.MaxContribution {
		return ContributeResult{}, nil, ledger.PoolError(apperrors.CodePoolOutOfBounds, poolID,
			fmt.Sprintf("contribution %d outside [%d, %d]", amount, p.MinContribution, p.MaxContribution),
			"amount", amount, "min", p.MinContribution, "max", p.MaxContribution)
	}
	active := p.ActiveRaised()
	nextActive, err := ledger.Add(active, amount)
	if err != nil {
		return ContributeResult{}, nil, ledger.PoolError(apperrors.CodePoolArithmeticOverflow, poolID, "raised amount overflows")
	}
	nextGross, err := ledger.Add(p.TotalRaised, amount)
	if err != nil {
		return ContributeResult{}, nil, ledger.PoolError(apperrors.CodePoolArithmeticOverflow, poolID, "raised amount overflows")
	}
	if p.HardCap != 0 && nextActive > p.HardCap {
		return ContributeResult{}, nil, ledger.PoolError(apperrors.CodePoolOutOfBounds, poolID,
			fmt.Sprintf("contribution %d would exceed hard cap %d", amount, p.HardCap),
			"amount", amount, "hard_cap", p.HardCap)
	}
	if p.ContributionCount == math.MaxUint32 {
		return ContributeResult{}, nil, ledger.PoolError(apperrors.CodePoolArithmeticOverflow, poolID, "contribution count overflows")
	}

	if _, err := m.vault.Deposit(ctx, poolID, amount); err != nil {
		return ContributeResult{}, nil, err
	}
	minted, err := m.shares.Mint(ctx, poolID, p.Status, contributor, amount, active)
	if err != nil {
		return ContributeResult{}, nil, err
	}
	nextShares, err := ledger.Add(p.TotalShares, minted)
	if err != nil {
		return ContributeResult{}, nil, ledger.PoolError(apperrors.CodePoolArithmeticOverflow, poolID, "share supply overflows")
	}

	p.ContributionCount++
	contribution := Contribution{
		PoolID:      poolID,
		Index:       p.ContributionCount,
		Contributor: contributor,
		Amount:      amount,
		Shares:      minted,
		CreatedAt:   now,
	}
	p.TotalRaised = nextGross
	p.TotalShares = nextShares
	p.UpdatedAt = now

	received, err := event.New(poolID, event.TypeContributionReceived, contributor, now, event.ContributionReceivedPayload{
		Contributor: contributor,
		Index:       contribution.Index,
		Amount:      amount,
		Shares:      minted,
		TotalRaised: p.ActiveRaised(),
		TotalShares: p.TotalShares,
	})
	if err != nil {
		return ContributeResult{}, nil, err
	}
	events := []event.Event{received}

	if p.Status == ledger.StatusOpen && p.ActiveRaised() >= p.Target {
		if err := Transition(&p, ledger.StatusFunding, now); err != nil {
			return ContributeResult{}, nil, err
		}
		funded, err := event.New(poolID, event.TypePoolFunded, contributor, now, event.PoolFundedPayload{
			Target:      p.Target,
			TotalRaised: p.ActiveRaised(),
		})
		if err != nil {
			return ContributeResult{}, nil, err
		}
		events = append(events, funded)
	}

	if err := m.store.PutContribution(ctx, contribution); err != nil {
		return ContributeResult{}, nil, fmt.Errorf("store contribution: %w", err)
	}
	if err := m.store.PutPool(ctx, p); err != nil {
		return ContributeResult{}, nil, fmt.Errorf("store pool: %w", err)
	}
	return ContributeResult{Pool: p, Contribution: contribution}, events, nil
}

// Lock freezes contributions at the issuer's request before the deadline.
func (m *Machine) Lock(ctx context.Context, poolID ledger.PoolID, caller ledger.Address) (Pool, []event.Event, error) {
	now := m.now().UTC()
	p, err := m.store.GetPool(ctx, poolID)
	if err != nil {
		return Pool{}, nil, err
	}
	if err := requireIssuer(p, caller, OpLock); err != nil {
		return Pool{}, nil, err
	}
	if err := ValidateOperation(poolID, p.Status, OpLock); err != nil {
		return Pool{}, nil, err
	}
	if p.Expired(now) {
		return Pool{}, nil, ledger.PoolError(apperrors.CodePoolDeadlineExpired, poolID, "pool deadline has passed")
	}
	if p.ActiveRaised() == 0 {
		return Pool{}, nil, ledger.PoolError(apperrors.CodePoolInvalidState, poolID,
			"cannot lock a pool with nothing raised", "status", p.Status, "operation", OpLock)
	}
	return m.lock(ctx, p, caller, event.LockReasonIssuer, now)
}

// Cancel aborts an Open or Funding pool at the issuer's request.
func (m *Machine) Cancel(ctx context.Context, poolID ledger.PoolID, caller ledger.Address) (Pool, []event.Event, error) {
	now := m.now().UTC()
	p, err := m.store.GetPool(ctx, poolID)
	if err != nil {
		return Pool{}, nil, err
	}
	if err := requireIssuer(p, caller, OpCancel); err != nil {
		return Pool{}, nil, err
	}
	if err := ValidateOperation(poolID, p.Status, OpCancel); err != nil {
		return Pool{}, nil, err
	}
	return m.cancel(ctx, p, caller, event.CancelReasonIssuer, now)
}

// NeedsExpiry reports whether the pool's deadline has passed while it still
// accepts contributions.
func NeedsExpiry(p Pool, now time.Time) bool {
	return p.Status.AcceptsContributions() && p.Expired(now)
}

// Expire applies the deadline transition: a Funding pool locks, an Open pool
// cancels. It is a no-op when NeedsExpiry is false.
func (m *Machine) Expire(ctx context.Context, poolID ledger.PoolID) (Pool, []event.Event, error) {
	now := m.now().UTC()
	p, err := m.store.GetPool(ctx, poolID)
	if err != nil {
		return Pool{}, nil, err
	}
	if !NeedsExpiry(p, now) {
		return p, nil, nil
	}
	if p.Status == ledger.StatusFunding {
		return m.lock(ctx, p, "", event.LockReasonDeadline, now)
	}
	return m.cancel(ctx, p, "", event.CancelReasonDeadline, now)
}

// ClaimRefund returns every non-refunded contribution of contributor in a
// cancelled pool and burns the matching shares.
func (m *Machine) ClaimRefund(ctx context.Context, poolID ledger.PoolID, contributor ledger.Address) (RefundResult, []event.Event, error) {
	now := m.now().UTC()
	contributor = contributor.Normalize()
	if contributor == "" {
		return RefundResult{}, nil, ledger.InvalidArgument("contributor", "contributor is required")
	}
	p, err := m.store.GetPool(ctx, poolID)
	if err != nil {
		return RefundResult{}, nil, err
	}
	if err := ValidateOperation(poolID, p.Status, OpClaimRefund); err != nil {
		return RefundResult{}, nil, err
	}
	contributions, err := m.store.ListContributions(ctx, poolID, ContributionFilter{Contributor: contributor, ActiveOnly: true})
	if err != nil {
		return RefundResult{}, nil, fmt.Errorf("list contributions: %w", err)
	}
	if len(contributions) == 0 {
		return RefundResult{}, nil, ledger.PoolError(apperrors.CodePoolInvalidState, poolID,
			fmt.Sprintf("%s has nothing to refund in pool %s", contributor, poolID),
			"status", p.Status, "operation", OpClaimRefund, "contributor", contributor)
	}
	var amount uint64
	indexes := make([]uint32, 0, len(contributions))
	for _, c := range contributions {
		amount, err = ledger.Add(amount, c.Amount)
		if err != nil {
			return RefundResult{}, nil, ledger.PoolError(apperrors.CodePoolArithmeticOverflow, poolID, "refund amount overflows")
		}
		indexes = append(indexes, c.Index)
	}
	held, err := m.shares.SharesOf(ctx, poolID, contributor)
	if err != nil {
		return RefundResult{}, nil, err
	}
	if held != amount {
		return RefundResult{}, nil, ledger.PoolError(apperrors.CodeInvariantViolation, poolID,
			fmt.Sprintf("%s holds %d shares for %d refundable", contributor, held, amount))
	}
	nextRefunded, err := ledger.Add(p.TotalRefunded, amount)
	if err != nil || nextRefunded > p.TotalRaised {
		return RefundResult{}, nil, ledger.PoolError(apperrors.CodeInvariantViolation, poolID, "refunds exceed raised amount")
	}

	if err := m.shares.Burn(ctx, poolID, contributor, amount); err != nil {
		return RefundResult{}, nil, err
	}
	for _, c := range contributions {
		c.Refunded = true
		refundedAt := now
		c.RefundedAt = &refundedAt
		if err := m.store.PutContribution(ctx, c); err != nil {
			return RefundResult{}, nil, fmt.Errorf("store contribution: %w", err)
		}
	}
	p.TotalRefunded = nextRefunded
	p.TotalShares -= amount
	p.UpdatedAt = now
	if err := m.store.PutPool(ctx, p); err != nil {
		return RefundResult{}, nil, fmt.Errorf("store pool: %w", err)
	}

	transfer, err := m.vault.Withdraw(ctx, poolID, contributor, amount, escrow.TransferRefund)
	if err != nil {
		return RefundResult{}, nil, err
	}
	refunded, err := event.New(poolID, event.TypeRefundClaimed, contributor, now, event.RefundClaimedPayload{
		Contributor:   contributor,
		Amount:        amount,
		SharesBurned:  amount,
		Contributions: indexes,
	})
	if err != nil {
		return RefundResult{}, nil, err
	}
	return RefundResult{
		Pool:          p,
		Amount:        amount,
		SharesBurned:  amount,
		Contributions: indexes,
		Transfer:      transfer,
	}, []event.Event{refunded}, nil
}

func (m *Machine) lock(ctx context.Context, p Pool, actor ledger.Address, reason string, now time.Time) (Pool, []event.Event, error) {
	if err := Transition(&p, ledger.StatusLocked, now); err != nil {
		return Pool{}, nil, err
	}
	locked, err := event.New(p.ID, event.TypePoolLocked, actor, now, event.PoolLockedPayload{
		Reason:      reason,
		TotalRaised: p.ActiveRaised(),
		TotalShares: p.TotalShares,
	})
	if err != nil {
		return Pool{}, nil, err
	}
	if err := m.store.PutPool(ctx, p); err != nil {
		return Pool{}, nil, fmt.Errorf("store pool: %w", err)
	}
	return p, []event.Event{locked}, nil
}

func (m *Machine) cancel(ctx context.Context, p Pool, actor ledger.Address, reason string, now time.Time) (Pool, []event.Event, error) {
	if err := Transition(&p, ledger.StatusCancelled, now); err != nil {
		return Pool{}, nil, err
	}
	p.CancelReason = reason
	cancelled, err := event.New(p.ID, event.TypePoolCancelled, actor, now, event.PoolCancelledPayload{
		Reason:      reason,
		TotalRaised: p.ActiveRaised(),
	})
	if err != nil {
		return Pool{}, nil, err
	}
	if err := m.store.PutPool(ctx, p); err != nil {
		return Pool{}, nil, fmt.Errorf("store pool: %w", err)
	}
	return p, []event.Event{cancelled}, nil
}

func requireIssuer(p Pool, caller ledger.Address, op Operation) error {
	if caller.Normalize() == p.Issuer {
		return nil
	}
	return ledger.PoolError(apperrors.CodePoolUnauthorized, p.ID,
		fmt.Sprintf("only the issuer may %s pool %s", op, p.ID),
		"caller", caller, "operation", op)
}

// Transition moves p to status to at now, stamping lifecycle timestamps.
func Transition(p *Pool, to ledger.PoolStatus, now time.Time) error {
	if !CanTransition(p.Status, to) {
		return ledger.PoolError(apperrors.CodePoolInvalidState, p.ID,
			fmt.Sprintf("pool %s cannot move from %s to %s", p.ID, p.Status, to),
			"status", p.Status, "target_status", to)
	}
	at := now.UTC()
	switch to {
	case ledger.StatusFunding:
		p.FundedAt = &at
	case ledger.StatusLocked:
		p.LockedAt = &at
	case ledger.StatusCancelled:
		p.CancelledAt = &at
	case ledger.StatusClosed:
		p.ClosedAt = &at
	}
	p.Status = to
	p.UpdatedAt = at
	return nil
}
