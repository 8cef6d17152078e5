package engine

import (
	"context"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/distribution"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
)

// CreatePool validates params and registers a new Open pool.
func (e *Engine) CreatePool(ctx context.Context, params pool.Params) (created pool.Pool, err error) {
	ctx, span := e.startSpan(ctx, "create", 0)
	defer func() { endSpan(span, err) }()

	_, err = e.update(ctx, "create", 0, func(u unit, _ uint64) (outcome, error) {
		p, events, err := u.registry.Create(ctx, params)
		if err != nil {
			return outcome{}, err
		}
		created = p
		return outcome{poolID: p.ID, events: events}, nil
	})
	if err != nil {
		return pool.Pool{}, err
	}
	return created, nil
}

// Contribute admits amount from contributor into the pool.
//
// A due deadline transition commits as its own unit before the operation
// runs, so it stays applied when the call then fails with
// DEADLINE_EXPIRED.
func (e *Engine) Contribute(ctx context.Context, poolID ledger.PoolID, contributor ledger.Address, amount uint64) (result pool.ContributeResult, err error) {
	ctx, span := e.startSpan(ctx, "contribute", poolID)
	defer func() { endSpan(span, err) }()

	expired, err := e.expire(ctx, poolID)
	if err != nil {
		return pool.ContributeResult{}, err
	}
	if expired {
		return pool.ContributeResult{}, deadlinePassed(poolID, pool.OpContribute)
	}
	_, err = e.update(ctx, "contribute", poolID, func(u unit, _ uint64) (outcome, error) {
		res, events, err := u.machine.Contribute(ctx, poolID, contributor, amount)
		if err != nil {
			return outcome{}, err
		}
		result = res
		return outcome{events: events}, nil
	})
	if err != nil {
		return pool.ContributeResult{}, err
	}
	return result, nil
}

// LockPool closes the contribution window at the issuer's request. As with
// Contribute, a due deadline transition stays committed when the lock is
// refused with DEADLINE_EXPIRED.
func (e *Engine) LockPool(ctx context.Context, poolID ledger.PoolID, caller ledger.Address) (locked pool.Pool, err error) {
	ctx, span := e.startSpan(ctx, "lock", poolID)
	defer func() { endSpan(span, err) }()

	expired, err := e.expire(ctx, poolID)
	if err != nil {
		return pool.Pool{}, err
	}
	if expired {
		return pool.Pool{}, deadlinePassed(poolID, pool.OpLock)
	}
	_, err = e.update(ctx, "lock", poolID, func(u unit, _ uint64) (outcome, error) {
		p, events, err := u.machine.Lock(ctx, poolID, caller)
		if err != nil {
			return outcome{}, err
		}
		locked = p
		return outcome{events: events}, nil
	})
	if err != nil {
		return pool.Pool{}, err
	}
	return locked, nil
}

// CancelPool aborts the pool at the issuer's request. A due deadline
// transition stays committed when the cancel is refused.
func (e *Engine) CancelPool(ctx context.Context, poolID ledger.PoolID, caller ledger.Address) (cancelled pool.Pool, err error) {
	ctx, span := e.startSpan(ctx, "cancel", poolID)
	defer func() { endSpan(span, err) }()

	expired, err := e.expire(ctx, poolID)
	if err != nil {
		return pool.Pool{}, err
	}
	if expired {
		return pool.Pool{}, deadlinePassed(poolID, pool.OpCancel)
	}
	_, err = e.update(ctx, "cancel", poolID, func(u unit, _ uint64) (outcome, error) {
		p, events, err := u.machine.Cancel(ctx, poolID, caller)
		if err != nil {
			return outcome{}, err
		}
		cancelled = p
		return outcome{events: events}, nil
	})
	if err != nil {
		return pool.Pool{}, err
	}
	return cancelled, nil
}

// TriggerDistribution pays proceeds out to the shareholders of a locked pool.
// A Funding pool whose deadline passed is locked first, in its own commit,
// so the lock survives a failed trigger.
func (e *Engine) TriggerDistribution(ctx context.Context, poolID ledger.PoolID, caller ledger.Address, proceeds uint64) (record distribution.Record, err error) {
	ctx, span := e.startSpan(ctx, "distribute", poolID)
	defer func() { endSpan(span, err) }()

	if _, err = e.expire(ctx, poolID); err != nil {
		return distribution.Record{}, err
	}
	_, err = e.update(ctx, "distribute", poolID, func(u unit, height uint64) (outcome, error) {
		rec, events, err := u.distributor.Trigger(ctx, poolID, caller, proceeds, height)
		if err != nil {
			return outcome{}, err
		}
		record = rec
		return outcome{events: events}, nil
	})
	if err != nil {
		return distribution.Record{}, err
	}
	return record, nil
}

// ClaimRefund returns contributor's contributions from a cancelled pool. An
// Open pool past its deadline is cancelled in its own commit first.
func (e *Engine) ClaimRefund(ctx context.Context, poolID ledger.PoolID, contributor ledger.Address) (result pool.RefundResult, err error) {
	ctx, span := e.startSpan(ctx, "refund", poolID)
	defer func() { endSpan(span, err) }()

	if _, err = e.expire(ctx, poolID); err != nil {
		return pool.RefundResult{}, err
	}
	_, err = e.update(ctx, "refund", poolID, func(u unit, _ uint64) (outcome, error) {
		res, events, err := u.machine.ClaimRefund(ctx, poolID, contributor)
		if err != nil {
			return outcome{}, err
		}
		result = res
		return outcome{events: events}, nil
	})
	if err != nil {
		return pool.RefundResult{}, err
	}
	return result, nil
}

// CheckExpiry applies the deadline transition if it is due and returns the
// pool as it stands afterwards.
func (e *Engine) CheckExpiry(ctx context.Context, poolID ledger.PoolID) (p pool.Pool, err error) {
	ctx, span := e.startSpan(ctx, "check_expiry", poolID)
	defer func() { endSpan(span, err) }()

	if _, err = e.expire(ctx, poolID); err != nil {
		return pool.Pool{}, err
	}
	return e.GetPool(ctx, poolID)
}
