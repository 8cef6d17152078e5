package projection

import (
	"fmt"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

type applyFunc func(v *PoolView, evt event.Event) error

// appliers maps every journal event type to its fold step.
var appliers = map[event.Type]applyFunc{
	event.TypePoolCreated:          applyCreated,
	event.TypeContributionReceived: applyContribution,
	event.TypePoolFunded:           applyFunded,
	event.TypePoolLocked:           applyLocked,
	event.TypePoolCancelled:        applyCancelled,
	event.TypeDistributionExecuted: applyDistribution,
	event.TypeRefundClaimed:        applyRefund,
}

// HandledTypes lists the event types Replay understands.
func HandledTypes() []event.Type {
	types := make([]event.Type, 0, len(appliers))
	for typ := range appliers {
		types = append(types, typ)
	}
	return types
}

// Replay folds the events of one pool, in sequence order, into a view. The
// first event must be the pool's creation.
func Replay(poolID ledger.PoolID, events []event.Event) (PoolView, error) {
	view := PoolView{PoolID: poolID, Holdings: make(map[ledger.Address]Holding)}
	for i, evt := range events {
		if err := Apply(&view, evt); err != nil {
			return PoolView{}, fmt.Errorf("replay event %d of pool %s: %w", i, poolID, err)
		}
	}
	return view, nil
}

// Apply folds one event into v.
func Apply(v *PoolView, evt event.Event) error {
	if evt.PoolID != v.PoolID {
		return fmt.Errorf("event belongs to pool %s", evt.PoolID)
	}
	if evt.Seq != 0 && evt.Seq != v.LastSeq+1 {
		return fmt.Errorf("expected seq %d, got %d", v.LastSeq+1, evt.Seq)
	}
	if v.Status == ledger.StatusUnspecified && evt.Type != event.TypePoolCreated {
		return fmt.Errorf("%s before %s", evt.Type, event.TypePoolCreated)
	}
	apply, ok := appliers[evt.Type]
	if !ok {
		return fmt.Errorf("unknown event type %q", evt.Type)
	}
	if err := apply(v, evt); err != nil {
		return fmt.Errorf("apply %s: %w", evt.Type, err)
	}
	v.LastSeq = evt.Seq
	v.Height = evt.Height
	return nil
}

func applyCreated(v *PoolView, evt event.Event) error {
	if v.Status != ledger.StatusUnspecified {
		return fmt.Errorf("pool already created")
	}
	payload, err := event.Decode[event.PoolCreatedPayload](evt)
	if err != nil {
		return err
	}
	v.Issuer = payload.Issuer
	v.Treasury = payload.Treasury
	v.Distributor = payload.Distributor
	v.Target = payload.Target
	v.MinContribution = payload.MinContribution
	v.MaxContribution = payload.MaxContribution
	v.HardCap = payload.HardCap
	v.Deadline = payload.Deadline
	v.Status = ledger.StatusOpen
	return nil
}

func applyContribution(v *PoolView, evt event.Event) error {
	payload, err := event.Decode[event.ContributionReceivedPayload](evt)
	if err != nil {
		return err
	}
	holding := v.Holdings[payload.Contributor]
	if holding.Shares, err = ledger.Add(holding.Shares, payload.Shares); err != nil {
		return err
	}
	if holding.Contributed, err = ledger.Add(holding.Contributed, payload.Amount); err != nil {
		return err
	}
	v.Holdings[payload.Contributor] = holding
	if v.TotalRaised, err = ledger.Add(v.TotalRaised, payload.Amount); err != nil {
		return err
	}
	if v.VaultBalance, err = ledger.Add(v.VaultBalance, payload.Amount); err != nil {
		return err
	}
	v.TotalShares += payload.Shares
	v.ContributionCount = payload.Index
	if v.ActiveRaised() != payload.TotalRaised || v.TotalShares != payload.TotalShares {
		return fmt.Errorf("totals diverge: raised %d/%d, shares %d/%d",
			v.ActiveRaised(), payload.TotalRaised, v.TotalShares, payload.TotalShares)
	}
	return nil
}

func applyFunded(v *PoolView, _ event.Event) error {
	v.Status = ledger.StatusFunding
	return nil
}

func applyLocked(v *PoolView, evt event.Event) error {
	payload, err := event.Decode[event.PoolLockedPayload](evt)
	if err != nil {
		return err
	}
	v.Status = ledger.StatusLocked
	v.LockReason = payload.Reason
	return nil
}

func applyCancelled(v *PoolView, evt event.Event) error {
	payload, err := event.Decode[event.PoolCancelledPayload](evt)
	if err != nil {
		return err
	}
	v.Status = ledger.StatusCancelled
	v.CancelReason = payload.Reason
	return nil
}

func applyDistribution(v *PoolView, evt event.Event) error {
	payload, err := event.Decode[event.DistributionExecutedPayload](evt)
	if err != nil {
		return err
	}
	if v.Distribution != nil {
		return fmt.Errorf("pool already distributed")
	}
	inflow, err := ledger.Add(v.VaultBalance, payload.Proceeds)
	if err != nil {
		return err
	}
	outflow, err := ledger.Add(payload.CapitalReleased, payload.Remainder)
	if err != nil {
		return err
	}
	for _, payout := range payload.Payouts {
		if outflow, err = ledger.Add(outflow, payout.Amount); err != nil {
			return err
		}
	}
	if v.VaultBalance, err = ledger.Sub(inflow, outflow); err != nil {
		return fmt.Errorf("distribution pays out more than the vault holds: %w", err)
	}
	v.Distribution = &payload
	v.Status = ledger.StatusClosed
	return nil
}

func applyRefund(v *PoolView, evt event.Event) error {
	payload, err := event.Decode[event.RefundClaimedPayload](evt)
	if err != nil {
		return err
	}
	holding := v.Holdings[payload.Contributor]
	if holding.Shares < payload.SharesBurned {
		return fmt.Errorf("%s burns %d of %d shares", payload.Contributor, payload.SharesBurned, holding.Shares)
	}
	holding.Shares -= payload.SharesBurned
	if holding.Contributed < payload.Amount {
		holding.Contributed = 0
	} else {
		holding.Contributed -= payload.Amount
	}
	v.Holdings[payload.Contributor] = holding
	v.TotalShares -= payload.SharesBurned
	if v.TotalRefunded, err = ledger.Add(v.TotalRefunded, payload.Amount); err != nil {
		return err
	}
	if v.VaultBalance, err = ledger.Sub(v.VaultBalance, payload.Amount); err != nil {
		return fmt.Errorf("refund exceeds vault: %w", err)
	}
	return nil
}
