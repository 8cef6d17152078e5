package scenario

import (
	"context"
	"fmt"
	"slices"
	"strings"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/platform/requestctx"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/projection"
)

func (r *Runner) runStep(ctx context.Context, state *scenarioState, step Step) error {
	if step.Action == ActionAdvance {
		state.clock.now = state.clock.now.Add(step.Duration)
		r.logf("clock advanced to %s", state.clock.now.Format("2006-01-02T15:04:05Z07:00"))
		return nil
	}

	actor := ledger.Address(step.As).Normalize()
	if !actor.IsZero() {
		ctx = requestctx.WithActorID(ctx, actor.String())
	}
	eng := state.engine

	var poolID ledger.PoolID
	if step.Action != ActionCreate {
		resolved, err := state.resolve(step)
		if err != nil {
			return r.failf("%v", err)
		}
		poolID = resolved
	}

	var opErr error
	switch step.Action {
	case ActionCreate:
		params := step.Params
		var created pool.Pool
		created, opErr = eng.CreatePool(ctx, pool.Params{
			Issuer:          actor,
			Treasury:        ledger.Address(params.Treasury).Normalize(),
			Distributor:     ledger.Address(params.Distributor).Normalize(),
			Target:          params.Target,
			MinContribution: params.MinContribution,
			MaxContribution: params.MaxContribution,
			HardCap:         params.HardCap,
			Deadline:        state.clock.now.Add(params.Deadline),
		})
		if opErr == nil {
			if _, taken := state.pools[step.Pool]; taken {
				return r.failf("pool alias %q is already bound", step.Pool)
			}
			state.pools[step.Pool] = created.ID
			poolID = created.ID
			r.logf("pool %q created as %s", step.Pool, created.ID)
		}
	case ActionContribute:
		_, opErr = eng.Contribute(ctx, poolID, actor, step.Amount)
	case ActionLock:
		_, opErr = eng.LockPool(ctx, poolID, actor)
	case ActionCancel:
		_, opErr = eng.CancelPool(ctx, poolID, actor)
	case ActionDistribute:
		_, opErr = eng.TriggerDistribution(ctx, poolID, actor, step.Amount)
	case ActionRefund:
		var refund pool.RefundResult
		refund, opErr = eng.ClaimRefund(ctx, poolID, actor)
		if opErr == nil && step.Amount != 0 && refund.Amount != step.Amount {
			if err := r.assertf("expected refund of %d, got %d", step.Amount, refund.Amount); err != nil {
				return err
			}
		}
	case ActionCheckExpiry:
		_, opErr = eng.CheckExpiry(ctx, poolID)
	case ActionExpect:
	}

	if err := r.checkError(step, opErr); err != nil {
		return err
	}
	if step.Expect == nil || poolID == 0 {
		return nil
	}
	return r.checkExpectation(ctx, state, poolID, *step.Expect)
}

func (s *scenarioState) resolve(step Step) (ledger.PoolID, error) {
	if step.PoolID != 0 {
		return ledger.PoolID(step.PoolID), nil
	}
	poolID, ok := s.pools[step.Pool]
	if !ok {
		return 0, fmt.Errorf("unknown pool alias %q", step.Pool)
	}
	return poolID, nil
}

func (r *Runner) checkError(step Step, err error) error {
	want := strings.ToUpper(strings.TrimSpace(step.Error))
	if want == "" {
		if err != nil {
			return r.failf("%s: %w", step.Action, err)
		}
		return nil
	}
	if err == nil {
		return r.assertf("expected error %s, got success", want)
	}
	if got := apperrors.GetCode(err); string(got) != want {
		return r.assertf("expected error %s, got %s (%v)", want, got, err)
	}
	r.logf("%s rejected as expected: %v", step.Action, err)
	return nil
}

func (r *Runner) checkExpectation(ctx context.Context, state *scenarioState, poolID ledger.PoolID, want Expectation) error {
	eng := state.engine
	p, err := eng.GetPool(ctx, poolID)
	if err != nil {
		return r.failf("get pool %s: %w", poolID, err)
	}

	if want.Status != "" {
		status, err := ledger.ParseStatus(want.Status)
		if err != nil {
			return r.failf("expect status: %w", err)
		}
		if p.Status != status {
			if err := r.assertf("expected status %s, got %s", status, p.Status); err != nil {
				return err
			}
		}
	}
	checks := []struct {
		name string
		want *uint64
		got  uint64
	}{
		{"total_raised", want.TotalRaised, p.TotalRaised},
		{"total_refunded", want.TotalRefunded, p.TotalRefunded},
		{"total_shares", want.TotalShares, p.TotalShares},
	}
	for _, c := range checks {
		if c.want != nil && *c.want != c.got {
			if err := r.assertf("expected %s %d, got %d", c.name, *c.want, c.got); err != nil {
				return err
			}
		}
	}

	if want.VaultBalance != nil {
		balance, err := eng.BalanceOf(ctx, poolID)
		if err != nil {
			return r.failf("balance: %w", err)
		}
		if balance != *want.VaultBalance {
			if err := r.assertf("expected vault balance %d, got %d", *want.VaultBalance, balance); err != nil {
				return err
			}
		}
	}

	for _, holder := range sortedKeys(want.Shares) {
		shares, err := eng.SharesOf(ctx, poolID, ledger.Address(holder).Normalize())
		if err != nil {
			return r.failf("shares of %s: %w", holder, err)
		}
		if shares != want.Shares[holder] {
			if err := r.assertf("expected %s to hold %d shares, got %d", holder, want.Shares[holder], shares); err != nil {
				return err
			}
		}
	}

	if want.Transfers != nil {
		transfers, err := eng.ListTransfers(ctx, poolID)
		if err != nil {
			return r.failf("list transfers: %w", err)
		}
		got := map[string]uint64{}
		for _, tr := range transfers {
			got[string(tr.Kind)] += tr.Amount
		}
		for _, kind := range sortedKeys(want.Transfers) {
			if got[kind] != want.Transfers[kind] {
				if err := r.assertf("expected %s transfers of %d, got %d", kind, want.Transfers[kind], got[kind]); err != nil {
					return err
				}
			}
		}
	}

	if want.Events != nil {
		events, err := eng.ListEvents(ctx, poolID, 0, 0)
		if err != nil {
			return r.failf("list events: %w", err)
		}
		types := make([]string, 0, len(events))
		for _, evt := range events {
			types = append(types, string(evt.Type))
		}
		if !slices.Equal(types, want.Events) {
			if err := r.assertf("expected events %v, got %v", want.Events, types); err != nil {
				return err
			}
		}
	}

	if want.Distribution != nil {
		return r.checkDistribution(ctx, state, poolID, *want.Distribution)
	}
	return nil
}

func (r *Runner) checkDistribution(ctx context.Context, state *scenarioState, poolID ledger.PoolID, want DistributionExpectation) error {
	record, err := state.engine.GetDistribution(ctx, poolID)
	if err != nil {
		return r.failf("get distribution: %w", err)
	}
	checks := []struct {
		name string
		want *uint64
		got  uint64
	}{
		{"payout_rate", want.PayoutRate, record.PayoutRate},
		{"remainder", want.Remainder, record.Remainder},
		{"total_paid", want.TotalPaid, record.TotalPaid},
		{"capital_released", want.CapitalReleased, record.CapitalReleased},
	}
	for _, c := range checks {
		if c.want != nil && *c.want != c.got {
			if err := r.assertf("expected distribution %s %d, got %d", c.name, *c.want, c.got); err != nil {
				return err
			}
		}
	}
	paid := map[string]uint64{}
	for _, payout := range record.Payouts {
		paid[payout.Holder.String()] = payout.Amount
	}
	for _, holder := range sortedKeys(want.Payouts) {
		if got := paid[string(ledger.Address(holder).Normalize())]; got != want.Payouts[holder] {
			if err := r.assertf("expected payout of %d to %s, got %d", want.Payouts[holder], holder, got); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkConsistency verifies the journal and compares its replay with the
// ledger state.
func (r *Runner) checkConsistency(ctx context.Context, state *scenarioState, poolID ledger.PoolID) error {
	eng := state.engine
	if err := eng.VerifyJournal(ctx, poolID); err != nil {
		return r.failf("verify journal: %w", err)
	}
	events, err := eng.ListEvents(ctx, poolID, 0, 0)
	if err != nil {
		return r.failf("list events: %w", err)
	}
	view, err := projection.Replay(poolID, events)
	if err != nil {
		return r.failf("replay journal: %w", err)
	}
	p, err := eng.GetPool(ctx, poolID)
	if err != nil {
		return r.failf("get pool: %w", err)
	}
	balance, err := eng.BalanceOf(ctx, poolID)
	if err != nil {
		return r.failf("balance: %w", err)
	}

	switch {
	case view.Status != p.Status:
		return r.failf("replayed status %s, ledger %s", view.Status, p.Status)
	case view.TotalShares != p.TotalShares:
		return r.failf("replayed shares %d, ledger %d", view.TotalShares, p.TotalShares)
	case view.ActiveRaised() != p.ActiveRaised():
		return r.failf("replayed active raised %d, ledger %d", view.ActiveRaised(), p.ActiveRaised())
	case view.VaultBalance != balance:
		return r.failf("replayed vault %d, ledger %d", view.VaultBalance, balance)
	}
	return nil
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
