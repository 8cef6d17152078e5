package pool

import (
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/distribution"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/engine"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	poolstate "github.com/louisbranch/cellarpool/internal/services/pool/domain/pool"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/registry"
)

// ToPool converts a pool to its wire form.
func ToPool(p poolstate.Pool) Pool {
	return Pool{
		ID:                uint64(p.ID),
		Issuer:            p.Issuer.String(),
		Treasury:          p.Treasury.String(),
		Distributor:       p.Distributor.String(),
		Target:            p.Target,
		MinContribution:   p.MinContribution,
		MaxContribution:   p.MaxContribution,
		HardCap:           p.HardCap,
		Deadline:          p.Deadline,
		Status:            p.Status.String(),
		TotalRaised:       p.TotalRaised,
		TotalRefunded:     p.TotalRefunded,
		ActiveRaised:      p.ActiveRaised(),
		TotalShares:       p.TotalShares,
		CapitalReleased:   p.CapitalReleased,
		ProceedsDeposited: p.ProceedsDeposited,
		TotalDistributed:  p.TotalDistributed,
		ContributionCount: p.ContributionCount,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		FundedAt:          p.FundedAt,
		LockedAt:          p.LockedAt,
		CancelledAt:       p.CancelledAt,
		ClosedAt:          p.ClosedAt,
		CancelReason:      p.CancelReason,
	}
}

func ToPools(pools []poolstate.Pool) []Pool {
	out := make([]Pool, 0, len(pools))
	for _, p := range pools {
		out = append(out, ToPool(p))
	}
	return out
}

func ToContribution(c poolstate.Contribution) Contribution {
	return Contribution{
		PoolID:      uint64(c.PoolID),
		Index:       c.Index,
		Contributor: c.Contributor.String(),
		Amount:      c.Amount,
		Shares:      c.Shares,
		CreatedAt:   c.CreatedAt,
		Refunded:    c.Refunded,
		RefundedAt:  c.RefundedAt,
	}
}

func ToTransfer(t escrow.Transfer) Transfer {
	return Transfer{
		PoolID:    uint64(t.PoolID),
		Seq:       t.Seq,
		Recipient: t.Recipient.String(),
		Amount:    t.Amount,
		Kind:      string(t.Kind),
		CreatedAt: t.CreatedAt,
	}
}

// ToDistribution converts a distribution record to its wire form.
func ToDistribution(r distribution.Record) Distribution {
	payouts := make([]Payout, 0, len(r.Payouts))
	for _, p := range r.Payouts {
		payouts = append(payouts, Payout{Holder: p.Holder.String(), Shares: p.Shares, Amount: p.Amount})
	}
	return Distribution{
		PoolID:          uint64(r.PoolID),
		Proceeds:        r.Proceeds,
		PayoutRate:      r.PayoutRate,
		TotalShares:     r.TotalShares,
		Remainder:       r.Remainder,
		Treasury:        r.Treasury.String(),
		CapitalReleased: r.CapitalReleased,
		Issuer:          r.Issuer.String(),
		TotalPaid:       r.TotalPaid,
		Payouts:         payouts,
		Height:          r.Height,
		ExecutedBy:      r.ExecutedBy.String(),
		ExecutedAt:      r.ExecutedAt,
	}
}

func ToHolder(h engine.ShareRecord) Holder {
	return Holder{Holder: h.Holder.String(), Shares: h.Shares, Contributed: h.Contributed}
}

// ToEvent converts a journal event to its wire form.
func ToEvent(e event.Event) Event {
	return Event{
		PoolID:         uint64(e.PoolID),
		Seq:            e.Seq,
		Type:           string(e.Type),
		Timestamp:      e.Timestamp,
		ActorID:        e.ActorID.String(),
		RequestID:      e.RequestID,
		Height:         e.Height,
		PayloadJSON:    string(e.PayloadJSON),
		Hash:           e.Hash,
		PrevHash:       e.PrevHash,
		ChainHash:      e.ChainHash,
		Signature:      e.Signature,
		SignatureKeyID: e.SignatureKeyID,
	}
}

func ToStats(s registry.Stats) StatsResponse {
	byStatus := make(map[string]int, len(s.ByStatus))
	for status, count := range s.ByStatus {
		byStatus[status.String()] = count
	}
	return StatsResponse{
		Pools:            s.Pools,
		ByStatus:         byStatus,
		ActiveRaised:     s.ActiveRaised,
		TotalDistributed: s.TotalDistributed,
	}
}
