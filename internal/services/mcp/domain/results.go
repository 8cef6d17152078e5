package domain

import (
	poolgrpc "github.com/louisbranch/cellarpool/internal/services/pool/api/grpc/pool"
)

// PoolResult is the MCP rendering of a pool.
type PoolResult struct {
	ID                uint64 `json:"id" jsonschema:"pool identifier"`
	Issuer            string `json:"issuer" jsonschema:"issuer address"`
	Treasury          string `json:"treasury" jsonschema:"address receiving distribution remainders"`
	Distributor       string `json:"distributor,omitempty" jsonschema:"optional address allowed to trigger distribution"`
	Target            uint64 `json:"target" jsonschema:"funding target"`
	MinContribution   uint64 `json:"min_contribution" jsonschema:"minimum single contribution"`
	MaxContribution   uint64 `json:"max_contribution" jsonschema:"maximum single contribution"`
	HardCap           uint64 `json:"hard_cap,omitempty" jsonschema:"optional cap on active raised funds"`
	Deadline          string `json:"deadline" jsonschema:"RFC3339 funding deadline"`
	Status            string `json:"status" jsonschema:"pool status (OPEN, FUNDING, LOCKED, CLOSED, CANCELLED)"`
	TotalRaised       uint64 `json:"total_raised" jsonschema:"sum of all contributions"`
	TotalRefunded     uint64 `json:"total_refunded" jsonschema:"sum of refunded contributions"`
	ActiveRaised      uint64 `json:"active_raised" jsonschema:"raised minus refunded"`
	TotalShares       uint64 `json:"total_shares" jsonschema:"outstanding share supply"`
	CapitalReleased   uint64 `json:"capital_released" jsonschema:"capital released to the issuer"`
	ProceedsDeposited uint64 `json:"proceeds_deposited" jsonschema:"proceeds deposited at distribution"`
	TotalDistributed  uint64 `json:"total_distributed" jsonschema:"proceeds paid to holders and treasury"`
	ContributionCount uint32 `json:"contribution_count" jsonschema:"number of contributions"`
	CancelReason      string `json:"cancel_reason,omitempty" jsonschema:"why the pool was cancelled"`
	CreatedAt         string `json:"created_at" jsonschema:"RFC3339 creation time"`
	UpdatedAt         string `json:"updated_at" jsonschema:"RFC3339 last update time"`
	LockedAt          string `json:"locked_at,omitempty" jsonschema:"RFC3339 lock time"`
	ClosedAt          string `json:"closed_at,omitempty" jsonschema:"RFC3339 close time"`
}

// ContributionResult is the MCP rendering of a contribution.
type ContributionResult struct {
	Index       uint32 `json:"index" jsonschema:"contribution index within the pool"`
	Contributor string `json:"contributor" jsonschema:"contributor address"`
	Amount      uint64 `json:"amount" jsonschema:"contributed amount"`
	Shares      uint64 `json:"shares" jsonschema:"shares minted"`
	Refunded    bool   `json:"refunded" jsonschema:"whether the contribution was refunded"`
	CreatedAt   string `json:"created_at" jsonschema:"RFC3339 contribution time"`
}

// TransferResult is the MCP rendering of a vault transfer.
type TransferResult struct {
	Seq       uint64 `json:"seq" jsonschema:"transfer sequence within the pool"`
	Recipient string `json:"recipient" jsonschema:"recipient address"`
	Amount    uint64 `json:"amount" jsonschema:"transferred amount"`
	Kind      string `json:"kind" jsonschema:"transfer kind (refund, payout, remainder, capital)"`
}

// PayoutResult is one holder's payout.
type PayoutResult struct {
	Holder string `json:"holder" jsonschema:"holder address"`
	Shares uint64 `json:"shares" jsonschema:"shares held"`
	Amount uint64 `json:"amount" jsonschema:"amount paid"`
}

// DistributionResult is the MCP rendering of a distribution.
type DistributionResult struct {
	PoolID          uint64         `json:"pool_id" jsonschema:"pool identifier"`
	Proceeds        uint64         `json:"proceeds" jsonschema:"proceeds deposited"`
	PayoutRate      uint64         `json:"payout_rate" jsonschema:"amount paid per share"`
	TotalShares     uint64         `json:"total_shares" jsonschema:"share supply at distribution"`
	Remainder       uint64         `json:"remainder" jsonschema:"undistributable remainder sent to the treasury"`
	CapitalReleased uint64         `json:"capital_released" jsonschema:"capital released to the issuer"`
	TotalPaid       uint64         `json:"total_paid" jsonschema:"sum paid to holders"`
	Payouts         []PayoutResult `json:"payouts" jsonschema:"per-holder payouts"`
	ExecutedBy      string         `json:"executed_by" jsonschema:"address that triggered the distribution"`
	ExecutedAt      string         `json:"executed_at" jsonschema:"RFC3339 execution time"`
}

// EventResult is the MCP rendering of a journal entry.
type EventResult struct {
	Seq       uint64 `json:"seq" jsonschema:"event sequence within the pool"`
	Type      string `json:"type" jsonschema:"event type"`
	Timestamp string `json:"timestamp" jsonschema:"RFC3339 event time"`
	ActorID   string `json:"actor_id,omitempty" jsonschema:"actor that caused the event"`
	RequestID string `json:"request_id,omitempty" jsonschema:"request that caused the event"`
	Height    uint64 `json:"height" jsonschema:"ledger height of the commit"`
	Payload   string `json:"payload" jsonschema:"event payload JSON"`
	ChainHash string `json:"chain_hash" jsonschema:"journal chain hash"`
}

func poolResult(p poolgrpc.Pool) PoolResult {
	return PoolResult{
		ID:                p.ID,
		Issuer:            p.Issuer,
		Treasury:          p.Treasury,
		Distributor:       p.Distributor,
		Target:            p.Target,
		MinContribution:   p.MinContribution,
		MaxContribution:   p.MaxContribution,
		HardCap:           p.HardCap,
		Deadline:          formatTime(p.Deadline),
		Status:            p.Status,
		TotalRaised:       p.TotalRaised,
		TotalRefunded:     p.TotalRefunded,
		ActiveRaised:      p.ActiveRaised,
		TotalShares:       p.TotalShares,
		CapitalReleased:   p.CapitalReleased,
		ProceedsDeposited: p.ProceedsDeposited,
		TotalDistributed:  p.TotalDistributed,
		ContributionCount: p.ContributionCount,
		CancelReason:      p.CancelReason,
		CreatedAt:         formatTime(p.CreatedAt),
		UpdatedAt:         formatTime(p.UpdatedAt),
		LockedAt:          formatOptionalTime(p.LockedAt),
		ClosedAt:          formatOptionalTime(p.ClosedAt),
	}
}

func contributionResult(c poolgrpc.Contribution) ContributionResult {
	return ContributionResult{
		Index:       c.Index,
		Contributor: c.Contributor,
		Amount:      c.Amount,
		Shares:      c.Shares,
		Refunded:    c.Refunded,
		CreatedAt:   formatTime(c.CreatedAt),
	}
}

func transferResult(t poolgrpc.Transfer) TransferResult {
	return TransferResult{Seq: t.Seq, Recipient: t.Recipient, Amount: t.Amount, Kind: t.Kind}
}

func distributionResult(d poolgrpc.Distribution) DistributionResult {
	payouts := make([]PayoutResult, 0, len(d.Payouts))
	for _, p := range d.Payouts {
		payouts = append(payouts, PayoutResult{Holder: p.Holder, Shares: p.Shares, Amount: p.Amount})
	}
	return DistributionResult{
		PoolID:          d.PoolID,
		Proceeds:        d.Proceeds,
		PayoutRate:      d.PayoutRate,
		TotalShares:     d.TotalShares,
		Remainder:       d.Remainder,
		CapitalReleased: d.CapitalReleased,
		TotalPaid:       d.TotalPaid,
		Payouts:         payouts,
		ExecutedBy:      d.ExecutedBy,
		ExecutedAt:      formatTime(d.ExecutedAt),
	}
}

func eventResult(e poolgrpc.Event) EventResult {
	return EventResult{
		Seq:       e.Seq,
		Type:      e.Type,
		Timestamp: formatTime(e.Timestamp),
		ActorID:   e.ActorID,
		RequestID: e.RequestID,
		Height:    e.Height,
		Payload:   e.PayloadJSON,
		ChainHash: e.ChainHash,
	}
}
