package event

import (
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

// PoolCreatedPayload records the full parameter set of a new pool.
type PoolCreatedPayload struct {
	Issuer          ledger.Address `json:"issuer"`
	Treasury        ledger.Address `json:"treasury"`
	Distributor     ledger.Address `json:"distributor,omitempty"`
	Target          uint64         `json:"target"`
	MinContribution uint64         `json:"min_contribution"`
	MaxContribution uint64         `json:"max_contribution"`
	HardCap         uint64         `json:"hard_cap,omitempty"`
	Deadline        time.Time      `json:"deadline"`
}

// ContributionReceivedPayload records an admitted contribution and the pool
// totals after it.
type ContributionReceivedPayload struct {
	Contributor ledger.Address `json:"contributor"`
	Index       uint32         `json:"index"`
	Amount      uint64         `json:"amount"`
	Shares      uint64         `json:"shares"`
	TotalRaised uint64         `json:"total_raised"`
	TotalShares uint64         `json:"total_shares"`
}

// PoolFundedPayload records the Open to Funding transition.
type PoolFundedPayload struct {
	Target      uint64 `json:"target"`
	TotalRaised uint64 `json:"total_raised"`
}

// Lock reasons.
const (
	LockReasonIssuer   = "issuer"
	LockReasonDeadline = "deadline"
)

// PoolLockedPayload records a lock.
type PoolLockedPayload struct {
	Reason      string `json:"reason"`
	TotalRaised uint64 `json:"total_raised"`
	TotalShares uint64 `json:"total_shares"`
}

// Cancel reasons.
const (
	CancelReasonIssuer   = "issuer"
	CancelReasonDeadline = "deadline"
)

// PoolCancelledPayload records a cancellation.
type PoolCancelledPayload struct {
	Reason      string `json:"reason"`
	TotalRaised uint64 `json:"total_raised"`
}

// Payout is one holder's share of a distribution.
type Payout struct {
	Holder ledger.Address `json:"holder"`
	Shares uint64         `json:"shares"`
	Amount uint64         `json:"amount"`
}

// DistributionExecutedPayload records a completed distribution.
type DistributionExecutedPayload struct {
	Proceeds        uint64         `json:"proceeds"`
	PayoutRate      uint64         `json:"payout_rate"`
	TotalShares     uint64         `json:"total_shares"`
	Remainder       uint64         `json:"remainder"`
	Treasury        ledger.Address `json:"treasury"`
	CapitalReleased uint64         `json:"capital_released"`
	Issuer          ledger.Address `json:"issuer"`
	Payouts         []Payout       `json:"payouts"`
}

// RefundClaimedPayload records a refund of every outstanding contribution of
// one contributor.
type RefundClaimedPayload struct {
	Contributor   ledger.Address `json:"contributor"`
	Amount        uint64         `json:"amount"`
	SharesBurned  uint64         `json:"shares_burned"`
	Contributions []uint32       `json:"contributions"`
}
