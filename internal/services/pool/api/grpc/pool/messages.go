package pool

import "time"

// Pool is the wire form of a pool.
type Pool struct {
	ID                uint64     `json:"id"`
	Issuer            string     `json:"issuer"`
	Treasury          string     `json:"treasury"`
	Distributor       string     `json:"distributor,omitempty"`
	Target            uint64     `json:"target"`
	MinContribution   uint64     `json:"min_contribution"`
	MaxContribution   uint64     `json:"max_contribution"`
	HardCap           uint64     `json:"hard_cap,omitempty"`
	Deadline          time.Time  `json:"deadline"`
	Status            string     `json:"status"`
	TotalRaised       uint64     `json:"total_raised"`
	TotalRefunded     uint64     `json:"total_refunded"`
	ActiveRaised      uint64     `json:"active_raised"`
	TotalShares       uint64     `json:"total_shares"`
	CapitalReleased   uint64     `json:"capital_released"`
	ProceedsDeposited uint64     `json:"proceeds_deposited"`
	TotalDistributed  uint64     `json:"total_distributed"`
	ContributionCount uint32     `json:"contribution_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	FundedAt          *time.Time `json:"funded_at,omitempty"`
	LockedAt          *time.Time `json:"locked_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
	ClosedAt          *time.Time `json:"closed_at,omitempty"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
}

// Contribution is the wire form of a contribution.
type Contribution struct {
	PoolID      uint64     `json:"pool_id"`
	Index       uint32     `json:"index"`
	Contributor string     `json:"contributor"`
	Amount      uint64     `json:"amount"`
	Shares      uint64     `json:"shares"`
	CreatedAt   time.Time  `json:"created_at"`
	Refunded    bool       `json:"refunded"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
}

// Transfer is the wire form of an outbound vault transfer.
type Transfer struct {
	PoolID    uint64    `json:"pool_id"`
	Seq       uint64    `json:"seq"`
	Recipient string    `json:"recipient"`
	Amount    uint64    `json:"amount"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// Payout is one holder's distribution.
type Payout struct {
	Holder string `json:"holder"`
	Shares uint64 `json:"shares"`
	Amount uint64 `json:"amount"`
}

// Distribution is the wire form of a distribution record.
type Distribution struct {
	PoolID          uint64    `json:"pool_id"`
	Proceeds        uint64    `json:"proceeds"`
	PayoutRate      uint64    `json:"payout_rate"`
	TotalShares     uint64    `json:"total_shares"`
	Remainder       uint64    `json:"remainder"`
	Treasury        string    `json:"treasury"`
	CapitalReleased uint64    `json:"capital_released"`
	Issuer          string    `json:"issuer"`
	TotalPaid       uint64    `json:"total_paid"`
	Payouts         []Payout  `json:"payouts"`
	Height          uint64    `json:"height"`
	ExecutedBy      string    `json:"executed_by"`
	ExecutedAt      time.Time `json:"executed_at"`
}

// Holder is one share position.
type Holder struct {
	Holder      string `json:"holder"`
	Shares      uint64 `json:"shares"`
	Contributed uint64 `json:"contributed"`
}

// Event is the wire form of a journal entry.
type Event struct {
	PoolID         uint64    `json:"pool_id"`
	Seq            uint64    `json:"seq"`
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ActorID        string    `json:"actor_id,omitempty"`
	RequestID      string    `json:"request_id,omitempty"`
	Height         uint64    `json:"height"`
	PayloadJSON    string    `json:"payload_json"`
	Hash           string    `json:"hash"`
	PrevHash       string    `json:"prev_hash,omitempty"`
	ChainHash      string    `json:"chain_hash"`
	Signature      string    `json:"signature,omitempty"`
	SignatureKeyID string    `json:"signature_key_id,omitempty"`
}

type CreatePoolRequest struct {
	// Issuer defaults to the calling actor.
	Issuer          string    `json:"issuer,omitempty"`
	Treasury        string    `json:"treasury,omitempty"`
	Distributor     string    `json:"distributor,omitempty"`
	Target          uint64    `json:"target"`
	MinContribution uint64    `json:"min_contribution"`
	MaxContribution uint64    `json:"max_contribution"`
	HardCap         uint64    `json:"hard_cap,omitempty"`
	Deadline        time.Time `json:"deadline"`
}

type PoolResponse struct {
	Pool Pool `json:"pool"`
}

type ContributeRequest struct {
	PoolID uint64 `json:"pool_id"`
	// Contributor defaults to the calling actor.
	Contributor string `json:"contributor,omitempty"`
	Amount      uint64 `json:"amount"`
}

type ContributeResponse struct {
	Pool         Pool         `json:"pool"`
	Contribution Contribution `json:"contribution"`
}

// PoolActionRequest addresses a pool on behalf of a caller. Caller defaults
// to the calling actor.
type PoolActionRequest struct {
	PoolID uint64 `json:"pool_id"`
	Caller string `json:"caller,omitempty"`
}

type TriggerDistributionRequest struct {
	PoolID   uint64 `json:"pool_id"`
	Caller   string `json:"caller,omitempty"`
	Proceeds uint64 `json:"proceeds"`
}

type DistributionResponse struct {
	Distribution Distribution `json:"distribution"`
}

type ClaimRefundRequest struct {
	PoolID      uint64 `json:"pool_id"`
	Contributor string `json:"contributor,omitempty"`
}

type ClaimRefundResponse struct {
	Pool          Pool     `json:"pool"`
	Amount        uint64   `json:"amount"`
	SharesBurned  uint64   `json:"shares_burned"`
	Contributions []uint32 `json:"contributions"`
	Transfer      Transfer `json:"transfer"`
}

type GetPoolRequest struct {
	PoolID uint64 `json:"pool_id"`
}

type BalanceResponse struct {
	PoolID  uint64 `json:"pool_id"`
	Balance uint64 `json:"balance"`
}

type SharesOfRequest struct {
	PoolID uint64 `json:"pool_id"`
	Holder string `json:"holder"`
}

type SharesOfResponse struct {
	PoolID uint64 `json:"pool_id"`
	Holder string `json:"holder"`
	Shares uint64 `json:"shares"`
}

type ListHoldersResponse struct {
	Holders []Holder `json:"holders"`
}

type ListPoolsRequest struct {
	Issuer    string `json:"issuer,omitempty"`
	Status    string `json:"status,omitempty"`
	Filter    string `json:"filter,omitempty"`
	PageSize  int32  `json:"page_size,omitempty"`
	PageToken uint64 `json:"page_token,omitempty"`
}

type ListPoolsResponse struct {
	Pools         []Pool `json:"pools"`
	NextPageToken uint64 `json:"next_page_token,omitempty"`
}

type GetStatsRequest struct{}

type StatsResponse struct {
	Pools            int            `json:"pools"`
	ByStatus         map[string]int `json:"by_status"`
	ActiveRaised     uint64         `json:"active_raised"`
	TotalDistributed uint64         `json:"total_distributed"`
}

type ListContributionsRequest struct {
	PoolID      uint64 `json:"pool_id"`
	Contributor string `json:"contributor,omitempty"`
	ActiveOnly  bool   `json:"active_only,omitempty"`
}

type ListContributionsResponse struct {
	Contributions []Contribution `json:"contributions"`
}

type ListEventsRequest struct {
	PoolID   uint64 `json:"pool_id"`
	AfterSeq uint64 `json:"after_seq,omitempty"`
	Filter   string `json:"filter,omitempty"`
	PageSize int32  `json:"page_size,omitempty"`
}

type ListEventsResponse struct {
	Events        []Event `json:"events"`
	NextPageToken uint64  `json:"next_page_token,omitempty"`
}

type ListTransfersResponse struct {
	Transfers []Transfer `json:"transfers"`
}

type VerifyJournalResponse struct {
	PoolID uint64 `json:"pool_id"`
	Events int    `json:"events"`
}
