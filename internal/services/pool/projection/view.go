package projection

import (
	"sort"
	"time"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/event"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

// Holding is one holder's position in a view.
type Holding struct {
	Shares      uint64
	Contributed uint64
}

// PoolView is a pool folded from its events.
type PoolView struct {
	PoolID      ledger.PoolID
	Issuer      ledger.Address
	Treasury    ledger.Address
	Distributor ledger.Address

	Target          uint64
	MinContribution uint64
	MaxContribution uint64
	HardCap         uint64
	Deadline        time.Time
	Status          ledger.PoolStatus

	TotalRaised       uint64
	TotalRefunded     uint64
	TotalShares       uint64
	ContributionCount uint32
	VaultBalance      uint64

	LockReason   string
	CancelReason string

	Holdings     map[ledger.Address]Holding
	Distribution *event.DistributionExecutedPayload

	// LastSeq and Height identify the last event folded.
	LastSeq uint64
	Height  uint64
}

// ActiveRaised is the raised amount not refunded.
func (v PoolView) ActiveRaised() uint64 {
	return v.TotalRaised - v.TotalRefunded
}

// HolderShares returns holders with positive shares ordered by address.
func (v PoolView) HolderShares() []HolderShare {
	holders := make([]HolderShare, 0, len(v.Holdings))
	for addr, holding := range v.Holdings {
		if holding.Shares == 0 {
			continue
		}
		holders = append(holders, HolderShare{Holder: addr, Shares: holding.Shares, Contributed: holding.Contributed})
	}
	sort.Slice(holders, func(i, j int) bool { return holders[i].Holder < holders[j].Holder })
	return holders
}

// HolderShare is a flattened holding.
type HolderShare struct {
	Holder      ledger.Address
	Shares      uint64
	Contributed uint64
}
