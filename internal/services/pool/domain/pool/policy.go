package pool

import (
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

// Operation describes a category of pool operation for policy checks.
type Operation int

const (
	OpUnspecified Operation = iota
	OpContribute
	OpLock
	OpCancel
	OpExpire
	OpDistribute
	OpClaimRefund
)

var operationNames = map[Operation]string{
	OpUnspecified: "unspecified",
	OpContribute:  "contribute",
	OpLock:        "lock",
	OpCancel:      "cancel",
	OpExpire:      "expire",
	OpDistribute:  "distribute",
	OpClaimRefund: "claim_refund",
}

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return "unknown"
}

// allowedOps is the (status, operation) dispatch table.
var allowedOps = map[ledger.PoolStatus]map[Operation]bool{
	ledger.StatusOpen: {
		OpContribute: true,
		OpLock:       true,
		OpCancel:     true,
		OpExpire:     true,
	},
	ledger.StatusFunding: {
		OpContribute: true,
		OpLock:       true,
		OpCancel:     true,
		OpExpire:     true,
	},
	ledger.StatusLocked: {
		OpDistribute: true,
	},
	ledger.StatusCancelled: {
		OpClaimRefund: true,
	},
}

// ValidateOperation ensures status allows op.
func ValidateOperation(poolID ledger.PoolID, status ledger.PoolStatus, op Operation) error {
	if allowedOps[status][op] {
		return nil
	}
	return ledger.InvalidState(poolID, status, op.String())
}

// transitions lists every legal status change.
var transitions = map[ledger.PoolStatus][]ledger.PoolStatus{
	ledger.StatusOpen:         {ledger.StatusFunding, ledger.StatusLocked, ledger.StatusCancelled},
	ledger.StatusFunding:      {ledger.StatusLocked, ledger.StatusCancelled},
	ledger.StatusLocked:       {ledger.StatusDistributing},
	ledger.StatusDistributing: {ledger.StatusClosed},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to ledger.PoolStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
