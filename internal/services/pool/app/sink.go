package app

import (
	"context"

	"github.com/louisbranch/cellarpool/internal/platform/logging"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/escrow"
)

// logSink records committed transfers in the service log. Settlement with an
// external payment rail plugs in at the same TransferSink seam.
type logSink struct {
	logger *logging.Logger
}

func (s logSink) Deliver(_ context.Context, transfers []escrow.Transfer) error {
	for _, t := range transfers {
		s.logger.Info("transfer committed",
			"pool_id", t.PoolID.String(),
			"seq", t.Seq,
			"kind", string(t.Kind),
			"recipient", t.Recipient.String(),
			"amount", t.Amount,
		)
	}
	return nil
}
