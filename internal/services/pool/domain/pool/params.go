package pool

import (
	"fmt"
	"time"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
)

// Normalize trims addresses and defaults the treasury to the issuer.
func (p Params) Normalize() Params {
	p.Issuer = p.Issuer.Normalize()
	p.Treasury = p.Treasury.Normalize()
	p.Distributor = p.Distributor.Normalize()
	if p.Treasury == "" {
		p.Treasury = p.Issuer
	}
	p.Deadline = p.Deadline.UTC().Truncate(time.Millisecond)
	return p
}

// Validate checks creation parameters at now. Inconsistent parameters fail
// with ErrInvalidState; a missing issuer is an invalid argument.
func (p Params) Validate(now time.Time) error {
	if p.Issuer.IsZero() {
		return ledger.InvalidArgument("issuer", "issuer is required")
	}
	if p.Target == 0 {
		return invalidParams("target must be positive")
	}
	if p.MinContribution > p.MaxContribution {
		return invalidParams(fmt.Sprintf("min contribution %d exceeds max %d", p.MinContribution, p.MaxContribution))
	}
	if p.MaxContribution == 0 {
		return invalidParams("max contribution must be positive")
	}
	if p.HardCap != 0 && p.HardCap < p.Target {
		return invalidParams(fmt.Sprintf("hard cap %d below target %d", p.HardCap, p.Target))
	}
	if p.Deadline.IsZero() || !p.Deadline.After(now) {
		return invalidParams("deadline must be in the future")
	}
	return nil
}

// New builds an Open pool from validated params.
func New(id ledger.PoolID, params Params, now time.Time) Pool {
	params = params.Normalize()
	now = now.UTC().Truncate(time.Millisecond)
	return Pool{
		ID:              id,
		Issuer:          params.Issuer,
		Treasury:        params.Treasury,
		Distributor:     params.Distributor,
		Target:          params.Target,
		MinContribution: params.MinContribution,
		MaxContribution: params.MaxContribution,
		HardCap:         params.HardCap,
		Deadline:        params.Deadline,
		Status:          ledger.StatusOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func invalidParams(message string) error {
	return apperrors.WithMetadata(apperrors.CodePoolInvalidState, "invalid pool parameters: "+message, map[string]string{
		"operation": "create",
	})
}
