package ledger

import (
	"fmt"
	"strconv"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
)

// Sentinels for errors.Is matching. Concrete errors carry metadata and match
// these by code.
var (
	ErrPoolNotFound       = apperrors.New(apperrors.CodePoolNotFound, "pool not found")
	ErrInvalidState       = apperrors.New(apperrors.CodePoolInvalidState, "pool state disallows operation")
	ErrDeadlineExpired    = apperrors.New(apperrors.CodePoolDeadlineExpired, "pool deadline has passed")
	ErrInsufficientFunds  = apperrors.New(apperrors.CodePoolInsufficientFunds, "insufficient funds")
	ErrArithmeticOverflow = apperrors.New(apperrors.CodePoolArithmeticOverflow, "arithmetic overflow")
	ErrUnauthorized       = apperrors.New(apperrors.CodePoolUnauthorized, "caller is not authorized")
	ErrOutOfBounds        = apperrors.New(apperrors.CodePoolOutOfBounds, "amount out of bounds")
	ErrInvalidArgument    = apperrors.New(apperrors.CodeInvalidArgument, "invalid argument")
	ErrInvariant          = apperrors.New(apperrors.CodeInvariantViolation, "ledger invariant violated")
)

// PoolError builds a pool-scoped domain error. kv lists alternating metadata
// keys and values.
func PoolError(code apperrors.Code, poolID PoolID, message string, kv ...any) *apperrors.Error {
	metadata := make(map[string]string, 1+len(kv)/2)
	if poolID != 0 {
		metadata["pool_id"] = poolID.String()
	}
	for i := 0; i+1 < len(kv); i += 2 {
		metadata[fmt.Sprint(kv[i])] = formatValue(kv[i+1])
	}
	return apperrors.WithMetadata(code, message, metadata)
}

// NotFound reports a missing pool.
func NotFound(poolID PoolID) *apperrors.Error {
	return PoolError(apperrors.CodePoolNotFound, poolID, fmt.Sprintf("pool %s not found", poolID))
}

// InvalidState reports that status disallows op.
func InvalidState(poolID PoolID, status PoolStatus, op string) *apperrors.Error {
	return PoolError(apperrors.CodePoolInvalidState, poolID,
		fmt.Sprintf("pool %s is %s; %s not allowed", poolID, status, op),
		"status", status.String(), "operation", op)
}

// InvalidArgument reports a malformed request field.
func InvalidArgument(field, message string) *apperrors.Error {
	return apperrors.WithMetadata(apperrors.CodeInvalidArgument, message, map[string]string{"field": field})
}

func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case uint64:
		return strconv.FormatUint(v, 10)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
