// Package errors provides structured domain errors that travel across the
// gRPC boundary as typed status details.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Request errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// Pool errors
	CodePoolNotFound           Code = "POOL_NOT_FOUND"
	CodePoolInvalidState       Code = "POOL_INVALID_STATE"
	CodePoolDeadlineExpired    Code = "POOL_DEADLINE_EXPIRED"
	CodePoolInsufficientFunds  Code = "POOL_INSUFFICIENT_FUNDS"
	CodePoolArithmeticOverflow Code = "POOL_ARITHMETIC_OVERFLOW"
	CodePoolUnauthorized       Code = "POOL_UNAUTHORIZED"
	CodePoolOutOfBounds        Code = "POOL_OUT_OF_BOUNDS"

	// Ledger errors
	CodeInvariantViolation Code = "POOL_INVARIANT_VIOLATION"
	CodeJournalTampered    Code = "JOURNAL_TAMPERED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInvalidArgument:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodePoolInvalidState,
		CodePoolDeadlineExpired,
		CodePoolInsufficientFunds:
		return codes.FailedPrecondition

	// OutOfRange - amounts outside accepted bounds
	case CodePoolOutOfBounds,
		CodePoolArithmeticOverflow:
		return codes.OutOfRange

	// NotFound - resource doesn't exist
	case CodePoolNotFound:
		return codes.NotFound

	// PermissionDenied - caller lacks the required role
	case CodePoolUnauthorized:
		return codes.PermissionDenied

	// DataLoss - stored journal failed verification
	case CodeJournalTampered:
		return codes.DataLoss

	default:
		return codes.Internal
	}
}
