package pool

import (
	"context"
	"errors"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// handleDomainError converts engine errors to gRPC statuses. Domain errors
// carry their code as ErrorInfo; anything else is Internal.
func handleDomainError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		return domainErr.ToGRPCStatus()
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	return status.Errorf(codes.Internal, "pool service: %v", err)
}

// clientError restores the domain error carried by a status, if any.
func clientError(err error) error {
	if err == nil {
		return nil
	}
	if domainErr := apperrors.FromGRPCStatus(err); domainErr != nil {
		return domainErr
	}
	return err
}

func invalidArgument(message string) error {
	return apperrors.New(apperrors.CodeInvalidArgument, message).ToGRPCStatus()
}
