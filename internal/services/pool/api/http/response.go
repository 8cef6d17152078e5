package http

import (
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
	"google.golang.org/grpc/codes"
)

type apiError struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{Code: code, Message: message})
}

// writeDomainError maps err to an HTTP status through its gRPC code.
func writeDomainError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	body := apiError{Code: string(code), Message: err.Error()}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		body.Metadata = domainErr.Metadata
	}
	if code == apperrors.CodeUnknown {
		body.Code = "INTERNAL"
		body.Message = "internal server error"
	}
	writeJSON(w, httpStatus(code.GRPCCode()), body)
}

func httpStatus(code codes.Code) int {
	switch code {
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
