package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/auth"
	"github.com/rhuss/storefront/pkg/storage"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status
// code. Transport-level errors (body too large, unsupported content type,
// method not allowed) are handled separately by the HTTP adapter.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest, api.ErrorTypeConflict:
		return http.StatusBadRequest
	case api.ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case api.ErrorTypePermissionDenied:
		return http.StatusForbidden
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ToAPIError converts an error returned by the service layer into an
// APIError. Errors already of type *api.APIError pass through. Unknown
// errors become a generic server_error so internal details never reach the
// client.
func ToAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError("not found")
	case errors.Is(err, storage.ErrConflict):
		return api.NewConflictError("", "request conflicts with existing data")
	case errors.Is(err, auth.ErrInvalidCredentials):
		return api.NewAuthenticationError("no active account found with the given credentials")
	case errors.Is(err, auth.ErrInvalidToken):
		return api.NewAuthenticationError("token is invalid or expired")
	case errors.Is(err, auth.ErrUnauthenticated):
		return api.NewAuthenticationError("authentication credentials were not provided")
	case errors.Is(err, auth.ErrForbidden):
		return api.NewPermissionDeniedError("you do not have permission to perform this action")
	case errors.Is(err, auth.ErrTooManyRequests):
		return api.NewTooManyRequestsError("rate limit exceeded")
	default:
		return api.NewServerError("internal server error")
	}
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It sets the Content-Type header and writes
// the HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	WriteJSON(w, statusCode, api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

// WriteError converts err with ToAPIError and writes it. Server errors are
// logged with the original cause.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := ToAPIError(err)
	if apiErr.Type == api.ErrorTypeServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"request_id", RequestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	WriteAPIError(w, apiErr)
}

// WriteJSON writes v as a JSON body with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing JSON response", "error", err)
	}
}
