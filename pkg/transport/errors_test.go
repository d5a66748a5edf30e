package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/auth"
	"github.com/rhuss/storefront/pkg/storage"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name       string
		errType    api.ErrorType
		wantStatus int
	}{
		{"invalid_request -> 400", api.ErrorTypeInvalidRequest, http.StatusBadRequest},
		{"conflict -> 400", api.ErrorTypeConflict, http.StatusBadRequest},
		{"authentication_error -> 401", api.ErrorTypeAuthentication, http.StatusUnauthorized},
		{"permission_denied -> 403", api.ErrorTypePermissionDenied, http.StatusForbidden},
		{"not_found -> 404", api.ErrorTypeNotFound, http.StatusNotFound},
		{"too_many_requests -> 429", api.ErrorTypeTooManyRequests, http.StatusTooManyRequests},
		{"server_error -> 500", api.ErrorTypeServerError, http.StatusInternalServerError},
		{"unknown type -> 500", api.ErrorType("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &api.APIError{Type: tt.errType, Message: "test"}
			got := HTTPStatusFromError(err)
			if got != tt.wantStatus {
				t.Errorf("HTTPStatusFromError(%q) = %d, want %d", tt.errType, got, tt.wantStatus)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantType api.ErrorType
	}{
		{"not found", storage.ErrNotFound, api.ErrorTypeNotFound},
		{"wrapped not found", fmt.Errorf("get order 7: %w", storage.ErrNotFound), api.ErrorTypeNotFound},
		{"conflict", storage.ErrConflict, api.ErrorTypeConflict},
		{"unauthenticated", auth.ErrUnauthenticated, api.ErrorTypeAuthentication},
		{"invalid token", fmt.Errorf("%w: expired", auth.ErrInvalidToken), api.ErrorTypeAuthentication},
		{"invalid credentials", auth.ErrInvalidCredentials, api.ErrorTypeAuthentication},
		{"forbidden", auth.ErrForbidden, api.ErrorTypePermissionDenied},
		{"rate limited", auth.ErrTooManyRequests, api.ErrorTypeTooManyRequests},
		{"api error passes through", api.NewInvalidRequestError("price", "must not be negative"), api.ErrorTypeInvalidRequest},
		{"unknown", errors.New("connection reset"), api.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAPIError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("ToAPIError(%v).Type = %q, want %q", tt.err, got.Type, tt.wantType)
			}
		})
	}
}

func TestToAPIErrorHidesInternalMessage(t *testing.T) {
	got := ToAPIError(errors.New("pq: password authentication failed for user storefront"))
	if got.Message != "internal server error" {
		t.Errorf("Message = %q, want %q", got.Message, "internal server error")
	}
}

func TestWriteErrorResponse(t *testing.T) {
	apiErr := api.NewInvalidRequestError("username", "is required")
	rec := httptest.NewRecorder()

	WriteErrorResponse(rec, apiErr, http.StatusBadRequest)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	ct := rec.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Error.Type != api.ErrorTypeInvalidRequest {
		t.Errorf("error type = %q, want %q", resp.Error.Type, api.ErrorTypeInvalidRequest)
	}
	if resp.Error.Param != "username" {
		t.Errorf("error param = %q, want %q", resp.Error.Param, "username")
	}
	if resp.Error.Message != "is required" {
		t.Errorf("error message = %q, want %q", resp.Error.Message, "is required")
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid_request", api.NewInvalidRequestError("username", "is required"), http.StatusBadRequest},
		{"not_found", storage.ErrNotFound, http.StatusNotFound},
		{"forbidden", auth.ErrForbidden, http.StatusForbidden},
		{"unauthenticated", auth.ErrUnauthenticated, http.StatusUnauthorized},
		{"server_error", errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/products", nil)
			WriteError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantStatus)
			}

			var resp api.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error == nil {
				t.Fatal("error body missing")
			}
		})
	}
}

func TestWriteJSONNilBody(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusNoContent, nil)

	if rec.Code != http.StatusNoContent {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}
