package jwt

import (
	"context"
	"net/http"
	"strings"

	"github.com/rhuss/storefront/pkg/auth"
	"github.com/rhuss/storefront/pkg/debug"
	"github.com/rhuss/storefront/pkg/observability"
)

// Authenticator validates bearer access tokens minted by an Issuer.
type Authenticator struct {
	issuer *Issuer
}

// NewAuthenticator creates a bearer token authenticator.
func NewAuthenticator(issuer *Issuer) *Authenticator {
	return &Authenticator{issuer: issuer}
}

// Authenticate extracts a bearer token from the Authorization header,
// validates it, and returns an identity on success.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but invalid (expired, refresh token, bad signature, etc.)
//   - Yes: valid access token with populated Identity
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	header := r.Header.Get("Authorization")
	if header == "" {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	// Must be Bearer token.
	if !strings.HasPrefix(header, "Bearer ") {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if tokenStr == "" {
		observability.AuthAttemptsTotal.WithLabelValues("jwt", "failure").Inc()
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrInvalidToken}
	}

	claims, err := a.issuer.Parse(tokenStr, TokenAccess)
	if err != nil {
		debug.Log("auth", "JWT validation failed", "error", err)
		observability.AuthAttemptsTotal.WithLabelValues("jwt", "failure").Inc()
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrInvalidToken}
	}

	observability.AuthAttemptsTotal.WithLabelValues("jwt", "success").Inc()
	id := claims.Identity()
	return auth.AuthResult{Decision: auth.Yes, Identity: &id}
}
