package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
)

// AuthDecision represents the three possible outcomes of authentication.
type AuthDecision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials type.
	// The chain continues to the next authenticator.
	Abstain
)

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // populated only when Decision == Yes
	Err      error     // populated only when Decision == No
}

// Service tiers used for rate limiting.
const (
	TierAnonymous = "anonymous"
	TierUser      = "user"
	TierStaff     = "staff"
)

// Identity represents the caller of a request. The zero UserID marks the
// anonymous caller.
type Identity struct {
	// UserID is the ID of the user the credential is bound to.
	UserID int64

	Username string

	// Staff grants write access to the catalog and to orders.
	Staff bool

	// ServiceTier determines rate limits.
	ServiceTier string
}

// Anonymous returns the identity of a caller without credentials.
func Anonymous() Identity {
	return Identity{ServiceTier: TierAnonymous}
}

// UserIdentity builds the identity of an authenticated user.
func UserIdentity(userID int64, username string, staff bool) Identity {
	tier := TierUser
	if staff {
		tier = TierStaff
	}
	return Identity{UserID: userID, Username: username, Staff: staff, ServiceTier: tier}
}

// IsAnonymous reports whether the identity carries no user.
func (id Identity) IsAnonymous() bool {
	return id.UserID == 0
}

// Subject returns a stable label for logs and rate limiting.
func (id Identity) Subject() string {
	if id.IsAnonymous() {
		return "anonymous"
	}
	return "user:" + strconv.FormatInt(id.UserID, 10)
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// Sentinel errors.
var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("access denied")
	ErrTooManyRequests    = errors.New("rate limit exceeded")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("token is invalid or expired")
)

// AuthChain evaluates authenticators in order using three-outcome voting.
type AuthChain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain. Yes lets the
	// request through as Anonymous; No rejects it.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain. Stops on the first Yes or No.
// If all abstain, returns the default decision.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	// All abstained: use default.
	if c.DefaultDecision == Yes {
		anon := Anonymous()
		return AuthResult{Decision: Yes, Identity: &anon}
	}

	return AuthResult{
		Decision: No,
		Err:      ErrUnauthenticated,
	}
}
