// Package jwt mints and verifies the HS256 access and refresh tokens used
// by storefront users, and provides the bearer token authenticator for the
// auth chain.
//
// Tokens carry the claim names token_type, user_id and jti, so clients of
// the legacy token endpoints keep working unchanged.
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rhuss/storefront/pkg/auth"
	"github.com/rhuss/storefront/pkg/observability"
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Config holds the token issuer configuration.
type Config struct {
	// Secret is the HMAC signing key.
	Secret []byte

	// Issuer is written to and required in the iss claim. If empty, issuer is not validated.
	Issuer string

	// AccessTTL is the access token lifetime. Default: 5 minutes.
	AccessTTL time.Duration

	// RefreshTTL is the refresh token lifetime. Default: 24 hours.
	RefreshTTL time.Duration

	// Leeway tolerates clock skew when checking exp and iat.
	Leeway time.Duration
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.AccessTTL == 0 {
		c.AccessTTL = 5 * time.Minute
	}
	if c.RefreshTTL == 0 {
		c.RefreshTTL = 24 * time.Hour
	}
}

// Claims is the token payload.
type Claims struct {
	TokenType TokenType `json:"token_type"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Staff     bool      `json:"is_staff,omitempty"`
	jwtlib.RegisteredClaims
}

// Identity converts the claims to the caller identity they describe.
func (c *Claims) Identity() auth.Identity {
	return auth.UserIdentity(c.UserID, c.Username, c.Staff)
}

// Issuer signs and verifies tokens.
type Issuer struct {
	config Config
	now    func() time.Time
}

// NewIssuer creates a token issuer. The secret must not be empty.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: signing secret is required")
	}
	cfg.applyDefaults()
	return &Issuer{config: cfg, now: time.Now}, nil
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration {
	return i.config.AccessTTL
}

// Issue mints a token of the given type for id.
func (i *Issuer) Issue(typ TokenType, id auth.Identity) (string, error) {
	if id.IsAnonymous() {
		return "", errors.New("jwt: cannot issue a token for the anonymous identity")
	}

	ttl := i.config.AccessTTL
	if typ == TokenRefresh {
		ttl = i.config.RefreshTTL
	}

	now := i.now()
	claims := &Claims{
		TokenType: typ,
		UserID:    id.UserID,
		Username:  id.Username,
		Staff:     id.Staff,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    i.config.Issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.config.Secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", typ, err)
	}

	observability.TokensIssuedTotal.WithLabelValues(string(typ)).Inc()
	return signed, nil
}

// IssueAccess mints an access token.
func (i *Issuer) IssueAccess(id auth.Identity) (string, error) {
	return i.Issue(TokenAccess, id)
}

// IssuePair mints an access token and a refresh token.
func (i *Issuer) IssuePair(id auth.Identity) (access, refresh string, err error) {
	if access, err = i.Issue(TokenAccess, id); err != nil {
		return "", "", err
	}
	if refresh, err = i.Issue(TokenRefresh, id); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// Parse verifies the signature, expiry and issuer of a token and checks
// that it has the wanted type. Every failure wraps auth.ErrInvalidToken.
func (i *Issuer) Parse(token string, want TokenType) (*Claims, error) {
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(token, claims, func(*jwtlib.Token) (any, error) {
		return i.config.Secret, nil
	}, i.parserOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", auth.ErrInvalidToken, err)
	}

	if claims.TokenType != want {
		return nil, fmt.Errorf("%w: token_type %q, want %q", auth.ErrInvalidToken, claims.TokenType, want)
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: missing user_id claim", auth.ErrInvalidToken)
	}
	return claims, nil
}

// Resolve turns a raw access token into an identity. An empty credential
// is the anonymous caller.
func (i *Issuer) Resolve(credential string) (auth.Identity, error) {
	if credential == "" {
		return auth.Anonymous(), nil
	}
	claims, err := i.Parse(credential, TokenAccess)
	if err != nil {
		return auth.Identity{}, err
	}
	return claims.Identity(), nil
}

// ParseRefresh validates a refresh token and returns the identity it was
// issued for. The refresh token itself stays valid until it expires.
func (i *Issuer) ParseRefresh(refresh string) (auth.Identity, error) {
	claims, err := i.Parse(refresh, TokenRefresh)
	if err != nil {
		return auth.Identity{}, err
	}
	return claims.Identity(), nil
}

// parserOptions builds JWT parser options based on the configuration.
func (i *Issuer) parserOptions() []jwtlib.ParserOption {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithIssuedAt(),
		jwtlib.WithTimeFunc(i.now),
	}

	if i.config.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(i.config.Issuer))
	}

	if i.config.Leeway > 0 {
		opts = append(opts, jwtlib.WithLeeway(i.config.Leeway))
	}

	return opts
}
