// Package account implements the credential and token service: user
// registration, password authentication, token issuance and refresh,
// credential resolution, and the user resource.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/auth"
	"github.com/rhuss/storefront/pkg/auth/password"
	"github.com/rhuss/storefront/pkg/debug"
	"github.com/rhuss/storefront/pkg/observability"
	"github.com/rhuss/storefront/pkg/storage"
)

// PasswordHasher hashes and verifies passwords. Verify returns
// password.ErrMismatch for a wrong password.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	Verify(ctx context.Context, hash, password string) error
}

// TokenIssuer mints and verifies bearer tokens.
type TokenIssuer interface {
	IssueAccess(id auth.Identity) (string, error)
	IssuePair(id auth.Identity) (access, refresh string, err error)
	ParseRefresh(refresh string) (auth.Identity, error)
	Resolve(credential string) (auth.Identity, error)
}

// Service is the credential and token service.
type Service struct {
	users  storage.UserStore
	hasher PasswordHasher
	tokens TokenIssuer
}

// New creates the service.
func New(users storage.UserStore, hasher PasswordHasher, tokens TokenIssuer) *Service {
	return &Service{users: users, hasher: hasher, tokens: tokens}
}

// Register creates an active, non-staff account. It does not log the user in.
func (s *Service) Register(ctx context.Context, req *api.RegisterRequest) (*api.User, error) {
	if apiErr := api.ValidateRegister(req); apiErr != nil {
		return nil, apiErr
	}

	hash, err := s.hasher.Hash(ctx, req.Password)
	if err != nil {
		return nil, err
	}

	u := &api.User{
		Username:     req.Username,
		Email:        req.Email,
		Address:      req.Address,
		PasswordHash: hash,
		Active:       true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, usernameConflict(err)
	}

	slog.Info("user registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Authenticate checks a username and password. An unknown user, a wrong
// password and an inactive account all yield auth.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, username, pw string) (*api.User, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// Spend the same hashing work as for a real user.
		if verr := s.hasher.Verify(ctx, "", pw); verr != nil && !errors.Is(verr, password.ErrMismatch) {
			return nil, verr
		}
		return nil, s.authFailure("unknown user", username)
	case err != nil:
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := s.hasher.Verify(ctx, u.PasswordHash, pw); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, s.authFailure("wrong password", username)
		}
		return nil, err
	}

	if !u.Active {
		return nil, s.authFailure("inactive account", username)
	}

	observability.AuthAttemptsTotal.WithLabelValues("password", "success").Inc()
	return u, nil
}

func (s *Service) authFailure(reason, username string) error {
	observability.AuthAttemptsTotal.WithLabelValues("password", "failure").Inc()
	debug.Log("auth", "password authentication failed", "username", username, "reason", reason)
	return auth.ErrInvalidCredentials
}

// Login authenticates and returns an access token. Missing fields are
// treated as wrong credentials.
func (s *Service) Login(ctx context.Context, req *api.LoginRequest) (string, error) {
	u, err := s.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return "", err
	}
	return s.tokens.IssueAccess(identityOf(u))
}

// ObtainPair authenticates and returns an access and refresh token.
func (s *Service) ObtainPair(ctx context.Context, req *api.LoginRequest) (*api.TokenPair, error) {
	if apiErr := api.ValidateLogin(req); apiErr != nil {
		return nil, apiErr
	}
	u, err := s.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	access, refresh, err := s.tokens.IssuePair(identityOf(u))
	if err != nil {
		return nil, err
	}
	return &api.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a refresh token for a new access token. The user is
// reloaded so the new token carries the current staff flag, and a deleted
// or inactive user is refused. Any token failure is auth.ErrInvalidToken.
func (s *Service) Refresh(ctx context.Context, refresh string) (string, error) {
	if refresh == "" {
		return "", api.NewInvalidRequestError("refresh", "refresh is required")
	}
	id, err := s.tokens.ParseRefresh(refresh)
	if err != nil {
		return "", s.refreshFailure("error", err)
	}
	u, err := s.users.GetUser(ctx, id.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return "", s.refreshFailure("user_id", id.UserID, "reason", "user not found")
	}
	if err != nil {
		return "", err
	}
	if !u.Active {
		return "", s.refreshFailure("user_id", id.UserID, "reason", "user inactive")
	}
	access, err := s.tokens.IssueAccess(identityOf(u))
	if err != nil {
		return "", err
	}
	observability.AuthAttemptsTotal.WithLabelValues("refresh", "success").Inc()
	return access, nil
}

func (s *Service) refreshFailure(args ...any) error {
	observability.AuthAttemptsTotal.WithLabelValues("refresh", "failure").Inc()
	debug.Log("auth", "token refresh failed", args...)
	return auth.ErrInvalidToken
}

// Resolve maps a raw bearer credential to an identity without touching the
// store. An empty credential is the anonymous caller.
func (s *Service) Resolve(credential string) (auth.Identity, error) {
	return s.tokens.Resolve(credential)
}

func identityOf(u *api.User) auth.Identity {
	return auth.UserIdentity(u.ID, u.Username, u.Staff)
}

// usernameConflict turns a store conflict into a field-level API error.
func usernameConflict(err error) error {
	if errors.Is(err, storage.ErrConflict) {
		return api.NewConflictError("username", "a user with that username already exists")
	}
	return err
}
