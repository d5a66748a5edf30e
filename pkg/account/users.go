package account

import (
	"context"
	"log/slog"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/auth"
)

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context, id auth.Identity) ([]*api.User, error) {
	if err := auth.Authorize(id, auth.OpRead, auth.KindUser); err != nil {
		return nil, err
	}
	return s.users.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id auth.Identity, userID int64) (*api.User, error) {
	if err := auth.Authorize(id, auth.OpRead, auth.KindUser); err != nil {
		return nil, err
	}
	return s.users.GetUser(ctx, userID)
}

// CreateUser creates an active account with the given password.
func (s *Service) CreateUser(ctx context.Context, id auth.Identity, in *api.UserInput) (*api.User, error) {
	if err := auth.Authorize(id, auth.OpCreate, auth.KindUser); err != nil {
		return nil, err
	}
	if apiErr := api.ValidateUserInput(in, false); apiErr != nil {
		return nil, apiErr
	}

	hash, err := s.hasher.Hash(ctx, *in.Password)
	if err != nil {
		return nil, err
	}

	u := &api.User{PasswordHash: hash, Active: true}
	in.ApplyTo(u)
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, usernameConflict(err)
	}
	return u, nil
}

// UpdateUser replaces (partial false) or patches (partial true) a user. A
// password in the input is re-hashed.
func (s *Service) UpdateUser(ctx context.Context, id auth.Identity, userID int64, in *api.UserInput, partial bool) (*api.User, error) {
	if err := auth.Authorize(id, auth.OpUpdate, auth.KindUser); err != nil {
		return nil, err
	}
	if apiErr := api.ValidateUserInput(in, partial); apiErr != nil {
		return nil, apiErr
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	in.ApplyTo(u)
	if in.Password != nil {
		if u.PasswordHash, err = s.hasher.Hash(ctx, *in.Password); err != nil {
			return nil, err
		}
	}

	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, usernameConflict(err)
	}
	return u, nil
}

// DeleteUser removes a user together with the user's orders.
func (s *Service) DeleteUser(ctx context.Context, id auth.Identity, userID int64) error {
	if err := auth.Authorize(id, auth.OpDelete, auth.KindUser); err != nil {
		return err
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return err
	}
	slog.Info("user deleted", "user_id", userID, "by", id.Subject())
	return nil
}
