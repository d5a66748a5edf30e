package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/storage"
)

// AdminConfig describes the staff account created at startup.
type AdminConfig struct {
	Username string
	Email    string
	Password string
}

// EnsureAdmin creates the configured staff account if no user with that
// username exists. An existing account is left untouched. It reports
// whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, cfg AdminConfig) (bool, error) {
	if cfg.Username == "" {
		return false, nil
	}

	_, err := s.users.GetUserByUsername(ctx, cfg.Username)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, storage.ErrNotFound):
		return false, fmt.Errorf("looking up admin user: %w", err)
	}

	in := &api.UserInput{Username: &cfg.Username, Email: &cfg.Email, Password: &cfg.Password}
	if apiErr := api.ValidateUserInput(in, false); apiErr != nil {
		return false, fmt.Errorf("admin account: %w", apiErr)
	}

	hash, err := s.hasher.Hash(ctx, cfg.Password)
	if err != nil {
		return false, err
	}

	u := &api.User{
		Username:     cfg.Username,
		Email:        cfg.Email,
		PasswordHash: hash,
		Staff:        true,
		Active:       true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		// Another replica may have created it first.
		if errors.Is(err, storage.ErrConflict) {
			return false, nil
		}
		return false, fmt.Errorf("creating admin user: %w", err)
	}

	slog.Info("admin account created", "user_id", u.ID, "username", u.Username)
	return true, nil
}
