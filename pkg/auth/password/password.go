// Package password hashes and verifies user passwords with bcrypt.
//
// bcrypt is deliberately slow, so every hash and compare runs behind a
// bounded pool of workers. Callers waiting for a slot give up when their
// context is cancelled.
package password

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/rhuss/storefront/pkg/observability"
)

// ErrMismatch is returned by Verify when the password does not match the hash.
var ErrMismatch = errors.New("password does not match")

// Config holds the hasher configuration.
type Config struct {
	// Cost is the bcrypt cost factor. Default: bcrypt.DefaultCost.
	Cost int

	// Workers bounds concurrent hash operations. Default: GOMAXPROCS.
	Workers int
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Cost == 0 {
		c.Cost = bcrypt.DefaultCost
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
}

// Hasher hashes and verifies passwords.
type Hasher struct {
	cost int
	sem  *semaphore.Weighted

	// dummy is compared against when the user does not exist, so an unknown
	// username costs as much as a wrong password.
	dummy []byte
}

// New creates a Hasher.
func New(cfg Config) (*Hasher, error) {
	cfg.applyDefaults()
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range [%d, %d]", cfg.Cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("storefront-dummy-password"), cfg.Cost)
	if err != nil {
		return nil, fmt.Errorf("generating dummy hash: %w", err)
	}

	return &Hasher{
		cost:  cfg.Cost,
		sem:   semaphore.NewWeighted(int64(cfg.Workers)),
		dummy: dummy,
	}, nil
}

// Hash returns the bcrypt hash of password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	start := time.Now()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	observability.PasswordHashDuration.WithLabelValues("hash").Observe(time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// Verify checks password against hash. It returns ErrMismatch for a wrong
// password. An empty hash is compared against a dummy hash and always fails.
func (h *Hasher) Verify(ctx context.Context, hash, password string) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer h.sem.Release(1)

	target := []byte(hash)
	if hash == "" {
		target = h.dummy
	}

	start := time.Now()
	err := bcrypt.CompareHashAndPassword(target, []byte(password))
	observability.PasswordHashDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())

	switch {
	case hash == "":
		return ErrMismatch
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrMismatch
	case err != nil:
		return fmt.Errorf("verifying password: %w", err)
	}
	return nil
}
