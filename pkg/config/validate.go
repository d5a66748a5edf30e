package config

import (
	"errors"
	"fmt"
	"strings"
)

// minSecretBytes is the shortest accepted HS256 signing secret.
const minSecretBytes = 32

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	if bp := c.Server.BasePath; bp != "" && (!strings.HasPrefix(bp, "/") || strings.HasSuffix(bp, "/")) {
		errs = append(errs, fmt.Errorf("server.base_path must start with \"/\" and not end with one, got %q", bp))
	}

	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be > 0, got %d", c.Server.MaxBodyBytes))
	}

	switch c.Storage.Type {
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, fmt.Errorf("storage.sqlite.path is required when storage.type is \"sqlite\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"memory\", \"postgres\", or \"sqlite\", got %q", c.Storage.Type))
	}

	if len(c.Auth.JWT.Secret) < minSecretBytes {
		errs = append(errs, fmt.Errorf("auth.jwt.secret must be at least %d bytes", minSecretBytes))
	}
	if c.Auth.JWT.AccessTTL <= 0 {
		errs = append(errs, fmt.Errorf("auth.jwt.access_ttl must be > 0, got %v", c.Auth.JWT.AccessTTL))
	}
	if c.Auth.JWT.RefreshTTL < c.Auth.JWT.AccessTTL {
		errs = append(errs, fmt.Errorf("auth.jwt.refresh_ttl must be >= access_ttl, got %v", c.Auth.JWT.RefreshTTL))
	}

	if cost := c.Auth.Password.Cost; cost < 4 || cost > 31 {
		errs = append(errs, fmt.Errorf("auth.password.cost must be between 4 and 31, got %d", cost))
	}

	for i, k := range c.Auth.APIKeys {
		if k.Key == "" && k.KeyFile == "" {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d]: key or key_file is required", i))
		}
		if k.UserID <= 0 {
			errs = append(errs, fmt.Errorf("auth.api_keys[%d].user_id must be > 0", i))
		}
	}

	if c.Auth.RateLimit.DefaultRPM < 0 {
		errs = append(errs, fmt.Errorf("auth.rate_limit.default_rpm must be >= 0"))
	}
	for name, tier := range c.Auth.RateLimit.Tiers {
		if tier.RequestsPerMinute < 0 || tier.Burst < 0 {
			errs = append(errs, fmt.Errorf("auth.rate_limit.tiers.%s: limits must be >= 0", name))
		}
	}

	if c.Auth.Admin.Username != "" && c.Auth.Admin.Password == "" && c.Auth.Admin.PasswordFile == "" {
		errs = append(errs, fmt.Errorf("auth.admin.password or auth.admin.password_file is required when auth.admin.username is set"))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "text", "json", "":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format))
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	return errors.Join(errs...)
}
