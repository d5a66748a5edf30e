// Command server runs the storefront API.
//
// Configuration is read from a YAML file (see -config and STOREFRONT_CONFIG),
// then overridden by STOREFRONT_* environment variables. A .env file in the
// working directory is loaded first when present.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rhuss/storefront/pkg/account"
	"github.com/rhuss/storefront/pkg/auth"
	"github.com/rhuss/storefront/pkg/auth/apikey"
	"github.com/rhuss/storefront/pkg/auth/jwt"
	"github.com/rhuss/storefront/pkg/auth/password"
	"github.com/rhuss/storefront/pkg/config"
	"github.com/rhuss/storefront/pkg/debug"
	"github.com/rhuss/storefront/pkg/shop"
	"github.com/rhuss/storefront/pkg/storage"
	"github.com/rhuss/storefront/pkg/storage/memory"
	"github.com/rhuss/storefront/pkg/storage/postgres"
	"github.com/rhuss/storefront/pkg/storage/sqlite"
	transporthttp "github.com/rhuss/storefront/pkg/transport/http"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not load .env file", "error", err)
	}

	if err := run(*configPath); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)

	ctx := context.Background()

	store, err := createStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	hasher, err := password.New(password.Config{
		Cost:    cfg.Auth.Password.Cost,
		Workers: cfg.Auth.Password.Workers,
	})
	if err != nil {
		return fmt.Errorf("creating password hasher: %w", err)
	}

	issuer, err := jwt.NewIssuer(jwt.Config{
		Secret:     []byte(cfg.Auth.JWT.Secret),
		Issuer:     cfg.Auth.JWT.Issuer,
		AccessTTL:  cfg.Auth.JWT.AccessTTL,
		RefreshTTL: cfg.Auth.JWT.RefreshTTL,
		Leeway:     cfg.Auth.JWT.Leeway,
	})
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}

	accounts := account.New(store, hasher, issuer)

	created, err := accounts.EnsureAdmin(ctx, account.AdminConfig{
		Username: cfg.Auth.Admin.Username,
		Email:    cfg.Auth.Admin.Email,
		Password: cfg.Auth.Admin.Password,
	})
	if err != nil {
		return fmt.Errorf("bootstrapping admin account: %w", err)
	}
	if created {
		slog.Info("admin account created", "username", cfg.Auth.Admin.Username)
	}

	bypass := auth.BypassEndpoints(cfg.Observability.Metrics.Path)
	opts := []transporthttp.AdapterOption{
		transporthttp.WithAuthMiddleware(auth.Middleware(buildAuthChain(cfg.Auth, issuer), buildLimiter(cfg.Auth.RateLimit), bypass)),
		transporthttp.WithHealthChecker(store),
	}
	if cfg.Observability.Metrics.Enabled {
		opts = append(opts, transporthttp.WithMetricsHandler(promhttp.Handler()))
	}

	adapter := transporthttp.NewAdapter(accounts, shop.New(store), transporthttp.Config{
		BasePath:          cfg.Server.BasePath,
		MaxBodySize:       cfg.Server.MaxBodyBytes,
		MetricsPath:       cfg.Observability.Metrics.Path,
		TrustProxyHeaders: cfg.Server.TrustProxyHeaders,
	}, opts...)

	srv := transporthttp.NewServer(adapter.Handler(),
		transporthttp.WithAddr(":"+strconv.Itoa(cfg.Server.Port)),
		transporthttp.WithReadTimeout(cfg.Server.ReadTimeout),
		transporthttp.WithWriteTimeout(cfg.Server.WriteTimeout),
		transporthttp.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
	)

	slog.Info("storefront starting",
		"port", cfg.Server.Port,
		"base_path", cfg.Server.BasePath,
		"storage", cfg.Storage.Type,
		"rate_limit", cfg.Auth.RateLimit.Enabled,
		"api_keys", len(cfg.Auth.APIKeys),
	)
	return srv.ListenAndServe()
}

// createStore opens the configured storage backend.
func createStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "memory":
		slog.Info("storage enabled", "type", "memory")
		return memory.New(), nil

	case "postgres":
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		store, err := postgres.New(connectCtx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			MinConns:        cfg.Postgres.MinConns,
			MaxConnLifetime: cfg.Postgres.MaxConnLifetime,
			MigrateOnStart:  cfg.Postgres.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		slog.Info("storage enabled", "type", "postgres", "max_conns", cfg.Postgres.MaxConns)
		return store, nil

	case "sqlite":
		store, err := sqlite.New(ctx, sqlite.Config{Path: cfg.SQLite.Path})
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}
		slog.Info("storage enabled", "type", "sqlite", "path", cfg.SQLite.Path)
		return store, nil

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// buildAuthChain puts bearer tokens first and API keys second. Requests
// without credentials continue as the anonymous caller.
func buildAuthChain(cfg config.AuthConfig, issuer *jwt.Issuer) *auth.AuthChain {
	authenticators := []auth.Authenticator{jwt.NewAuthenticator(issuer)}

	if len(cfg.APIKeys) > 0 {
		entries := make([]apikey.RawKeyEntry, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			id := auth.UserIdentity(k.UserID, k.Username, k.Staff)
			if k.ServiceTier != "" {
				id.ServiceTier = k.ServiceTier
			}
			entries = append(entries, apikey.RawKeyEntry{Key: k.Key, Identity: id})
		}
		authenticators = append(authenticators, apikey.New(entries))
	}

	return &auth.AuthChain{
		Authenticators:  authenticators,
		DefaultDecision: auth.Yes,
	}
}

func buildLimiter(cfg config.RateLimitConfig) auth.RateLimiter {
	if !cfg.Enabled {
		return nil
	}
	tiers := make(map[string]auth.TierConfig, len(cfg.Tiers))
	for name, t := range cfg.Tiers {
		tiers[name] = auth.TierConfig{RequestsPerMinute: t.RequestsPerMinute, Burst: t.Burst}
	}
	return auth.NewInProcessLimiter(tiers, cfg.DefaultRPM)
}
