package auth

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"github.com/rhuss/storefront/pkg/api"
	"github.com/rhuss/storefront/pkg/debug"
	"github.com/rhuss/storefront/pkg/observability"
)

// Middleware creates HTTP middleware from an AuthChain and optional RateLimiter.
// It checks the bypass list, runs authentication, enforces rate limits and
// stores the resolved identity in the request context.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				msg := ErrUnauthenticated.Error()
				if result.Err != nil {
					msg = result.Err.Error()
				}
				writeError(w, http.StatusUnauthorized, api.NewAuthenticationError(msg))
				return
			}

			id := *result.Identity
			debug.Log("auth", "authentication succeeded",
				"subject", id.Subject(),
				"path", r.URL.Path,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), limiterKey(id, r), id.ServiceTier); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", id.Subject(),
						"tier", id.ServiceTier,
						"remote_addr", r.RemoteAddr,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(id.ServiceTier).Inc()
					writeError(w, http.StatusTooManyRequests, api.NewTooManyRequestsError(err.Error()))
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), id)))
		})
	}
}

// limiterKey buckets anonymous callers by client address and everyone else
// by user.
func limiterKey(id Identity, r *http.Request) string {
	if !id.IsAnonymous() {
		return id.Subject()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func writeError(w http.ResponseWriter, status int, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = BypassEndpoints("/metrics")

// BypassEndpoints returns the health probes plus the metrics endpoint
// served at metricsPath. An empty metricsPath adds nothing.
func BypassEndpoints(metricsPath string) []string {
	eps := []string{"/healthz", "/readyz"}
	if metricsPath != "" {
		eps = append(eps, metricsPath)
	}
	return eps
}
