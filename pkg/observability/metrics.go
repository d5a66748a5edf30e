// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the storefront API.
package observability

import "github.com/prometheus/client_golang/prometheus"

// HashBuckets covers bcrypt cost 10 through 14 on common hardware.
var HashBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

var (
	// RequestsTotal counts all HTTP requests by method, status class, and route pattern.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status", "route"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route pattern.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_request_duration_seconds",
			Help:    "Request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// AuthAttemptsTotal counts credential checks by method (password, refresh,
	// jwt, apikey) and outcome (success, failure).
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_auth_attempts_total",
			Help: "Authentication attempts",
		},
		[]string{"method", "outcome"},
	)

	// AuthzDeniedTotal counts requests refused by the authorization gate.
	AuthzDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_authz_denied_total",
			Help: "Authorization denials",
		},
		[]string{"operation", "resource"},
	)

	// TokensIssuedTotal counts minted tokens by type (access, refresh).
	TokensIssuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_tokens_issued_total",
			Help: "Tokens issued",
		},
		[]string{"type"},
	)

	// PasswordHashDuration records bcrypt hash and verify latency.
	PasswordHashDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_password_hash_duration_seconds",
			Help:    "Password hash duration",
			Buckets: HashBuckets,
		},
		[]string{"op"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"tier"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthAttemptsTotal,
		AuthzDeniedTotal,
		TokensIssuedTotal,
		PasswordHashDuration,
		RateLimitRejectedTotal,
	)
}
