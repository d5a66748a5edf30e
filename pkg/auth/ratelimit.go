package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter checks whether a request from the given caller key should be
// allowed under the limits of its service tier.
type RateLimiter interface {
	Allow(ctx context.Context, key, tier string) error
}

// TierConfig holds rate limit settings for a service tier.
type TierConfig struct {
	RequestsPerMinute int

	// Burst is the bucket size. Zero means RequestsPerMinute.
	Burst int
}

// defaultIdleTTL is how long an unused bucket is kept before it is swept.
const defaultIdleTTL = 10 * time.Minute

// InProcessLimiter is a token bucket rate limiter that keeps one bucket per
// caller key in memory.
type InProcessLimiter struct {
	tiers      map[string]TierConfig
	defaultRPM int
	idleTTL    time.Duration
	now        func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewInProcessLimiter creates a rate limiter with per-tier configuration.
// Tiers without an entry use defaultRPM. A limit of zero disables limiting.
func NewInProcessLimiter(tiers map[string]TierConfig, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		idleTTL:    defaultIdleTTL,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
	}
}

// Allow takes one token from the caller's bucket.
func (l *InProcessLimiter) Allow(_ context.Context, key, tier string) error {
	cfg, ok := l.tiers[tier]
	if !ok {
		cfg = TierConfig{RequestsPerMinute: l.defaultRPM}
	}
	if cfg.RequestsPerMinute <= 0 {
		return nil // no limit
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	bucketKey := tier + "|" + key
	b, ok := l.buckets[bucketKey]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)/60), burst)}
		l.buckets[bucketKey] = b
	}
	b.lastSeen = now

	if !b.limiter.AllowN(now, 1) {
		return ErrTooManyRequests
	}
	return nil
}

// sweep drops buckets idle for longer than idleTTL. Caller holds l.mu.
func (l *InProcessLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for k, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idleTTL {
			delete(l.buckets, k)
		}
	}
}
