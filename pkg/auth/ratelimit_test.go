package auth

import (
	"context"
	"testing"
	"time"
)

func TestInProcessLimiter_Refills(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewInProcessLimiter(map[string]TierConfig{TierUser: {RequestsPerMinute: 60, Burst: 1}}, 0)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if err := l.Allow(ctx, "user:1", TierUser); err != nil {
		t.Fatalf("first Allow: %v", err)
	}
	if err := l.Allow(ctx, "user:1", TierUser); err != ErrTooManyRequests {
		t.Fatalf("second Allow = %v, want %v", err, ErrTooManyRequests)
	}

	// 60 rpm refills one token per second.
	now = now.Add(time.Second)
	if err := l.Allow(ctx, "user:1", TierUser); err != nil {
		t.Errorf("Allow after refill: %v", err)
	}
}

func TestInProcessLimiter_ZeroDisables(t *testing.T) {
	l := NewInProcessLimiter(map[string]TierConfig{TierStaff: {RequestsPerMinute: 0}}, 1)
	for i := 0; i < 10; i++ {
		if err := l.Allow(context.Background(), "user:1", TierStaff); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
}

func TestInProcessLimiter_DefaultForUnknownTier(t *testing.T) {
	l := NewInProcessLimiter(nil, 1)
	ctx := context.Background()
	if err := l.Allow(ctx, "k", "gold"); err != nil {
		t.Fatalf("first Allow: %v", err)
	}
	if err := l.Allow(ctx, "k", "gold"); err != ErrTooManyRequests {
		t.Errorf("second Allow = %v, want %v", err, ErrTooManyRequests)
	}
}

func TestInProcessLimiter_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewInProcessLimiter(nil, 10)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_ = l.Allow(ctx, "a", TierUser)
	_ = l.Allow(ctx, "b", TierUser)
	if len(l.buckets) != 2 {
		t.Fatalf("buckets = %d, want 2", len(l.buckets))
	}

	now = now.Add(defaultIdleTTL + time.Second)
	_ = l.Allow(ctx, "c", TierUser)
	if len(l.buckets) != 1 {
		t.Errorf("buckets after sweep = %d, want 1", len(l.buckets))
	}
}
