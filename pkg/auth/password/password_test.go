package password

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestHasher(t *testing.T, workers int) *Hasher {
	t.Helper()
	h, err := New(Config{Cost: bcrypt.MinCost, Workers: workers})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return h
}

func TestHashVerify(t *testing.T) {
	h := newTestHasher(t, 2)
	ctx := context.Background()

	hash, err := h.Hash(ctx, "pw123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "pw123" || !strings.HasPrefix(hash, "$2") {
		t.Errorf("hash = %q, want a bcrypt hash", hash)
	}

	if err := h.Verify(ctx, hash, "pw123"); err != nil {
		t.Errorf("Verify(correct) = %v, want nil", err)
	}
	if err := h.Verify(ctx, hash, "wrong"); !errors.Is(err, ErrMismatch) {
		t.Errorf("Verify(wrong) = %v, want ErrMismatch", err)
	}
}

func TestVerify_EmptyHash(t *testing.T) {
	h := newTestHasher(t, 1)
	if err := h.Verify(context.Background(), "", "storefront-dummy-password"); !errors.Is(err, ErrMismatch) {
		t.Errorf("Verify(empty hash) = %v, want ErrMismatch", err)
	}
}

func TestVerify_CorruptHash(t *testing.T) {
	h := newTestHasher(t, 1)
	err := h.Verify(context.Background(), "not-a-bcrypt-hash", "pw")
	if err == nil || errors.Is(err, ErrMismatch) {
		t.Errorf("Verify(corrupt) = %v, want a non-mismatch error", err)
	}
}

func TestHash_CancelledWhileWaiting(t *testing.T) {
	h := newTestHasher(t, 1)

	// Occupy the only worker.
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Hash(ctx, "pw"); !errors.Is(err, context.Canceled) {
		t.Errorf("Hash = %v, want context.Canceled", err)
	}
	if err := h.Verify(ctx, "", "pw"); !errors.Is(err, context.Canceled) {
		t.Errorf("Verify = %v, want context.Canceled", err)
	}
}

func TestHash_Concurrent(t *testing.T) {
	h := newTestHasher(t, 2)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hash, err := h.Hash(ctx, "pw")
			if err == nil {
				err = h.Verify(ctx, hash, "pw")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent hash: %v", err)
		}
	}
}

func TestNew_RejectsBadCost(t *testing.T) {
	if _, err := New(Config{Cost: 99}); err == nil {
		t.Error("expected error for cost 99")
	}
}
