package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/storefront/pkg/api"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddleware_BypassEndpoint(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	handler := Middleware(chain, nil, []string{"/healthz"})(okHandler())

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("bypass endpoint: status = %d, want 200", rec.Code)
	}
}

func TestMiddleware_CustomMetricsPathBypassed(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	handler := Middleware(chain, nil, BypassEndpoints("/internal/metrics"))(okHandler())

	tests := []struct {
		path string
		want int
	}{
		{"/internal/metrics", http.StatusOK},
		{"/healthz", http.StatusOK},
		{"/readyz", http.StatusOK},
		{"/metrics", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.path, rec.Code, tt.want)
		}
	}
}

func TestBypassEndpoints(t *testing.T) {
	if got := BypassEndpoints(""); len(got) != 2 {
		t.Errorf("BypassEndpoints(\"\") = %v, want health probes only", got)
	}
	got := DefaultBypassEndpoints
	if len(got) != 3 || got[2] != "/metrics" {
		t.Errorf("DefaultBypassEndpoints = %v", got)
	}
}

func TestMiddleware_InvalidCredential_Rejects(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&mockAuthn{result: AuthResult{Decision: No, Err: ErrInvalidToken}},
		},
		DefaultDecision: Yes,
	}
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler())

	req := httptest.NewRequest("GET", "/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token: status = %d, want 401", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Error == nil || body.Error.Type != api.ErrorTypeAuthentication {
		t.Errorf("error = %+v, want type %q", body.Error, api.ErrorTypeAuthentication)
	}
}

func TestMiddleware_NoCredential_Anonymous(t *testing.T) {
	chain := &AuthChain{
		Authenticators:  []Authenticator{&mockAuthn{result: AuthResult{Decision: Abstain}}},
		DefaultDecision: Yes,
	}

	var got Identity
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !got.IsAnonymous() {
		t.Errorf("identity = %+v, want anonymous", got)
	}
}

func TestMiddleware_ValidAuth_Passes(t *testing.T) {
	chain := &AuthChain{
		Authenticators:  []Authenticator{&mockAuthn{result: yes(UserIdentity(5, "alice", true))}},
		DefaultDecision: No,
	}

	var got Identity
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/products", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("valid auth: status = %d, want 200", rec.Code)
	}
	if got.UserID != 5 || !got.Staff {
		t.Errorf("identity = %+v, want staff user 5", got)
	}
}

func TestMiddleware_RateLimit_Exceeded(t *testing.T) {
	chain := &AuthChain{
		Authenticators:  []Authenticator{&mockAuthn{result: yes(UserIdentity(1, "alice", false))}},
		DefaultDecision: No,
	}

	limiter := NewInProcessLimiter(map[string]TierConfig{
		TierUser: {RequestsPerMinute: 2},
	}, 100)

	handler := Middleware(chain, limiter, DefaultBypassEndpoints)(okHandler())

	// First 2 requests should pass.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/orders", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}

	// 3rd should be rate limited.
	req := httptest.NewRequest("GET", "/orders", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("rate limited request: status = %d, want 429", rec.Code)
	}
}

func TestMiddleware_RateLimit_AnonymousByAddress(t *testing.T) {
	chain := &AuthChain{DefaultDecision: Yes}
	limiter := NewInProcessLimiter(map[string]TierConfig{
		TierAnonymous: {RequestsPerMinute: 1},
	}, 0)
	handler := Middleware(chain, limiter, DefaultBypassEndpoints)(okHandler())

	send := func(addr string) int {
		req := httptest.NewRequest("GET", "/products", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("10.0.0.1:1234"); code != http.StatusOK {
		t.Errorf("first request: status = %d, want 200", code)
	}
	// Same host, different port shares the bucket.
	if code := send("10.0.0.1:5678"); code != http.StatusTooManyRequests {
		t.Errorf("second request: status = %d, want 429", code)
	}
	if code := send("10.0.0.2:1234"); code != http.StatusOK {
		t.Errorf("other host: status = %d, want 200", code)
	}
}

func TestMiddleware_NoLimiter_AllAllowed(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{&mockAuthn{result: yes(UserIdentity(1, "alice", false))}},
	}

	// nil limiter = no limiting.
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler())

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest("GET", "/products", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i+1, rec.Code)
			break
		}
	}
}

// Reuse mockAuthn from auth_test.go (same package).
var _ Authenticator = (*mockAuthn)(nil)
