// Package apikey provides an API key authenticator for service identities.
// Keys arrive in the X-API-Key header and are matched against a static key
// store using SHA-256 hashing and constant-time comparison.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rhuss/storefront/pkg/auth"
	"github.com/rhuss/storefront/pkg/observability"
)

// HeaderName carries the API key. It is separate from Authorization so
// user bearer tokens and service keys never compete for the same header.
const HeaderName = "X-API-Key"

// KeyEntry maps a key hash to an identity.
type KeyEntry struct {
	KeyHash  [32]byte
	Identity auth.Identity
}

// Authenticator validates API keys against a static key store.
type Authenticator struct {
	keys []KeyEntry
}

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

// New creates an API key authenticator from a list of raw keys and identities.
// Keys are hashed immediately; plaintext keys are not stored.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{}
	for _, e := range entries {
		a.keys = append(a.keys, KeyEntry{
			KeyHash:  sha256.Sum256([]byte(e.Key)),
			Identity: e.Identity,
		})
	}
	return a
}

// Authenticate looks up the X-API-Key header.
// Returns Yes if the key is known, No if a key is present but unknown,
// Abstain if the header is absent.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	values, present := r.Header[http.CanonicalHeaderKey(HeaderName)]
	if !present {
		return auth.AuthResult{Decision: auth.Abstain}
	}

	key := ""
	if len(values) > 0 {
		key = strings.TrimSpace(values[0])
	}
	if key == "" {
		observability.AuthAttemptsTotal.WithLabelValues("apikey", "failure").Inc()
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrInvalidCredentials}
	}

	keyHash := sha256.Sum256([]byte(key))

	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(keyHash[:], entry.KeyHash[:]) == 1 {
			id := entry.Identity
			observability.AuthAttemptsTotal.WithLabelValues("apikey", "success").Inc()
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}

	observability.AuthAttemptsTotal.WithLabelValues("apikey", "failure").Inc()
	return auth.AuthResult{Decision: auth.No, Err: auth.ErrInvalidCredentials}
}
