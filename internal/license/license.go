package license

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Claims carries the license claims the gateway cares about. The full
// claims blob is verified upstream; only the fields that drive quota
// resolution are surfaced here.
type Claims struct {
	LicenseID string
	Email     string
	Tier      string
}

// Identity is the per-request tenant identity handed to the admission
// pipeline. It is constructed once per request from already-verified
// claims and never persisted.
type Identity struct {
	// Key is the opaque tenant key counters are tracked against.
	Key string

	// Valid reports whether the license passed verification. An invalid
	// identity still carries a Key so rejected traffic is counted.
	Valid bool

	Claims Claims
}

// Verifier turns a raw license token into a tenant identity.
//
// Signature verification and time-bound checks happen behind this
// interface; the admission pipeline only consumes the result. A token
// that fails verification is surfaced as an invalid identity, not an
// error, so it still flows through rate limiting.
type Verifier interface {
	Verify(token string) Identity
}

// Anonymous returns the identity used when a request carries no license
// token at all. It is invalid, so it resolves to zero quota.
func Anonymous() Identity {
	return Identity{Key: "anonymous", Valid: false}
}

// FromEmail builds an identity for unauthenticated auth endpoints, where
// the caller has no license yet and requests are counted per email.
func FromEmail(email string) Identity {
	return Identity{
		Key:    "email:" + email,
		Valid:  true,
		Claims: Claims{Email: email, Tier: "basic"},
	}
}

// HashToken returns the SHA-256 hex digest of a license token, used both
// as the stored lookup key and as the tenant key for counters.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Entry is one licensed tenant known to the static verifier.
type Entry struct {
	// KeyHash is the SHA-256 hex digest of the license token.
	KeyHash   string
	TenantKey string
	Tier      string
	Email     string
	LicenseID string

	// NotBefore/ExpiresAt bound the license validity. Zero values mean
	// unbounded on that side.
	NotBefore time.Time
	ExpiresAt time.Time
}

// StaticVerifier resolves tokens against a fixed set of entries loaded
// from configuration. Cryptographic signature verification happens in the
// upstream issuer; this verifier trusts its entry table and only enforces
// the validity window.
type StaticVerifier struct {
	entries map[string]Entry
	now     func() time.Time
}

// NewStaticVerifier builds a verifier from config entries.
func NewStaticVerifier(entries []Entry) *StaticVerifier {
	v := &StaticVerifier{
		entries: make(map[string]Entry, len(entries)),
		now:     time.Now,
	}
	for _, e := range entries {
		v.entries[e.KeyHash] = e
	}
	return v
}

// WithClock overrides the verifier's clock. Used by tests to pin the
// validity window checks.
func (v *StaticVerifier) WithClock(now func() time.Time) *StaticVerifier {
	v.now = now
	return v
}

// Verify resolves a token to an identity. Unknown, expired, and
// not-yet-valid tokens all come back invalid with a counter key derived
// from the token hash, so abusive retries are still rate limited.
func (v *StaticVerifier) Verify(token string) Identity {
	if token == "" {
		return Anonymous()
	}

	hash := HashToken(token)

	entry, ok := v.entries[hash]
	if !ok {
		return Identity{Key: "unknown:" + hash[:16], Valid: false}
	}

	identity := Identity{
		Key:   entry.TenantKey,
		Valid: true,
		Claims: Claims{
			LicenseID: entry.LicenseID,
			Email:     entry.Email,
			Tier:      entry.Tier,
		},
	}
	if identity.Key == "" {
		identity.Key = "license:" + hash[:16]
	}

	now := v.now()
	if !entry.NotBefore.IsZero() && now.Before(entry.NotBefore) {
		identity.Valid = false
	}
	if !entry.ExpiresAt.IsZero() && now.After(entry.ExpiresAt) {
		identity.Valid = false
	}

	return identity
}
