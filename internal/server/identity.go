package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pivotdata/syncgate/internal/license"
)

// identityKey is the context key for the resolved tenant identity.
type identityKey struct{}

// WithIdentity stores a tenant identity in the context.
func WithIdentity(ctx context.Context, identity license.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// IdentityFrom returns the tenant identity resolved for this request.
// Falls back to the anonymous identity when no middleware ran.
func IdentityFrom(ctx context.Context) license.Identity {
	if identity, ok := ctx.Value(identityKey{}).(license.Identity); ok {
		return identity
	}
	return license.Anonymous()
}

// LicenseMiddleware resolves the request's license token to a tenant
// identity and injects it into the context.
//
// It never rejects: a missing or invalid token produces an invalid
// identity, which the quota resolver maps to zero quota so the rate
// limiter rejects it with proper headers. That keeps every rejection on
// one code path and counts abusive unauthenticated traffic.
func LicenseMiddleware(verifier license.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)

			identity := license.Anonymous()
			if verifier != nil {
				identity = verifier.Verify(token)
			}

			ctx := WithIdentity(r.Context(), identity)
			AddLogField(ctx, "tenant", identity.Key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the license token from the Authorization header.
// The "Bearer " prefix is optional.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return parts[1]
	}
	return auth
}

// maxIdentityPeekBytes bounds how much of the body is read when deriving
// an email identity.
const maxIdentityPeekBytes = 1 << 20

// EmailIdentityMiddleware derives an email-keyed identity from the
// request body for unauthenticated auth endpoints (request-pin,
// verify-pin), where the caller has no license yet. The body is restored
// for the downstream handler. Requests without a usable email keep the
// identity resolved by LicenseMiddleware.
func EmailIdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		email := peekEmail(r)
		if email == "" {
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithIdentity(r.Context(), license.FromEmail(email))
		AddLogField(ctx, "tenant", "email:"+email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func peekEmail(r *http.Request) string {
	if r.Body == nil {
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxIdentityPeekBytes))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.Email
}
