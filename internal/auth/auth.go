// Package auth authenticates requests: it parses the bearer token, verifies
// it as an access token and stores the claims in the request context. Role
// and ownership decisions live in internal/policy, not here.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/diewo77/go-prescriptions/internal/apperr"
	"github.com/diewo77/go-prescriptions/internal/httpx"
	"github.com/diewo77/go-prescriptions/internal/token"
)

type ctxKey string

const claimsCtxKey = ctxKey("claims")

// WithClaims stores verified claims in the context.
func WithClaims(ctx context.Context, c *token.Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, c)
}

// ClaimsFromContext extracts the verified claims.
func ClaimsFromContext(ctx context.Context) (*token.Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey).(*token.Claims)
	return c, ok
}

// BearerToken pulls the raw token out of the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Middleware rejects requests without a valid access token and attaches the
// claims for downstream handlers. Authentication failures short-circuit
// before any role or ownership check runs.
func Middleware(ts *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				httpx.Error(w, r, apperr.Unauthenticated("missing bearer token"))
				return
			}
			claims, err := ts.VerifyAccess(raw)
			if err != nil {
				httpx.Error(w, r, apperr.Unauthenticated("invalid or expired token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
