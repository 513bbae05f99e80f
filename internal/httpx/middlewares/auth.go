// Package middlewares holds the HTTP middleware for the storefront API:
// bearer-token identity resolution and the CORS origin allowlist.
package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/jcmexdev/gameshop/internal/identity"
)

type ctxKey string

const identityKey ctxKey = "identity"

// RequireIdentity validates the bearer token on every request and stores the
// resolved identity in the context. Requests without a valid credential get
// 401 — the client reacts by sending the buyer to the login page; the cart
// survives the detour because it lives in the client's persisted store.
func RequireIdentity(verifier identity.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			id, err := verifier.Verify(r.Context(), token)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity stored by RequireIdentity.
func IdentityFromContext(ctx context.Context) (*identity.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*identity.Identity)
	return id, ok
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return after
	}
	return ""
}
