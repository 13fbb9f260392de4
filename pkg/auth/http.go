package auth

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// Principal is the request-scoped identity attached by Middleware.
type Principal struct {
	UserID string
	Role   string
	TeamID string
}

type contextKey string

const principalContextKey contextKey = "stockvista.principal"

// Middleware verifies the bearer session token and stores the principal in
// the request context. Mode "off" injects an anonymous super_admin and is
// only meant for local development.
func Middleware(mode, secret string) func(http.Handler) http.Handler {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "off" {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), Principal{UserID: "anonymous", Role: "super_admin"})))
			})
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			token := strings.TrimSpace(header[len("Bearer "):])
			principal, err := VerifySession(token, secret, time.Now().UTC())
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	v := ctx.Value(principalContextKey)
	if v == nil {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}
