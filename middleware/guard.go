package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/photoshare/photoauth"
)

type identityContextKey struct{}

// IdentityFromContext returns the identity stored by Guard or RequireRole.
func IdentityFromContext(ctx context.Context) (photoauth.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(photoauth.Identity)
	return id, ok
}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id photoauth.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// Guard resolves the bearer token through the engine's session cache and
// injects the identity into the request context.
func Guard(engine *photoauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				reject(w, photoauth.ErrEngineNotReady)
				return
			}

			token, ok := BearerToken(r)
			if !ok {
				reject(w, photoauth.ErrUnauthorized)
				return
			}

			id, err := engine.ResolveCurrentUser(r.Context(), token)
			if err != nil {
				reject(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	value := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(value, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}

func reject(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, photoauth.ErrPermissionDenied):
		http.Error(w, "forbidden", http.StatusForbidden)
	case photoauth.IsRetryable(err), errors.Is(err, photoauth.ErrEngineNotReady):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		w.Header().Set("WWW-Authenticate", "Bearer")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}
}
