package middleware

import (
	"net/http"

	"github.com/photoshare/photoauth"
)

// RequireRole admits requests whose bearer holds one of roles. The role is
// read from the user store on every request, so a demotion takes effect
// immediately.
func RequireRole(engine *photoauth.Engine, roles ...photoauth.Role) func(http.Handler) http.Handler {
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

			id, err := engine.Authorize(r.Context(), token, roles...)
			if err != nil {
				reject(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
