// Package httpapi mounts the authentication routes on a chi router.
package httpapi

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/photoshare/photoauth"
	"github.com/photoshare/photoauth/middleware"
)

// RouterDeps groups what NewRouter needs.
type RouterDeps struct {
	Engine *photoauth.Engine
	Logger *slog.Logger

	// BaseURL overrides the origin used in confirmation links. When empty
	// the origin of the incoming request is used.
	BaseURL string

	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
}

type api struct {
	engine   *photoauth.Engine
	logger   *slog.Logger
	baseURL  string
	validate *validator.Validate
}

// NewRouter builds the HTTP surface:
//
//	/api/auth/*    signup, login, logout, refresh, email confirmation
//	/api/users/*   bearer-guarded profile routes
//	/api/admin/*   admin-only user management
//	/metrics       optional
//	/healthz       cache reachability
func NewRouter(deps RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.BaseURL == "" {
		logger.Warn("BASE_URL not set; confirmation links use the request Host header")
	}
	a := &api{
		engine:   deps.Engine,
		logger:   logger,
		baseURL:  deps.BaseURL,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(clientIP)
	r.Use(chimw.Recoverer)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", a.signup)
		r.Post("/login", a.login)
		r.Post("/logout", a.logout)
		r.Get("/refresh_token", a.refreshToken)
		r.Get("/confirmed_email/{token}", a.confirmedEmail)
		r.Post("/request_email", a.requestEmail)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(middleware.Guard(deps.Engine))
		r.Get("/me", a.me)
		r.Patch("/avatar", a.updateAvatar)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.RequireRole(deps.Engine, photoauth.RoleAdmin))
		r.Get("/users", a.listUsers)
		r.Put("/users/{id}/role", a.updateRole)
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	r.Get("/healthz", a.healthz)

	return r
}

// clientIP copies the remote address into the context for audit events.
func clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(photoauth.WithClientIP(r.Context(), ip)))
	})
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	if err := a.engine.PingCache(r.Context()); err != nil {
		a.logger.Warn("photoauth: health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
