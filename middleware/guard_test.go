package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/photoshare/photoauth"
	"github.com/photoshare/photoauth/store/memstore"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	engine *photoauth.Engine
	store  *memstore.Store
	admin  string
	user   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := photoauth.DefaultConfig()
	cfg.JWT.Secret = []byte(testSecret)
	cfg.Password.Algorithm = "bcrypt"
	cfg.Password.BcryptCost = 4

	store := memstore.New()
	engine, err := photoauth.New().
		WithConfig(cfg).
		WithUserStore(store).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	f := &fixture{engine: engine, store: store}
	f.admin = f.login(t, "alice@example.com")
	f.user = f.login(t, "bob@example.com")
	return f
}

func (f *fixture) login(t *testing.T, email string) string {
	t.Helper()
	ctx := context.Background()
	if _, err := f.engine.Signup(ctx, photoauth.SignupRequest{Username: "someone", Email: email, Password: "secret123"}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if _, err := f.store.UpdateConfirmed(ctx, email); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	pair, err := f.engine.Login(ctx, email, "secret123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	return pair.AccessToken
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGuardInjectsIdentity(t *testing.T) {
	f := newFixture(t)

	var got photoauth.Identity
	h := Guard(f.engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := serve(h, f.admin)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got.Email != "alice@example.com" || got.Role != photoauth.RoleAdmin {
		t.Fatalf("unexpected identity %+v", got)
	}
}

func TestGuardRejects(t *testing.T) {
	f := newFixture(t)
	h := Guard(f.engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for name, token := range map[string]string{"missing": "", "garbage": "x.y.z"} {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, token)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
			if rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Fatal("expected bearer challenge")
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	f := newFixture(t)
	h := RequireRole(f.engine, photoauth.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if rec := serve(h, f.admin); rec.Code != http.StatusOK {
		t.Fatalf("admin expected 200, got %d", rec.Code)
	}
	if rec := serve(h, f.user); rec.Code != http.StatusForbidden {
		t.Fatalf("user expected 403, got %d", rec.Code)
	}
	if rec := serve(h, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous expected 401, got %d", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]bool{
		"Bearer abc": true,
		"bearer abc": true,
		"Basic abc":  false,
		"Bearer ":    false,
		"Bearerabc":  false,
		"":           false,
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		if _, ok := BearerToken(req); ok != want {
			t.Fatalf("BearerToken(%q) = %v, want %v", header, ok, want)
		}
	}
}
