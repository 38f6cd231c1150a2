package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodHS384   SigningMethod = "hs384"
	MethodHS512   SigningMethod = "hs512"
	MethodEd25519 SigningMethod = "ed25519"
)

// ParseSigningMethod accepts both the lowercase names above and the JOSE
// "alg" spelling (HS256, EdDSA).
func ParseSigningMethod(s string) (SigningMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hs256", "":
		return MethodHS256, nil
	case "hs384":
		return MethodHS384, nil
	case "hs512":
		return MethodHS512, nil
	case "ed25519", "eddsa":
		return MethodEd25519, nil
	default:
		return "", fmt.Errorf("unsupported signing method %q", s)
	}
}

// Scope is the purpose tag carried in the "scope" claim.
type Scope string

const (
	ScopeAccess  Scope = "access_token"
	ScopeRefresh Scope = "refresh_token"
	// ScopeEmail tokens carry no scope claim at all.
	ScopeEmail Scope = ""
	// ScopeAny is only meaningful to Decode and skips the scope check.
	ScopeAny Scope = "*"
)

var (
	// ErrRejected is wrapped by every verification failure.
	ErrRejected = errors.New("jwt: token rejected")

	ErrMalformed        = fmt.Errorf("%w: malformed", ErrRejected)
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrRejected)
	ErrExpired          = fmt.Errorf("%w: expired", ErrRejected)
	ErrWrongScope       = fmt.Errorf("%w: wrong scope", ErrRejected)
	ErrInvalidClaims    = fmt.Errorf("%w: invalid claims", ErrRejected)
)

// Config configures a Manager. PrivateKey holds the shared secret for the
// HMAC methods.
type Config struct {
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	MaxFutureIAT  time.Duration
	KeyID         string

	// Now overrides the clock used for iat/exp on issue and for validation.
	Now func() time.Time
}

// Claims is the decoded token body.
type Claims struct {
	Scope Scope `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. It is immutable after construction and
// safe for concurrent use.
type Manager struct {
	config  Config
	method  jwt.SigningMethod
	signKey interface{}
	verKey  interface{}
	parser  *jwt.Parser
}

// NewManager validates cfg and copies the key material.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > 24*time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	cfg.PrivateKey = append([]byte(nil), cfg.PrivateKey...)
	cfg.PublicKey = append([]byte(nil), cfg.PublicKey...)

	m := &Manager{config: cfg}

	switch cfg.SigningMethod {
	case MethodHS256, MethodHS384, MethodHS512:
		if len(cfg.PrivateKey) == 0 {
			return nil, fmt.Errorf("%s requires a secret", cfg.SigningMethod)
		}
		m.method = hmacMethod(cfg.SigningMethod)
		m.signKey = cfg.PrivateKey
		m.verKey = cfg.PrivateKey
	case MethodEd25519:
		m.method = jwt.SigningMethodEdDSA
		if len(cfg.PrivateKey) > 0 {
			priv, err := parseEdPrivateKey(cfg.PrivateKey)
			if err != nil {
				return nil, err
			}
			m.signKey = priv
			if len(cfg.PublicKey) == 0 {
				m.verKey = priv.Public()
			}
		}
		if len(cfg.PublicKey) > 0 {
			pub, err := parseEdPublicKey(cfg.PublicKey)
			if err != nil {
				return nil, err
			}
			m.verKey = pub
		}
		if m.verKey == nil {
			return nil, errors.New("ed25519 requires a public or private key")
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(cfg.Now),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}
	if cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		options = append(options, jwt.WithAudience(cfg.Audience))
	}
	m.parser = jwt.NewParser(options...)

	return m, nil
}

// Issue signs a token for subject with the given scope, valid for ttl.
// ScopeEmail produces a token without a scope claim.
func (m *Manager) Issue(subject string, scope Scope, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", errors.New("empty subject")
	}
	if ttl <= 0 {
		return "", errors.New("invalid TTL")
	}
	if scope == ScopeAny {
		return "", errors.New("cannot issue a token with the wildcard scope")
	}
	if m.signKey == nil {
		return "", errors.New("manager has no signing key")
	}

	now := m.config.Now()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}
	return token.SignedString(m.signKey)
}

// Decode verifies token and requires its scope to equal expected, unless
// expected is ScopeAny.
func (m *Manager) Decode(token string, expected Scope) (*Claims, error) {
	if expected == ScopeAny {
		return m.parse(token)
	}
	return m.DecodeAnyOf(token, expected)
}

// DecodeAnyOf verifies token and accepts any of the listed scopes.
func (m *Manager) DecodeAnyOf(token string, scopes ...Scope) (*Claims, error) {
	claims, err := m.parse(token)
	if err != nil {
		return nil, err
	}
	for _, s := range scopes {
		if claims.Scope == s {
			return claims, nil
		}
	}
	return nil, ErrWrongScope
}

func (m *Manager) parse(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMalformed
	}

	token, err := m.parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		if m.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != m.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}
		return m.verKey, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(m.config.Now().Add(m.config.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", ErrInvalidClaims)
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidClaims, err)
	}
}

func hmacMethod(m SigningMethod) jwt.SigningMethod {
	switch m {
	case MethodHS384:
		return jwt.SigningMethodHS384
	case MethodHS512:
		return jwt.SigningMethodHS512
	default:
		return jwt.SigningMethodHS256
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
