package photoauth

import (
	"errors"
	"time"

	"github.com/photoshare/photoauth/jwt"
	"github.com/photoshare/photoauth/session"
)

// Config holds every tunable of the Engine. Obtain one from DefaultConfig,
// adjust it, and hand it to Builder.WithConfig. It is copied on Build.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Cache    CacheConfig
	Store    StoreConfig
	Mail     MailConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token issuance. Secret is the HMAC key for the hs*
// methods and the private key for ed25519.
type JWTConfig struct {
	Secret        []byte
	PublicKey     []byte
	SigningMethod string // "hs256" (default), "hs384", "hs512", "ed25519"
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	EmailTTL      time.Duration
	Leeway        time.Duration

	// Now overrides the token clock; nil means time.Now.
	Now func() time.Time
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects the primary hash algorithm and its parameters.
// Hashes of the other algorithm still verify and are upgraded on login when
// UpgradeOnLogin is set.
type PasswordConfig struct {
	Algorithm      string // "argon2id" (default) or "bcrypt"
	Memory         uint32 // in KB
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	BcryptCost     int
	UpgradeOnLogin bool
	MaxConcurrent  int64
}

/*
====================================
CACHE / STORE CONFIG
====================================
*/

// CacheConfig configures the user cache.
type CacheConfig struct {
	Prefix     string
	TTL        time.Duration
	Timeout    time.Duration
	Encoding   string // "binary" (default) or "msgpack"
	MemorySize int    // entries, for the in-process backend
}

// StoreConfig bounds every UserStore call.
type StoreConfig struct {
	Timeout time.Duration
}

/*
====================================
ASYNC DELIVERY CONFIG
====================================
*/

// MailConfig controls the verification-mail queue.
type MailConfig struct {
	QueueSize   int
	DropIfFull  bool
	SendTimeout time.Duration
}

// AuditConfig controls the audit event queue.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults. JWT.Secret must still be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			EmailTTL:      7 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Algorithm:      "argon2id",
			Memory:         65536,
			Time:           3,
			Parallelism:    2,
			SaltLength:     16,
			KeyLength:      32,
			BcryptCost:     12,
			UpgradeOnLogin: true,
			MaxConcurrent:  8,
		},
		Cache: CacheConfig{
			Prefix:     "user",
			TTL:        900 * time.Second,
			Timeout:    150 * time.Millisecond,
			Encoding:   "binary",
			MemorySize: 10000,
		},
		Store: StoreConfig{
			Timeout: 2 * time.Second,
		},
		Mail: MailConfig{
			QueueSize:   256,
			DropIfFull:  true,
			SendTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// minHMACSecretBytes matches the HS256 output size.
const minHMACSecretBytes = 32

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	// JWT
	method, err := jwt.ParseSigningMethod(c.JWT.SigningMethod)
	if err != nil {
		return err
	}
	switch method {
	case jwt.MethodEd25519:
		if len(c.JWT.Secret) == 0 && len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires a private or public key")
		}
	default:
		if len(c.JWT.Secret) < minHMACSecretBytes {
			return errors.New("JWT Secret must be at least 32 bytes")
		}
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.EmailTTL <= 0 {
		return errors.New("JWT EmailTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be within [0, 2m]")
	}

	// Password
	switch c.Password.Algorithm {
	case "argon2id", "":
		if c.Password.Memory < 8*1024 {
			return errors.New("Password Memory must be >= 8192 KB")
		}
		if c.Password.Time < 1 {
			return errors.New("Password Time must be >= 1")
		}
		if c.Password.Parallelism < 1 {
			return errors.New("Password Parallelism must be >= 1")
		}
		if c.Password.SaltLength < 16 {
			return errors.New("Password SaltLength must be >= 16")
		}
		if c.Password.KeyLength < 16 {
			return errors.New("Password KeyLength must be >= 16")
		}
	case "bcrypt":
		if c.Password.BcryptCost < 4 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be within [4, 31]")
		}
	default:
		return errors.New("Password Algorithm must be 'argon2id' or 'bcrypt'")
	}
	if c.Password.MaxConcurrent < 1 {
		return errors.New("Password MaxConcurrent must be >= 1")
	}

	// Cache
	if c.Cache.TTL <= 0 {
		return errors.New("Cache TTL must be > 0")
	}
	if c.Cache.Timeout <= 0 {
		return errors.New("Cache Timeout must be > 0")
	}
	if _, err := session.ParseEncoding(c.Cache.Encoding); err != nil {
		return errors.New("Cache Encoding must be 'binary' or 'msgpack'")
	}

	// Store
	if c.Store.Timeout <= 0 {
		return errors.New("Store Timeout must be > 0")
	}

	// Mail
	if c.Mail.QueueSize <= 0 {
		return errors.New("Mail QueueSize must be > 0")
	}
	if c.Mail.SendTimeout <= 0 {
		return errors.New("Mail SendTimeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
