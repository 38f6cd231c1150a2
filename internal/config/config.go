// Package config loads the server's configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/photoshare/photoauth"
)

// Config is read once at startup and treated as immutable.
type Config struct {
	// Tokens
	SecretKey         string
	Algorithm         string
	AccessTTL         time.Duration
	RefreshTTL        time.Duration
	EmailTokenTTL     time.Duration
	PasswordAlgorithm string

	// Cache
	CacheBackend  string
	CacheEncoding string
	CacheTTL      time.Duration
	CacheTimeout  time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Database
	DatabaseDriver string
	DatabaseURL    string
	StoreTimeout   time.Duration

	// Mail
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	// Server
	Environment    string
	ServerPort     string
	BaseURL        string
	MetricsEnabled bool
	AuditEnabled   bool
}

// LoadDotEnv loads variables from path (".env" when empty) without
// overriding the process environment. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Load reads Config from the environment. SECRET_KEY is required; every other
// variable has a default.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.SecretKey = os.Getenv("SECRET_KEY")
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("required environment variables are not set: %v", []string{"SECRET_KEY"})
	}

	cfg.Algorithm = getEnvString("ALGORITHM", "HS256")
	cfg.AccessTTL = time.Duration(getEnvInt("ACCESS_TTL_MINUTES", 15)) * time.Minute
	cfg.RefreshTTL = time.Duration(getEnvInt("REFRESH_TTL_DAYS", 7)) * 24 * time.Hour
	cfg.EmailTokenTTL = time.Duration(getEnvInt("EMAIL_TOKEN_TTL_DAYS", 7)) * 24 * time.Hour
	cfg.PasswordAlgorithm = getEnvString("PASSWORD_ALGORITHM", "argon2id")

	cfg.CacheBackend = getEnvString("CACHE_BACKEND", "redis")
	cfg.CacheEncoding = getEnvString("CACHE_ENCODING", "binary")
	cfg.CacheTTL = time.Duration(getEnvInt("CACHE_TTL_SECONDS", 900)) * time.Second
	cfg.CacheTimeout = getEnvDuration("CACHE_TIMEOUT", 150*time.Millisecond)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)

	cfg.DatabaseDriver = getEnvString("DATABASE_DRIVER", "sqlite")
	cfg.DatabaseURL = getEnvString("DATABASE_URL", "file:photoauth.db?_pragma=busy_timeout(5000)")
	cfg.StoreTimeout = getEnvDuration("STORE_TIMEOUT", 2*time.Second)

	cfg.SMTPHost = getEnvString("SMTP_HOST", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUsername = getEnvString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.MailFrom = getEnvString("MAIL_FROM", "")

	cfg.Environment = getEnvString("APP_ENV", "development")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8000")
	cfg.BaseURL = getEnvString("BASE_URL", "")
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", true)
	cfg.AuditEnabled = getEnvBool("AUDIT_ENABLED", false)

	switch cfg.CacheBackend {
	case "redis", "memory":
	default:
		return nil, fmt.Errorf("CACHE_BACKEND must be redis or memory, got %q", cfg.CacheBackend)
	}

	// Confirmation links fall back to the request Host header without it.
	if cfg.BaseURL == "" && cfg.IsProduction() {
		return nil, errors.New("BASE_URL is required when APP_ENV=production")
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("BASE_URL must be an absolute http(s) URL, got %q", cfg.BaseURL)
		}
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// EngineConfig maps the environment onto the engine's configuration.
func (c *Config) EngineConfig() photoauth.Config {
	out := photoauth.DefaultConfig()
	out.JWT.Secret = []byte(c.SecretKey)
	out.JWT.SigningMethod = c.Algorithm
	out.JWT.AccessTTL = c.AccessTTL
	out.JWT.RefreshTTL = c.RefreshTTL
	out.JWT.EmailTTL = c.EmailTokenTTL
	out.Password.Algorithm = c.PasswordAlgorithm
	out.Cache.TTL = c.CacheTTL
	out.Cache.Timeout = c.CacheTimeout
	out.Cache.Encoding = c.CacheEncoding
	out.Store.Timeout = c.StoreTimeout
	out.Metrics.Enabled = c.MetricsEnabled
	out.Metrics.EnableLatencyHistograms = c.MetricsEnabled
	out.Audit.Enabled = c.AuditEnabled
	return out
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
