package session

import (
	"context"
	"errors"
	"strings"
	"time"
)

// CacheConfig configures key layout and encoding of a Cache.
type CacheConfig struct {
	Prefix   string
	Encoding Encoding
}

// Cache stores user snapshots keyed "<prefix>:<email>".
type Cache struct {
	backend  Backend
	prefix   string
	encoding Encoding
}

// NewCache wraps backend. An empty prefix defaults to "user" and a zero
// encoding to EncodingBinary.
func NewCache(backend Backend, cfg CacheConfig) *Cache {
	prefix := strings.TrimSuffix(cfg.Prefix, ":")
	if prefix == "" {
		prefix = "user"
	}
	enc := cfg.Encoding
	if enc == 0 {
		enc = EncodingBinary
	}
	return &Cache{backend: backend, prefix: prefix, encoding: enc}
}

// Key returns the backend key for email.
func (c *Cache) Key(email string) string {
	return c.prefix + ":" + email
}

// Get returns the snapshot for email. It returns ErrMiss on absence,
// ErrCorrupt when the stored bytes cannot be decoded, and an
// ErrCacheUnavailable-wrapped error on backend faults.
func (c *Cache) Get(ctx context.Context, email string) (*Snapshot, error) {
	data, err := c.backend.Get(ctx, c.Key(email))
	if err != nil {
		return nil, err
	}
	s, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if s.Email != email {
		return nil, ErrCorrupt
	}
	return s, nil
}

// Set stores s under its email for ttl.
func (c *Cache) Set(ctx context.Context, s *Snapshot, ttl time.Duration) error {
	if s == nil || s.Email == "" {
		return errors.New("session: snapshot without email")
	}
	data, err := Encode(s, c.encoding)
	if err != nil {
		return err
	}
	return c.backend.Set(ctx, c.Key(s.Email), data, ttl)
}

// Invalidate removes the entry for email. Removing an absent entry succeeds.
func (c *Cache) Invalidate(ctx context.Context, email string) error {
	return c.backend.Delete(ctx, c.Key(email))
}
