package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss reports that a key is absent or expired.
	ErrMiss = errors.New("session: cache miss")
	// ErrCacheUnavailable wraps backend I/O faults.
	ErrCacheUnavailable = errors.New("session: cache unavailable")
)

// Backend is the key/value store behind a Cache. Get returns ErrMiss for an
// absent key; Delete of an absent key is not an error.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
