package session

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryBackend is a size-bounded in-process Backend. Entries expire at the
// shorter of the per-call ttl and the maxTTL given at construction.
type MemoryBackend struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryBackend returns a backend holding at most size entries.
func NewMemoryBackend(size int, maxTTL time.Duration) *MemoryBackend {
	if size <= 0 {
		size = 10000
	}
	return &MemoryBackend{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		now: time.Now,
	}
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := b.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !b.now().Before(e.expiresAt) {
		b.lru.Remove(key)
		return nil, ErrMiss
	}
	out := make([]byte, len(e.data))
	copy(out, e.data)
	return out, nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("session: ttl must be positive")
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	b.lru.Add(key, memoryEntry{data: stored, expiresAt: b.now().Add(ttl)})
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.lru.Remove(key)
	return nil
}

// Len reports the number of resident entries, expired ones included until
// they are swept.
func (b *MemoryBackend) Len() int {
	return b.lru.Len()
}
