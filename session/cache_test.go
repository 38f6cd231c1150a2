package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCacheSetGetInvalidate(t *testing.T) {
	for _, enc := range []Encoding{EncodingBinary, EncodingMsgpack} {
		t.Run(enc.String(), func(t *testing.T) {
			b, mr := newRedisBackendTest(t)
			c := NewCache(b, CacheConfig{Prefix: "user", Encoding: enc})
			ctx := context.Background()
			snap := testSnapshot()

			if _, err := c.Get(ctx, snap.Email); !errors.Is(err, ErrMiss) {
				t.Fatalf("expected ErrMiss, got %v", err)
			}
			if err := c.Set(ctx, snap, 900*time.Second); err != nil {
				t.Fatalf("set: %v", err)
			}
			if !mr.Exists("user:alice@x.io") {
				t.Fatal("expected key user:alice@x.io to exist")
			}

			got, err := c.Get(ctx, snap.Email)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if *got != *snap {
				t.Fatalf("unexpected snapshot %+v", got)
			}

			if err := c.Invalidate(ctx, snap.Email); err != nil {
				t.Fatalf("invalidate: %v", err)
			}
			if _, err := c.Get(ctx, snap.Email); !errors.Is(err, ErrMiss) {
				t.Fatalf("expected ErrMiss after invalidate, got %v", err)
			}
		})
	}
}

func TestCacheGetCorruptEntry(t *testing.T) {
	b, mr := newRedisBackendTest(t)
	c := NewCache(b, CacheConfig{})

	if err := mr.Set("user:alice@x.io", "\x80\x04pickled"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := c.Get(context.Background(), "alice@x.io"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestCacheGetRejectsEntryForOtherEmail(t *testing.T) {
	b := NewMemoryBackend(16, time.Hour)
	c := NewCache(b, CacheConfig{Prefix: "user:"})
	ctx := context.Background()

	data, err := Encode(testSnapshot(), EncodingBinary)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := b.Set(ctx, c.Key("mallory@x.io"), data, time.Minute); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := c.Get(ctx, "mallory@x.io"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestCacheKeyLayout(t *testing.T) {
	c := NewCache(NewMemoryBackend(1, time.Minute), CacheConfig{Prefix: "photo:user:"})
	if got := c.Key("alice@x.io"); got != "photo:user:alice@x.io" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := NewCache(nil, CacheConfig{}).Key("a@b.c"); got != "user:a@b.c" {
		t.Fatalf("unexpected default key %q", got)
	}
}

func TestCacheSetRejectsSnapshotWithoutEmail(t *testing.T) {
	c := NewCache(NewMemoryBackend(1, time.Minute), CacheConfig{})
	if err := c.Set(context.Background(), &Snapshot{ID: "x"}, time.Minute); err == nil {
		t.Fatal("expected error for snapshot without email")
	}
}
