package flows

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/photoshare/photoauth/session"
)

var errNotFound = errors.New("not found")

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*session.Snapshot
	finds    int
	clears   int
	findErr  error
	clearErr error
}

func newFakeStore(snaps ...*session.Snapshot) *fakeStore {
	s := &fakeStore{users: map[string]*session.Snapshot{}}
	for _, snap := range snaps {
		s.users[snap.Email] = snap
	}
	return s
}

func (s *fakeStore) find(_ context.Context, email string) (*session.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	u, ok := s.users[email]
	if !ok {
		return nil, errNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeStore) swap(_ context.Context, id, current, next string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			if u.RefreshToken != current {
				return false, nil
			}
			u.RefreshToken = next
			return true, nil
		}
	}
	return false, errNotFound
}

func (s *fakeStore) clear(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	if s.clearErr != nil {
		return s.clearErr
	}
	for _, u := range s.users {
		if u.ID == id {
			u.RefreshToken = ""
			return nil
		}
	}
	return errNotFound
}

func (s *fakeStore) token(email string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[email].RefreshToken
}

func isNotFound(err error) bool { return errors.Is(err, errNotFound) }

func decodeWithPrefix(prefix string) func(string) (string, error) {
	return func(tok string) (string, error) {
		if len(tok) <= len(prefix) || tok[:len(prefix)] != prefix {
			return "", errors.New("bad token")
		}
		return tok[len(prefix):], nil
	}
}

type fakeCache struct {
	data        map[string]*session.Snapshot
	getErr      error
	sets        int
	invalidated []string
}

func (c *fakeCache) get(_ context.Context, email string) (*session.Snapshot, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	s, ok := c.data[email]
	if !ok {
		return nil, session.ErrMiss
	}
	return s, nil
}

func (c *fakeCache) set(_ context.Context, s *session.Snapshot) error {
	c.sets++
	if c.data == nil {
		c.data = map[string]*session.Snapshot{}
	}
	c.data[s.Email] = s
	return nil
}

func (c *fakeCache) invalidate(_ context.Context, email string) error {
	c.invalidated = append(c.invalidated, email)
	delete(c.data, email)
	return nil
}

func resolveDeps(store *fakeStore, cache *fakeCache) ResolveDeps {
	return ResolveDeps{
		DecodeAccess:    decodeWithPrefix("access:"),
		CacheGet:        cache.get,
		CacheSet:        cache.set,
		CacheInvalidate: cache.invalidate,
		FindByEmail:     store.find,
		IsNotFound:      isNotFound,
	}
}

func TestRunResolveMissThenHit(t *testing.T) {
	store := newFakeStore(&session.Snapshot{ID: "1", Email: "alice@x.io"})
	cache := &fakeCache{}
	deps := resolveDeps(store, cache)

	first := RunResolve(context.Background(), "access:alice@x.io", deps)
	if first.Failure != ResolveFailureNone || first.Cache != CacheMiss {
		t.Fatalf("unexpected first result %+v", first)
	}
	second := RunResolve(context.Background(), "access:alice@x.io", deps)
	if second.Failure != ResolveFailureNone || second.Cache != CacheHit {
		t.Fatalf("unexpected second result %+v", second)
	}
	if store.finds != 1 {
		t.Fatalf("expected exactly one store read, got %d", store.finds)
	}
	if cache.sets != 1 {
		t.Fatalf("expected exactly one cache populate, got %d", cache.sets)
	}
}

func TestRunResolveCacheErrorFallsBackToStore(t *testing.T) {
	store := newFakeStore(&session.Snapshot{ID: "1", Email: "alice@x.io"})
	cache := &fakeCache{getErr: session.ErrCacheUnavailable}

	res := RunResolve(context.Background(), "access:alice@x.io", resolveDeps(store, cache))
	if res.Failure != ResolveFailureNone || res.Cache != CacheError || res.CacheErr == nil {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Snapshot == nil || res.Snapshot.ID != "1" {
		t.Fatalf("expected snapshot from store, got %+v", res.Snapshot)
	}
}

func TestRunResolveCorruptEntryIsInvalidated(t *testing.T) {
	store := newFakeStore(&session.Snapshot{ID: "1", Email: "alice@x.io"})
	cache := &fakeCache{getErr: session.ErrCorrupt}

	res := RunResolve(context.Background(), "access:alice@x.io", resolveDeps(store, cache))
	if res.Cache != CacheCorrupt || res.Failure != ResolveFailureNone {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "alice@x.io" {
		t.Fatalf("expected corrupt entry to be invalidated, got %v", cache.invalidated)
	}
}

func TestRunResolveFailures(t *testing.T) {
	store := newFakeStore()
	cache := &fakeCache{}

	if res := RunResolve(context.Background(), "garbage", resolveDeps(store, cache)); res.Failure != ResolveFailureDecode {
		t.Fatalf("expected decode failure, got %+v", res)
	}
	if res := RunResolve(context.Background(), "access:ghost@x.io", resolveDeps(store, cache)); res.Failure != ResolveFailureNotFound {
		t.Fatalf("expected not-found failure, got %+v", res)
	}

	store.findErr = errors.New("connection refused")
	if res := RunResolve(context.Background(), "access:ghost@x.io", resolveDeps(store, cache)); res.Failure != ResolveFailureStore {
		t.Fatalf("expected store failure, got %+v", res)
	}
	if cache.sets != 0 {
		t.Fatal("expected no cache populate on failure")
	}
}

func refreshDeps(store *fakeStore, cache *fakeCache, counter *int) RefreshDeps {
	var mu sync.Mutex
	return RefreshDeps{
		DecodeRefresh: decodeWithPrefix("refresh:"),
		FindByEmail:   store.find,
		IssuePair: func(subject string) (string, string, error) {
			mu.Lock()
			defer mu.Unlock()
			*counter++
			n := string(rune('a' + *counter))
			return "access:" + subject, "refresh:" + subject + "#" + n, nil
		},
		SwapRefreshToken: store.swap,
		InvalidateCache: func(ctx context.Context, email string) {
			mu.Lock()
			defer mu.Unlock()
			_ = cache.invalidate(ctx, email)
		},
		IsNotFound: isNotFound,
	}
}

func TestRunRefreshRotates(t *testing.T) {
	store := newFakeStore(&session.Snapshot{ID: "1", Email: "alice@x.io", RefreshToken: "refresh:alice@x.io"})
	cache := &fakeCache{}
	var n int

	res := RunRefresh(context.Background(), "refresh:alice@x.io", refreshDeps(store, cache, &n))
	if res.Failure != RefreshFailureNone {
		t.Fatalf("unexpected failure %+v", res)
	}
	if store.token("alice@x.io") != res.RefreshToken {
		t.Fatal("expected stored token to equal the newly issued one")
	}
	if len(cache.invalidated) != 1 {
		t.Fatalf("expected cache invalidation, got %v", cache.invalidated)
	}
}

func TestRunRefreshMismatchClearsToken(t *testing.T) {
	store := newFakeStore(&session.Snapshot{ID: "1", Email: "alice@x.io", RefreshToken: "refresh:alice@x.io#current"})
	cache := &fakeCache{}
	var n int

	res := RunRefresh(context.Background(), "refresh:alice@x.io#stale", refreshDeps(store, cache, &n))
	if res.Failure != RefreshFailureMismatch || !res.Cleared {
		t.Fatalf("expected cleared mismatch, got %+v", res)
	}
	if store.token("alice@x.io") != "" {
		t.Fatal("expected stored token to be cleared")
	}
	if n != 0 {
		t.Fatal("expected no tokens issued on mismatch")
	}
}

func TestRunRefreshConcurrentSingleWinner(t *testing.T) {
	store := newFakeStore(&session.Snapshot{ID: "1", Email: "alice@x.io", RefreshToken: "refresh:alice@x.io"})
	cache := &fakeCache{}
	var n int
	deps := refreshDeps(store, cache, &n)

	const workers = 16
	results := make([]RefreshResult, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i] = RunRefresh(context.Background(), "refresh:alice@x.io", deps)
		}(i)
	}
	close(start)
	wg.Wait()

	winners := 0
	for _, r := range results {
		switch r.Failure {
		case RefreshFailureNone:
			winners++
		case RefreshFailureMismatch:
		default:
			t.Fatalf("unexpected failure kind %v", r.Failure)
		}
	}
	if winners > 1 {
		t.Fatalf("expected at most one winner, got %d", winners)
	}
}

func TestRunRefreshLostRaceKeepsWinnerToken(t *testing.T) {
	store := newFakeStore(&session.Snapshot{ID: "1", Email: "alice@x.io", RefreshToken: "refresh:alice@x.io"})
	cache := &fakeCache{}
	var n int
	deps := refreshDeps(store, cache, &n)

	// Rotate between the loser's read and its swap.
	find := deps.FindByEmail
	deps.FindByEmail = func(ctx context.Context, email string) (*session.Snapshot, error) {
		snap, err := find(ctx, email)
		if err == nil {
			_, _ = store.swap(ctx, snap.ID, snap.RefreshToken, "refresh:alice@x.io#winner")
		}
		return snap, err
	}

	res := RunRefresh(context.Background(), "refresh:alice@x.io", deps)
	if res.Failure != RefreshFailureMismatch || !res.LostRace || res.Cleared {
		t.Fatalf("expected lost-race mismatch without clear, got %+v", res)
	}
	if got := store.token("alice@x.io"); got != "refresh:alice@x.io#winner" {
		t.Fatalf("winner token must survive, got %q", got)
	}
}

func TestRunRefreshMismatchKeepsTokenWrittenMeanwhile(t *testing.T) {
	store := newFakeStore(&session.Snapshot{ID: "1", Email: "alice@x.io", RefreshToken: "refresh:alice@x.io#current"})
	cache := &fakeCache{}
	var n int
	deps := refreshDeps(store, cache, &n)

	// A fresh login lands between the replay's read and its clear.
	find := deps.FindByEmail
	deps.FindByEmail = func(ctx context.Context, email string) (*session.Snapshot, error) {
		snap, err := find(ctx, email)
		if err == nil {
			_, _ = store.swap(ctx, snap.ID, snap.RefreshToken, "refresh:alice@x.io#login")
		}
		return snap, err
	}

	res := RunRefresh(context.Background(), "refresh:alice@x.io#stale", deps)
	if res.Failure != RefreshFailureMismatch || res.Cleared {
		t.Fatalf("expected mismatch without clear, got %+v", res)
	}
	if got := store.token("alice@x.io"); got != "refresh:alice@x.io#login" {
		t.Fatalf("token written meanwhile must survive, got %q", got)
	}
}

func TestRunRefreshStoreFailures(t *testing.T) {
	store := newFakeStore()
	cache := &fakeCache{}
	var n int

	if res := RunRefresh(context.Background(), "nope", refreshDeps(store, cache, &n)); res.Failure != RefreshFailureDecode {
		t.Fatalf("expected decode failure, got %+v", res)
	}
	if res := RunRefresh(context.Background(), "refresh:ghost@x.io", refreshDeps(store, cache, &n)); res.Failure != RefreshFailureNotFound {
		t.Fatalf("expected not-found failure, got %+v", res)
	}
	store.findErr = errors.New("timeout")
	if res := RunRefresh(context.Background(), "refresh:ghost@x.io", refreshDeps(store, cache, &n)); res.Failure != RefreshFailureStore {
		t.Fatalf("expected store failure, got %+v", res)
	}
}

func logoutDeps(store *fakeStore, cache *fakeCache) LogoutDeps {
	return LogoutDeps{
		DecodeBearer:      decodeWithPrefix("access:"),
		FindByEmail:       store.find,
		ClearRefreshToken: store.clear,
		InvalidateCache:   func(ctx context.Context, email string) { _ = cache.invalidate(ctx, email) },
		IsNotFound:        isNotFound,
	}
}

func TestRunLogoutIdempotent(t *testing.T) {
	store := newFakeStore(&session.Snapshot{ID: "1", Email: "alice@x.io", RefreshToken: "refresh:alice@x.io"})
	cache := &fakeCache{}

	for i := 0; i < 2; i++ {
		res := RunLogout(context.Background(), "access:alice@x.io", logoutDeps(store, cache))
		if res.Failure != LogoutFailureNone {
			t.Fatalf("logout %d: unexpected failure %+v", i, res)
		}
	}
	if store.token("alice@x.io") != "" {
		t.Fatal("expected token to be cleared")
	}
	if len(cache.invalidated) != 2 {
		t.Fatalf("expected invalidation per logout, got %v", cache.invalidated)
	}
}

func TestRunLogoutFailures(t *testing.T) {
	store := newFakeStore(&session.Snapshot{ID: "1", Email: "alice@x.io"})
	cache := &fakeCache{}

	if res := RunLogout(context.Background(), "bad", logoutDeps(store, cache)); res.Failure != LogoutFailureDecode {
		t.Fatalf("expected decode failure, got %+v", res)
	}
	store.clearErr = errors.New("disk full")
	if res := RunLogout(context.Background(), "access:alice@x.io", logoutDeps(store, cache)); res.Failure != LogoutFailureStore {
		t.Fatalf("expected store failure, got %+v", res)
	}
	if len(cache.invalidated) != 0 {
		t.Fatal("expected no invalidation when the store write failed")
	}
}
