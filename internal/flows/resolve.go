package flows

import (
	"context"
	"errors"

	"github.com/photoshare/photoauth/session"
)

// ResolveFailureKind classifies resolve failures for root-level mapping.
type ResolveFailureKind int

const (
	ResolveFailureNone ResolveFailureKind = iota
	ResolveFailureDecode
	ResolveFailureNotFound
	ResolveFailureStore
)

// CacheOutcome reports what the cache lookup did.
type CacheOutcome int

const (
	CacheHit CacheOutcome = iota
	CacheMiss
	CacheError
	CacheCorrupt
)

// ResolveResult carries the resolved snapshot or failure metadata.
type ResolveResult struct {
	Failure  ResolveFailureKind
	Err      error
	Email    string
	Snapshot *session.Snapshot
	Cache    CacheOutcome
	// CacheErr is set when the cache failed and the store was used instead.
	CacheErr error
}

// ResolveDeps captures resolve flow dependencies. Cache functions are
// expected to apply their own timeout.
type ResolveDeps struct {
	DecodeAccess    func(string) (string, error)
	CacheGet        func(ctx context.Context, email string) (*session.Snapshot, error)
	CacheSet        func(ctx context.Context, snap *session.Snapshot) error
	CacheInvalidate func(ctx context.Context, email string) error
	FindByEmail     FindByEmailFunc
	IsNotFound      func(error) bool
	Warn            func(string, ...any)
}

// RunResolve decodes an access token and loads its subject cache-aside.
// Cache faults never fail the request; they fall through to the store.
func RunResolve(ctx context.Context, accessToken string, deps ResolveDeps) ResolveResult {
	email, err := deps.DecodeAccess(accessToken)
	if err != nil {
		return ResolveResult{Failure: ResolveFailureDecode, Err: err}
	}

	result := ResolveResult{Email: email}

	snap, err := deps.CacheGet(ctx, email)
	switch {
	case err == nil:
		result.Cache = CacheHit
		result.Snapshot = snap
		return result
	case errors.Is(err, session.ErrMiss):
		result.Cache = CacheMiss
	case errors.Is(err, session.ErrCorrupt):
		result.Cache = CacheCorrupt
		result.CacheErr = err
		if delErr := deps.CacheInvalidate(ctx, email); delErr != nil && deps.Warn != nil {
			deps.Warn("photoauth: corrupt cache entry not removed", "error", delErr)
		}
	default:
		result.Cache = CacheError
		result.CacheErr = err
	}

	snap, err = deps.FindByEmail(ctx, email)
	if err != nil {
		if deps.IsNotFound(err) {
			result.Failure = ResolveFailureNotFound
		} else {
			result.Failure = ResolveFailureStore
		}
		result.Err = err
		return result
	}

	if err := deps.CacheSet(ctx, snap); err != nil && deps.Warn != nil {
		deps.Warn("photoauth: cache populate failed", "error", err)
	}
	result.Snapshot = snap
	return result
}
