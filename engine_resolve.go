package photoauth

import (
	"context"
	"time"

	"github.com/photoshare/photoauth/internal/flows"
)

// ResolveCurrentUser maps an access token to the account it was issued for.
//
// The session cache is consulted first. Any cache fault, including a corrupt
// entry, falls back to the user store and the store's answer repopulates the
// cache. A deleted account yields ErrInvalidOrExpiredToken.
func (e *Engine) ResolveCurrentUser(ctx context.Context, accessToken string) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}

	start := time.Now()
	res := flows.RunResolve(ctx, accessToken, e.flows.Resolve)
	e.observe(MetricResolveLatency, time.Since(start))

	if res.Failure == flows.ResolveFailureDecode {
		e.metricInc(MetricResolveFailure)
		return Identity{}, ErrInvalidOrExpiredToken
	}

	switch res.Cache {
	case flows.CacheHit:
		e.metricInc(MetricCacheHit)
	case flows.CacheMiss:
		e.metricInc(MetricCacheMiss)
	case flows.CacheError:
		e.metricInc(MetricCacheError)
		e.warn("photoauth: cache read failed, using store", "error", res.CacheErr)
	case flows.CacheCorrupt:
		e.metricInc(MetricCacheCorrupt)
		e.warn("photoauth: corrupt cache entry dropped", "error", res.CacheErr)
	}

	switch res.Failure {
	case flows.ResolveFailureNone:
	case flows.ResolveFailureNotFound:
		e.metricInc(MetricResolveFailure)
		return Identity{}, ErrInvalidOrExpiredToken
	default:
		e.metricInc(MetricResolveFailure)
		return Identity{}, res.Err
	}

	e.metricInc(MetricResolveSuccess)
	return fromSnapshot(res.Snapshot).Public(), nil
}
