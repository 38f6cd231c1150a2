package photoauth

import (
	"context"

	"github.com/photoshare/photoauth/session"
)

// Cache mutation policy, applied by every engine operation that writes the
// store:
//
//	refresh token, confirmed flag, role  -> invalidate
//	avatar                               -> overwrite with the stored value
//
// Cache faults are logged and never fail the request.

func (e *Engine) cacheCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Cache.Timeout)
}

func (e *Engine) cacheGet(ctx context.Context, email string) (*session.Snapshot, error) {
	ctx, cancel := e.cacheCtx(ctx)
	defer cancel()
	return e.cache.Get(ctx, email)
}

func (e *Engine) cacheSet(ctx context.Context, snap *session.Snapshot) error {
	ctx, cancel := e.cacheCtx(ctx)
	defer cancel()
	return e.cache.Set(ctx, snap, e.config.Cache.TTL)
}

func (e *Engine) cacheDelete(ctx context.Context, email string) error {
	ctx, cancel := e.cacheCtx(ctx)
	defer cancel()
	return e.cache.Invalidate(ctx, email)
}

func (e *Engine) invalidate(ctx context.Context, email string) {
	if err := e.cacheDelete(ctx, email); err != nil {
		e.metricInc(MetricCacheError)
		e.warn("photoauth: cache invalidate failed", "error", err)
	}
}

func (e *Engine) overwrite(ctx context.Context, id *Identity) {
	if err := e.cacheSet(ctx, toSnapshot(id)); err != nil {
		e.metricInc(MetricCacheError)
		e.warn("photoauth: cache overwrite failed", "error", err)
		e.invalidate(ctx, id.Email)
	}
}

func toSnapshot(id *Identity) *session.Snapshot {
	return &session.Snapshot{
		ID:           id.ID,
		Email:        id.Email,
		Username:     id.Username,
		PasswordHash: id.PasswordHash,
		Avatar:       id.Avatar,
		Role:         uint8(id.Role),
		Confirmed:    id.Confirmed,
		RefreshToken: id.RefreshToken,
		CreatedAt:    id.CreatedAt,
		UpdatedAt:    id.UpdatedAt,
	}
}

func fromSnapshot(s *session.Snapshot) Identity {
	return Identity{
		ID:           s.ID,
		Email:        s.Email,
		Username:     s.Username,
		PasswordHash: s.PasswordHash,
		Avatar:       s.Avatar,
		Role:         Role(s.Role),
		Confirmed:    s.Confirmed,
		RefreshToken: s.RefreshToken,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
