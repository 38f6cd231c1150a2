package photoauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/photoshare/photoauth/internal/dispatch"
	"github.com/photoshare/photoauth/internal/flows"
	"github.com/photoshare/photoauth/jwt"
	"github.com/photoshare/photoauth/password"
	"github.com/photoshare/photoauth/session"
	"golang.org/x/sync/semaphore"
)

// Engine coordinates credential checks, token issuance and the user cache.
// It is immutable after Build and safe for concurrent use.
type Engine struct {
	config   Config
	store    UserStore
	backend  session.Backend
	cache    *session.Cache
	jwt      *jwt.Manager
	hasher   password.Hasher
	hashSem  *semaphore.Weighted
	validate *validator.Validate
	mail     *dispatch.Dispatcher[VerificationMail]
	audit    *dispatch.Dispatcher[AuditEvent]
	metrics  *Metrics
	logger   *slog.Logger
	flows    flows.Deps
}

// Close drains the mail and audit queues. The store and cache clients are
// owned by the caller and stay open.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.mail.Close()
	e.audit.Close()
}

// AuditDropped returns the number of audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MailDropped returns the number of verification mails lost to backpressure.
func (e *Engine) MailDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.mail.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

type pinger interface {
	Ping(ctx context.Context) (time.Duration, error)
}

// PingCache checks cache backend reachability when the backend supports it.
func (e *Engine) PingCache(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	p, ok := e.backend.(pinger)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.config.Cache.Timeout)
	defer cancel()
	_, err := p.Ping(ctx)
	return err
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observe(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) warn(msg string, args ...any) {
	e.logger.Warn(msg, args...)
}

/*
====================================
TOKENS
====================================
*/

func (e *Engine) issuePair(subject string) (string, string, error) {
	access, err := e.jwt.Issue(subject, jwt.ScopeAccess, e.config.JWT.AccessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := e.jwt.Issue(subject, jwt.ScopeRefresh, e.config.JWT.RefreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (e *Engine) decodeSubject(token string, scopes ...jwt.Scope) (string, error) {
	var (
		claims *jwt.Claims
		err    error
	)
	if len(scopes) == 1 {
		claims, err = e.jwt.Decode(token, scopes[0])
	} else {
		claims, err = e.jwt.DecodeAnyOf(token, scopes...)
	}
	if err != nil {
		return "", ErrInvalidOrExpiredToken
	}
	return claims.Subject, nil
}

/*
====================================
PASSWORDS
====================================
*/

func (e *Engine) hashPassword(ctx context.Context, plain string) (string, error) {
	if err := e.hashSem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer e.hashSem.Release(1)

	start := time.Now()
	hash, err := e.hasher.Hash(plain)
	e.observe(MetricHashLatency, time.Since(start))
	return hash, err
}

func (e *Engine) verifyPassword(ctx context.Context, plain, hash string) (bool, error) {
	if err := e.hashSem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer e.hashSem.Release(1)

	start := time.Now()
	ok := e.hasher.Verify(plain, hash)
	e.observe(MetricHashLatency, time.Since(start))
	return ok, nil
}

/*
====================================
STORE ACCESS
====================================
*/

func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Store.Timeout)
}

// storeErr keeps the store's absence and duplicate sentinels and wraps
// everything else as an infrastructure fault.
func (e *Engine) storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrAccountExists):
		return err
	default:
		e.metricInc(MetricStoreError)
		return infraError(err)
	}
}

func (e *Engine) findByEmail(ctx context.Context, email string) (*Identity, error) {
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()
	id, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, e.storeErr(err)
	}
	return id, nil
}

func (e *Engine) updateRefreshToken(ctx context.Context, id, token string) error {
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.storeErr(e.store.UpdateRefreshToken(ctx, id, token))
}

func (e *Engine) swapRefreshToken(ctx context.Context, id, current, next string) (bool, error) {
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()
	ok, err := e.store.SwapRefreshToken(ctx, id, current, next)
	return ok, e.storeErr(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound)
}

/*
====================================
FLOW WIRING
====================================
*/

func (e *Engine) buildFlowDeps() flows.Deps {
	findSnapshot := func(ctx context.Context, email string) (*session.Snapshot, error) {
		id, err := e.findByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		return toSnapshot(id), nil
	}
	clear := func(ctx context.Context, id string) error {
		return e.updateRefreshToken(ctx, id, "")
	}

	return flows.Deps{
		Resolve: flows.ResolveDeps{
			DecodeAccess: func(tok string) (string, error) {
				return e.decodeSubject(tok, jwt.ScopeAccess)
			},
			CacheGet:        e.cacheGet,
			CacheSet:        e.cacheSet,
			CacheInvalidate: e.cacheDelete,
			FindByEmail:     findSnapshot,
			IsNotFound:      isNotFound,
			Warn:            e.warn,
		},
		Refresh: flows.RefreshDeps{
			DecodeRefresh: func(tok string) (string, error) {
				return e.decodeSubject(tok, jwt.ScopeRefresh)
			},
			FindByEmail:      findSnapshot,
			IssuePair:        e.issuePair,
			SwapRefreshToken: e.swapRefreshToken,
			InvalidateCache:  e.invalidate,
			IsNotFound:       isNotFound,
			Warn:             e.warn,
		},
		Logout: flows.LogoutDeps{
			DecodeBearer: func(tok string) (string, error) {
				return e.decodeSubject(tok, jwt.ScopeAccess, jwt.ScopeRefresh)
			},
			FindByEmail:       findSnapshot,
			ClearRefreshToken: clear,
			InvalidateCache:   e.invalidate,
			IsNotFound:        isNotFound,
		},
	}
}
