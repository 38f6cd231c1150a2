package photoauth

import (
	"context"
	"slices"
	"strings"

	"github.com/photoshare/photoauth/jwt"
)

// Authorize resolves accessToken and checks the account's role against
// allowed. The role is always read from the user store, never from the
// session cache. An empty allowed list admits every role.
func (e *Engine) Authorize(ctx context.Context, accessToken string, allowed ...Role) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}

	email, err := e.decodeSubject(accessToken, jwt.ScopeAccess)
	if err != nil {
		return Identity{}, err
	}
	identity, err := e.findByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return Identity{}, ErrInvalidOrExpiredToken
		}
		return Identity{}, err
	}

	if len(allowed) > 0 && !slices.Contains(allowed, identity.Role) {
		e.metricInc(MetricPermissionDenied)
		e.emitAudit(ctx, auditEventPermissionDenied, false, identity.ID, identity.Email, ErrPermissionDenied, func() map[string]string {
			return map[string]string{"role": identity.Role.String()}
		})
		return Identity{}, ErrPermissionDenied
	}
	return identity.Public(), nil
}

// UpdateRole changes an account's role and drops its cache entry.
func (e *Engine) UpdateRole(ctx context.Context, userID string, role Role) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}
	if !role.Valid() {
		return Identity{}, ErrRoleInvalid
	}

	sctx, cancel := e.storeCtx(ctx)
	identity, err := e.store.UpdateRole(sctx, userID, role)
	cancel()
	if err != nil {
		return Identity{}, e.storeErr(err)
	}

	e.invalidate(ctx, identity.Email)
	e.emitAudit(ctx, auditEventRoleChange, true, identity.ID, identity.Email, nil, func() map[string]string {
		return map[string]string{"role": role.String()}
	})
	return identity.Public(), nil
}

// UpdateAvatar stores a new avatar URL and writes the updated record through
// to the session cache.
func (e *Engine) UpdateAvatar(ctx context.Context, email, avatarURL string) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}

	sctx, cancel := e.storeCtx(ctx)
	identity, err := e.store.UpdateAvatar(sctx, strings.TrimSpace(email), avatarURL)
	cancel()
	if err != nil {
		return Identity{}, e.storeErr(err)
	}

	e.overwrite(ctx, identity)
	return identity.Public(), nil
}

// ListUsers returns every account with credential material stripped.
func (e *Engine) ListUsers(ctx context.Context) ([]Identity, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	users, err := e.store.List(sctx)
	if err != nil {
		return nil, e.storeErr(err)
	}
	out := make([]Identity, len(users))
	for i, u := range users {
		out[i] = u.Public()
	}
	return out, nil
}
