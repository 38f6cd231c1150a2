package photoauth

import (
	"context"
	"errors"
	"strings"
)

// Login verifies credentials and issues a fresh token pair.
//
// The new refresh token overwrites the stored one, so any earlier session's
// refresh token stops working. Failure order is account lookup, then the
// confirmed flag, then the password.
func (e *Engine) Login(ctx context.Context, email, plain string) (TokenPair, error) {
	if e == nil || e.store == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	email = strings.TrimSpace(email)

	identity, err := e.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return TokenPair{}, e.loginFailed(ctx, "", email, errLoginAccountNotFound)
		}
		return TokenPair{}, err
	}

	if !identity.Confirmed {
		e.metricInc(MetricLoginUnconfirmed)
		return TokenPair{}, e.loginFailed(ctx, identity.ID, email, ErrEmailNotConfirmed)
	}

	ok, err := e.verifyPassword(ctx, plain, identity.PasswordHash)
	if err != nil {
		return TokenPair{}, err
	}
	if !ok {
		return TokenPair{}, e.loginFailed(ctx, identity.ID, email, ErrInvalidCredentials)
	}

	access, refresh, err := e.issuePair(identity.Email)
	if err != nil {
		return TokenPair{}, err
	}
	if err := e.updateRefreshToken(ctx, identity.ID, refresh); err != nil {
		return TokenPair{}, err
	}
	e.invalidate(ctx, identity.Email)

	if e.config.Password.UpgradeOnLogin && e.hasher.NeedsUpgrade(identity.PasswordHash) {
		e.upgradeHash(ctx, identity, plain)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, identity.ID, identity.Email, nil, nil)

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
	}, nil
}

func (e *Engine) loginFailed(ctx context.Context, userID, email string, err error) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, email, err, nil)
	return err
}

// upgradeHash rehashes plain with the primary algorithm. Failures are logged
// and leave the old hash in place.
func (e *Engine) upgradeHash(ctx context.Context, identity *Identity, plain string) {
	hash, err := e.hashPassword(ctx, plain)
	if err != nil {
		e.warn("photoauth: password rehash failed", "user_id", identity.ID, "error", err)
		return
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.store.UpdatePasswordHash(sctx, identity.ID, hash); err != nil {
		e.warn("photoauth: password hash upgrade not persisted", "user_id", identity.ID, "error", err)
		return
	}

	e.metricInc(MetricPasswordUpgraded)
	e.emitAudit(ctx, auditEventPasswordUpgraded, true, identity.ID, identity.Email, nil, nil)
}
