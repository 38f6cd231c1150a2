package photoauth

import (
	"context"

	"github.com/photoshare/photoauth/internal/flows"
)

// Refresh rotates a refresh token into a new token pair.
//
// The presented token must equal the stored one. Replaying a rotated or
// logged-out token clears the stored token and ends the session with
// ErrRefreshTokenMismatch. Of several concurrent refreshes of one token,
// exactly one succeeds; the others get ErrRefreshTokenMismatch and the
// winner's session stays valid.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.store == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	res := flows.RunRefresh(ctx, refreshToken, e.flows.Refresh)
	switch res.Failure {
	case flows.RefreshFailureNone:
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, res.UserID, res.Email, nil, nil)
		return TokenPair{
			AccessToken:  res.AccessToken,
			RefreshToken: res.RefreshToken,
			TokenType:    "bearer",
		}, nil

	case flows.RefreshFailureMismatch:
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, res.UserID, res.Email, ErrRefreshTokenMismatch, func() map[string]string {
			switch {
			case res.LostRace:
				return map[string]string{"session": "kept_concurrent_rotation"}
			case res.Cleared:
				return map[string]string{"session": "cleared"}
			default:
				return map[string]string{"session": "clear_skipped"}
			}
		})
		return TokenPair{}, ErrRefreshTokenMismatch

	case flows.RefreshFailureDecode, flows.RefreshFailureNotFound:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.Email, ErrInvalidOrExpiredToken, nil)
		return TokenPair{}, ErrInvalidOrExpiredToken

	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, res.UserID, res.Email, res.Err, nil)
		return TokenPair{}, res.Err
	}
}

// Logout ends the bearer's session by clearing its stored refresh token.
// Both access and refresh tokens are accepted. Logging out twice succeeds.
func (e *Engine) Logout(ctx context.Context, bearer string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	res := flows.RunLogout(ctx, bearer, e.flows.Logout)
	switch res.Failure {
	case flows.LogoutFailureNone:
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, auditEventLogout, true, res.UserID, res.Email, nil, nil)
		return nil
	case flows.LogoutFailureDecode, flows.LogoutFailureNotFound:
		return ErrInvalidOrExpiredToken
	default:
		return res.Err
	}
}
