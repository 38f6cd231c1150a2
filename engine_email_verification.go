package photoauth

import (
	"context"
	"errors"
	"strings"

	"github.com/photoshare/photoauth/jwt"
)

// ConfirmEmail marks the subject of an email token as confirmed.
//
// Confirming twice reports StatusAlreadyConfirmed. A valid token whose
// subject no longer exists returns ErrAccountNotFound.
func (e *Engine) ConfirmEmail(ctx context.Context, emailToken string) (ConfirmationStatus, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}

	email, err := e.decodeSubject(emailToken, jwt.ScopeAny)
	if err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", "", err, nil)
		return 0, err
	}

	sctx, cancel := e.storeCtx(ctx)
	changed, err := e.store.UpdateConfirmed(sctx, email)
	cancel()
	if err != nil {
		err = e.storeErr(err)
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, false, "", email, err, nil)
		return 0, err
	}
	if !changed {
		return StatusAlreadyConfirmed, nil
	}

	e.invalidate(ctx, email)
	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, true, "", email, nil, nil)
	return StatusConfirmed, nil
}

// RequestEmailConfirmation re-sends the verification mail.
//
// An unknown address returns StatusVerificationSent without sending anything,
// so the response does not reveal which addresses are registered.
func (e *Engine) RequestEmailConfirmation(ctx context.Context, email, baseURL string) (ConfirmationStatus, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}
	email = strings.TrimSpace(email)
	e.metricInc(MetricEmailVerificationRequest)

	identity, err := e.findByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			e.emitAudit(ctx, auditEventEmailVerificationRequest, false, "", email, err, nil)
			return StatusVerificationSent, nil
		}
		return 0, err
	}
	if identity.Confirmed {
		return StatusAlreadyConfirmed, nil
	}

	e.sendVerification(ctx, identity, baseURL)
	e.emitAudit(ctx, auditEventEmailVerificationRequest, true, identity.ID, email, nil, nil)
	return StatusVerificationSent, nil
}
