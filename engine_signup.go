package photoauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/photoshare/photoauth/jwt"
)

// maxPasswordBytes is the bcrypt input limit. The validator's max tag counts
// runes, so the byte length is checked separately.
const maxPasswordBytes = 72

// Signup registers a new account and queues a verification mail.
//
// The first account in an empty store becomes RoleAdmin; every later one is
// RoleUser; the store makes that decision atomically with the insert. The
// account starts unconfirmed. The returned Identity carries no
// credential material. Mail delivery is fire-and-forget and never fails the
// call.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (Identity, error) {
	if e == nil || e.store == nil {
		return Identity{}, ErrEngineNotReady
	}

	req.Email = strings.TrimSpace(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	if err := e.validateSignup(req); err != nil {
		e.emitAudit(ctx, auditEventSignupFailure, false, "", req.Email, err, func() map[string]string {
			return map[string]string{"reason": "invalid_input"}
		})
		return Identity{}, err
	}

	if _, err := e.findByEmail(ctx, req.Email); err == nil {
		e.metricInc(MetricSignupDuplicate)
		e.emitAudit(ctx, auditEventSignupDuplicate, false, "", req.Email, ErrAccountExists, nil)
		return Identity{}, ErrAccountExists
	} else if !errors.Is(err, ErrAccountNotFound) {
		return Identity{}, err
	}

	hash, err := e.hashPassword(ctx, req.Password)
	if err != nil {
		return Identity{}, err
	}

	now := time.Now().UTC()
	identity := &Identity{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		Role:         RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.createIdentity(ctx, identity); err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricSignupDuplicate)
			e.emitAudit(ctx, auditEventSignupDuplicate, false, "", req.Email, err, nil)
		}
		return Identity{}, err
	}

	e.sendVerification(ctx, identity, req.BaseURL)

	e.metricInc(MetricSignupSuccess)
	e.emitAudit(ctx, auditEventSignupSuccess, true, identity.ID, identity.Email, nil, func() map[string]string {
		return map[string]string{"role": identity.Role.String()}
	})

	return identity.Public(), nil
}

func (e *Engine) validateSignup(req SignupRequest) error {
	if err := e.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed %s", ErrInvalidSignup, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidSignup, err)
	}
	if len(req.Password) > maxPasswordBytes {
		return fmt.Errorf("%w: password exceeds %d bytes", ErrInvalidSignup, maxPasswordBytes)
	}
	return nil
}

func (e *Engine) createIdentity(ctx context.Context, identity *Identity) error {
	ctx, cancel := e.storeCtx(ctx)
	defer cancel()
	return e.storeErr(e.store.CreateAssigningRole(ctx, identity, RoleAdmin))
}

// sendVerification issues an email token for identity and hands the mail to
// the delivery queue.
func (e *Engine) sendVerification(ctx context.Context, identity *Identity, baseURL string) {
	token, err := e.jwt.Issue(identity.Email, jwt.ScopeEmail, e.config.JWT.EmailTTL)
	if err != nil {
		e.warn("photoauth: email token issue failed", "error", err)
		return
	}
	mail := VerificationMail{
		Email:    identity.Email,
		Username: identity.Username,
		BaseURL:  baseURL,
		Token:    token,
	}
	if e.mail.Enqueue(ctx, mail) {
		e.metricInc(MetricMailEnqueued)
		return
	}
	e.metricInc(MetricMailDropped)
	e.warn("photoauth: verification mail dropped", "email", identity.Email)
}
