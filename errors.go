package photoauth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized classifies every authentication rejection. HTTP adapters
	// map it to one uniform 401 response.
	ErrUnauthorized = errors.New("unauthorized")

	ErrInvalidCredentials    = fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	ErrEmailNotConfirmed     = fmt.Errorf("%w: email not confirmed", ErrUnauthorized)
	ErrInvalidOrExpiredToken = fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
	ErrRefreshTokenMismatch  = fmt.Errorf("%w: refresh token mismatch", ErrUnauthorized)

	// ErrAccountNotFound is returned by UserStore implementations for absent
	// records. Login wraps it with ErrUnauthorized.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned on signup with a registered email.
	ErrAccountExists = errors.New("account already exists")

	// ErrInfrastructureUnavailable wraps user-store faults. It is the only
	// retryable error.
	ErrInfrastructureUnavailable = errors.New("infrastructure unavailable")

	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidSignup    = errors.New("invalid signup request")
	ErrRoleInvalid      = errors.New("invalid role")
	ErrEngineNotReady   = errors.New("engine not initialized")
)

// IsRetryable reports whether err is a transient infrastructure fault.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInfrastructureUnavailable)
}

// errLoginAccountNotFound is what Login returns for an unknown email: it is
// both ErrAccountNotFound and ErrUnauthorized.
var errLoginAccountNotFound = fmt.Errorf("%w: %w", ErrUnauthorized, ErrAccountNotFound)

func infraError(err error) error {
	return fmt.Errorf("%w: %w", ErrInfrastructureUnavailable, err)
}
