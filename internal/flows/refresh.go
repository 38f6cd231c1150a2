package flows

import (
	"context"

	"github.com/photoshare/photoauth/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureNotFound
	RefreshFailureStore
	RefreshFailureMismatch
	RefreshFailureIssue
)

// RefreshResult carries either the issued token pair or failure metadata.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	Email        string
	UserID       string
	AccessToken  string
	RefreshToken string
	// Cleared reports that a mismatch wiped the stored refresh token.
	Cleared bool
	// LostRace reports a mismatch caused by a concurrent rotation of the
	// same token; the winner's token is left in place.
	LostRace bool
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	DecodeRefresh    func(string) (string, error)
	FindByEmail      FindByEmailFunc
	IssuePair        func(subject string) (access, refresh string, err error)
	SwapRefreshToken func(ctx context.Context, id, current, next string) (bool, error)
	InvalidateCache  func(ctx context.Context, email string)
	IsNotFound       func(error) bool
	Warn             func(string, ...any)
}

// RunRefresh rotates a refresh token. The presented token must equal the
// stored one at the moment of the conditional swap.
//
// A presented token that differs from the stored one is a replay: the stored
// token is cleared, conditionally on it still being the value read, so a
// token written meanwhile by a login or rotation survives. Losing the swap
// to a concurrent refresh of the same token is a mismatch too, but the
// winner's token is kept; a later replay of the loser's token is caught by
// the read check.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	email, err := deps.DecodeRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}

	snap, err := deps.FindByEmail(ctx, email)
	if err != nil {
		kind := RefreshFailureStore
		if deps.IsNotFound(err) {
			kind = RefreshFailureNotFound
		}
		return RefreshResult{Failure: kind, Err: err, Email: email}
	}

	if snap.RefreshToken != refreshToken {
		return mismatch(ctx, snap, deps)
	}

	access, next, err := deps.IssuePair(email)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssue, Err: err, Email: email, UserID: snap.ID}
	}

	swapped, err := deps.SwapRefreshToken(ctx, snap.ID, refreshToken, next)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureStore, Err: err, Email: email, UserID: snap.ID}
	}
	if !swapped {
		deps.InvalidateCache(ctx, email)
		return RefreshResult{
			Failure:  RefreshFailureMismatch,
			Email:    email,
			UserID:   snap.ID,
			LostRace: true,
		}
	}

	deps.InvalidateCache(ctx, email)
	return RefreshResult{
		Failure:      RefreshFailureNone,
		Email:        email,
		UserID:       snap.ID,
		AccessToken:  access,
		RefreshToken: next,
	}
}

func mismatch(ctx context.Context, snap *session.Snapshot, deps RefreshDeps) RefreshResult {
	result := RefreshResult{
		Failure: RefreshFailureMismatch,
		Email:   snap.Email,
		UserID:  snap.ID,
	}
	cleared, err := deps.SwapRefreshToken(ctx, snap.ID, snap.RefreshToken, "")
	if err != nil && deps.Warn != nil {
		deps.Warn("photoauth: clearing refresh token after mismatch failed", "error", err)
	}
	result.Cleared = cleared
	deps.InvalidateCache(ctx, snap.Email)
	return result
}
