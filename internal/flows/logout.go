package flows

import "context"

// LogoutFailureKind classifies logout failures for root-level mapping.
type LogoutFailureKind int

const (
	LogoutFailureNone LogoutFailureKind = iota
	LogoutFailureDecode
	LogoutFailureNotFound
	LogoutFailureStore
)

type LogoutResult struct {
	Failure LogoutFailureKind
	Err     error
	Email   string
	UserID  string
}

// LogoutDeps captures logout flow dependencies. DecodeBearer accepts access
// and refresh tokens alike.
type LogoutDeps struct {
	DecodeBearer      func(string) (string, error)
	FindByEmail       FindByEmailFunc
	ClearRefreshToken func(ctx context.Context, id string) error
	InvalidateCache   func(ctx context.Context, email string)
	IsNotFound        func(error) bool
}

// RunLogout clears the stored refresh token of the bearer's subject. Clearing
// an already empty token succeeds.
func RunLogout(ctx context.Context, bearer string, deps LogoutDeps) LogoutResult {
	email, err := deps.DecodeBearer(bearer)
	if err != nil {
		return LogoutResult{Failure: LogoutFailureDecode, Err: err}
	}

	snap, err := deps.FindByEmail(ctx, email)
	if err != nil {
		kind := LogoutFailureStore
		if deps.IsNotFound(err) {
			kind = LogoutFailureNotFound
		}
		return LogoutResult{Failure: kind, Err: err, Email: email}
	}

	if err := deps.ClearRefreshToken(ctx, snap.ID); err != nil {
		kind := LogoutFailureStore
		if deps.IsNotFound(err) {
			kind = LogoutFailureNotFound
		}
		return LogoutResult{Failure: kind, Err: err, Email: email, UserID: snap.ID}
	}

	deps.InvalidateCache(ctx, email)
	return LogoutResult{Email: email, UserID: snap.ID}
}
