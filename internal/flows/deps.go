package flows

import (
	"context"

	"github.com/photoshare/photoauth/session"
)

// Deps groups flow dependency sets. The engine builds this once and delegates
// request methods to the matching flow.
type Deps struct {
	Resolve ResolveDeps
	Refresh RefreshDeps
	Logout  LogoutDeps
}

// FindByEmailFunc loads the authoritative record for email.
type FindByEmailFunc func(ctx context.Context, email string) (*session.Snapshot, error)
