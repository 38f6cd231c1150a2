// Package photoauth authenticates users of the photo-sharing API and keeps
// their server-side session state.
//
// An [Engine] is assembled once through [Builder] and is safe for concurrent
// use. It verifies passwords, issues access and refresh tokens, rotates
// refresh tokens with an atomic compare-and-swap on the [UserStore], and
// resolves bearer tokens through a cache-aside session cache with a bounded
// TTL.
//
// # Architecture boundaries
//
// photoauth is the public surface. Token signing lives in package jwt,
// password hashing in package password and the cache codec and backends in
// package session. Flow orchestration and async delivery live under
// internal/ and are not exported.
//
// # Errors
//
// Every authentication rejection wraps [ErrUnauthorized]. Faults of the user
// store wrap [ErrInfrastructureUnavailable] and are the only errors for
// which [IsRetryable] reports true. Cache faults never fail a request.
//
// # Cache freshness
//
// A cached record may lag the store by at most the cache TTL. Writes to the
// refresh token, the confirmed flag and the role invalidate the entry. Avatar
// writes overwrite it. Role checks in [Engine.Authorize] always read the
// store.
package photoauth
