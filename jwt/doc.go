// Package jwt issues and verifies the three signed token kinds used by
// photoauth: access tokens, refresh tokens and email-verification tokens.
//
// Every token carries sub, iat, exp and a random jti. Access and refresh
// tokens additionally carry a scope claim; email tokens carry none. Decode
// checks signature and algorithm, then expiry, then scope, and reports each
// rejection with a distinct error that wraps ErrRejected.
package jwt
