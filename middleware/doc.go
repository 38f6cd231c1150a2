// Package middleware adapts photoauth.Engine to net/http.
//
// # Guards
//
//   - [Guard] resolves the bearer through the session cache.
//   - [RequireRole] checks the bearer's role against the user store.
//
// Both read the Authorization header and inject the resolved identity into
// the request context. Authentication failures answer 401 with one uniform
// body; store faults answer 503.
package middleware
