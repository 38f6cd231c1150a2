// Package internal groups helpers private to photoauth.
//
// # Sub-packages
//
//   - config: environment-sourced server configuration
//   - dispatch: bounded async queue for mail and audit delivery
//   - flows: token and cache orchestration for resolve, refresh and logout
//   - httpapi: chi routes for the auth API
//   - logger: JSON slog setup for the server
//
// # What this package must NOT do
//
//   - Export types that appear in the public photoauth API.
package internal
