// Package flows contains the orchestration of the engine's multi-step
// operations: current-user resolution, refresh rotation and logout.
//
// Each Run function accepts a dependency struct of plain functions and
// returns a result carrying either the outcome or a failure kind. The root
// package builds the dependency structs once and maps failure kinds to its
// public errors, metrics and audit events.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import photoauth (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
