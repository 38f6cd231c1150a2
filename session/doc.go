// Package session is the cache-aside layer in front of the user store.
//
// # Snapshot encoding
//
// A cached user is a [Snapshot] serialized with a two-byte header: byte 0 is
// the schema version, byte 1 the body encoding ([EncodingBinary] or
// [EncodingMsgpack]). Anything the decoder does not recognize is reported as
// [ErrCorrupt] and must be treated as a miss by callers; entries are never
// migrated in place.
//
// # Backends
//
// [Backend] is the key/value contract the [Cache] sits on. [RedisBackend] is
// the shared deployment backend; [MemoryBackend] is an in-process LRU for
// single-instance deployments and tests.
//
// # What this package must NOT do
//
//   - Import photoauth, jwt, or password (no upward imports).
//   - Make authentication or authorization decisions.
//   - Be treated as a source of truth: every value can be evicted at any time.
package session
