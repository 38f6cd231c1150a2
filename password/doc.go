// Package password implements password hashing and verification with Argon2id defaults
// and bcrypt compatibility for records created by earlier deployments.
//
// # Output format
//
// Argon2id hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt hashes use the standard modular crypt format ($2a$, $2b$, $2y$).
//
// [Detect] selects the hasher that produced a stored hash, so a user table with
// mixed formats keeps verifying while [Hasher.NeedsUpgrade] reports the records
// that should be re-hashed on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (length,
// character rules) is enforced by the Engine at signup.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords; callers supply plaintext and receive hashes.
//   - Import any other photoauth package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
