package password

import (
	"errors"
	"strings"
)

// DefaultMaxPasswordBytes caps the plaintext length accepted by Hash.
const DefaultMaxPasswordBytes = 1024

var (
	// ErrEmptyPassword is returned by Hash for an empty plaintext.
	ErrEmptyPassword = errors.New("password must not be empty")
	// ErrPasswordTooLong is returned by Hash when the plaintext exceeds the hasher limit.
	ErrPasswordTooLong = errors.New("password too long")
)

// Hasher hashes and verifies passwords.
//
// Verify never returns an error: a malformed or foreign hash simply does not match.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) bool
	NeedsUpgrade(encodedHash string) bool
}

// Algorithm names a supported hash family.
type Algorithm string

const (
	AlgorithmArgon2id Algorithm = "argon2id"
	AlgorithmBcrypt   Algorithm = "bcrypt"
)

// Detect reports which algorithm produced encodedHash.
func Detect(encodedHash string) (Algorithm, bool) {
	switch {
	case strings.HasPrefix(encodedHash, "$argon2id$"):
		return AlgorithmArgon2id, true
	case strings.HasPrefix(encodedHash, "$2a$"),
		strings.HasPrefix(encodedHash, "$2b$"),
		strings.HasPrefix(encodedHash, "$2y$"):
		return AlgorithmBcrypt, true
	default:
		return "", false
	}
}

// Multi hashes with a primary Hasher and verifies against any registered one.
// A hash produced by a non-primary algorithm always needs an upgrade.
type Multi struct {
	primary Algorithm
	byAlg   map[Algorithm]Hasher
}

// NewMulti creates a Multi whose new hashes come from primary.
func NewMulti(primary Algorithm, hashers map[Algorithm]Hasher) (*Multi, error) {
	if _, ok := hashers[primary]; !ok {
		return nil, errors.New("primary hasher not registered")
	}
	byAlg := make(map[Algorithm]Hasher, len(hashers))
	for alg, h := range hashers {
		if h == nil {
			return nil, errors.New("nil hasher for " + string(alg))
		}
		byAlg[alg] = h
	}
	return &Multi{primary: primary, byAlg: byAlg}, nil
}

// Hash hashes with the primary algorithm.
func (m *Multi) Hash(password string) (string, error) {
	return m.byAlg[m.primary].Hash(password)
}

// Verify dispatches on the stored hash format.
func (m *Multi) Verify(password, encodedHash string) bool {
	alg, ok := Detect(encodedHash)
	if !ok {
		return false
	}
	h, ok := m.byAlg[alg]
	if !ok {
		return false
	}
	return h.Verify(password, encodedHash)
}

// NeedsUpgrade reports true for foreign-algorithm hashes or weaker parameters.
func (m *Multi) NeedsUpgrade(encodedHash string) bool {
	alg, ok := Detect(encodedHash)
	if !ok {
		return false
	}
	if alg != m.primary {
		return true
	}
	return m.byAlg[alg].NeedsUpgrade(encodedHash)
}
