package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Changing them only affects new hashes; Verify reads
// the parameters back from the stored encoding.
const (
	argonMemory      = 19456 // KiB
	argonIterations  = 2
	argonParallelism = 1
	argonSaltLength  = 16
	argonKeyLength   = 32
)

var (
	// ErrInvalidHash is returned when a stored hash is not a valid argon2id PHC string.
	ErrInvalidHash = errors.New("invalid password hash encoding")
	// ErrIncompatibleVersion is returned when a stored hash uses an unsupported argon2 version.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// Hasher hashes and verifies secrets (passwords and OTP codes) with argon2id.
type Hasher struct{}

// NewHasher returns a Hasher with the package's fixed parameters.
func NewHasher() *Hasher {
	return &Hasher{}
}

// Hash derives an argon2id hash of plain with a fresh random salt and encodes
// it in PHC string format: $argon2id$v=19$m=..,t=..,p=..$<salt>$<hash>.
func (h *Hasher) Hash(plain string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plain), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonIterations, argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)
	return encoded, nil
}

// Verify reports whether plain matches the stored encoded hash. The comparison
// is constant-time. A garbled stored hash yields ErrInvalidHash, never a match.
func (h *Hasher) Verify(plain, encoded string) (bool, error) {
	salt, key, iterations, memory, parallelism, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	otherKey := argon2.IDKey([]byte(plain), salt, iterations, memory, parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, otherKey) == 1, nil
}

func decodeHash(encoded string) (salt, key []byte, iterations, memory uint32, parallelism uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}
	if version != argon2.Version {
		return nil, nil, 0, 0, 0, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}

	salt, err = base64.RawStdEncoding.Strict().DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}
	key, err = base64.RawStdEncoding.Strict().DecodeString(parts[5])
	if err != nil {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}
	// argon2.IDKey panics on zero iterations or parallelism, and an empty
	// digest would match the zero-length key of any password.
	if iterations < 1 || parallelism < 1 || len(key) == 0 {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}
	return salt, key, iterations, memory, parallelism, nil
}
