package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/crypto/argon2"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher()

	encoded, err := h.Hash("s3cret-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Errorf("encoded = %q, want argon2id PHC prefix", encoded)
	}

	ok, err := h.Verify("s3cret-password", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("Verify(correct password) = false")
	}

	ok, err = h.Verify("wrong-password", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Error("Verify(wrong password) = true")
	}
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher()

	a, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, err := h.Hash("same-password")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password are identical; salt is not random")
	}
}

func TestVerifyRejectsGarbledHash(t *testing.T) {
	h := NewHasher()

	testCases := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"not phc", "plainly-not-a-hash"},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"too few fields", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA"},
		{"bad salt b64", "$argon2id$v=19$m=19456,t=2,p=1$!!!$aGFzaA"},
		// Zero rounds or parallelism would panic inside argon2.IDKey, and an
		// empty digest would match any password's zero-length key.
		{"zero iterations", "$argon2id$v=19$m=19456,t=0,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA"},
		{"zero parallelism", "$argon2id$v=19$m=19456,t=2,p=0$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA"},
		{"empty digest", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdHNhbHRzYWx0c2FsdA$"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := h.Verify("anything", tc.encoded)
			if !errors.Is(err, ErrInvalidHash) {
				t.Errorf("Verify(%q) err = %v, want ErrInvalidHash", tc.encoded, err)
			}
			if ok {
				t.Error("garbled hash must never verify")
			}
		})
	}
}

func TestVerifyRejectsWrongVersion(t *testing.T) {
	h := NewHasher()

	_, err := h.Verify("anything", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA")
	if !errors.Is(err, ErrIncompatibleVersion) {
		t.Errorf("err = %v, want ErrIncompatibleVersion", err)
	}
}

func TestVerifyUsesStoredParameters(t *testing.T) {
	h := NewHasher()

	// A hash produced with different cost parameters must still verify,
	// since Verify reads them back from the encoding.
	salt := []byte("saltsaltsaltsalt")
	key := argon2.IDKey([]byte("pw"), salt, 1, 64, 1, 32)
	encoded := fmt.Sprintf("$argon2id$v=%d$m=64,t=1,p=1$%s$%s",
		argon2.Version,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	ok, err := h.Verify("pw", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Error("Verify with non-default stored parameters = false")
	}
}
