package adaptive

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// SaltSize is the salt length used by DeriveKey.
const SaltSize = 16

// MinPassphraseLength is the shortest passphrase DeriveKey callers should accept.
const MinPassphraseLength = 8

// Argon2id parameters.
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
)

// NewSalt returns SaltSize random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("adaptive: read salt: %w", err)
	}
	return salt, nil
}

// DeriveKey stretches passphrase into a KeySize key with Argon2id. The same
// passphrase and salt always give the same key.
func DeriveKey(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, KeySize)
}

// SubKey derives an independent key for purpose from a master key, so one
// configured secret can protect several kinds of record.
func SubKey(master []byte, purpose string) ([]byte, error) {
	if len(master) < 16 {
		return nil, fmt.Errorf("adaptive: master key too short")
	}
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("adaptive: derive %s key: %w", purpose, err)
	}
	return key, nil
}
