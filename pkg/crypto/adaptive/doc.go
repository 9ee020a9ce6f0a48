// Package adaptive seals small records with an AEAD chosen for the host.
//
// Supported algorithms:
//
//   - AES-256-GCM: preferred where the CPU accelerates AES
//   - ChaCha20-Poly1305: used elsewhere
//
// Keys are either supplied directly or derived from a passphrase with
// Argon2id. Sealed output is nonce || ciphertext || tag, so a record can be
// opened with nothing but the key and the associated data it was sealed
// with.
//
// Usage:
//
//	key := adaptive.DeriveKey(passphrase, salt)
//	c, err := adaptive.New(key)
//	sealed, err := c.Seal(plaintext, []byte(recordKey))
//	plaintext, err := c.Open(sealed, []byte(recordKey))
package adaptive
