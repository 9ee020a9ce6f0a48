package benchmark

import (
	"crypto/rand"
	"fmt"
	"testing"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/pkg/crypto/adaptive"
)

// BenchmarkCacheKey benchmarks cache key derivation.
func BenchmarkCacheKey(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		domain.CacheKey(domain.OpResolve, "rest", "v2", fmt.Sprint(i%100))
	}
}

// BenchmarkTokenID benchmarks the log correlation identifier.
func BenchmarkTokenID(b *testing.B) {
	tok := &domain.Token{Value: randomToken(32)}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		tok.ID()
	}
}

// BenchmarkCipherSeal benchmarks sealing cache entries per cipher.
func BenchmarkCipherSeal(b *testing.B) {
	for _, ct := range []adaptive.CipherType{adaptive.CipherAESGCM, adaptive.CipherChaCha20} {
		for _, size := range PayloadSizes {
			b.Run(string(ct)+"/"+sizeLabel(size), func(b *testing.B) {
				c := newCipher(b, ct)
				plaintext := make([]byte, size)
				rand.Read(plaintext)
				aad := []byte(domain.CacheKey("bench"))

				b.ResetTimer()
				b.ReportAllocs()
				b.SetBytes(int64(size))

				for i := 0; i < b.N; i++ {
					if _, err := c.Seal(plaintext, aad); err != nil {
						b.Fatalf("Seal: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkCipherOpen benchmarks opening sealed cache entries per cipher.
func BenchmarkCipherOpen(b *testing.B) {
	for _, ct := range []adaptive.CipherType{adaptive.CipherAESGCM, adaptive.CipherChaCha20} {
		for _, size := range PayloadSizes {
			b.Run(string(ct)+"/"+sizeLabel(size), func(b *testing.B) {
				c := newCipher(b, ct)
				plaintext := make([]byte, size)
				rand.Read(plaintext)
				aad := []byte(domain.CacheKey("bench"))
				sealed, err := c.Seal(plaintext, aad)
				if err != nil {
					b.Fatal(err)
				}

				b.ResetTimer()
				b.ReportAllocs()
				b.SetBytes(int64(size))

				for i := 0; i < b.N; i++ {
					if _, err := c.Open(sealed, aad); err != nil {
						b.Fatalf("Open: %v", err)
					}
				}
			})
		}
	}
}

// BenchmarkDeriveKey benchmarks passphrase stretching, paid once per
// process that opens a sealed store.
func BenchmarkDeriveKey(b *testing.B) {
	salt, err := adaptive.NewSalt()
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		adaptive.DeriveKey([]byte("correct horse battery staple"), salt)
	}
}

func newCipher(b *testing.B, ct adaptive.CipherType) adaptive.Cipher {
	b.Helper()
	key := make([]byte, adaptive.KeySize)
	rand.Read(key)
	c, err := adaptive.NewWithType(key, ct)
	if err != nil {
		b.Fatalf("NewWithType: %v", err)
	}
	return c
}
