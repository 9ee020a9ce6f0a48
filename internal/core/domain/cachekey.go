package domain

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// CacheKeyPrefix is the prefix of every derived cache key.
const CacheKeyPrefix = "tb_"

// Operation discriminators mixed into cache keys and lock names.
const (
	OpSignIn  = "signin"
	OpResolve = "resolve"
)

// CacheKey derives a fixed-length key from its parts. Each part is
// length-prefixed so ("ab","c") and ("a","bc") never collide. The result is
// lowercase hex and safe to use as a file name.
func CacheKey(parts ...string) string {
	h := blake3.New()
	var lenBuf [binary.MaxVarintLen64]byte
	for _, p := range parts {
		n := binary.PutUvarint(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:n])
		h.Write([]byte(p))
	}
	return CacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// SignInKey is the cache key for a principal's token.
func SignInKey(p Principal) string {
	return CacheKey(OpSignIn, p.Username())
}

// ResolveKey is the cache key for an endpoint lookup.
func ResolveKey(req ResolveRequest) string {
	return CacheKey(OpResolve, req.Service, req.SchemaVersion, req.AccountID)
}

// LockName names the critical section guarding op for subject, e.g.
// "signin:realm/alice". Unrelated subjects never share a name.
func LockName(op, subject string) string {
	return op + ":" + subject
}
