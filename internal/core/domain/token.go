package domain

import (
	"encoding/hex"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// TokenIDPrefix is the prefix of token correlation identifiers.
const TokenIDPrefix = "tok_"

// tokenIDLength is the number of hex characters kept from the hash.
const tokenIDLength = 12

// Token is a bearer credential issued by the identity service.
// A Token is immutable; validity is a pure function of time.
type Token struct {
	// Value is the raw bearer credential. Never log it.
	Value string `cbor:"1,keyasint" json:"-"`

	// IssuedAt is when the identity service issued the token.
	IssuedAt time.Time `cbor:"2,keyasint" json:"issued_at"`

	// ExpiresAt is the instant after which the token must not be used.
	ExpiresAt time.Time `cbor:"3,keyasint" json:"expires_at"`
}

// SignInResponse is the credential payload returned by a sign-in call.
// Either Lifetime or ExpiresAt must be set; ExpiresAt wins when both are.
type SignInResponse struct {
	Token     string
	IssuedAt  time.Time
	Lifetime  time.Duration
	ExpiresAt time.Time
}

// NewTokenFromResponse builds a Token from a sign-in response.
func NewTokenFromResponse(resp *SignInResponse) (*Token, error) {
	if resp == nil {
		return nil, ErrRemoteResponseInvalid.WithDetails("empty sign-in response")
	}
	if resp.Token == "" {
		return nil, ErrRemoteResponseInvalid.WithDetails("sign-in response has no token")
	}
	if resp.IssuedAt.IsZero() {
		return nil, ErrRemoteResponseInvalid.WithDetails("sign-in response has no issue time")
	}

	expiresAt := resp.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = resp.IssuedAt.Add(resp.Lifetime)
	}
	if !expiresAt.After(resp.IssuedAt) {
		return nil, ErrRemoteResponseInvalid.WithDetailsf("token expires at %s, not after issue time %s",
			expiresAt.Format(time.RFC3339), resp.IssuedAt.Format(time.RFC3339))
	}

	return &Token{
		Value:     resp.Token,
		IssuedAt:  resp.IssuedAt,
		ExpiresAt: expiresAt,
	}, nil
}

// IsValid reports whether the token is still usable at now.
func (t *Token) IsValid(now time.Time) bool {
	return t != nil && t.ExpiresAt.After(now)
}

// ValidFor reports whether the token stays usable for at least margin after now.
func (t *Token) ValidFor(now time.Time, margin time.Duration) bool {
	return t.IsValid(now.Add(margin))
}

// TTL returns the remaining lifetime at now, or zero once expired.
func (t *Token) TTL(now time.Time) time.Duration {
	if !t.IsValid(now) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

// Lifetime returns the full issued lifetime of the token.
func (t *Token) Lifetime() time.Duration {
	return t.ExpiresAt.Sub(t.IssuedAt)
}

// ID returns an opaque identifier for correlating log lines about the same
// token across processes. It cannot be used to recover the value.
func (t *Token) ID() string {
	sum := blake3.Sum256([]byte(t.Value))
	return TokenIDPrefix + hex.EncodeToString(sum[:])[:tokenIDLength]
}

// Equal reports whether both tokens carry the same credential and expiry.
func (t *Token) Equal(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Value == other.Value && t.ExpiresAt.Equal(other.ExpiresAt)
}

// String returns a masked form safe for logs.
func (t *Token) String() string {
	return MaskToken(t.Value)
}

// MaskToken masks a token for safe logging.
// Example: abc...xyz
func MaskToken(token string) string {
	if len(token) < 16 {
		return "***REDACTED***"
	}
	return token[:3] + "..." + token[len(token)-3:]
}

// BearerHeader returns the Authorization header value for the token.
func (t *Token) BearerHeader() string {
	return "Bearer " + strings.TrimSpace(t.Value)
}
