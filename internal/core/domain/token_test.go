package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var issued = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestNewTokenFromResponse(t *testing.T) {
	tests := []struct {
		name    string
		resp    *SignInResponse
		wantErr bool
		expires time.Time
	}{
		{"lifetime", &SignInResponse{Token: "abc", IssuedAt: issued, Lifetime: time.Hour}, false, issued.Add(time.Hour)},
		{"explicit expiry wins", &SignInResponse{Token: "abc", IssuedAt: issued, Lifetime: time.Hour, ExpiresAt: issued.Add(time.Minute)}, false, issued.Add(time.Minute)},
		{"nil", nil, true, time.Time{}},
		{"empty token", &SignInResponse{IssuedAt: issued, Lifetime: time.Hour}, true, time.Time{}},
		{"no issue time", &SignInResponse{Token: "abc", Lifetime: time.Hour}, true, time.Time{}},
		{"zero lifetime", &SignInResponse{Token: "abc", IssuedAt: issued}, true, time.Time{}},
		{"expiry before issue", &SignInResponse{Token: "abc", IssuedAt: issued, ExpiresAt: issued.Add(-time.Second)}, true, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok, err := NewTokenFromResponse(tt.resp)
			if tt.wantErr {
				if !errors.Is(err, ErrRemoteResponseInvalid) {
					t.Fatalf("error = %v, want ErrRemoteResponseInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTokenFromResponse() error = %v", err)
			}
			if !tok.ExpiresAt.Equal(tt.expires) {
				t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, tt.expires)
			}
		})
	}
}

func TestToken_IsValid(t *testing.T) {
	tok, err := NewTokenFromResponse(&SignInResponse{Token: "abc", IssuedAt: issued, Lifetime: time.Hour})
	if err != nil {
		t.Fatal(err)
	}

	// Valid at its own issue time.
	if !tok.IsValid(issued) {
		t.Error("IsValid(issuedAt) = false")
	}
	if !tok.IsValid(tok.ExpiresAt.Add(-time.Nanosecond)) {
		t.Error("IsValid just before expiry = false")
	}
	if tok.IsValid(tok.ExpiresAt) {
		t.Error("IsValid(expiresAt) = true")
	}
	if tok.IsValid(tok.ExpiresAt.Add(time.Second)) {
		t.Error("IsValid after expiry = true")
	}

	var nilTok *Token
	if nilTok.IsValid(issued) {
		t.Error("nil token reported valid")
	}
}

func TestToken_ValidForAndTTL(t *testing.T) {
	tok := &Token{Value: "abc", IssuedAt: issued, ExpiresAt: issued.Add(time.Hour)}
	now := issued.Add(50 * time.Minute)

	if !tok.ValidFor(now, 5*time.Minute) {
		t.Error("ValidFor(5m) = false with 10m left")
	}
	if tok.ValidFor(now, 10*time.Minute) {
		t.Error("ValidFor(10m) = true with exactly 10m left")
	}
	if got := tok.TTL(now); got != 10*time.Minute {
		t.Errorf("TTL() = %v, want 10m", got)
	}
	if got := tok.TTL(issued.Add(2 * time.Hour)); got != 0 {
		t.Errorf("TTL() after expiry = %v, want 0", got)
	}
	if got := tok.Lifetime(); got != time.Hour {
		t.Errorf("Lifetime() = %v, want 1h", got)
	}
}

func TestToken_ID(t *testing.T) {
	a := &Token{Value: "first-credential"}
	b := &Token{Value: "second-credential"}

	if !strings.HasPrefix(a.ID(), TokenIDPrefix) {
		t.Errorf("ID() = %q, want prefix %q", a.ID(), TokenIDPrefix)
	}
	if len(a.ID()) != len(TokenIDPrefix)+tokenIDLength {
		t.Errorf("len(ID()) = %d", len(a.ID()))
	}
	if a.ID() != (&Token{Value: "first-credential"}).ID() {
		t.Error("ID() is not deterministic")
	}
	if a.ID() == b.ID() {
		t.Error("different tokens share an ID")
	}
	if strings.Contains(a.ID(), a.Value) {
		t.Error("ID() leaks the token value")
	}
}

func TestToken_Equal(t *testing.T) {
	a := &Token{Value: "v", ExpiresAt: issued}
	b := &Token{Value: "v", ExpiresAt: issued.In(time.FixedZone("x", 3600))}
	c := &Token{Value: "w", ExpiresAt: issued}

	if !a.Equal(b) {
		t.Error("same value and instant should be equal")
	}
	if a.Equal(c) {
		t.Error("different values should not be equal")
	}
	if a.Equal(nil) {
		t.Error("token should not equal nil")
	}
	var n *Token
	if !n.Equal(nil) {
		t.Error("nil should equal nil")
	}
}

func TestToken_BearerHeader(t *testing.T) {
	tok := &Token{Value: " abc "}
	if got := tok.BearerHeader(); got != "Bearer abc" {
		t.Errorf("BearerHeader() = %q", got)
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected string
	}{
		{"long token", "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopq", "ABC...opq"},
		{"exactly sixteen", "0123456789abcdef", "012...def"},
		{"short", "short", "***REDACTED***"},
		{"empty", "", "***REDACTED***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskToken(tt.token); got != tt.expected {
				t.Errorf("MaskToken(%q) = %q, want %q", tt.token, got, tt.expected)
			}
		})
	}

	tok := &Token{Value: "ABCDEFGHIJKLMNOPQRSTUVWXYZ"}
	if strings.Contains(tok.String(), tok.Value) {
		t.Error("String() leaks the token value")
	}
}
