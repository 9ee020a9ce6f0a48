package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError(KindUnknown, "TB-TEST-1000", "test message"),
			expected: "[TB-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError(KindUnknown, "TB-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[TB-TEST-1001] test message: extra info",
		},
		{
			name:     "error with details and cause",
			err:      NewDomainError(KindUnknown, "TB-TEST-1002", "test message").WithDetails("extra").WithCause(fmt.Errorf("boom")),
			expected: "[TB-TEST-1002] test message: extra: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError(KindUnknown, "TB-TEST-1000", "message 1")
	err2 := NewDomainError(KindUnknown, "TB-TEST-1000", "message 2") // Same code, different message
	err3 := NewDomainError(KindUnknown, "TB-TEST-1001", "message 1") // Different code

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}
	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}
	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := ErrRemoteUnavailable.WithCause(cause)

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
	if errors.Unwrap(ErrRemoteUnavailable) != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestDomainError_WithDetails(t *testing.T) {
	original := NewDomainError(KindInvalidArgument, "TB-TEST-1000", "original message")
	withDetails := original.WithDetailsf("field %s", "service")

	if original.Details != "" {
		t.Error("WithDetails should not modify original error")
	}
	if withDetails.Details != "field service" {
		t.Errorf("Details = %q, want %q", withDetails.Details, "field service")
	}
	if withDetails.Code != original.Code || withDetails.Kind != original.Kind {
		t.Error("WithDetails should preserve code and kind")
	}
}

func TestDomainError_WithCause(t *testing.T) {
	original := NewDomainError(KindUnknown, "TB-TEST-1000", "original message")
	cause := fmt.Errorf("root cause")
	withCause := original.WithCause(cause)

	if original.Cause != nil {
		t.Error("WithCause should not modify original error")
	}
	if withCause.Cause != cause {
		t.Errorf("Cause = %v, want %v", withCause.Cause, cause)
	}
}

func TestIsDomainError(t *testing.T) {
	err := ErrTokenNotFound

	if !IsDomainError(err, "TB-TOKN-4040") {
		t.Error("IsDomainError should return true for matching code")
	}
	if IsDomainError(err, "TB-TOKN-9999") {
		t.Error("IsDomainError should return false for non-matching code")
	}
	if !IsDomainError(err, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
	if IsDomainError(fmt.Errorf("regular error"), "TB-TOKN-4040") {
		t.Error("IsDomainError should return false for non-DomainError")
	}
	if !IsDomainError(fmt.Errorf("wrapped: %w", ErrTokenNotFound), "TB-TOKN-4040") {
		t.Error("IsDomainError should work with wrapped errors")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"domain error", ErrLockConflict, "TB-LOCK-4090"},
		{"wrapped domain error", fmt.Errorf("wrapped: %w", ErrInvalidPrincipal), "TB-PRIN-4000"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"rejected", ErrAuthenticationRejected.WithDetails("bad password"), KindAuthenticationRejected},
		{"unavailable", ErrRemoteUnavailable, KindRemoteUnavailable},
		{"invalid response counts as unavailable", ErrRemoteResponseInvalid, KindRemoteUnavailable},
		{"lock", fmt.Errorf("acquire: %w", ErrLockConflict), KindLockConflict},
		{"not found", ErrTokenNotFound, KindTokenNotFound},
		{"principal", ErrInvalidPrincipal, KindInvalidPrincipal},
		{"plain error", errors.New("x"), KindUnknown},
		{"nil", nil, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	if got := KindLockConflict.String(); got != "lock_conflict" {
		t.Errorf("String() = %q, want lock_conflict", got)
	}
	if got := Kind(99).String(); got != "kind(99)" {
		t.Errorf("String() = %q, want kind(99)", got)
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *DomainError
		code string
		kind Kind
	}{
		{ErrAuthenticationRejected, "TB-AUTH-4010", KindAuthenticationRejected},
		{ErrRemoteUnavailable, "TB-REMOTE-5030", KindRemoteUnavailable},
		{ErrRemoteResponseInvalid, "TB-REMOTE-5021", KindRemoteUnavailable},
		{ErrLockConflict, "TB-LOCK-4090", KindLockConflict},
		{ErrCacheMiss, "TB-CACHE-4040", KindCacheMiss},
		{ErrTokenNotFound, "TB-TOKN-4040", KindTokenNotFound},
		{ErrInvalidPrincipal, "TB-PRIN-4000", KindInvalidPrincipal},
		{ErrInvalidArgument, "TB-ARG-1001", KindInvalidArgument},
		{ErrInternal, "TB-SYS-5000", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Error code = %q, want %q", tt.err.Code, tt.code)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Message == "" {
				t.Error("Error message should not be empty")
			}
		})
	}
}

func TestErrorChaining(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := ErrAuthenticationRejected.
		WithDetails("status 401").
		WithCause(cause)

	if err.Code != "TB-AUTH-4010" {
		t.Errorf("Code = %q, want %q", err.Code, "TB-AUTH-4010")
	}
	if err.Details != "status 401" {
		t.Errorf("Details = %q", err.Details)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
	if !errors.Is(err, ErrAuthenticationRejected) {
		t.Error("errors.Is should work after chaining")
	}
	if errors.Is(err, ErrRemoteUnavailable) {
		t.Error("rejected must not match unavailable")
	}
}
