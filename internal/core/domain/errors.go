// Package domain defines the core domain models for tokbroker.
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into the closed set of outcomes callers are
// expected to branch on.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthenticationRejected
	KindRemoteUnavailable
	KindLockConflict
	KindTokenNotFound
	KindInvalidPrincipal
	KindCacheMiss
	KindInvalidArgument
)

var kindNames = map[Kind]string{
	KindUnknown:                "unknown",
	KindAuthenticationRejected: "authentication_rejected",
	KindRemoteUnavailable:      "remote_unavailable",
	KindLockConflict:           "lock_conflict",
	KindTokenNotFound:          "token_not_found",
	KindInvalidPrincipal:       "invalid_principal",
	KindCacheMiss:              "cache_miss",
	KindInvalidArgument:        "invalid_argument",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// DomainError represents a domain failure with a structured error code.
type DomainError struct {
	Kind    Kind   // Failure classification
	Code    string // Error code (e.g., "TB-AUTH-4010")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given kind, code and message.
func NewDomainError(kind Kind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	c := *e
	c.Details = details
	return &c
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	c := *e
	c.Cause = cause
	return &c
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// KindOf returns the Kind of the outermost DomainError in err's chain,
// or KindUnknown.
func KindOf(err error) Kind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// ============================================================================
// Authentication (AUTH) and remote service (REMOTE) errors
// ============================================================================

var (
	// ErrAuthenticationRejected indicates the identity service refused the
	// principal's credentials. Never retried automatically.
	ErrAuthenticationRejected = NewDomainError(KindAuthenticationRejected, "TB-AUTH-4010", "authentication rejected")

	// ErrRemoteUnavailable indicates a transport-level failure talking to the
	// identity or discovery service.
	ErrRemoteUnavailable = NewDomainError(KindRemoteUnavailable, "TB-REMOTE-5030", "remote service unavailable")

	// ErrRemoteResponseInvalid indicates the remote service answered with a
	// payload that cannot be turned into a token or endpoint set.
	ErrRemoteResponseInvalid = NewDomainError(KindRemoteUnavailable, "TB-REMOTE-5021", "invalid remote response")
)

// ============================================================================
// Coordination (LOCK) and cache (CACHE) errors
// ============================================================================

var (
	// ErrLockConflict indicates the lock could not be acquired within the wait timeout.
	ErrLockConflict = NewDomainError(KindLockConflict, "TB-LOCK-4090", "lock not acquired")

	// ErrCacheMiss indicates the key is absent or expired.
	ErrCacheMiss = NewDomainError(KindCacheMiss, "TB-CACHE-4040", "cache miss")
)

// ============================================================================
// Token (TOKN) and principal (PRIN) errors
// ============================================================================

var (
	// ErrTokenNotFound indicates no valid token is cached for the principal.
	ErrTokenNotFound = NewDomainError(KindTokenNotFound, "TB-TOKN-4040", "token not found")

	// ErrInvalidPrincipal indicates a malformed principal.
	ErrInvalidPrincipal = NewDomainError(KindInvalidPrincipal, "TB-PRIN-4000", "invalid principal")
)

// ============================================================================
// Argument (ARG) and system (SYS) errors
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError(KindInvalidArgument, "TB-ARG-1001", "invalid argument")

	// ErrInternal indicates an unexpected internal failure.
	ErrInternal = NewDomainError(KindUnknown, "TB-SYS-5000", "internal error")
)
