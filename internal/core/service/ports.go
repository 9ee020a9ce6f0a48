package service

import (
	"context"
	"time"

	"github.com/yndnr/tokbroker/internal/core/domain"
)

// CredentialStore is a TTL-aware key/value store shared by every process
// that works on behalf of the same principals.
//
// Implementations must be safe for concurrent use and must never return a
// value whose expiration has passed.
type CredentialStore interface {
	// Get returns the value stored under key, or domain.ErrCacheMiss when it
	// is absent or expired. Other errors mean the store could not answer.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any existing entry. The entry
	// expires ttl after the write.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Has reports whether Get would return a value.
	Has(ctx context.Context, key string) (bool, error)
}

// Locker hands out named mutual-exclusion locks that are visible to every
// cooperating process.
type Locker interface {
	// Acquire blocks until the named lock is held, wait elapses, or ctx is
	// done. A timeout yields domain.ErrLockConflict; cancellation of ctx
	// yields ctx.Err().
	Acquire(ctx context.Context, name string, wait time.Duration) (Lock, error)
}

// Lock is a held lock. Release must be called exactly once.
type Lock interface {
	Name() string
	Release() error
}

// Authenticator performs sign-in and sign-out against the identity service.
type Authenticator interface {
	// SignIn exchanges the principal's credentials for a token. A zero
	// duration asks for the server default lifetime. Failures are
	// domain.ErrAuthenticationRejected or domain.ErrRemoteUnavailable.
	SignIn(ctx context.Context, p domain.Principal, duration time.Duration) (*domain.SignInResponse, error)

	// SignOut invalidates the token remotely. Best effort.
	SignOut(ctx context.Context, token *domain.Token) error
}

// Discoverer resolves service base URLs.
type Discoverer interface {
	Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.EndpointSet, error)
}

// Transport is the full remote surface used by the services.
type Transport interface {
	Authenticator
	Discoverer
}
