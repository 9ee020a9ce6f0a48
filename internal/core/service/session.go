package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/pkg/codec"
)

// metric label for tokens
const kindToken = "token"

// ErrTokenStillCached is joined into the SignOut error when the cache entry
// could not be removed.
var ErrTokenStillCached = errors.New("cached token was not removed")

// SessionManager acquires, renews and invalidates the token of a single
// principal. It holds no token state itself; the CredentialStore is the
// system of record, so instances are cheap and may be created per call.
type SessionManager struct {
	principal domain.Principal
	auth      Authenticator
	store     CredentialStore
	opts      options
	tokens    *memoizer[*domain.Token]
}

// NewSessionManager creates a SessionManager for p.
func NewSessionManager(p domain.Principal, auth Authenticator, store CredentialStore, locker Locker, opts ...Option) (*SessionManager, error) {
	if p.IsZero() {
		return nil, domain.ErrInvalidPrincipal.WithDetails("principal is required")
	}
	if auth == nil || store == nil || locker == nil {
		return nil, domain.ErrInvalidArgument.WithDetails("authenticator, store and locker are required")
	}

	s := &SessionManager{
		principal: p,
		auth:      auth,
		store:     store,
		opts:      buildOptions(opts),
	}
	s.tokens = &memoizer[*domain.Token]{
		kind:   kindToken,
		store:  store,
		locker: locker,
		opts:   &s.opts,
	}
	return s, nil
}

// Principal returns the principal this manager signs in as.
func (s *SessionManager) Principal() domain.Principal {
	return s.principal
}

// AcquireOption modifies a single AcquireToken call.
type AcquireOption func(*acquireConfig)

type acquireConfig struct {
	force       bool
	duration    time.Duration
	minValidity time.Duration
}

// ForceRenew signs in even when a valid token is cached. Use it when a
// downstream call rejected a token that has not yet expired.
func ForceRenew() AcquireOption {
	return func(c *acquireConfig) { c.force = true }
}

// WithDuration requests a token lifetime from the identity service. The
// cached entry never outlives d.
func WithDuration(d time.Duration) AcquireOption {
	return func(c *acquireConfig) {
		if d >= 0 {
			c.duration = d
		}
	}
}

// WithMinValidity treats cached tokens expiring within d as expired.
func WithMinValidity(d time.Duration) AcquireOption {
	return func(c *acquireConfig) {
		if d >= 0 {
			c.minValidity = d
		}
	}
}

// AcquireToken returns a valid token, signing in when the cache has none.
//
// At most one sign-in per principal runs at a time across every process
// sharing the store and locker. Failures are returned unchanged:
// domain.ErrAuthenticationRejected and domain.ErrRemoteUnavailable from the
// identity service, domain.ErrLockConflict when the lock wait times out, or
// ctx.Err() when ctx ends first.
func (s *SessionManager) AcquireToken(ctx context.Context, opts ...AcquireOption) (*domain.Token, error) {
	cfg := acquireConfig{duration: s.opts.tokenDuration}
	for _, opt := range opts {
		opt(&cfg)
	}

	tok, source, err := s.tokens.get(ctx, memoCall[*domain.Token]{
		key:      domain.SignInKey(s.principal),
		lockName: domain.LockName(domain.OpSignIn, s.principal.Username()),
		force:    cfg.force,
		usable: func(t *domain.Token) bool {
			return t.ValidFor(s.opts.now(), cfg.minValidity)
		},
		fetch: func(ctx context.Context) (*domain.Token, time.Duration, error) {
			return s.signIn(ctx, cfg.duration)
		},
	})
	if err != nil {
		s.opts.metrics.RecordTokenRequest("error")
		return nil, err
	}
	s.opts.metrics.RecordTokenRequest(source)

	log := s.opts.logger.WithContext(ctx)
	if source == sourceRemote {
		log.Info("token acquired",
			"principal", s.principal,
			"token_id", tok.ID(),
			"expires_at", tok.ExpiresAt,
			"forced", cfg.force,
		)
	} else {
		log.Debug("token served from cache",
			"principal", s.principal,
			"token_id", tok.ID(),
			"expires_at", tok.ExpiresAt,
			"source", source,
		)
	}
	return tok, nil
}

// Renew signs in unconditionally and replaces the cached token.
func (s *SessionManager) Renew(ctx context.Context, opts ...AcquireOption) (*domain.Token, error) {
	return s.AcquireToken(ctx, append(opts, ForceRenew())...)
}

// signIn runs inside the lock.
func (s *SessionManager) signIn(ctx context.Context, duration time.Duration) (*domain.Token, time.Duration, error) {
	log := s.opts.logger.WithContext(ctx)

	resp, err := s.auth.SignIn(ctx, s.principal, duration)
	if err != nil {
		s.opts.metrics.RecordSignIn(domain.KindOf(err).String())
		log.Warn("sign-in failed", "principal", s.principal, "error", err)
		return nil, 0, err
	}

	tok, err := domain.NewTokenFromResponse(resp)
	if err != nil {
		s.opts.metrics.RecordSignIn(domain.KindOf(err).String())
		log.Warn("sign-in returned an unusable token", "principal", s.principal, "error", err)
		return nil, 0, err
	}
	s.opts.metrics.RecordSignIn("ok")

	ttl := tok.TTL(s.opts.now())
	if duration > 0 && ttl > duration {
		ttl = duration
	}
	if ttl <= 0 {
		log.Warn("token already expired by local clock, not caching",
			"principal", s.principal,
			"token_id", tok.ID(),
			"expires_at", tok.ExpiresAt,
		)
	}
	return tok, ttl, nil
}

// CachedToken returns the cached token without signing in, or
// domain.ErrTokenNotFound when no valid token is cached.
func (s *SessionManager) CachedToken(ctx context.Context) (*domain.Token, error) {
	tok, ok := s.tokens.read(ctx, domain.SignInKey(s.principal), func(t *domain.Token) bool {
		return t.IsValid(s.opts.now())
	})
	if !ok {
		return nil, domain.ErrTokenNotFound.WithDetailsf("principal %s", s.principal)
	}
	return tok, nil
}

// SignOut invalidates the principal's token remotely and always removes it
// from the cache, even when the remote call fails. Signing out with nothing
// cached is a no-op. The remote error, if any, is returned after the cache
// entry is gone.
func (s *SessionManager) SignOut(ctx context.Context) error {
	log := s.opts.logger.WithContext(ctx)
	key := domain.SignInKey(s.principal)

	var remoteErr error
	tok, err := s.cachedAny(ctx, key)
	if err != nil {
		log.Debug("no cached token to sign out", "principal", s.principal)
	} else {
		remoteErr = s.auth.SignOut(ctx, tok)
		if remoteErr != nil {
			s.opts.metrics.RecordSignOut(domain.KindOf(remoteErr).String())
			log.Warn("remote sign-out failed, removing cached token anyway",
				"principal", s.principal,
				"token_id", tok.ID(),
				"error", remoteErr,
			)
		} else {
			s.opts.metrics.RecordSignOut("ok")
		}
	}

	// The local delete must not be skipped because ctx already ended.
	if err := s.store.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.Error("remove cached token", "principal", s.principal, "error", err)
		return errors.Join(remoteErr, fmt.Errorf("%w: %w", ErrTokenStillCached, err))
	}

	if tok != nil {
		log.Info("signed out", "principal", s.principal, "token_id", tok.ID())
	}
	return remoteErr
}

// cachedAny reads the stored token without checking it against the local
// clock; a token the clock considers expired is still revoked remotely.
func (s *SessionManager) cachedAny(ctx context.Context, key string) (*domain.Token, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var tok *domain.Token
	if err := codec.Unmarshal(data, &tok); err != nil {
		return nil, err
	}
	if tok == nil || tok.Value == "" {
		return nil, domain.ErrTokenNotFound
	}
	return tok, nil
}
