package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/telemetry/metric"
)

// Keeper defaults.
const (
	DefaultRenewBefore = 5 * time.Minute
	DefaultMinBackoff  = time.Second
	DefaultMaxBackoff  = 5 * time.Minute
)

// TokenAcquirer is the part of SessionManager the keeper drives.
type TokenAcquirer interface {
	AcquireToken(ctx context.Context, opts ...AcquireOption) (*domain.Token, error)
}

// KeeperStatus is a snapshot of a TokenKeeper.
type KeeperStatus struct {
	TokenID     string    `json:"token_id,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	LastRefresh time.Time `json:"last_refresh,omitempty"`
	NextAttempt time.Time `json:"next_attempt,omitempty"`
	Failures    int       `json:"failures"`
	LastError   string    `json:"last_error,omitempty"`
}

// KeeperOption configures a TokenKeeper.
type KeeperOption func(*TokenKeeper)

// WithRenewBefore sets how long before expiry the keeper renews. It is
// clamped to a quarter of the token lifetime.
func WithRenewBefore(d time.Duration) KeeperOption {
	return func(k *TokenKeeper) {
		if d > 0 {
			k.renewBefore = d
		}
	}
}

// WithBackoff sets the retry delay bounds after a failed attempt.
func WithBackoff(minDelay, maxDelay time.Duration) KeeperOption {
	return func(k *TokenKeeper) {
		if minDelay > 0 {
			k.minBackoff = minDelay
		}
		if maxDelay >= k.minBackoff {
			k.maxBackoff = maxDelay
		}
	}
}

// WithKeeperOptions applies service options (logger, clock, metrics).
func WithKeeperOptions(opts ...Option) KeeperOption {
	return func(k *TokenKeeper) {
		for _, opt := range opts {
			opt(&k.opts)
		}
	}
}

// TokenKeeper keeps a principal's token warm for a long-running process.
// It is a caller of SessionManager, so retrying failed sign-ins is its job:
// failures back off exponentially, and rejected credentials wait the
// maximum delay to avoid locking the account out.
type TokenKeeper struct {
	tokens      TokenAcquirer
	renewBefore time.Duration
	minBackoff  time.Duration
	maxBackoff  time.Duration
	opts        options

	// after is time.After; replaced in tests.
	after func(time.Duration) <-chan time.Time

	mu       sync.RWMutex
	status   KeeperStatus
	lifetime time.Duration
}

// NewTokenKeeper creates a keeper driving tokens.
func NewTokenKeeper(tokens TokenAcquirer, opts ...KeeperOption) *TokenKeeper {
	k := &TokenKeeper{
		tokens:      tokens,
		renewBefore: DefaultRenewBefore,
		minBackoff:  DefaultMinBackoff,
		maxBackoff:  DefaultMaxBackoff,
		opts:        defaultOptions(),
		after:       time.After,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Run refreshes the token until ctx is done. It returns nil on cancellation.
func (k *TokenKeeper) Run(ctx context.Context) error {
	log := k.opts.logger.WithContext(ctx)
	log.Info("token keeper started", "renew_before", k.renewBefore.String())

	for {
		wait := k.Step(ctx)
		select {
		case <-ctx.Done():
			log.Info("token keeper stopped")
			return nil
		case <-k.after(wait):
		}
	}
}

// Step makes one acquisition attempt and returns how long to wait before
// the next one.
func (k *TokenKeeper) Step(ctx context.Context) time.Duration {
	margin := k.margin()
	tok, err := k.tokens.AcquireToken(ctx, WithMinValidity(margin))
	now := k.opts.now()

	k.mu.Lock()
	defer k.mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return 0
		}
		k.status.Failures++
		k.status.LastError = err.Error()
		wait := k.backoff(k.status.Failures, err)
		k.status.NextAttempt = now.Add(wait)
		k.opts.logger.WithContext(ctx).Warn("token refresh failed",
			"failures", k.status.Failures,
			"retry_in", wait.String(),
			"error", err,
		)
		return wait
	}

	if k.status.TokenID != tok.ID() {
		k.status.LastRefresh = now
	}
	k.status.TokenID = tok.ID()
	k.status.ExpiresAt = tok.ExpiresAt
	k.lifetime = tok.Lifetime()
	k.status.Failures = 0
	k.status.LastError = ""

	wait := tok.ExpiresAt.Add(-clampMargin(k.renewBefore, k.lifetime)).Sub(now)
	if wait < k.minBackoff {
		wait = k.minBackoff
	}
	k.status.NextAttempt = now.Add(wait)
	return wait
}

// margin is the validity a cached token must still have to be reused.
func (k *TokenKeeper) margin() time.Duration {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return clampMargin(k.renewBefore, k.lifetime)
}

func clampMargin(renewBefore, lifetime time.Duration) time.Duration {
	if lifetime > 0 && renewBefore > lifetime/4 {
		return lifetime / 4
	}
	return renewBefore
}

func (k *TokenKeeper) backoff(failures int, err error) time.Duration {
	if errors.Is(err, domain.ErrAuthenticationRejected) {
		return k.maxBackoff
	}
	d := k.minBackoff
	for i := 1; i < failures && d < k.maxBackoff; i++ {
		d *= 2
	}
	if d > k.maxBackoff {
		d = k.maxBackoff
	}
	return d
}

// Status returns a snapshot of the keeper's state.
func (k *TokenKeeper) Status() KeeperStatus {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.status
}

// TokenState reports the kept token for metric.Collector.
func (k *TokenKeeper) TokenState() metric.TokenState {
	st := k.Status()
	return metric.TokenState{
		ExpiresAt: st.ExpiresAt,
		Failures:  st.Failures,
		Valid:     !st.ExpiresAt.IsZero() && st.ExpiresAt.After(k.opts.now()),
	}
}

// Healthy reports whether the keeper holds a valid token.
func (k *TokenKeeper) Healthy() bool {
	return k.TokenState().Valid
}
