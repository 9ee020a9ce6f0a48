package service

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/yndnr/tokbroker/internal/telemetry/logger"
	"github.com/yndnr/tokbroker/internal/telemetry/metric"
)

// Defaults for the tunables shared by the services.
const (
	// DefaultLockTimeout bounds how long a caller waits for another
	// process's sign-in or lookup to finish.
	DefaultLockTimeout = 30 * time.Second

	// DefaultResolverTTL is how long resolved endpoints stay cached. The
	// discovery service gives no expiry, so the value is a fixed guess.
	DefaultResolverTTL = 30 * 24 * time.Hour
)

// Option configures a SessionManager or EndpointResolver.
type Option func(*options)

type options struct {
	logger        logger.Logger
	metrics       *metric.Registry
	now           func() time.Time
	lockTimeout   time.Duration
	resolverTTL   time.Duration
	tokenDuration time.Duration
	intn          func(n int) int
}

func defaultOptions() options {
	return options{
		logger:      logger.Default(),
		now:         time.Now,
		lockTimeout: DefaultLockTimeout,
		resolverTTL: DefaultResolverTTL,
		intn:        rand.IntN,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger. Nil keeps the default.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetrics records outcomes into r. Without it nothing is recorded.
func WithMetrics(r *metric.Registry) Option {
	return func(o *options) {
		o.metrics = r
	}
}

// WithClock replaces time.Now for validity checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLockTimeout sets how long to wait for the coordination lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithResolverTTL sets how long resolved endpoints are cached.
func WithResolverTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.resolverTTL = d
		}
	}
}

// WithTokenDuration sets the token lifetime requested on sign-in when the
// caller does not ask for one. Zero leaves it to the identity service.
func WithTokenDuration(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.tokenDuration = d
		}
	}
}

// WithRand makes endpoint selection draw from r. Access to r is serialized.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		if r == nil {
			return
		}
		var mu sync.Mutex
		o.intn = func(n int) int {
			mu.Lock()
			defer mu.Unlock()
			return r.IntN(n)
		}
	}
}
