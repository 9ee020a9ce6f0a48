package lock

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/time/rate"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/core/service"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
)

// Backend names.
const (
	BackendLocal    = "local"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// DefaultPollInterval is how often a contended lock is retried.
const DefaultPollInterval = 50 * time.Millisecond

// Config selects a lock backend.
type Config struct {
	// Backend is one of local, file or postgres.
	// Default: file
	Backend string

	// Dir holds lock files for the file backend.
	Dir string

	// PollInterval is the retry pace while a lock is contended.
	// Default: 50ms
	PollInterval time.Duration
}

// Validate checks the configuration for the selected backend.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendLocal, BackendPostgres:
		return nil
	case BackendFile:
		if c.Dir == "" {
			return fmt.Errorf("lock: dir is required for the file backend")
		}
		return nil
	default:
		return fmt.Errorf("lock: unknown backend %q", c.Backend)
	}
}

// New builds the locker selected by cfg. pool is required for the
// postgres backend and ignored otherwise.
func New(cfg Config, pool *pgxpool.Pool, log logger.Logger) (service.Locker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts := []Option{WithPollInterval(cfg.PollInterval), WithLogger(log)}

	switch strings.ToLower(cfg.Backend) {
	case BackendLocal:
		return NewLocalLocker(opts...), nil
	case BackendFile:
		return NewFileLocker(cfg.Dir, opts...)
	default:
		if pool == nil {
			return nil, fmt.Errorf("lock: the postgres backend needs a connection pool")
		}
		return NewAdvisoryLocker(pool, opts...), nil
	}
}

type options struct {
	poll time.Duration
	log  logger.Logger
}

// Option configures a locker.
type Option func(*options)

// WithPollInterval sets the retry pace for contended locks.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.poll = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{poll: DefaultPollInterval, log: logger.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	o.log = o.log.With("component", "lock")
	return o
}

// retry calls try until it reports success, wait elapses, or ctx is done.
// try receives a context bounded by wait. A non-positive wait allows a
// single attempt.
func retry(ctx context.Context, name string, wait, poll time.Duration, try func(context.Context) (bool, error)) error {
	var (
		waitCtx context.Context
		cancel  context.CancelFunc
	)
	if wait > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, wait)
	} else {
		waitCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	conflict := func() error {
		return domain.ErrLockConflict.WithDetailsf("lock %q not acquired within %s", name, wait)
	}

	limiter := rate.NewLimiter(rate.Every(poll), 1)
	for {
		ok, err := try(waitCtx)
		if ok && err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			if waitCtx.Err() != nil {
				return conflict()
			}
			return fmt.Errorf("lock %q: %w", name, err)
		}
		if wait <= 0 {
			return conflict()
		}

		if err := limiter.Wait(waitCtx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return conflict()
		}
	}
}
