package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yndnr/tokbroker/internal/config"
	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/core/service"
	"github.com/yndnr/tokbroker/internal/infra/tlsroots"
	"github.com/yndnr/tokbroker/internal/lock"
	"github.com/yndnr/tokbroker/internal/storage"
	"github.com/yndnr/tokbroker/internal/storage/pgstore"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
	"github.com/yndnr/tokbroker/internal/telemetry/metric"
	"github.com/yndnr/tokbroker/internal/transport/httpapi"
)

// Option customizes App construction.
type Option func(*App)

// WithLogger replaces the logger built from the configuration.
func WithLogger(l logger.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.log = l
		}
	}
}

// WithMetrics sets the metrics registry. Default: a fresh registry.
func WithMetrics(r *metric.Registry) Option {
	return func(a *App) {
		if r != nil {
			a.metrics = r
		}
	}
}

// WithTransport replaces the HTTP identity client.
func WithTransport(t service.Transport) Option {
	return func(a *App) {
		a.transport = t
	}
}

// App holds the wired components. Close releases them.
type App struct {
	cfg       *config.Config
	log       logger.Logger
	metrics   *metric.Registry
	store     storage.Store
	locker    service.Locker
	transport service.Transport
	cert      *tlsroots.ClientCert
	resolver  *service.EndpointResolver

	sessionsOnce sync.Once
	sessions     *service.SessionManager
	sessionsErr  error

	closers []func() error
}

// New wires every component from cfg, which the caller has verified. On
// error, anything already opened is closed.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	a := &App{cfg: cfg}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.log == nil {
		if a.log, err = logger.New(cfg.LoggerConfig()); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	if a.metrics == nil {
		a.metrics = metric.NewRegistry()
	}

	if a.store, err = storage.Open(ctx, cfg.StorageConfig(), a.log, a.metrics); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, a.store.Close)

	if a.locker, err = a.openLocker(ctx); err != nil {
		return nil, fmt.Errorf("open lock: %w", err)
	}

	if a.transport == nil {
		if a.transport, err = a.openClient(); err != nil {
			return nil, fmt.Errorf("identity client: %w", err)
		}
	}

	a.resolver, err = service.NewEndpointResolver(a.transport, a.store, a.locker, a.serviceOptions(cfg.Resolver.LockTimeout)...)
	if err != nil {
		return nil, err
	}

	a.log.Debug("tokbroker wired",
		"store", cfg.Store.Backend,
		"lock", cfg.Lock.Backend,
		"identity", cfg.Identity.URL,
	)
	return a, nil
}

func (a *App) openLocker(ctx context.Context) (service.Locker, error) {
	var pool *pgxpool.Pool
	if a.cfg.Lock.Backend == lock.BackendPostgres {
		p, err := pgstore.NewPool(ctx, a.cfg.PostgresConfig())
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { p.Close(); return nil })
		pool = p
	}
	return lock.New(a.cfg.LockConfig(), pool, a.log)
}

func (a *App) openClient() (*httpapi.Client, error) {
	opts := []httpapi.Option{
		httpapi.WithTimeout(a.cfg.Identity.Timeout),
		httpapi.WithLogger(a.log),
	}

	if tlsOpts := a.cfg.TLSOptions(); !tlsOpts.IsZero() {
		tlsCfg, cert, err := tlsroots.ClientConfig(tlsOpts, tlsroots.WithLogger(a.log))
		if err != nil {
			return nil, err
		}
		a.cert = cert
		opts = append(opts, httpapi.WithTLSConfig(tlsCfg))
	}
	return httpapi.New(a.cfg.Identity.URL, opts...)
}

func (a *App) serviceOptions(lockTimeout time.Duration) []service.Option {
	return []service.Option{
		service.WithLogger(a.log),
		service.WithMetrics(a.metrics),
		service.WithLockTimeout(lockTimeout),
		service.WithResolverTTL(a.cfg.Resolver.TTL),
		service.WithTokenDuration(a.cfg.Session.TokenDuration),
	}
}

// Sessions returns the session manager of the configured principal. The
// secret is read on first use so commands that never sign in do not need
// one.
func (a *App) Sessions() (*service.SessionManager, error) {
	a.sessionsOnce.Do(func() {
		secret, err := a.cfg.Principal.ResolveSecret()
		if err != nil {
			a.sessionsErr = err
			return
		}
		p, err := domain.NewPrincipal(a.cfg.Principal.Username, secret)
		if err != nil {
			a.sessionsErr = err
			return
		}
		a.sessions, a.sessionsErr = service.NewSessionManager(p, a.transport, a.store, a.locker,
			a.serviceOptions(a.cfg.Session.LockTimeout)...)
	})
	return a.sessions, a.sessionsErr
}

// Resolver returns the endpoint resolver.
func (a *App) Resolver() *service.EndpointResolver { return a.resolver }

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *App) Logger() logger.Logger { return a.log }

// Metrics returns the metrics registry.
func (a *App) Metrics() *metric.Registry { return a.metrics }

// Store returns the credential store.
func (a *App) Store() storage.Store { return a.store }

// ClientCert returns the reloadable client certificate, or nil without
// mutual TLS.
func (a *App) ClientCert() *tlsroots.ClientCert { return a.cert }

// Close releases every opened component in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
