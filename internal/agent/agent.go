package agent

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"golang.org/x/sync/errgroup"

	"github.com/yndnr/tokbroker/internal/app"
	"github.com/yndnr/tokbroker/internal/config"
	"github.com/yndnr/tokbroker/internal/core/service"
	"github.com/yndnr/tokbroker/internal/infra/confloader"
	"github.com/yndnr/tokbroker/internal/server/httpserver"
	"github.com/yndnr/tokbroker/internal/telemetry/logger"
	"github.com/yndnr/tokbroker/internal/telemetry/metric"
)

// Agent keeps one principal's token fresh.
type Agent struct {
	app        *app.App
	cfg        *config.Config
	configPath string
	log        logger.Logger
	sessions   *service.SessionManager
	keeper     *service.TokenKeeper
	admin      *httpserver.Server
}

// New builds an agent on a wired app. configPath is watched for log level
// changes when agent.watch_config is set; empty disables watching.
func New(a *app.App, configPath string) (*Agent, error) {
	sm, err := a.Sessions()
	if err != nil {
		return nil, err
	}

	cfg := a.Config()
	ag := &Agent{
		app:        a,
		cfg:        cfg,
		configPath: configPath,
		log:        a.Logger().With("component", "agent"),
		sessions:   sm,
	}
	ag.keeper = service.NewTokenKeeper(sm,
		service.WithRenewBefore(cfg.Agent.RenewBefore),
		service.WithBackoff(cfg.Agent.MinBackoff, cfg.Agent.MaxBackoff),
		service.WithKeeperOptions(
			service.WithLogger(ag.log),
			service.WithMetrics(a.Metrics()),
		),
	)
	if err := a.Metrics().Registerer().Register(metric.NewCollector(ag.keeper.TokenState)); err != nil {
		return nil, fmt.Errorf("register keeper metrics: %w", err)
	}

	if cfg.Agent.Listen != "" {
		router, err := httpserver.NewRouter(httpserver.RouterConfig{
			Healthy:   func() bool { return true },
			Ready:     ag.keeper.Healthy,
			Status:    func() any { return ag.keeper.Status() },
			Metrics:   a.Metrics().Handler(),
			Logger:    ag.log,
			AllowList: cfg.Agent.Allow,
			RateLimit: cfg.Agent.RateLimit,
		})
		if err != nil {
			return nil, err
		}
		ag.admin = httpserver.New(cfg.Agent.Listen, router, ag.log)
	}
	return ag, nil
}

// Keeper returns the token keeper.
func (ag *Agent) Keeper() *service.TokenKeeper { return ag.keeper }

// Admin returns the admin server, or nil when agent.listen is empty.
func (ag *Agent) Admin() *httpserver.Server { return ag.admin }

// Run keeps the token fresh until ctx is done. The admin endpoint, the
// configuration watcher and client certificate rotation run alongside;
// the first of them to fail stops the rest.
func (ag *Agent) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ag.keeper.Run(ctx) })

	if ag.admin != nil {
		g.Go(func() error { return ag.admin.Serve(ctx) })
	}

	if ag.cfg.Agent.WatchConfig && ag.configPath != "" {
		w, err := confloader.NewWatcher(ag.configPath, confloader.WithWatcherLogger(ag.log))
		if err != nil {
			return fmt.Errorf("watch config: %w", err)
		}
		w.OnChange(ag.reload)
		g.Go(func() error { return w.Run(ctx) })
	}

	if cert := ag.app.ClientCert(); cert != nil {
		g.Go(func() error { return cert.Watch(ctx) })
	}

	ag.log.Info("agent started",
		"principal", ag.sessions.Principal(),
		"listen", ag.cfg.Agent.Listen,
	)
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// SignOut signs out when agent.signout_on_exit is set. The cache entry is
// always removed in that case, even if the remote call fails.
func (ag *Agent) SignOut(ctx context.Context) error {
	if !ag.cfg.Agent.SignOutOnExit {
		return nil
	}
	ag.log.Info("signing out", "principal", ag.sessions.Principal())
	return ag.sessions.SignOut(ctx)
}

// reload re-reads the configuration file and applies the log level.
// Other settings need a restart.
func (ag *Agent) reload(path string) {
	next, err := config.Load(path, nil)
	if err == nil {
		err = config.Verify(next)
	}
	if err != nil {
		ag.log.Error("configuration reload rejected", "file", path, "error", err)
		return
	}

	before := logger.GetLevel()
	if err := logger.SetLevel(next.Log.Level); err != nil {
		ag.log.Error("configuration reload rejected", "file", path, "error", err)
		return
	}
	if after := logger.GetLevel(); after != before {
		ag.log.Info("log level changed", "from", before, "to", after)
	}

	prev, cur := *ag.cfg, *next
	prev.Log, cur.Log = config.LogSection{}, config.LogSection{}
	if !reflect.DeepEqual(prev, cur) {
		ag.log.Warn("configuration changed; restart the agent to apply settings other than log.level",
			"file", path)
	}
}
