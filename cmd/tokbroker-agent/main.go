package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokbroker/internal/agent"
	"github.com/yndnr/tokbroker/internal/app"
	"github.com/yndnr/tokbroker/internal/cli/command"
	"github.com/yndnr/tokbroker/internal/config"
	"github.com/yndnr/tokbroker/internal/infra/buildinfo"
	"github.com/yndnr/tokbroker/internal/infra/shutdown"
)

func main() {
	cliApp := &cli.App{
		Name:    "tokbroker-agent",
		Usage:   "Keep a token fresh in the shared credential cache",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Configuration file (default: " + config.DefaultConfigPath() + ")",
				EnvVars: []string{"TOKBROKER_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Action:         run,
		ExitErrHandler: func(*cli.Context, error) {},
	}

	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(command.ExitCode(err))
	}
}

func run(c *cli.Context) error {
	var overrides map[string]any
	if lvl := c.String("log-level"); lvl != "" {
		overrides = map[string]any{"log.level": lvl}
	}

	path := c.String("config")
	cfg, err := config.Load(path, overrides)
	if err != nil {
		return err
	}
	if err := config.Verify(cfg); err != nil {
		return fmt.Errorf("invalid configuration:\n%w", err)
	}
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
			path = config.DefaultConfigPath()
		}
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	log := a.Logger()

	ag, err := agent.New(a, path)
	if err != nil {
		a.Close()
		return err
	}

	h := shutdown.NewHandler(cfg.Agent.ShutdownTimeout, log)
	h.OnShutdown("app", func(context.Context) error { return a.Close() })
	h.OnShutdown("signout", ag.SignOut)

	log.Info("starting tokbroker-agent",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"config", path,
	)

	runErr := ag.Run(ctx)
	if runErr != nil {
		log.Error("agent stopped", "error", runErr)
	}
	if err := h.Shutdown(); err != nil {
		log.Error("shutdown", "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	log.Info("tokbroker-agent stopped")
	return runErr
}
