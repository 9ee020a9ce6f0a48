package command

import (
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokbroker/internal/app"
	"github.com/yndnr/tokbroker/internal/cli/output"
	"github.com/yndnr/tokbroker/internal/config"
	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/infra/buildinfo"
)

const metaConfig = "config"

// Exit codes reported for each failure kind.
const (
	ExitOK                     = 0
	ExitFailure                = 1
	ExitInvalidPrincipal       = 2
	ExitAuthenticationRejected = 3
	ExitLockConflict           = 4
	ExitRemoteUnavailable      = 5
	ExitTokenNotFound          = 6
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:                 "tokbroker",
		Usage:                "Acquire and share identity tokens across processes",
		Version:              buildinfo.String(),
		Flags:                globalFlags(),
		EnableBashCompletion: true,
		Commands: []*cli.Command{
			TokenCommand(),
			RenewCommand(),
			StatusCommand(),
			SignOutCommand(),
			ResolveCommand(),
			CacheCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: loadConfig,
		// main maps errors to exit codes with ExitCode.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// globalFlags returns the global CLI flags. Flags that are set override
// the configuration file and environment.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (default: " + config.DefaultConfigPath() + ")",
			EnvVars: []string{"TOKBROKER_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "username",
			Aliases: []string{"u"},
			Usage:   "Principal as realm/name",
		},
		&cli.StringFlag{
			Name:  "secret-file",
			Usage: "File holding the principal secret",
		},
		&cli.StringFlag{
			Name:  "identity-url",
			Usage: "Identity service base URL",
		},
		&cli.StringFlag{
			Name:  "store",
			Usage: "Credential store backend: memory, file, badger, postgres",
		},
		&cli.StringFlag{
			Name:  "store-dir",
			Usage: "Credential store directory",
		},
		&cli.StringFlag{
			Name:  "lock",
			Usage: "Lock backend: local, file, postgres",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// flagOverrides maps global flags to configuration keys.
var flagOverrides = map[string]string{
	"username":     "principal.username",
	"secret-file":  "principal.secret_file",
	"identity-url": "identity.url",
	"store":        "store.backend",
	"store-dir":    "store.dir",
	"lock":         "lock.backend",
	"log-level":    "log.level",
}

// Overrides returns the configuration keys set on the command line.
func Overrides(c *cli.Context) map[string]any {
	out := make(map[string]any)
	for flag, key := range flagOverrides {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	return out
}

func loadConfig(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"), Overrides(c))
	if err != nil {
		return err
	}
	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[metaConfig] = cfg
	return nil
}

// Config returns the configuration loaded by the Before hook.
func Config(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// openApp verifies the configuration and wires the application. The
// caller closes it.
func openApp(c *cli.Context) (*app.App, error) {
	cfg := Config(c)
	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return app.New(c.Context, cfg)
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Output output.Format
	Wide   bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{Output: format, Wide: c.Bool("wide")}, nil
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	return output.NewFormatter(flags.Output, flags.Wide).Format(c.App.Writer, data)
}

// stdout returns the writer commands print results to.
func stdout(c *cli.Context) io.Writer {
	return c.App.Writer
}

// ExitCode maps an error returned by App().Run to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	switch domain.KindOf(err) {
	case domain.KindInvalidPrincipal:
		return ExitInvalidPrincipal
	case domain.KindAuthenticationRejected:
		return ExitAuthenticationRejected
	case domain.KindLockConflict:
		return ExitLockConflict
	case domain.KindRemoteUnavailable:
		return ExitRemoteUnavailable
	case domain.KindTokenNotFound:
		return ExitTokenNotFound
	default:
		return ExitFailure
	}
}
