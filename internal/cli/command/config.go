package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokbroker/internal/cli/output"
	"github.com/yndnr/tokbroker/internal/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:    "config",
		Aliases: []string{"cfg"},
		Usage:   "Inspect the configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration with secrets masked",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "defaults",
						Usage: "Print the built-in defaults instead",
					},
				},
				Action: configShow,
			},
			{
				Name:   "validate",
				Usage:  "Check the effective configuration",
				Action: configValidate,
			},
			{
				Name:   "path",
				Usage:  "Print the configuration file in use",
				Action: configPath,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg := Config(c)
	if c.Bool("defaults") {
		cfg = config.Default()
	}

	format := output.FormatYAML
	if c.IsSet("output") {
		flags, err := ParseGlobalFlags(c)
		if err != nil {
			return err
		}
		format = flags.Output
	}
	return output.NewFormatter(format, true).Format(stdout(c), config.Sanitize(cfg))
}

func configValidate(c *cli.Context) error {
	if err := config.Verify(Config(c)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	_, err := fmt.Fprintln(stdout(c), "configuration is valid")
	return err
}

func configPath(c *cli.Context) error {
	path := c.String("config")
	if path == "" {
		path = config.DefaultConfigPath()
	}
	_, err := fmt.Fprintln(stdout(c), path)
	return err
}
