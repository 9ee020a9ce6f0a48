package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokbroker/internal/core/domain"
)

// ResolveCommand returns the resolve command.
func ResolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Print the base URL of a service",
		ArgsUsage: "SERVICE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "schema-version",
				Aliases:  []string{"s"},
				Usage:    "API schema version",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Usage:   "Account ID; omit for a global lookup",
			},
			&cli.BoolFlag{
				Name:  "insecure",
				Usage: "Use http instead of https",
			},
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Print every candidate URL",
			},
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "Drop the cached lookup first",
			},
		},
		Action: resolve,
	}
}

func resolve(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one SERVICE argument is required")
	}

	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	req := domain.ResolveRequest{
		Service:       c.Args().First(),
		SchemaVersion: c.String("schema-version"),
		AccountID:     c.String("account"),
		Insecure:      c.Bool("insecure") || a.Config().Resolver.Insecure,
	}

	r := a.Resolver()
	if c.Bool("refresh") {
		if err := r.Invalidate(c.Context, req); err != nil {
			return err
		}
	}

	if !c.Bool("all") {
		url, err := r.URL(c.Context, req)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(stdout(c), url)
		return err
	}

	set, err := r.Resolve(c.Context, req)
	if err != nil {
		return err
	}
	urls := make([]string, 0, len(set.URLs))
	for _, raw := range set.URLs {
		u, err := domain.NormalizeURL(raw, req.Insecure)
		if err != nil {
			return err
		}
		urls = append(urls, u)
	}
	set.URLs = urls
	return render(c, set)
}
