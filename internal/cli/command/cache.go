package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokbroker/internal/storage"
)

// CacheCommand returns the cache subcommand group.
func CacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Maintain the shared credential store",
		Subcommands: []*cli.Command{
			{
				Name:   "prune",
				Usage:  "Remove expired entries",
				Action: cachePrune,
			},
		},
	}
}

func cachePrune(c *cli.Context) error {
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	p, ok := a.Store().(storage.Pruner)
	if !ok {
		return fmt.Errorf("the %s store expires entries on its own", a.Config().Store.Backend)
	}
	n, err := p.Prune(c.Context)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(stdout(c), "removed %d expired entries\n", n)
	return err
}
