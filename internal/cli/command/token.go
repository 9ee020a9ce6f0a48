package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/tokbroker/internal/core/domain"
	"github.com/yndnr/tokbroker/internal/core/service"
)

// tokenView is the printable form of a token.
type tokenView struct {
	Principal string        `json:"principal" yaml:"principal"`
	ID        string        `json:"id" yaml:"id"`
	IssuedAt  time.Time     `json:"issued_at" yaml:"issued_at" table:"wide"`
	ExpiresAt time.Time     `json:"expires_at" yaml:"expires_at"`
	TTL       time.Duration `json:"ttl" yaml:"ttl"`
	Token     string        `json:"token,omitempty" yaml:"token,omitempty" table:"-"`
}

func newTokenView(p domain.Principal, tok *domain.Token, withValue bool) tokenView {
	v := tokenView{
		Principal: p.Username(),
		ID:        tok.ID(),
		IssuedAt:  tok.IssuedAt,
		ExpiresAt: tok.ExpiresAt,
		TTL:       tok.TTL(time.Now()).Round(time.Second),
	}
	if withValue {
		v.Token = tok.Value
	}
	return v
}

func acquireFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:  "min-validity",
			Usage: "Sign in again unless the cached token stays valid this long",
		},
		&cli.DurationFlag{
			Name:  "duration",
			Usage: "Requested token lifetime (default: server default)",
		},
		&cli.BoolFlag{
			Name:  "header",
			Usage: "Print an Authorization header value instead of the raw token",
		},
	}
}

// TokenCommand returns the token command.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Print a valid token, signing in only when no cached token is usable",
		Description: "With the default table output the raw token is printed so that\n" +
			"TOKEN=$(tokbroker token) works; json and yaml print token details.",
		Flags: append(acquireFlags(), &cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "Sign in even if a valid token is cached",
		}),
		Action: func(c *cli.Context) error {
			return acquire(c, c.Bool("force"))
		},
	}
}

// RenewCommand returns the renew command.
func RenewCommand() *cli.Command {
	return &cli.Command{
		Name:   "renew",
		Usage:  "Sign in again and replace the cached token",
		Flags:  acquireFlags(),
		Action: func(c *cli.Context) error { return acquire(c, true) },
	}
}

func acquire(c *cli.Context, force bool) error {
	a, err := openApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	sm, err := a.Sessions()
	if err != nil {
		return err
	}

	opts := []service.AcquireOption{service.WithMinValidity(c.Duration("min-validity"))}
	if c.IsSet("duration") {
		opts = append(opts, service.WithDuration(c.Duration("duration")))
	}
	if force {
		opts = append(opts, service.ForceRenew())
	}

	tok, err := sm.AcquireToken(c.Context, opts...)
	if err != nil {
		return err
	}
	return printToken(c, sm.Principal(), tok)
}

func printToken(c *cli.Context, p domain.Principal, tok *domain.Token) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	if flags.Output == "table" {
		value := tok.Value
		if c.Bool("header") {
			value = tok.BearerHeader()
		}
		_, err := fmt.Fprintln(stdout(c), value)
		return err
	}
	return render(c, newTokenView(p, tok, true))
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the cached token without signing in",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			sm, err := a.Sessions()
			if err != nil {
				return err
			}
			tok, err := sm.CachedToken(c.Context)
			if err != nil {
				return err
			}
			return render(c, newTokenView(sm.Principal(), tok, false))
		},
	}
}

// SignOutCommand returns the signout command.
func SignOutCommand() *cli.Command {
	return &cli.Command{
		Name:    "signout",
		Aliases: []string{"logout"},
		Usage:   "Invalidate the cached token remotely and remove it from the cache",
		Action: func(c *cli.Context) error {
			a, err := openApp(c)
			if err != nil {
				return err
			}
			defer a.Close()

			sm, err := a.Sessions()
			if err != nil {
				return err
			}
			if err := sm.SignOut(c.Context); err != nil {
				return signOutError(err)
			}
			_, err = fmt.Fprintf(stdout(c), "signed out %s\n", sm.Principal())
			return err
		},
	}
}

// signOutError says whether the cached token survived a failed sign-out.
func signOutError(err error) error {
	if errors.Is(err, service.ErrTokenStillCached) {
		return fmt.Errorf("sign-out failed, cached token could not be removed: %w", err)
	}
	return fmt.Errorf("remote sign-out failed, cached token removed: %w", err)
}
