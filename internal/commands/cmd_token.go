package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/herald/internal/auth"
	"github.com/colonyops/herald/internal/printer"
)

type TokenCmd struct {
	flags *Flags

	user   string
	secret string
	ttl    time.Duration
	write  bool
}

// NewTokenCmd creates a new token command
func NewTokenCmd(flags *Flags) *TokenCmd {
	return &TokenCmd{flags: flags}
}

// Register adds the token command to the application
func (cmd *TokenCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "token",
		Usage:     "Mint a development bearer token",
		UsageText: "herald token --user <id> [options]",
		Description: `Signs an HS256 token for the reference events server.

The token is printed to stdout. With --write it is also stored in the token
file (auth.token_file, default <data-dir>/token) where the client picks it up.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "user",
				Aliases:     []string{"u"},
				Usage:       "user id placed in the subject claim",
				Required:    true,
				Destination: &cmd.user,
			},
			&cli.StringFlag{
				Name:        "secret",
				Usage:       "HS256 signing secret (defaults to serve.secret)",
				Sources:     cli.EnvVars("HERALD_SECRET"),
				Destination: &cmd.secret,
			},
			&cli.DurationFlag{
				Name:        "ttl",
				Usage:       "token lifetime",
				Value:       24 * time.Hour,
				Destination: &cmd.ttl,
			},
			&cli.BoolFlag{
				Name:        "write",
				Aliases:     []string{"w"},
				Usage:       "store the token in the token file",
				Destination: &cmd.write,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *TokenCmd) run(_ context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	secret := firstNonEmpty(cmd.secret, cfg.Serve.Secret)
	if secret == "" {
		return errors.New("a signing secret is required: set --secret, HERALD_SECRET or serve.secret")
	}

	token, err := auth.Issue(secret, cmd.user, cmd.ttl, time.Now())
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintln(c.Root().Writer, token); err != nil {
		return err
	}

	if cmd.write {
		path := cfg.TokenFile()
		if err := writeToken(path, token); err != nil {
			return err
		}
		printer.New(c.Root().ErrWriter).Successf("token written to %s", path)
	}
	return nil
}

func writeToken(path, token string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
