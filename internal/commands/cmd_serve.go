package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/herald/internal/core/logging"
	"github.com/colonyops/herald/internal/data/db"
	"github.com/colonyops/herald/internal/data/stores"
	"github.com/colonyops/herald/internal/server"
)

type ServeCmd struct {
	flags *Flags

	listen       string
	secret       string
	dbPath       string
	retention    time.Duration
	profilerPort int
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags) *ServeCmd {
	return &ServeCmd{flags: flags}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "serve",
		Usage:     "Run the reference events server",
		UsageText: "herald serve [options]",
		Description: `Runs a small events backend for development and testing.

Published events are appended to a SQLite log and fanned out to connected
websocket clients. Clients that cannot hold a websocket open poll
/api/notifications instead. Every endpoint except /healthz requires a bearer
token signed with the server secret (see 'herald token').`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "listen",
				Aliases:     []string{"l"},
				Usage:       "address to listen on (defaults to serve.listen)",
				Destination: &cmd.listen,
			},
			&cli.StringFlag{
				Name:        "secret",
				Usage:       "HS256 signing secret (defaults to serve.secret)",
				Sources:     cli.EnvVars("HERALD_SECRET"),
				Destination: &cmd.secret,
			},
			&cli.StringFlag{
				Name:        "db",
				Usage:       "path to the events database (defaults to <data-dir>/events.db)",
				Destination: &cmd.dbPath,
			},
			&cli.DurationFlag{
				Name:        "retention",
				Usage:       "drop events older than this on startup (0 keeps everything)",
				Value:       30 * 24 * time.Hour,
				Destination: &cmd.retention,
			},
			&cli.IntFlag{
				Name:        "profiler-port",
				Usage:       "enable pprof HTTP endpoint on specified port",
				Sources:     cli.EnvVars("HERALD_PROFILER_PORT"),
				Destination: &cmd.profilerPort,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *ServeCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config

	listen := firstNonEmpty(cmd.listen, cfg.Serve.Listen)
	secret := firstNonEmpty(cmd.secret, cfg.Serve.Secret)
	dbPath := firstNonEmpty(cmd.dbPath, cfg.EventsDBPath())

	if secret == "" {
		return errors.New("a signing secret is required: set --secret, HERALD_SECRET or serve.secret")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cmd.profilerPort > 0 {
		stopProfiler, err := startProfiler(ctx, cmd.profilerPort)
		if err != nil {
			return err
		}
		defer stopProfiler()
	}

	database, err := openEventsDB(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close database")
		}
	}()

	events := stores.NewEventStore(database)
	if cmd.retention > 0 {
		n, err := events.Prune(ctx, time.Now().Add(-cmd.retention))
		if err != nil {
			return fmt.Errorf("prune events: %w", err)
		}
		if n > 0 {
			log.Info().Int64("removed", n).Msg("pruned expired events")
		}
	}

	srv, err := server.New(server.Options{
		Secret:         secret,
		AllowedOrigins: cfg.Serve.AllowedOrigins,
		Log:            events,
		Logger:         logging.Component("server"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("herald events server listening on %s\n", listen)
	return srv.ListenAndServe(ctx, listen)
}

// openEventsDB opens the event log. A corrupt database is moved aside and a
// fresh one created in its place.
func openEventsDB(path string) (*db.DB, error) {
	database, err := db.Open(path, db.DefaultOpenOptions())
	if err == nil {
		return database, nil
	}
	if !stores.IsCorruptionError(err) {
		return nil, fmt.Errorf("open database: %w", err)
	}

	backup, rerr := stores.RecoverFromCorruption(path)
	if rerr != nil {
		return nil, fmt.Errorf("recover corrupt database: %w", rerr)
	}
	log.Warn().Str("backup", backup).Msg("events database was corrupt; started a new one")

	database, err = db.Open(path, db.DefaultOpenOptions())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return database, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
