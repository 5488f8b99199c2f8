package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/herald/internal/auth"
	"github.com/colonyops/herald/internal/core/eventbus"
	"github.com/colonyops/herald/internal/core/logging"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/herald"
	"github.com/colonyops/herald/internal/printer"
	"github.com/colonyops/herald/internal/tui"
	"github.com/colonyops/herald/pkg/profiler"
)

type TuiCmd struct {
	flags        *Flags
	profilerPort int
}

// NewTuiCmd creates a new tui command
func NewTuiCmd(flags *Flags) *TuiCmd {
	return &TuiCmd{flags: flags}
}

// Flags returns the TUI-specific flags for registration on the root command
func (cmd *TuiCmd) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:        "profiler-port",
			Usage:       "enable pprof HTTP endpoint on specified port (e.g., 6060)",
			Sources:     cli.EnvVars("HERALD_PROFILER_PORT"),
			Destination: &cmd.profilerPort,
		},
	}
}

// Run executes the TUI. Exported for use as default command.
func (cmd *TuiCmd) Run(ctx context.Context, c *cli.Command) error {
	return cmd.run(ctx, c)
}

func (cmd *TuiCmd) run(ctx context.Context, _ *cli.Command) error {
	cfg := cmd.flags.Config

	if cmd.profilerPort > 0 {
		stop, err := startProfiler(ctx, cmd.profilerPort)
		if err != nil {
			return err
		}
		defer stop()
	}

	app, err := herald.NewApp(cfg, herald.Deps{})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer app.Close()

	signal := tui.NewChangeSignal()
	app.OnTransportChange(signal.Notify)

	token, err := auth.LoadToken(cmd.flags.Token, cfg.TokenFile())
	if err != nil {
		return err
	}

	switch err := app.Start(ctx, token); {
	case errors.Is(err, auth.ErrNoCredential):
		app.Store.ShowToastFor("Not signed in: set --token or run 'herald token --write'", notify.TypeWarning, -1)
	case errors.Is(err, auth.ErrExpired):
		app.Store.ShowToastFor("Session expired: sign in again to receive notifications", notify.TypeWarning, -1)
	case err != nil:
		return fmt.Errorf("start realtime session: %w", err)
	}

	// Config warnings print once the panel releases the terminal
	warnings, held := printer.NewDeferred()
	defer func() { _ = held.Flush(os.Stderr) }()
	for _, w := range cfg.Warnings() {
		if w.Category == "serve" {
			continue
		}
		log.Warn().Str("category", w.Category).Str("item", w.Item).Msg(w.Message)
		warnings.Infof("%s.%s: %s", w.Category, w.Item, w.Message)
	}

	app.Bus.PublishTuiStarted(eventbus.TUIStartedPayload{})
	defer app.Bus.PublishTuiStopped(eventbus.TUIStoppedPayload{})

	return tui.Run(ctx, tui.Options{
		Store:       app.Store,
		Status:      app.Realtime,
		Signal:      signal,
		DisplayDays: cfg.Panel.DisplayDays,
		Logger:      logging.Component("tui"),
	})
}

// startProfiler serves pprof until the returned stop function is called.
func startProfiler(ctx context.Context, port int) (func(), error) {
	profServer := profiler.New(port)
	if err := profServer.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start profiler: %w", err)
	}
	log.Info().
		Str("url", fmt.Sprintf("http://%s/debug/pprof/", profServer.Addr())).
		Msg("profiler endpoint available")

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := profServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown profiler server")
		}
	}, nil
}
