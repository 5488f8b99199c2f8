// Package herald assembles the client runtime from configuration.
package herald

import (
	"context"

	"github.com/colonyops/herald/internal/connectivity"
	"github.com/colonyops/herald/internal/core/config"
	"github.com/colonyops/herald/internal/core/eventbus"
	"github.com/colonyops/herald/internal/core/logging"
	"github.com/colonyops/herald/internal/inbox"
	"github.com/colonyops/herald/internal/realtime"
	"github.com/colonyops/herald/internal/sound"
	"github.com/colonyops/herald/internal/transport"
	"github.com/colonyops/herald/pkg/clock"
	"github.com/rs/zerolog"
)

const busBufferSize = 64

// App is the central entry point for a client session.
// Commands and the TUI consume App instead of cherry-picking raw dependencies.
type App struct {
	Config   *config.Config
	Store    *inbox.Store
	Bus      *eventbus.EventBus
	Realtime *realtime.Adapter
	Monitor  *connectivity.Monitor // nil when connectivity.disabled

	log    zerolog.Logger
	cancel context.CancelFunc
}

// Deps overrides collaborators, mainly for tests. Zero values select the
// production implementations.
type Deps struct {
	Clock   clock.Clock
	Player  sound.Player
	Factory transport.Factory
	Prober  connectivity.Prober
}

// NewApp constructs an App from cfg.
func NewApp(cfg *config.Config, deps Deps) (*App, error) {
	log := logging.Component("herald")

	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Player == nil {
		deps.Player = sound.New(cfg.Sound.Command)
	}

	store := inbox.New(inbox.Options{
		Clock:                deps.Clock,
		Player:               deps.Player,
		SoundEnabled:         cfg.SoundEnabled(),
		DefaultToastDuration: cfg.Toasts.DefaultDuration,
		ErrorToastDuration:   cfg.Toasts.ErrorDuration,
		Logger:               logging.Component("inbox"),
	})

	bus := eventbus.New(busBufferSize)
	eventbus.RegisterDebugLogger(bus, logging.Component("eventbus"))

	mode, err := transport.ParseMode(cfg.Transport.Mode)
	if err != nil {
		return nil, err
	}

	rtLog := logging.Component("realtime")
	adapter := realtime.New(store, realtime.Options{
		Mode:         mode,
		BaseURL:      cfg.Server.URL,
		WSPath:       cfg.Server.WSPath,
		PollInterval: cfg.Transport.PollInterval,
		DialTimeout:  cfg.Transport.DialTimeout,
		PushRetry:    cfg.Transport.PushRetry,
		Factory:      deps.Factory,
		Clock:        deps.Clock,
		Bus:          bus,
		Logger:       &rtLog,
	})

	app := &App{
		Config:   cfg,
		Store:    store,
		Bus:      bus,
		Realtime: adapter,
		log:      log,
	}

	if !cfg.Connectivity.Disabled {
		prober := deps.Prober
		if prober == nil {
			p, err := connectivity.NewHTTPProber(cfg.Server.URL, cfg.Transport.DialTimeout)
			if err != nil {
				return nil, err
			}
			prober = p
		}
		app.Monitor = connectivity.New(prober, cfg.Connectivity.Interval, func(online bool) {
			bus.PublishConnectivityChanged(eventbus.ConnectivityChangedPayload{Online: online})
		})
	}

	eventbus.NewConnectivityRouter(bus, store, adapter).Register()

	return app, nil
}

// Start runs the event bus and the connectivity monitor, then opens the
// realtime session for token. A missing or expired credential is returned
// without any connection attempt; the rest of the runtime keeps working.
func (a *App) Start(ctx context.Context, token string) error {
	ctx, a.cancel = context.WithCancel(ctx)

	go a.Bus.Start(ctx)
	if a.Monitor != nil {
		a.Monitor.Start(ctx)
	}

	if err := a.Realtime.Start(ctx, token); err != nil {
		return err
	}
	a.log.Info().Str("server", a.Config.Server.URL).Msg("client started")
	return nil
}

// OnTransportChange calls fn after every realtime state transition.
func (a *App) OnTransportChange(fn func()) {
	a.Bus.SubscribeTransportStateChanged(func(eventbus.TransportStateChangedPayload) { fn() })
}

// Close stops delivery and settles any pending confirmation. It is safe to
// call more than once.
func (a *App) Close() {
	a.Realtime.Stop()
	if a.Monitor != nil {
		a.Monitor.Stop()
	}
	a.Store.Close()
	if a.cancel != nil {
		a.cancel()
	}
}

