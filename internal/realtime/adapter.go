// Package realtime wires a transport into the notification store for the
// lifetime of a user session.
//
// State machine:
//
//	Disconnected --Start--> Connected --push error--> Fallback --Stop--> Closed
//	                 \--dial failure / poll mode--> Fallback
//	Fallback --push retry succeeded--> Connected
//
// Stop is valid from every state and is idempotent.
//
// Polling starts pollSkew before the session start so a client clock running
// ahead of the server does not hide early events. When a retried push channel
// comes up, the retiring poller runs one last fetch before it is closed; the
// overlap is absorbed by SourceID dedupe.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/colonyops/herald/internal/auth"
	"github.com/colonyops/herald/internal/core/eventbus"
	"github.com/colonyops/herald/internal/core/logging"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/transport"
	"github.com/colonyops/herald/pkg/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// pollSkew is subtracted from the session start to form the first poll cutoff.
const pollSkew = 5 * time.Minute

var (
	ErrStopped        = errors.New("realtime adapter stopped")
	ErrAlreadyStarted = errors.New("realtime adapter already started")
)

// Ingester is the subset of the store the adapter feeds.
type Ingester interface {
	AddNotification(p notify.Payload) int64
	HasSource(sourceID string) bool
}

// Options configure an Adapter.
type Options struct {
	Mode         transport.Mode // preferred mode; poll skips the push attempt
	BaseURL      string
	WSPath       string
	PollInterval time.Duration
	DialTimeout  time.Duration
	// PushRetry, when positive, retries the push channel on this interval
	// while in Fallback. Zero keeps polling for the rest of the session.
	PushRetry time.Duration

	Factory transport.Factory
	Clock   clock.Clock
	Bus     *eventbus.EventBus
	Logger  *zerolog.Logger
}

// Adapter owns the active transport and routes its payloads into the store.
type Adapter struct {
	store   Ingester
	opts    Options
	factory transport.Factory
	clock   clock.Clock
	log     zerolog.Logger

	mu        sync.Mutex
	state     transport.State
	active    transport.Transport
	pending   transport.Transport // push candidate during a retry
	draining  transport.Transport // retired poller running its last fetch
	cred      auth.Credential
	startedAt time.Time
	seen      map[string]struct{}
	retry     clock.Timer
	online    bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// New returns a Disconnected adapter.
func New(store Ingester, opts Options) *Adapter {
	if opts.Mode == "" {
		opts.Mode = transport.ModePush
	}
	if opts.Factory == nil {
		opts.Factory = transport.New
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	log := logging.Component("realtime")
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Adapter{
		store:   store,
		opts:    opts,
		factory: opts.Factory,
		clock:   opts.Clock,
		log:     log,
		seen:    make(map[string]struct{}),
		online:  true,
	}
}

// State returns the current state.
func (a *Adapter) State() transport.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Mode returns the mode of the active transport, or "" when none is active.
func (a *Adapter) Mode() transport.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active == nil {
		return ""
	}
	return a.active.Mode()
}

// Start begins delivery for a session authenticated by token. Without a
// usable credential it returns auth.ErrNoCredential or auth.ErrExpired and
// makes no connection attempt. A push dial failure is not an error: the
// adapter falls back to polling.
func (a *Adapter) Start(ctx context.Context, token string) error {
	now := a.clock.Now()

	cred, err := auth.ParseCredential(token, now)
	if err != nil {
		a.log.Warn().Err(err).Msg("not connecting: no usable credential")
		return err
	}

	a.mu.Lock()
	switch a.state {
	case transport.StateClosed:
		a.mu.Unlock()
		return ErrStopped
	case transport.StateDisconnected:
	default:
		a.mu.Unlock()
		return ErrAlreadyStarted
	}

	sessionCtx := logging.WithSessionID(context.WithoutCancel(ctx), uuid.NewString())
	a.ctx, a.cancel = context.WithCancel(sessionCtx)
	a.cred = cred
	a.startedAt = now
	a.mu.Unlock()

	a.log.Info().Ctx(a.ctx).
		Str("user", cred.UserID).
		Str("mode", string(a.opts.Mode)).
		Msg("realtime session starting")

	if a.opts.Mode == transport.ModePoll {
		a.startPoll(nil, nil)
		return nil
	}

	a.startPush()
	return nil
}

func (a *Adapter) startPush() {
	t, err := a.factory(transport.ModePush, a.transportOptions(time.Time{}))
	if err != nil {
		a.startPoll(nil, err)
		return
	}

	a.mu.Lock()
	if a.state == transport.StateClosed {
		a.mu.Unlock()
		_ = t.Close()
		return
	}
	a.active = t
	ctx := a.ctx
	a.mu.Unlock()

	t.OnMessage(func(data []byte) { a.handleMessage(t, data) })
	t.OnError(func(err error) { a.handleTransportError(t, err) })

	if err := t.Connect(ctx); err != nil {
		a.handleTransportError(t, err)
		return
	}

	a.mu.Lock()
	if a.active != t {
		a.mu.Unlock()
		return
	}
	a.setStateLocked(transport.StateConnected, nil)
	a.mu.Unlock()
}

// handleTransportError moves to Fallback when the failing transport is the
// active push channel. Errors from replaced transports are ignored.
func (a *Adapter) handleTransportError(t transport.Transport, err error) {
	a.mu.Lock()
	if a.pending == t {
		a.pending = nil
		a.scheduleRetryLocked()
		a.mu.Unlock()
		_ = t.Close()
		a.log.Debug().Ctx(a.ctx).Err(err).Msg("push retry failed")
		return
	}
	if a.active != t || a.state == transport.StateClosed {
		a.mu.Unlock()
		return
	}
	a.active = nil
	a.mu.Unlock()

	_ = t.Close()
	if t.Mode() == transport.ModePush {
		a.startPoll(t, err)
	}
}

// startPoll switches to the polling transport. replaced is the push transport
// that failed, if any.
func (a *Adapter) startPoll(replaced transport.Transport, cause error) {
	if cause != nil {
		a.log.Warn().Ctx(a.ctx).Err(cause).Msg("push channel unavailable, falling back to polling")
	}

	a.mu.Lock()
	if a.state == transport.StateClosed || (replaced == nil && a.active != nil) {
		a.mu.Unlock()
		return
	}
	since := a.startedAt.Add(-pollSkew)
	a.mu.Unlock()

	p, err := a.factory(transport.ModePoll, a.transportOptions(since))
	if err != nil {
		a.log.Error().Ctx(a.ctx).Err(err).Msg("cannot build poll transport")
		return
	}
	p.OnMessage(func(data []byte) { a.handleMessage(p, data) })
	p.OnError(func(err error) { a.log.Warn().Ctx(a.ctx).Err(err).Msg("poll transport error") })

	a.mu.Lock()
	if a.state == transport.StateClosed {
		a.mu.Unlock()
		_ = p.Close()
		return
	}
	a.active = p
	a.setStateLocked(transport.StateFallback, cause)
	a.scheduleRetryLocked()
	ctx := a.ctx
	a.mu.Unlock()

	if err := p.Connect(ctx); err != nil {
		a.log.Error().Ctx(ctx).Err(err).Msg("poll transport failed to start")
	}
}

func (a *Adapter) scheduleRetryLocked() {
	if a.opts.PushRetry <= 0 || a.retry != nil || a.opts.Mode == transport.ModePoll {
		return
	}
	if a.state != transport.StateFallback || !a.online {
		return
	}
	a.retry = a.clock.AfterFunc(a.opts.PushRetry, a.retryPush)
}

// fetcher is implemented by transports that can poll on demand.
type fetcher interface {
	Fetch(ctx context.Context) error
}

// retryPush dials a new push channel while polling continues. On success the
// adapter returns to Connected and the poller is drained, then closed.
func (a *Adapter) retryPush() {
	a.mu.Lock()
	a.retry = nil
	if a.state != transport.StateFallback || a.pending != nil {
		a.mu.Unlock()
		return
	}
	if !a.online {
		a.mu.Unlock()
		return
	}
	ctx := a.ctx
	a.mu.Unlock()

	t, err := a.factory(transport.ModePush, a.transportOptions(time.Time{}))
	if err != nil {
		a.mu.Lock()
		a.scheduleRetryLocked()
		a.mu.Unlock()
		return
	}

	a.mu.Lock()
	if a.state != transport.StateFallback {
		a.mu.Unlock()
		return
	}
	a.pending = t
	a.mu.Unlock()

	t.OnMessage(func(data []byte) { a.handleMessage(t, data) })
	t.OnError(func(err error) { a.handleTransportError(t, err) })

	if err := t.Connect(ctx); err != nil {
		a.handleTransportError(t, err)
		return
	}

	a.mu.Lock()
	if a.pending != t || a.state != transport.StateFallback {
		a.mu.Unlock()
		_ = t.Close()
		return
	}
	poller := a.active
	a.active = t
	a.pending = nil
	a.draining = poller
	a.setStateLocked(transport.StateConnected, nil)
	a.mu.Unlock()

	a.log.Info().Ctx(ctx).Msg("push channel restored")
	if poller != nil {
		a.drain(ctx, poller)
	}
}

// drain fetches once more from a retired poller so events published between
// its last tick and the push handshake still arrive, then closes it.
func (a *Adapter) drain(ctx context.Context, poller transport.Transport) {
	if f, ok := poller.(fetcher); ok {
		if err := f.Fetch(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn().Ctx(ctx).Err(err).Msg("catch-up poll failed")
		}
	}

	a.mu.Lock()
	if a.draining == poller {
		a.draining = nil
	}
	a.mu.Unlock()

	_ = poller.Close()
}

// handleMessage decodes, dedupes and ingests one payload. Malformed payloads
// are dropped and logged.
func (a *Adapter) handleMessage(t transport.Transport, data []byte) {
	mode := t.Mode()

	p, err := notify.DecodePayload(data)
	if err != nil {
		a.log.Warn().Ctx(a.ctx).Err(err).Str("mode", string(mode)).Int("size", len(data)).Msg("dropping malformed payload")
		a.publishDropped(mode, err.Error(), len(data))
		return
	}

	a.mu.Lock()
	if a.state == transport.StateClosed || (t != a.active && t != a.pending && t != a.draining) {
		a.mu.Unlock()
		return
	}
	if p.ID != "" {
		if _, dup := a.seen[p.ID]; dup || a.store.HasSource(p.ID) {
			a.mu.Unlock()
			return
		}
		a.seen[p.ID] = struct{}{}
	}
	a.mu.Unlock()

	id := a.store.AddNotification(p)

	if a.opts.Bus != nil {
		a.opts.Bus.PublishNotificationAdded(eventbus.NotificationAddedPayload{
			ID:       id,
			SourceID: p.ID,
			Type:     notify.ParseType(p.Type),
			Mode:     mode,
		})
	}
}

// SetOnline records reachability. Push retries only run while online.
func (a *Adapter) SetOnline(online bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.online = online
	if !online && a.retry != nil {
		a.retry.Stop()
		a.retry = nil
	}
	a.scheduleRetryLocked()
}

// Stop closes the channel and cancels polling and retries. It is safe to call
// from any state and more than once.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if a.state == transport.StateClosed {
		a.mu.Unlock()
		return
	}

	active, pending, draining := a.active, a.pending, a.draining
	a.active, a.pending, a.draining = nil, nil, nil
	if a.retry != nil {
		a.retry.Stop()
		a.retry = nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.setStateLocked(transport.StateClosed, nil)
	a.mu.Unlock()

	for _, t := range []transport.Transport{active, pending, draining} {
		if t != nil {
			_ = t.Close()
		}
	}
}

func (a *Adapter) transportOptions(since time.Time) transport.Options {
	a.mu.Lock()
	token := a.cred.Token
	a.mu.Unlock()

	return transport.Options{
		BaseURL:      a.opts.BaseURL,
		WSPath:       a.opts.WSPath,
		Token:        token,
		PollInterval: a.opts.PollInterval,
		DialTimeout:  a.opts.DialTimeout,
		Since:        since,
		Logger:       a.log,
	}
}

func (a *Adapter) setStateLocked(next transport.State, cause error) {
	prev := a.state
	if prev == next {
		return
	}
	a.state = next

	var mode transport.Mode
	if a.active != nil {
		mode = a.active.Mode()
	}

	ev := a.log.Info()
	if a.ctx != nil {
		ev = ev.Ctx(logging.WithTransport(a.ctx, string(mode)))
	}
	ev.Str("from", prev.String()).Str("to", next.String()).Msg("transport state changed")

	if a.opts.Bus != nil {
		a.opts.Bus.PublishTransportStateChanged(eventbus.TransportStateChangedPayload{
			Old:  prev,
			New:  next,
			Mode: mode,
			Err:  cause,
		})
	}
}

func (a *Adapter) publishDropped(mode transport.Mode, reason string, size int) {
	if a.opts.Bus == nil {
		return
	}
	a.opts.Bus.PublishPayloadDropped(eventbus.PayloadDroppedPayload{
		Mode:   mode,
		Reason: reason,
		Size:   size,
	})
}
