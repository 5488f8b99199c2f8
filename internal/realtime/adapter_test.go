package realtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/herald/internal/auth"
	"github.com/colonyops/herald/internal/core/eventbus"
	"github.com/colonyops/herald/internal/core/eventbus/testbus"
	"github.com/colonyops/herald/internal/inbox"
	"github.com/colonyops/herald/internal/transport"
	"github.com/colonyops/herald/pkg/clock"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

type fakeTransport struct {
	mode       transport.Mode
	opts       transport.Options
	connectErr error

	mu        sync.Mutex
	onMessage func([]byte)
	onError   func(error)
	connects  int
	closes    int
	fetches   int
	backlog   []string // delivered by the next Fetch
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	return f.connectErr
}

func (f *fakeTransport) OnMessage(fn func([]byte)) {
	f.mu.Lock()
	f.onMessage = fn
	f.mu.Unlock()
}

func (f *fakeTransport) OnError(fn func(error)) {
	f.mu.Lock()
	f.onError = fn
	f.mu.Unlock()
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Mode() transport.Mode { return f.mode }

func (f *fakeTransport) Fetch(context.Context) error {
	f.mu.Lock()
	f.fetches++
	backlog := f.backlog
	f.backlog = nil
	f.mu.Unlock()

	for _, msg := range backlog {
		f.deliver(msg)
	}
	return nil
}

func (f *fakeTransport) queue(msg string) {
	f.mu.Lock()
	f.backlog = append(f.backlog, msg)
	f.mu.Unlock()
}

func (f *fakeTransport) deliver(msg string) {
	f.mu.Lock()
	fn := f.onMessage
	f.mu.Unlock()
	fn([]byte(msg))
}

func (f *fakeTransport) fail(err error) {
	f.mu.Lock()
	fn := f.onError
	f.mu.Unlock()
	fn(err)
}

func (f *fakeTransport) closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes > 0
}

// fakeFactory hands out fakeTransports. pushErrs are consumed one per push
// transport created; once exhausted, pushes connect successfully.
type fakeFactory struct {
	mu       sync.Mutex
	pushErrs []error
	created  []*fakeTransport
}

func (ff *fakeFactory) build(mode transport.Mode, opts transport.Options) (transport.Transport, error) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	t := &fakeTransport{mode: mode, opts: opts}
	if mode == transport.ModePush && len(ff.pushErrs) > 0 {
		t.connectErr = ff.pushErrs[0]
		ff.pushErrs = ff.pushErrs[1:]
	}
	ff.created = append(ff.created, t)
	return t, nil
}

func (ff *fakeFactory) all(mode transport.Mode) []*fakeTransport {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	var out []*fakeTransport
	for _, t := range ff.created {
		if t.mode == mode {
			out = append(out, t)
		}
	}
	return out
}

func (ff *fakeFactory) last(t *testing.T, mode transport.Mode) *fakeTransport {
	t.Helper()
	all := ff.all(mode)
	require.NotEmpty(t, all, "no %s transport created", mode)
	return all[len(all)-1]
}

type fixture struct {
	store   *inbox.Store
	clock   *clock.Fake
	factory *fakeFactory
	adapter *Adapter
	bus     *testbus.Bus
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()

	clk := clock.NewFake(epoch)
	storeOpts := inbox.NewOptions()
	storeOpts.Clock = clk
	store := inbox.New(storeOpts)
	t.Cleanup(store.Close)

	ff := &fakeFactory{}
	tb := testbus.New(t)
	nop := zerolog.Nop()

	opts := Options{
		Mode:    transport.ModePush,
		BaseURL: "http://events.test",
		Factory: ff.build,
		Clock:   clk,
		Bus:     tb.EventBus,
		Logger:  &nop,
	}
	if mutate != nil {
		mutate(&opts)
	}

	a := New(store, opts)
	t.Cleanup(a.Stop)

	return &fixture{store: store, clock: clk, factory: ff, adapter: a, bus: tb}
}

func TestAdapter_without_credential_never_connects(t *testing.T) {
	expired, err := auth.Issue("s", "u", time.Minute, epoch.Add(-time.Hour))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", auth.ErrNoCredential},
		{"blank", "   ", auth.ErrNoCredential},
		{"expired", expired, auth.ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)

			err := f.adapter.Start(context.Background(), tt.token)
			require.ErrorIs(t, err, tt.want)

			assert.Empty(t, f.factory.all(transport.ModePush))
			assert.Empty(t, f.factory.all(transport.ModePoll))
			assert.Equal(t, transport.StateDisconnected, f.adapter.State())
			assert.Empty(t, f.store.Notifications())
		})
	}
}

func TestAdapter_push_delivers_into_store(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))

	assert.Equal(t, transport.StateConnected, f.adapter.State())
	assert.Equal(t, transport.ModePush, f.adapter.Mode())

	push := f.factory.last(t, transport.ModePush)
	assert.Equal(t, "tok", push.opts.Token)

	push.deliver(`{"id":"evt-1","message":"Booking confirmed","type":"booking","guest":"Ada"}`)

	list := f.store.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, "Booking confirmed", list[0].Message)
	assert.Equal(t, "Ada", list[0].Extra["guest"])
	assert.Len(t, f.store.Toasts(), 1)

	f.bus.AssertPublished(t, eventbus.EventNotificationAdded)
}

func TestAdapter_malformed_payload_is_dropped(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	push := f.factory.last(t, transport.ModePush)

	push.deliver(`not json`)
	push.deliver(`{"message": 42}`)
	push.deliver(`{"message":"still alive"}`)

	list := f.store.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, "still alive", list[0].Message)
	assert.Equal(t, transport.StateConnected, f.adapter.State())

	f.bus.AssertPublished(t, eventbus.EventPayloadDropped)
}

func TestAdapter_push_error_falls_back_to_polling(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.PollInterval = 30 * time.Second })
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	push := f.factory.last(t, transport.ModePush)

	push.fail(errors.New("connection reset"))

	assert.Equal(t, transport.StateFallback, f.adapter.State())
	assert.True(t, push.closed())

	poll := f.factory.last(t, transport.ModePoll)
	assert.Equal(t, 1, poll.connects)
	assert.Equal(t, epoch.Add(-pollSkew), poll.opts.Since, "polling starts before session start")
	assert.Equal(t, 30*time.Second, poll.opts.PollInterval)
	assert.Equal(t, transport.ModePoll, f.adapter.Mode())

	f.bus.AssertPublished(t, eventbus.EventTransportStateChanged)
}

func TestAdapter_dial_failure_falls_back(t *testing.T) {
	f := newFixture(t, nil)
	f.factory.pushErrs = []error{errors.New("dial refused")}

	require.NoError(t, f.adapter.Start(context.Background(), "tok"))

	assert.Equal(t, transport.StateFallback, f.adapter.State())
	assert.True(t, f.factory.last(t, transport.ModePush).closed())
	assert.Len(t, f.factory.all(transport.ModePoll), 1)
}

func TestAdapter_poll_mode_skips_push(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Mode = transport.ModePoll })
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))

	assert.Empty(t, f.factory.all(transport.ModePush))
	assert.Equal(t, transport.StateFallback, f.adapter.State())
}

func TestAdapter_dedupe_across_fallback(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	push := f.factory.last(t, transport.ModePush)

	push.deliver(`{"id":"evt-1","message":"one","created_at":"2026-06-01T08:00:01Z"}`)
	push.fail(errors.New("dropped"))

	poll := f.factory.last(t, transport.ModePoll)
	poll.deliver(`{"id":"evt-1","message":"one","created_at":"2026-06-01T08:00:01Z"}`)
	poll.deliver(`{"id":"evt-2","message":"two","created_at":"2026-06-01T08:00:02Z"}`)
	// the inclusive cutoff re-delivers the newest item on the next poll
	poll.deliver(`{"id":"evt-2","message":"two","created_at":"2026-06-01T08:00:02Z"}`)

	list := f.store.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, "two", list[0].Message)
	assert.Equal(t, "one", list[1].Message)
	assert.Equal(t, 2, f.store.UnreadCount())
}

func TestAdapter_dedupe_survives_local_delete(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Mode = transport.ModePoll })
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	poll := f.factory.last(t, transport.ModePoll)

	poll.deliver(`{"id":"evt-1","message":"one"}`)
	f.store.ClearAllNotifications()
	poll.deliver(`{"id":"evt-1","message":"one"}`)

	assert.Empty(t, f.store.Notifications())
	assert.Equal(t, 0, f.store.UnreadCount())
}

func TestAdapter_payloads_without_id_are_not_deduped(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	push := f.factory.last(t, transport.ModePush)

	push.deliver(`{"message":"ping"}`)
	push.deliver(`{"message":"ping"}`)

	assert.Len(t, f.store.Notifications(), 2)
}

func TestAdapter_stale_transport_is_ignored(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	push := f.factory.last(t, transport.ModePush)

	push.fail(errors.New("gone"))
	push.deliver(`{"id":"late","message":"late frame"}`)
	push.fail(errors.New("again"))

	assert.Empty(t, f.store.Notifications())
	assert.Len(t, f.factory.all(transport.ModePoll), 1)
}

func TestAdapter_Stop_is_idempotent(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	push := f.factory.last(t, transport.ModePush)

	f.adapter.Stop()
	f.adapter.Stop()

	assert.Equal(t, transport.StateClosed, f.adapter.State())
	assert.True(t, push.closed())

	push.deliver(`{"message":"after stop"}`)
	assert.Empty(t, f.store.Notifications())

	assert.ErrorIs(t, f.adapter.Start(context.Background(), "tok"), ErrStopped)
}

func TestAdapter_Stop_from_fallback_closes_poller(t *testing.T) {
	f := newFixture(t, nil)
	f.factory.pushErrs = []error{errors.New("dial refused")}
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))

	f.adapter.Stop()

	assert.True(t, f.factory.last(t, transport.ModePoll).closed())
}

func TestAdapter_Stop_before_Start(t *testing.T) {
	f := newFixture(t, nil)
	f.adapter.Stop()
	assert.Equal(t, transport.StateClosed, f.adapter.State())
	assert.Empty(t, f.factory.all(transport.ModePush))
}

func TestAdapter_Start_twice(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	assert.ErrorIs(t, f.adapter.Start(context.Background(), "tok"), ErrAlreadyStarted)
}

func TestAdapter_push_retry_restores_connection(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.PushRetry = time.Minute })
	f.factory.pushErrs = []error{errors.New("refused"), errors.New("still refused")}
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	require.Equal(t, transport.StateFallback, f.adapter.State())
	poll := f.factory.last(t, transport.ModePoll)

	f.clock.Advance(time.Minute) // second push also fails
	assert.Equal(t, transport.StateFallback, f.adapter.State())
	assert.Len(t, f.factory.all(transport.ModePush), 2)
	assert.False(t, poll.closed())

	f.clock.Advance(time.Minute)
	assert.Equal(t, transport.StateConnected, f.adapter.State())
	assert.Len(t, f.factory.all(transport.ModePush), 3)
	assert.True(t, poll.closed())

	// dedupe still holds across the switch back
	push := f.factory.last(t, transport.ModePush)
	push.deliver(`{"id":"a","message":"a"}`)
	push.deliver(`{"id":"a","message":"a"}`)
	assert.Len(t, f.store.Notifications(), 1)
}

func TestAdapter_push_retry_waits_while_offline(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.PushRetry = time.Minute })
	f.factory.pushErrs = []error{errors.New("refused")}
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))

	f.adapter.SetOnline(false)
	f.clock.Advance(5 * time.Minute)
	assert.Len(t, f.factory.all(transport.ModePush), 1)

	f.adapter.SetOnline(true)
	f.clock.Advance(time.Minute)
	assert.Len(t, f.factory.all(transport.ModePush), 2)
	assert.Equal(t, transport.StateConnected, f.adapter.State())
}

func TestAdapter_no_retry_by_default(t *testing.T) {
	f := newFixture(t, nil)
	f.factory.pushErrs = []error{errors.New("refused")}
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))

	f.clock.Advance(time.Hour)
	assert.Len(t, f.factory.all(transport.ModePush), 1)
	assert.Equal(t, 0, f.clock.Pending())
}

func TestAdapter_poll_cutoff_tolerates_clock_skew(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.Mode = transport.ModePoll })
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	poll := f.factory.last(t, transport.ModePoll)

	assert.True(t, poll.opts.Since.Before(epoch))

	// the server stamped this before the client thought the session began
	poll.deliver(`{"id":"early","message":"early","created_at":"2026-06-01T07:58:00Z"}`)
	assert.Len(t, f.store.Notifications(), 1)
}

func TestAdapter_push_retry_drains_poller(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.PushRetry = time.Minute })
	f.factory.pushErrs = []error{errors.New("refused")}
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	poll := f.factory.last(t, transport.ModePoll)

	poll.deliver(`{"id":"a","message":"a"}`)
	poll.queue(`{"id":"a","message":"a"}`)
	poll.queue(`{"id":"b","message":"b"}`)

	f.clock.Advance(time.Minute)
	require.Equal(t, transport.StateConnected, f.adapter.State())

	assert.Equal(t, 1, poll.fetches)
	assert.True(t, poll.closed())
	assert.Len(t, f.store.Notifications(), 2)

	// nothing from the retired poller is accepted once it is drained
	poll.deliver(`{"id":"c","message":"c"}`)
	assert.Len(t, f.store.Notifications(), 2)
}

func TestAdapter_push_retry_recovers_events_from_the_gap(t *testing.T) {
	var (
		mu     sync.Mutex
		wsOpen bool
		items  []string
		polls  int
	)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		open := wsOpen
		body := "[" + strings.Join(items, ",") + "]"
		mu.Unlock()

		switch r.URL.Path {
		case transport.DefaultWSPath:
			if !open {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			defer conn.Close()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		case transport.NotificationsPath:
			mu.Lock()
			polls++
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	f := newFixture(t, func(o *Options) {
		o.BaseURL = srv.URL
		o.Factory = transport.New
		o.PollInterval = time.Hour
		o.DialTimeout = time.Second
		o.PushRetry = time.Minute
	})
	require.NoError(t, f.adapter.Start(context.Background(), "tok"))
	require.Equal(t, transport.StateFallback, f.adapter.State())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return polls >= 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	items = append(items, `{"id":"gap-1","message":"published during fallback","created_at":"2026-06-01T08:00:30Z"}`)
	wsOpen = true
	mu.Unlock()

	f.clock.Advance(time.Minute)

	require.Equal(t, transport.StateConnected, f.adapter.State())
	assert.Equal(t, transport.ModePush, f.adapter.Mode())

	list := f.store.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, "published during fallback", list[0].Message)
}
