// Package transport delivers raw notification payloads from the events
// server. Two strategies satisfy the same Transport interface: Push holds a
// websocket open, Poll fetches the polling endpoint on an interval.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("transport closed")

const (
	DefaultPollInterval = 30 * time.Second
	DefaultDialTimeout  = 10 * time.Second
	DefaultWSPath       = "/ws"
	NotificationsPath   = "/api/notifications"
)

// Mode selects a transport strategy.
type Mode string

const (
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

// ParseMode accepts "push" and "poll" case-insensitively.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModePush, ModePoll:
		return m, nil
	default:
		return "", fmt.Errorf("unknown transport mode %q", s)
	}
}

// State is the delivery state of a realtime session.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateFallback
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateFallback:
		return "fallback"
	case StateClosed:
		return "closed"
	default:
		return "disconnected"
	}
}

// Transport is a source of raw payloads. Callbacks must be registered before
// Connect. OnError fires at most once per transport; after it fires the
// transport delivers nothing more. Close is idempotent.
type Transport interface {
	Connect(ctx context.Context) error
	OnMessage(fn func([]byte))
	OnError(fn func(error))
	Close() error
	Mode() Mode
}

// Options configure both strategies.
type Options struct {
	BaseURL      string // http(s) base of the events server
	WSPath       string
	Token        string // bearer credential
	PollInterval time.Duration
	DialTimeout  time.Duration
	HTTPClient   *http.Client
	Since        time.Time // poll cutoff for the first request
	Logger       zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.WSPath == "" {
		o.WSPath = DefaultWSPath
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.DialTimeout}
	}
	return o
}

// Factory builds a transport for a mode.
type Factory func(mode Mode, opts Options) (Transport, error)

// New is the default Factory.
func New(mode Mode, opts Options) (Transport, error) {
	switch mode {
	case ModePush:
		return NewPush(opts), nil
	case ModePoll:
		return NewPoll(opts), nil
	default:
		return nil, fmt.Errorf("unknown transport mode %q", mode)
	}
}

// callbacks holds the registered handlers and guarantees a single error
// report.
type callbacks struct {
	mu        sync.RWMutex
	onMessage func([]byte)
	onError   func(error)
	errOnce   sync.Once
}

func (c *callbacks) OnMessage(fn func([]byte)) {
	c.mu.Lock()
	c.onMessage = fn
	c.mu.Unlock()
}

func (c *callbacks) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

func (c *callbacks) emitMessage(data []byte) {
	c.mu.RLock()
	fn := c.onMessage
	c.mu.RUnlock()
	if fn != nil {
		fn(data)
	}
}

func (c *callbacks) emitError(err error) {
	c.errOnce.Do(func() {
		c.mu.RLock()
		fn := c.onError
		c.mu.RUnlock()
		if fn != nil {
			fn(err)
		}
	})
}

func bearer(token string) string {
	return "Bearer " + token
}
