package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 5 * time.Second
)

// Push receives payloads over a websocket. Each text or binary frame is one
// payload.
type Push struct {
	callbacks
	opts   Options
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	closed    bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewPush returns an unconnected push transport.
func NewPush(opts Options) *Push {
	opts = opts.withDefaults()
	return &Push{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.DialTimeout,
		},
		done: make(chan struct{}),
	}
}

func (p *Push) Mode() Mode { return ModePush }

// Connect dials the websocket and starts the read loop. A failed dial is
// returned and does not go through OnError.
func (p *Push) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if p.conn != nil {
		p.mu.Unlock()
		return errors.New("push transport already connected")
	}
	p.mu.Unlock()

	target, err := WebsocketURL(p.opts.BaseURL, p.opts.WSPath)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", bearer(p.opts.Token))

	dialCtx, cancel := context.WithTimeout(ctx, p.opts.DialTimeout)
	defer cancel()

	conn, resp, err := p.dialer.DialContext(dialCtx, target, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s: %w", target, resp.Status, err)
		}
		return fmt.Errorf("dial %s: %w", target, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		return ErrClosed
	}
	p.conn = conn
	p.mu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	p.opts.Logger.Debug().Str("url", target).Msg("push channel open")

	go p.readLoop(conn)
	go p.pingLoop(conn)
	return nil
}

func (p *Push) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if p.isClosed() {
				return
			}
			p.emitError(fmt.Errorf("push channel: %w", err))
			return
		}
		p.emitMessage(data)
	}
}

func (p *Push) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				// the read loop reports the failure
				return
			}
		}
	}
}

func (p *Push) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close sends a close frame and tears down the connection. Safe to call more
// than once and before Connect.
func (p *Push) Close() error {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		conn := p.conn
		p.mu.Unlock()

		close(p.done)

		if conn != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			_ = conn.Close()
		}
	})
	return nil
}

// WebsocketURL converts an http(s) base URL to ws(s) and joins path.
func WebsocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(path, "/")
	return u.String(), nil
}
