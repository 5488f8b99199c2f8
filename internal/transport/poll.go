package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const maxPollBody = 4 << 20

// Poll fetches GET {base}/api/notifications?since=<cutoff> on an interval and
// forwards each returned item as a raw payload. The cutoff advances to the
// newest created_at seen. The server treats since as inclusive, so items at
// the cutoff are delivered again and must be deduplicated by the consumer.
// Failed fetches are logged and retried on the next tick.
type Poll struct {
	callbacks
	opts Options

	mu      sync.Mutex
	since   time.Time
	started bool
	closed  bool
	cancel  context.CancelFunc
}

// NewPoll returns a poller starting at opts.Since.
func NewPoll(opts Options) *Poll {
	opts = opts.withDefaults()
	return &Poll{opts: opts, since: opts.Since}
}

func (p *Poll) Mode() Mode { return ModePoll }

// Connect starts polling. The first fetch runs immediately. The loop outlives
// ctx's cancellation and stops only on Close.
func (p *Poll) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.started {
		return errors.New("poll transport already started")
	}
	p.started = true

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel

	go p.loop(loopCtx)
	return nil
}

func (p *Poll) loop(ctx context.Context) {
	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poll) tick(ctx context.Context) {
	if err := p.Fetch(ctx); err != nil && ctx.Err() == nil {
		p.opts.Logger.Warn().Err(err).Msg("poll failed")
	}
}

// Fetch performs one poll round trip and forwards the results.
func (p *Poll) Fetch(ctx context.Context) error {
	since := p.Since()

	target, err := pollURL(p.opts.BaseURL, since)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build poll request: %w", err)
	}
	req.Header.Set("Authorization", bearer(p.opts.Token))
	req.Header.Set("Accept", "application/json")

	resp, err := p.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("poll %s: %w", target, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("poll %s: unexpected status %s", target, resp.Status)
	}

	var items []json.RawMessage
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPollBody)).Decode(&items); err != nil {
		return fmt.Errorf("decode poll response: %w", err)
	}

	newest := since
	for _, item := range items {
		if p.isClosed() {
			return nil
		}
		if ts, ok := createdAt(item); ok && ts.After(newest) {
			newest = ts
		}
		p.emitMessage(item)
	}

	p.mu.Lock()
	if newest.After(p.since) {
		p.since = newest
	}
	p.mu.Unlock()

	return nil
}

// Since returns the current cutoff.
func (p *Poll) Since() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.since
}

func (p *Poll) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Close stops the polling loop. Safe to call more than once and before
// Connect.
func (p *Poll) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func pollURL(base string, since time.Time) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + NotificationsPath

	if !since.IsZero() {
		q := u.Query()
		q.Set("since", since.UTC().Format(time.RFC3339Nano))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// createdAt peeks at an item's created_at without decoding the rest.
func createdAt(item json.RawMessage) (time.Time, bool) {
	var head struct {
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(item, &head); err != nil || head.CreatedAt == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, head.CreatedAt)
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}
