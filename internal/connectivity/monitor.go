// Package connectivity tracks whether the events server is reachable. It
// stands in for a platform online/offline signal: a periodic health probe
// whose transitions gate sound playback and push retries.
package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/colonyops/herald/internal/core/logging"
)

const (
	DefaultInterval = 15 * time.Second
	HealthPath      = "/healthz"
)

// Prober performs one reachability check.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// HTTPProber GETs the server health endpoint.
type HTTPProber struct {
	URL    string
	Client *http.Client
}

// NewHTTPProber probes base + /healthz.
func NewHTTPProber(base string, timeout time.Duration) (*HTTPProber, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + HealthPath

	return &HTTPProber{URL: u.String(), Client: &http.Client{Timeout: timeout}}, nil
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", p.URL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("probe %s: status %d", p.URL, resp.StatusCode)
	}
	return nil
}

// Monitor probes on an interval and reports transitions. It assumes the
// client is online until a probe fails.
type Monitor struct {
	prober   Prober
	interval time.Duration
	onChange func(online bool)

	mu      sync.Mutex
	online  bool
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// New returns a stopped monitor. onChange is called only when the state
// flips, on the probing goroutine.
func New(prober Prober, interval time.Duration, onChange func(online bool)) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		onChange: onChange,
		online:   true,
	}
}

// Online returns the last observed state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Start probes immediately and then on every interval until Stop.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.stopped || m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.Check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check(ctx)
			}
		}
	}()
}

// Check runs one probe and returns the resulting state.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.prober.Probe(ctx)
	if ctx.Err() != nil {
		return m.Online()
	}
	online := err == nil

	m.mu.Lock()
	changed := m.online != online
	m.online = online
	m.mu.Unlock()

	if changed {
		log := logging.Component("connectivity")
		log.Info().Err(err).Bool("online", online).Msg("connectivity changed")
		if m.onChange != nil {
			m.onChange(online)
		}
	}
	return online
}

// Stop ends probing and waits for the probe goroutine. Safe to call more
// than once and without Start.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}
