package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pollRecorder struct {
	mu      sync.Mutex
	queries []string
	auth    []string
}

func (r *pollRecorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, req.URL.Query().Get("since"))
	r.auth = append(r.auth, req.Header.Get("Authorization"))
}

func (r *pollRecorder) snapshot() ([]string, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...), append([]string(nil), r.auth...)
}

func TestPoll_Fetch_forwards_items_and_advances_cutoff(t *testing.T) {
	rec := &pollRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, NotificationsPath, r.URL.Path)
		rec.record(r)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"a","message":"one","created_at":"2026-01-01T10:00:00Z"},
			{"id":"b","message":"two","created_at":"2026-01-01T11:00:00Z"}
		]`))
	}))
	defer srv.Close()

	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	p := NewPoll(Options{BaseURL: srv.URL, Token: "tok", Since: start})

	var got []string
	p.OnMessage(func(b []byte) { got = append(got, string(b)) })

	require.NoError(t, p.Fetch(context.Background()))

	require.Len(t, got, 2)
	assert.Contains(t, got[0], `"id":"a"`)
	assert.Equal(t, time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC), p.Since())

	queries, auth := rec.snapshot()
	assert.Equal(t, []string{"2026-01-01T09:00:00Z"}, queries)
	assert.Equal(t, []string{"Bearer tok"}, auth)
}

func TestPoll_Fetch_non_ok_status(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPoll(Options{BaseURL: srv.URL})
	err := p.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestPoll_loop_keeps_going_after_failures(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`[{"id":"x","message":"after failure"}]`))
	}))
	defer srv.Close()

	p := NewPoll(Options{BaseURL: srv.URL, PollInterval: 10 * time.Millisecond})
	got := make(chan string, 16)
	p.OnMessage(func(b []byte) { got <- string(b) })

	errored := false
	p.OnError(func(error) { errored = true })

	require.NoError(t, p.Connect(context.Background()))
	defer p.Close()

	select {
	case msg := <-got:
		assert.Contains(t, msg, "after failure")
	case <-time.After(2 * time.Second):
		t.Fatal("poll loop did not recover")
	}
	assert.False(t, errored, "poll failures are logged, not reported")
}

func TestPoll_close_stops_loop(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	p := NewPoll(Options{BaseURL: srv.URL, PollInterval: 5 * time.Millisecond})
	require.NoError(t, p.Connect(context.Background()))
	time.Sleep(30 * time.Millisecond)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	after := calls
	mu.Unlock()
	time.Sleep(40 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, after, calls)
	assert.ErrorIs(t, p.Connect(context.Background()), ErrClosed)
}

func TestNew_factory(t *testing.T) {
	tr, err := New(ModePush, Options{BaseURL: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, ModePush, tr.Mode())

	tr, err = New(ModePoll, Options{BaseURL: "http://x"})
	require.NoError(t, err)
	assert.Equal(t, ModePoll, tr.Mode())

	_, err = New("carrier-pigeon", Options{})
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" PUSH ")
	require.NoError(t, err)
	assert.Equal(t, ModePush, m)

	_, err = ParseMode("sse")
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "fallback", StateFallback.String())
	assert.Equal(t, "closed", StateClosed.String())
}
