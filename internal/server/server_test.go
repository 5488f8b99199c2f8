package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/herald/internal/auth"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/data/db"
	"github.com/colonyops/herald/internal/data/stores"
	"github.com/colonyops/herald/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "events.db"), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	s, err := New(Options{
		Secret: testSecret,
		Log:    stores.NewEventStore(database),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.Issue(testSecret, userID, time.Hour, time.Now())
	require.NoError(t, err)
	return token
}

func publish(t *testing.T, ts *httptest.Server, token string, req PublishRequest) *http.Response {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq, err := http.NewRequest(http.MethodPost, ts.URL+EventsPath, bytes.NewReader(body))
	require.NoError(t, err)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(httpReq)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestNew_requires_secret_and_log(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)

	_, err = New(Options{Secret: "s"})
	require.Error(t, err)
}

func TestServer_health_is_public(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + HealthPath)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_rejects_missing_or_bad_token(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + transport.NotificationsPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged, err := auth.Issue("other-secret", "user-1", time.Hour, time.Now())
	require.NoError(t, err)
	resp = publish(t, ts, forged, PublishRequest{Payload: notify.Payload{Message: "x"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_publish_validation(t *testing.T) {
	_, ts := newTestServer(t)
	token := tokenFor(t, "admin")

	resp := publish(t, ts, token, PublishRequest{Payload: notify.Payload{Type: "booking"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "message is required")

	resp = publish(t, ts, token, PublishRequest{Payload: notify.Payload{ID: "evt-1", Message: "a"}})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = publish(t, ts, token, PublishRequest{Payload: notify.Payload{ID: "evt-1", Message: "b"}})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestServer_poll_returns_events_for_caller(t *testing.T) {
	_, ts := newTestServer(t)
	admin := tokenFor(t, "admin")

	resp := publish(t, ts, admin, PublishRequest{To: "user-1", Payload: notify.Payload{Message: "Booking confirmed", Type: "booking"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = publish(t, ts, admin, PublishRequest{To: "user-2", Payload: notify.Payload{Message: "not yours"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = publish(t, ts, admin, PublishRequest{Payload: notify.Payload{Message: "Maintenance tonight", Type: "admin"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	poll := transport.NewPoll(transport.Options{BaseURL: ts.URL, Token: tokenFor(t, "user-1")})
	t.Cleanup(func() { _ = poll.Close() })

	var (
		mu       sync.Mutex
		messages []string
	)
	poll.OnMessage(func(data []byte) {
		p, err := notify.DecodePayload(data)
		assert.NoError(t, err)
		mu.Lock()
		messages = append(messages, p.Message)
		mu.Unlock()
	})

	require.NoError(t, poll.Fetch(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"Booking confirmed", "Maintenance tonight"}, messages)
	assert.False(t, poll.Since().IsZero(), "cutoff advances to newest created_at")
}

func TestServer_poll_rejects_bad_since(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, ts.URL+transport.NotificationsPath+"?since=yesterday", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "user-1"))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_push_delivers_published_events(t *testing.T) {
	s, ts := newTestServer(t)

	push := transport.NewPush(transport.Options{BaseURL: ts.URL, Token: tokenFor(t, "user-1")})
	t.Cleanup(func() { _ = push.Close() })

	received := make(chan notify.Payload, 4)
	push.OnMessage(func(data []byte) {
		p, err := notify.DecodePayload(data)
		if err == nil {
			received <- p
		}
	})

	require.NoError(t, push.Connect(context.Background()))
	require.Eventually(t, func() bool { return s.Hub().SubscriberCount("user-1") == 1 }, time.Second, 10*time.Millisecond)

	resp := publish(t, ts, tokenFor(t, "admin"), PublishRequest{
		To:      "user-1",
		Payload: notify.Payload{ID: "evt-42", Message: "Payment verified", Type: "payment"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out PublishResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Delivered)
	assert.Equal(t, "user-1", out.Recipient)

	select {
	case p := <-received:
		assert.Equal(t, "evt-42", p.ID)
		assert.Equal(t, "Payment verified", p.Message)
		assert.Equal(t, "payment", p.Type)
		assert.False(t, p.SentAt.IsZero())
	case <-time.After(2 * time.Second):
		t.Fatal("push frame not received")
	}

	require.NoError(t, push.Close())
	require.Eventually(t, func() bool { return s.Hub().SubscriberCount("user-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_Serve_shuts_down_on_cancel(t *testing.T) {
	database, err := db.Open(filepath.Join(t.TempDir(), "events.db"), db.DefaultOpenOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	s, err := New(Options{Secret: testSecret, Log: stores.NewEventStore(database)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
