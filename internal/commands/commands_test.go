package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/colonyops/herald/internal/auth"
	"github.com/colonyops/herald/internal/core/config"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func testFlags(t *testing.T) *Flags {
	t.Helper()
	dir := t.TempDir()
	cfg, err := config.Load("", dir)
	require.NoError(t, err)
	return &Flags{DataDir: dir, Config: cfg}
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Empty(t, firstNonEmpty("", ""))
}

func TestWriteToken_creates_private_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	require.NoError(t, writeToken(path, "abc"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abc\n", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err := auth.LoadToken("", path)
	require.NoError(t, err)
	assert.Equal(t, "abc", token)
}

func TestSendCmd_publish(t *testing.T) {
	var got server.PublishRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, server.EventsPath, r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(server.PublishResponse{
			Event:     got.Payload,
			Recipient: "*",
			Delivered: 2,
		})
	}))
	t.Cleanup(srv.Close)

	flags := testFlags(t)
	flags.Config.Server.URL = srv.URL + "/"
	cmd := NewSendCmd(flags)
	cmd.client = srv.Client()

	resp, err := cmd.publish(context.Background(), "tok", server.PublishRequest{
		Payload: notify.Payload{ID: "evt-1", Message: "Table booked", Type: string(notify.TypeBooking)},
	})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", got.Payload.ID)
	assert.Equal(t, "Table booked", got.Payload.Message)
	assert.Empty(t, got.To)
	assert.Equal(t, 2, resp.Delivered)
	assert.Equal(t, "*", resp.Recipient)
}

func TestSendCmd_publish_reports_server_error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"duplicate event id"}`))
	}))
	t.Cleanup(srv.Close)

	flags := testFlags(t)
	flags.Config.Server.URL = srv.URL
	cmd := NewSendCmd(flags)
	cmd.timeout = time.Second

	_, err := cmd.publish(context.Background(), "tok", server.PublishRequest{
		Payload: notify.Payload{ID: "evt-1", Message: "hi"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate event id")
	assert.Contains(t, err.Error(), "409")
}

func TestSendCmd_file_and_json_output(t *testing.T) {
	var got server.PublishRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(server.PublishResponse{Event: got.Payload, Recipient: got.To, Delivered: 1})
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "event.json")
	body := `{"to":"u-1","payload":{"id":"evt-9","message":"Refund issued","type":"payment","order":"A-17"}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	flags := testFlags(t)
	flags.Config.Server.URL = srv.URL
	flags.Token = "tok"

	var out bytes.Buffer
	root := &cli.Command{Name: "herald", Writer: &out, ErrWriter: io.Discard}
	root = NewSendCmd(flags).Register(root)

	require.NoError(t, root.Run(context.Background(), []string{"herald", "send", "--file", path, "--json"}))

	assert.Equal(t, "u-1", got.To)
	assert.Equal(t, "evt-9", got.Payload.ID)
	assert.Equal(t, "A-17", got.Payload.Extra["order"])

	var resp server.PublishResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "u-1", resp.Recipient)
	assert.Equal(t, 1, resp.Delivered)
}

func TestSendCmd_rejects_unknown_type(t *testing.T) {
	flags := testFlags(t)
	flags.Token = "tok"

	root := &cli.Command{Name: "herald", Writer: io.Discard, ErrWriter: io.Discard}
	root = NewSendCmd(flags).Register(root)

	err := root.Run(context.Background(), []string{"herald", "send", "-t", "carrier-pigeon", "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")
}

func TestConfigValidateCmd_validate(t *testing.T) {
	flags := testFlags(t)
	cmd := NewConfigValidateCmd(flags)

	result := cmd.validate()
	assert.True(t, result.Valid)
	assert.Empty(t, result.Errors)

	flags.Config.Sound.Command = "definitely-not-a-real-binary-herald"
	result = cmd.validate()
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, strings.Join(result.Errors, "\n"), "sound.command")
}

func TestValidateMessage(t *testing.T) {
	assert.Error(t, validateMessage("   "))
	assert.NoError(t, validateMessage("hi"))
}

func TestTypeList(t *testing.T) {
	assert.Contains(t, typeList(), "booking")
	assert.Contains(t, typeList(), "info")
}
