package profiler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T) *Server {
	t.Helper()
	s := New(0)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestServer_Shutdown_before_start(t *testing.T) {
	s := New(0)
	assert.Empty(t, s.Addr())
	assert.NoError(t, s.Shutdown(context.Background()))
}

func TestServer_pprof_endpoints(t *testing.T) {
	s := startServer(t)
	require.NotEmpty(t, s.Addr())

	for _, endpoint := range []string{
		"/debug/pprof/",
		"/debug/pprof/cmdline",
		"/debug/pprof/symbol",
		"/debug/pprof/goroutine?debug=1",
	} {
		t.Run(endpoint, func(t *testing.T) {
			resp, err := http.Get("http://" + s.Addr() + endpoint)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		})
	}
}
