package herald

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/colonyops/herald/internal/auth"
	"github.com/colonyops/herald/internal/connectivity"
	"github.com/colonyops/herald/internal/core/config"
	"github.com/colonyops/herald/internal/sound"
	"github.com/colonyops/herald/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("", t.TempDir())
	require.NoError(t, err)
	return cfg
}

func TestNewApp_applies_config(t *testing.T) {
	cfg := testConfig(t)
	cfg.Transport.Mode = config.ModePoll
	off := false
	cfg.Sound.Enabled = &off
	cfg.Connectivity.Disabled = true

	app, err := NewApp(cfg, Deps{Player: sound.Nop{}})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	assert.Nil(t, app.Monitor)
	assert.False(t, app.Store.SoundEnabled())
	assert.Equal(t, transport.StateDisconnected, app.Realtime.State())
}

func TestApp_Start_without_credential_does_not_connect(t *testing.T) {
	cfg := testConfig(t)
	cfg.Connectivity.Disabled = true

	dialed := false
	app, err := NewApp(cfg, Deps{
		Player: sound.Nop{},
		Factory: func(transport.Mode, transport.Options) (transport.Transport, error) {
			dialed = true
			return nil, errors.New("unexpected dial")
		},
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	err = app.Start(context.Background(), "")
	require.ErrorIs(t, err, auth.ErrNoCredential)
	assert.False(t, dialed)
	assert.Empty(t, app.Store.Notifications())
}

func TestApp_connectivity_reaches_store(t *testing.T) {
	cfg := testConfig(t)
	cfg.Connectivity.Interval = time.Hour

	app, err := NewApp(cfg, Deps{
		Player: sound.Nop{},
		Prober: connectivity.ProberFunc(func(context.Context) error {
			return errors.New("unreachable")
		}),
	})
	require.NoError(t, err)
	t.Cleanup(app.Close)

	_ = app.Start(context.Background(), "")

	assert.Eventually(t, func() bool { return !app.Store.Online() }, 2*time.Second, 10*time.Millisecond)
}
