package sound

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/pkg/executil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBell_refuses_non_terminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "bell")
	require.NoError(t, err)
	defer f.Close()

	err = NewBell(f).Play(context.Background(), Cue{})
	assert.ErrorIs(t, err, ErrNotTerminal)
}

func TestBell_writes_bel(t *testing.T) {
	var buf bytes.Buffer
	b := &Bell{out: &buf, isTerm: true}

	require.NoError(t, b.Play(context.Background(), Cue{}))
	assert.Equal(t, "\a", buf.String())
}

func TestCommand_runs_in_background(t *testing.T) {
	rec := &executil.Recorder{Ran: make(chan string, 1)}
	c := NewCommand(rec, "paplay ding.oga", time.Second)

	require.NoError(t, c.Play(context.Background(), Cue{}))

	select {
	case cmd := <-rec.Ran:
		assert.Equal(t, "paplay ding.oga", cmd)
	case <-time.After(time.Second):
		t.Fatal("command was not run")
	}
}

func TestCommand_renders_cue_template(t *testing.T) {
	rec := &executil.Recorder{Ran: make(chan string, 1)}
	c := NewCommand(rec, "paplay ~/sounds/{{ .Type }}.oga # {{ .Message | shq }}", time.Second)

	require.NoError(t, c.Play(context.Background(), Cue{Type: notify.TypeBooking, Message: "it's here"}))

	select {
	case cmd := <-rec.Ran:
		assert.Equal(t, `paplay ~/sounds/booking.oga # 'it'\''s here'`, cmd)
	case <-time.After(time.Second):
		t.Fatal("command was not run")
	}
}

func TestCommand_bad_template_runs_nothing(t *testing.T) {
	rec := &executil.Recorder{}
	c := NewCommand(rec, "paplay {{ .Volume }}", time.Second)

	require.Error(t, c.Play(context.Background(), Cue{Type: notify.TypeInfo}))
	assert.Empty(t, rec.Commands())
}

func TestCommand_failure_is_swallowed(t *testing.T) {
	rec := &executil.Recorder{Err: errors.New("no device"), Ran: make(chan string, 1)}
	c := NewCommand(rec, "false", time.Second)

	assert.NoError(t, c.Play(context.Background(), Cue{}))
	<-rec.Ran
}

func TestNew_selects_player(t *testing.T) {
	assert.IsType(t, &Command{}, New("true"))
	assert.IsType(t, &Bell{}, New(""))
	assert.NoError(t, Nop{}.Play(context.Background(), Cue{}))
}
