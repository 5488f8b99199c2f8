// Package sound plays the short alert cue that accompanies new notifications.
// Playback is fire-and-forget: callers gate on preferences and connectivity,
// and every failure is swallowed after being logged.
//
// A sound command may be a template over the Cue, for example
// `paplay ~/sounds/{{ .Type }}.oga`.
package sound

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/colonyops/herald/internal/core/logging"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/pkg/executil"
	"github.com/colonyops/herald/pkg/tmpl"
	"golang.org/x/term"
)

// ErrNotTerminal is returned by Bell when its output is not a terminal.
var ErrNotTerminal = errors.New("bell output is not a terminal")

// DefaultTimeout bounds a single Command playback.
const DefaultTimeout = 5 * time.Second

// Cue describes the notification a sound is played for.
type Cue struct {
	Type    notify.Type
	Message string
}

// Player plays an alert cue.
type Player interface {
	Play(ctx context.Context, cue Cue) error
}

// New returns a Command player when cmd is set, otherwise a terminal Bell on
// stderr.
func New(cmd string) Player {
	if cmd != "" {
		return NewCommand(executil.Shell{}, cmd, DefaultTimeout)
	}
	return NewBell(os.Stderr)
}

// Nop never makes a sound.
type Nop struct{}

func (Nop) Play(context.Context, Cue) error { return nil }

// Bell rings the terminal bell.
type Bell struct {
	out    io.Writer
	isTerm bool
}

// NewBell returns a Bell writing to f. Output that is not a terminal is
// refused so the BEL byte never lands in a redirected file.
func NewBell(f *os.File) *Bell {
	return &Bell{out: f, isTerm: term.IsTerminal(int(f.Fd()))}
}

func (b *Bell) Play(context.Context, Cue) error {
	if !b.isTerm {
		return ErrNotTerminal
	}
	_, err := io.WriteString(b.out, "\a")
	return err
}

// Command plays the cue by running a shell command (e.g. `paplay ding.oga`)
// on its own goroutine. Overlapping plays are skipped.
type Command struct {
	runner  executil.Runner
	cmd     string
	timeout time.Duration
	busy    atomic.Bool
}

// NewCommand returns a Command player. A non-positive timeout uses
// DefaultTimeout.
func NewCommand(runner executil.Runner, cmd string, timeout time.Duration) *Command {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Command{runner: runner, cmd: cmd, timeout: timeout}
}

// Play starts the command and returns immediately. A command template that
// fails to render is returned as an error and nothing runs.
func (c *Command) Play(ctx context.Context, cue Cue) error {
	cmd := c.cmd
	if tmpl.IsTemplate(cmd) {
		rendered, err := tmpl.Render(cmd, cue)
		if err != nil {
			return fmt.Errorf("render sound command: %w", err)
		}
		cmd = rendered
	}

	if !c.busy.CompareAndSwap(false, true) {
		return nil
	}

	go func() {
		defer c.busy.Store(false)

		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		if err := c.runner.RunSh(runCtx, cmd); err != nil {
			log := logging.Component("sound")
			log.Debug().Err(err).Str("command", cmd).Msg("sound command failed")
		}
	}()

	return nil
}
