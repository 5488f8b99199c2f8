package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// storeChangedMsg tells the model to re-read the store snapshot.
type storeChangedMsg struct{}

// ChangeSignal coalesces store publications into at most one pending wake-up
// for the Bubble Tea loop. Store subscribers run on arbitrary goroutines, so
// they only poke the signal; the model reads the snapshot itself.
type ChangeSignal struct {
	ch        chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewChangeSignal returns an armed signal.
func NewChangeSignal() *ChangeSignal {
	return &ChangeSignal{
		ch:   make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Notify records a pending change without blocking.
func (s *ChangeSignal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Close releases any Wait command still blocked.
func (s *ChangeSignal) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Wait returns a command that blocks until the next change. It yields nil
// once the signal is closed.
func (s *ChangeSignal) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-s.ch:
			return storeChangedMsg{}
		case <-s.done:
			return nil
		}
	}
}
