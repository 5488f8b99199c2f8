package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap holds the panel key bindings. It implements help.KeyMap.
type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	Top         key.Binding
	Bottom      key.Binding
	MarkRead    key.Binding
	MarkAllRead key.Binding
	Delete      key.Binding
	ClearAll    key.Binding
	Window      key.Binding
	UnreadOnly  key.Binding
	Sound       key.Binding
	Dismiss     key.Binding
	DismissAll  key.Binding
	ScrollUp    key.Binding
	ScrollDown  key.Binding
	Help        key.Binding
	Quit        key.Binding
}

// DefaultKeyMap returns the default bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Top:         key.NewBinding(key.WithKeys("home", "g"), key.WithHelp("g", "top")),
		Bottom:      key.NewBinding(key.WithKeys("end", "G"), key.WithHelp("G", "bottom")),
		MarkRead:    key.NewBinding(key.WithKeys("r", "enter"), key.WithHelp("r", "mark read")),
		MarkAllRead: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "mark all read")),
		Delete:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		ClearAll:    key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "clear all")),
		Window:      key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "window")),
		UnreadOnly:  key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "unread only")),
		Sound:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sound")),
		Dismiss:     key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss toast")),
		DismissAll:  key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "dismiss all toasts")),
		ScrollUp:    key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "scroll detail")),
		ScrollDown:  key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "scroll detail")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.MarkRead, k.Delete, k.Window, k.UnreadOnly, k.Help, k.Quit}
}

// FullHelp returns the bindings shown in the expanded help.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Top, k.Bottom, k.ScrollUp, k.ScrollDown},
		{k.MarkRead, k.MarkAllRead, k.Delete, k.ClearAll},
		{k.Window, k.UnreadOnly, k.Sound, k.Dismiss, k.DismissAll},
		{k.Help, k.Quit},
	}
}
