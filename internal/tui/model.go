// Package tui implements the herald terminal client: the notification panel,
// the toast stack, the confirm dialog and the status bar, all driven by
// snapshots of the notification store.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/core/styles"
	"github.com/colonyops/herald/internal/inbox"
	"github.com/colonyops/herald/internal/transport"
	"github.com/colonyops/herald/internal/tui/components"
	"github.com/rs/zerolog"
)

const (
	refreshInterval = 30 * time.Second
	scrollStep      = 5
)

// StatusSource reports the realtime delivery state for the status bar.
type StatusSource interface {
	State() transport.State
	Mode() transport.Mode
}

// Options configures the TUI.
type Options struct {
	Store       *inbox.Store
	Status      StatusSource // optional
	Signal      *ChangeSignal
	DisplayDays int
	Now         func() time.Time
	Logger      zerolog.Logger
}

type refreshTickMsg time.Time

// decisionMsg reports a settled confirmation started from the panel.
type decisionMsg struct {
	confirmed bool
	success   string
}

// Model is the Bubble Tea model for the notification client.
type Model struct {
	store  *inbox.Store
	status StatusSource
	signal *ChangeSignal
	now    func() time.Time
	log    zerolog.Logger

	keys     KeyMap
	help     help.Model
	panel    *PanelView
	toasts   *ToastView
	confirm  *components.ConfirmDialog
	snap     inbox.Snapshot
	width    int
	height   int
	quitting bool
}

// New builds the model and loads the current store snapshot.
func New(opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Signal == nil {
		opts.Signal = NewChangeSignal()
	}

	m := Model{
		store:   opts.Store,
		status:  opts.Status,
		signal:  opts.Signal,
		now:     opts.Now,
		log:     opts.Logger,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		panel:   NewPanelView(opts.DisplayDays, opts.Logger),
		toasts:  NewToastView(),
		confirm: components.NewConfirmDialog(opts.Store),
		width:   80,
		height:  24,
	}
	m.layout()
	m.sync()
	return m
}

// Init starts the change listener and the relative-time refresh.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.signal.Wait(), scheduleRefresh())
}

func scheduleRefresh() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshTickMsg(t)
	})
}

// sync copies the store snapshot into the views.
func (m *Model) sync() {
	m.snap = m.store.Snapshot()
	m.panel.SetNotifications(m.snap.Notifications, m.now())
	m.toasts.SetToasts(m.snap.Toasts)
	m.confirm.Sync(m.snap.Confirm)
}

func (m *Model) layout() {
	m.help.Width = m.width
	footer := lipgloss.Height(m.help.View(m.keys)) + 1
	m.panel.SetSize(m.width, max(m.height-footer, 1))
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case storeChangedMsg:
		m.sync()
		return m, m.signal.Wait()

	case refreshTickMsg:
		m.sync()
		return m, scheduleRefresh()

	case decisionMsg:
		if msg.confirmed && msg.success != "" {
			m.store.ShowToast(msg.success, notify.TypeSuccess)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		m.store.CloseConfirm()
		return m.quit()
	}

	if m.confirm.Active() {
		m.confirm.Update(msg)
		m.sync()
		return m, nil
	}

	if m.help.ShowAll {
		if key.Matches(msg, m.keys.Quit) {
			return m.quit()
		}
		m.help.ShowAll = false
		m.layout()
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = true
		m.layout()
	case key.Matches(msg, m.keys.Up):
		m.panel.Move(-1)
	case key.Matches(msg, m.keys.Down):
		m.panel.Move(1)
	case key.Matches(msg, m.keys.Top):
		m.panel.Top()
	case key.Matches(msg, m.keys.Bottom):
		m.panel.Bottom()
	case key.Matches(msg, m.keys.ScrollUp):
		m.panel.ScrollDetail(-scrollStep)
	case key.Matches(msg, m.keys.ScrollDown):
		m.panel.ScrollDetail(scrollStep)
	case key.Matches(msg, m.keys.Window):
		m.panel.CycleWindow()
	case key.Matches(msg, m.keys.UnreadOnly):
		m.panel.ToggleUnreadOnly()
	case key.Matches(msg, m.keys.MarkRead):
		if n, ok := m.panel.Selected(); ok {
			m.store.MarkAsRead(n.ID)
		}
	case key.Matches(msg, m.keys.MarkAllRead):
		m.store.MarkAllAsRead()
	case key.Matches(msg, m.keys.Delete):
		return m.confirmDelete()
	case key.Matches(msg, m.keys.ClearAll):
		return m.confirmClearAll()
	case key.Matches(msg, m.keys.Sound):
		if m.store.ToggleSound() {
			m.store.ShowToast("Sound on", notify.TypeInfo)
		} else {
			m.store.ShowToast("Sound off", notify.TypeInfo)
		}
	case key.Matches(msg, m.keys.Dismiss):
		if n := len(m.snap.Toasts); n > 0 {
			m.store.RemoveToast(m.snap.Toasts[n-1].ID)
		}
	case key.Matches(msg, m.keys.DismissAll):
		m.store.RemoveAllToasts()
	}
	return m, nil
}

func (m Model) confirmDelete() (tea.Model, tea.Cmd) {
	n, ok := m.panel.Selected()
	if !ok {
		return m, nil
	}

	store := m.store
	id := n.ID
	d := store.ShowConfirm(notify.ConfirmOptions{
		Title:       "Delete notification?",
		Message:     n.Message,
		ConfirmText: "Delete",
		Variant:     notify.VariantDanger,
		OnConfirm:   func() { store.DeleteNotification(id) },
	})
	m.sync()
	return m, waitDecision(d, "Notification deleted")
}

func (m Model) confirmClearAll() (tea.Model, tea.Cmd) {
	if len(m.snap.Notifications) == 0 {
		return m, nil
	}

	store := m.store
	d := store.ShowConfirm(notify.ConfirmOptions{
		Title:       "Clear all notifications?",
		Message:     fmt.Sprintf("%d notifications will be removed. This cannot be undone.", len(m.snap.Notifications)),
		ConfirmText: "Clear all",
		Variant:     notify.VariantDanger,
		OnConfirm:   store.ClearAllNotifications,
	})
	m.sync()
	return m, waitDecision(d, "All notifications cleared")
}

// waitDecision blocks on d off the update loop. Every decision settles,
// since the store dismisses a pending request when it closes.
func waitDecision(d *notify.Decision, success string) tea.Cmd {
	return func() tea.Msg {
		confirmed, _ := d.Wait(context.Background())
		return decisionMsg{confirmed: confirmed, success: success}
	}
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.signal.Close()
	return m, tea.Quit
}

// View renders the panel with the dialog and toasts layered on top.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.panel.View(),
		m.help.View(m.keys),
		m.renderStatusBar(),
	)

	content := body
	if m.confirm.Active() {
		content = m.confirm.Overlay(content, m.width, m.height)
	}
	if m.toasts.HasToasts() {
		content = m.toasts.Overlay(content, m.width, m.height)
	}
	return content
}

func (m Model) renderStatusBar() string {
	var parts []string

	unread := styles.StatusMutedStyle.Render(styles.IconBell + " 0")
	if m.snap.Unread > 0 {
		unread = styles.StatusBadgeStyle.Render(fmt.Sprintf("%s %d", styles.IconBell, m.snap.Unread))
	}
	parts = append(parts, unread)

	if m.status != nil {
		parts = append(parts, renderTransport(m.status.State(), m.status.Mode()))
	}

	if m.snap.Online {
		parts = append(parts, styles.StatusOKStyle.Render(styles.IconOnline+" online"))
	} else {
		parts = append(parts, styles.StatusErrStyle.Render(styles.IconOffline+" offline"))
	}

	if m.snap.SoundEnabled {
		parts = append(parts, styles.StatusMutedStyle.Render(styles.IconSoundOn+" sound"))
	} else {
		parts = append(parts, styles.StatusMutedStyle.Render(styles.IconSoundOff+" muted"))
	}

	sep := styles.StatusMutedStyle.Render("  ")
	return styles.StatusBarStyle.Width(m.width).Render(strings.Join(parts, sep))
}

func renderTransport(state transport.State, mode transport.Mode) string {
	icon := styles.IconPush
	if mode == transport.ModePoll {
		icon = styles.IconPolling
	}
	label := fmt.Sprintf("%s %s", icon, state)
	if mode != "" {
		label += fmt.Sprintf(" (%s)", mode)
	}

	switch state {
	case transport.StateConnected:
		return styles.StatusOKStyle.Render(label)
	case transport.StateFallback:
		return styles.StatusWarnStyle.Render(label)
	default:
		return styles.StatusErrStyle.Render(label)
	}
}

// Run starts the TUI and blocks until it exits or ctx is cancelled. Store
// changes wake the program through the change signal.
func Run(ctx context.Context, opts Options) error {
	if opts.Signal == nil {
		opts.Signal = NewChangeSignal()
	}
	unsubscribe := opts.Store.Subscribe(func(inbox.Snapshot) { opts.Signal.Notify() })
	defer unsubscribe()
	defer opts.Signal.Close()

	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
