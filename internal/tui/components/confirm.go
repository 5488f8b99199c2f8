package components

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/core/styles"
)

const confirmMaxWidth = 56

// ConfirmResolver settles the store's pending confirmation request.
type ConfirmResolver interface {
	ResolveConfirm(id int64, outcome notify.Outcome) bool
}

// ConfirmKeyMap holds the dialog key bindings.
type ConfirmKeyMap struct {
	Accept key.Binding
	Yes    key.Binding
	No     key.Binding
	Next   key.Binding
	Prev   key.Binding
}

// DefaultConfirmKeyMap returns the dialog key bindings.
func DefaultConfirmKeyMap() ConfirmKeyMap {
	return ConfirmKeyMap{
		Accept: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Yes:    key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "confirm")),
		No:     key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n/esc", "cancel")),
		Next:   key.NewBinding(key.WithKeys("tab", "right", "l"), key.WithHelp("tab/→", "switch")),
		Prev:   key.NewBinding(key.WithKeys("shift+tab", "left", "h")),
	}
}

// ConfirmDialog renders the store's pending confirmation request and routes
// key presses to it. Focus starts on the confirm button each time a new
// request appears.
type ConfirmDialog struct {
	resolver       ConfirmResolver
	keys           ConfirmKeyMap
	req            *notify.ConfirmRequest
	confirmFocused bool
}

// NewConfirmDialog creates a dialog bound to resolver.
func NewConfirmDialog(resolver ConfirmResolver) *ConfirmDialog {
	return &ConfirmDialog{
		resolver: resolver,
		keys:     DefaultConfirmKeyMap(),
	}
}

// Sync updates the dialog from the store's pending request (nil clears it).
func (d *ConfirmDialog) Sync(req *notify.ConfirmRequest) {
	if req == nil {
		d.req = nil
		return
	}
	if d.req == nil || d.req.ID != req.ID {
		d.confirmFocused = true
	}
	d.req = req
}

// Active reports whether a request is displayed.
func (d *ConfirmDialog) Active() bool {
	return d.req != nil
}

// Request returns the displayed request, or nil.
func (d *ConfirmDialog) Request() *notify.ConfirmRequest {
	return d.req
}

// ConfirmFocused reports whether the confirm button has focus.
func (d *ConfirmDialog) ConfirmFocused() bool {
	return d.confirmFocused
}

// Update handles a key press. While a request is displayed every key is
// consumed; it reports whether msg was handled.
func (d *ConfirmDialog) Update(msg tea.Msg) bool {
	if d.req == nil {
		return false
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return false
	}

	switch {
	case key.Matches(keyMsg, d.keys.Accept):
		if d.confirmFocused {
			d.Confirm()
		} else {
			d.Cancel()
		}
	case key.Matches(keyMsg, d.keys.Yes):
		d.Confirm()
	case key.Matches(keyMsg, d.keys.No):
		if keyMsg.Type == tea.KeyEsc {
			d.Dismiss()
		} else {
			d.Cancel()
		}
	case key.Matches(keyMsg, d.keys.Next), key.Matches(keyMsg, d.keys.Prev):
		d.confirmFocused = !d.confirmFocused
	}
	return true
}

// Confirm accepts the displayed request.
func (d *ConfirmDialog) Confirm() bool {
	return d.resolve(notify.OutcomeConfirmed)
}

// Cancel rejects the displayed request.
func (d *ConfirmDialog) Cancel() bool {
	return d.resolve(notify.OutcomeCancelled)
}

// Dismiss closes the dialog without a choice; the decision settles false.
func (d *ConfirmDialog) Dismiss() bool {
	return d.resolve(notify.OutcomeDismissed)
}

func (d *ConfirmDialog) resolve(outcome notify.Outcome) bool {
	if d.req == nil {
		return false
	}
	id := d.req.ID
	d.req = nil
	return d.resolver.ResolveConfirm(id, outcome)
}

// View renders the dialog box, or an empty string when inactive.
func (d *ConfirmDialog) View() string {
	if d.req == nil {
		return ""
	}

	frame, confirmFocused := styles.ConfirmStyles(d.req.Variant)

	confirmBtn := styles.ModalButtonStyle.Render(d.req.ConfirmText)
	cancelBtn := styles.ModalButtonSelectedStyle.Render(d.req.CancelText)
	if d.confirmFocused {
		confirmBtn = confirmFocused.Render(d.req.ConfirmText)
		cancelBtn = styles.ModalButtonStyle.Render(d.req.CancelText)
	}

	buttons := lipgloss.JoinHorizontal(lipgloss.Center, cancelBtn, "  ", confirmBtn)

	parts := []string{
		styles.ModalTitleStyle.Foreground(styles.VariantColor(d.req.Variant)).Render(d.req.Title),
	}
	if d.req.Message != "" {
		parts = append(parts, styles.ModalMessageStyle.Width(confirmMaxWidth-6).Render(d.req.Message))
	}
	parts = append(parts,
		lipgloss.NewStyle().MarginTop(1).Render(buttons),
		styles.ModalHelpStyle.Render("←/→ switch  enter select  y confirm  esc cancel"),
	)

	return frame.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// Overlay draws the dialog centered over background.
func (d *ConfirmDialog) Overlay(background string, width, height int) string {
	box := d.View()
	if box == "" {
		return background
	}
	return PlaceCenter(box, background, width, height)
}
