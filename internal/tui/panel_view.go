package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/core/panel"
	"github.com/colonyops/herald/internal/core/styles"
	"github.com/colonyops/herald/internal/tui/components"
	"github.com/colonyops/herald/internal/tui/jsoncolor"
	"github.com/rs/zerolog"
)

const (
	minDetailWidth = 70
	listShare      = 0.55
)

// PanelView renders the notification panel: a day-grouped list limited to
// the display window on the left and the selected notification's detail
// on the right. The cursor follows the selected notification's id across
// store updates.
type PanelView struct {
	days       int
	unreadOnly bool

	all   []notify.Notification
	items []notify.Notification
	now   time.Time
	loc   *time.Location

	cursor     int
	selectedID int64

	width  int
	height int

	detail       viewport.Model
	detailID     int64
	detailWidth  int
	renderer     *glamour.TermRenderer
	rendererWrap int

	log zerolog.Logger
}

// NewPanelView returns a panel showing the last days days.
func NewPanelView(days int, log zerolog.Logger) *PanelView {
	if !panel.ValidWindow(days) {
		days = panel.DefaultWindow
	}
	return &PanelView{
		days:   days,
		loc:    time.Local,
		detail: viewport.New(0, 0),
		log:    log,
	}
}

// SetSize sets the panel dimensions.
func (p *PanelView) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// SetLocation sets the zone used for day grouping.
func (p *PanelView) SetLocation(loc *time.Location) {
	if loc != nil {
		p.loc = loc
	}
}

// SetNotifications replaces the source list (most recent first) and
// re-applies the window and unread filter as of now.
func (p *PanelView) SetNotifications(list []notify.Notification, now time.Time) {
	p.all = list
	p.now = now
	p.refilter()
}

func (p *PanelView) refilter() {
	items := panel.Window(p.all, p.now, p.days)
	if p.unreadOnly {
		items = panel.FilterUnread(items)
	}
	p.items = items

	if len(items) == 0 {
		p.cursor = 0
		p.selectedID = 0
		return
	}

	if idx := slices.IndexFunc(items, func(n notify.Notification) bool { return n.ID == p.selectedID }); idx >= 0 {
		p.cursor = idx
	} else {
		p.cursor = min(p.cursor, len(items)-1)
	}
	p.selectedID = items[p.cursor].ID
}

// Days returns the active display window.
func (p *PanelView) Days() int { return p.days }

// UnreadOnly reports whether read notifications are hidden.
func (p *PanelView) UnreadOnly() bool { return p.unreadOnly }

// Items returns the visible notifications.
func (p *PanelView) Items() []notify.Notification { return p.items }

// CycleWindow advances the display window 7 → 15 → 30 → 7.
func (p *PanelView) CycleWindow() {
	p.days = panel.NextWindow(p.days)
	p.refilter()
}

// ToggleUnreadOnly flips the unread-only filter.
func (p *PanelView) ToggleUnreadOnly() {
	p.unreadOnly = !p.unreadOnly
	p.refilter()
}

// Selected returns the notification under the cursor.
func (p *PanelView) Selected() (notify.Notification, bool) {
	if len(p.items) == 0 {
		return notify.Notification{}, false
	}
	return p.items[p.cursor], true
}

// Move shifts the cursor by delta, clamped to the list.
func (p *PanelView) Move(delta int) {
	if len(p.items) == 0 {
		return
	}
	p.cursor = min(max(p.cursor+delta, 0), len(p.items)-1)
	p.selectedID = p.items[p.cursor].ID
}

// Top moves the cursor to the most recent notification.
func (p *PanelView) Top() { p.Move(-len(p.items)) }

// Bottom moves the cursor to the oldest notification.
func (p *PanelView) Bottom() { p.Move(len(p.items)) }

// ScrollDetail scrolls the detail pane by delta lines.
func (p *PanelView) ScrollDetail(delta int) {
	if delta > 0 {
		p.detail.ScrollDown(delta)
	} else if delta < 0 {
		p.detail.ScrollUp(-delta)
	}
}

// View renders the header and body.
func (p *PanelView) View() string {
	header := p.renderHeader()
	bodyHeight := max(p.height-lipgloss.Height(header), 1)

	if p.width < minDetailWidth {
		return lipgloss.JoinVertical(lipgloss.Left, header, p.renderList(p.width, bodyHeight))
	}

	listWidth := int(float64(p.width) * listShare)
	detailWidth := p.width - listWidth
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		p.renderList(listWidth, bodyHeight),
		p.renderDetail(detailWidth, bodyHeight),
	)
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

func (p *PanelView) renderHeader() string {
	tabs := []string{styles.PanelTitleStyle.Render("Notifications"), " "}
	for _, d := range panel.Windows() {
		label := fmt.Sprintf("%dd", d)
		if d == p.days {
			tabs = append(tabs, styles.PanelTabOnStyle.Render(label))
		} else {
			tabs = append(tabs, styles.PanelTabStyle.Render(label))
		}
	}
	if p.unreadOnly {
		tabs = append(tabs, " ", styles.PanelTabOnStyle.Render("unread"))
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, tabs...)
}

// renderList draws the grouped list and scrolls it so the cursor stays on
// screen.
func (p *PanelView) renderList(width, height int) string {
	if len(p.items) == 0 {
		msg := "No notifications in the last " + fmt.Sprintf("%d days", p.days)
		if p.unreadOnly {
			msg = "No unread notifications"
		}
		return lipgloss.NewStyle().Width(width).Height(height).
			Render(styles.PanelEmptyStyle.Render(msg))
	}

	var lines []string
	cursorLine := 0
	idx := 0
	for _, g := range panel.GroupByDay(p.items, p.now, p.loc) {
		lines = append(lines, styles.PanelGroupStyle.UnsetMarginTop().Render(g.Label))
		for _, n := range g.Items {
			if idx == p.cursor {
				cursorLine = len(lines)
			}
			lines = append(lines, p.renderItem(n, width, idx == p.cursor))
			idx++
		}
	}

	start := 0
	if cursorLine >= height {
		start = cursorLine - height + 1
	}
	end := min(start+height, len(lines))
	visible := lines[start:end]
	for len(visible) < height {
		visible = append(visible, "")
	}
	return lipgloss.NewStyle().Width(width).Render(strings.Join(visible, "\n"))
}

func (p *PanelView) renderItem(n notify.Notification, width int, selected bool) string {
	dot := styles.IconReadDot
	textStyle := styles.PanelReadItemStyle
	if !n.Read {
		dot = lipgloss.NewStyle().Foreground(styles.ColorPrimary).Render(styles.IconUnreadDot)
		textStyle = styles.PanelItemStyle
	}
	icon := lipgloss.NewStyle().Foreground(styles.TypeColor(n.Type)).Render(styles.TypeIcon(n.Type))
	when := styles.PanelTimeStyle.Render(panel.RelativeTime(n.CreatedAt, p.now))

	prefix := " " + dot + " " + icon + " "
	room := max(width-ansi.StringWidth(prefix)-ansi.StringWidth(when)-2, 1)
	msg := textStyle.Render(ansi.Truncate(n.Message, room, "…"))

	gap := max(width-ansi.StringWidth(prefix)-ansi.StringWidth(msg)-ansi.StringWidth(when)-1, 1)
	line := prefix + msg + components.Pad(gap) + when
	if selected {
		return styles.PanelSelectedStyle.Width(width).Render(line)
	}
	return line
}

func (p *PanelView) renderDetail(width, height int) string {
	frame := styles.PanelDetailStyle
	inner := max(width-frame.GetHorizontalFrameSize(), 10)

	n, ok := p.Selected()
	if !ok {
		return frame.Width(inner).Height(height).Render("")
	}

	if p.detailID != n.ID || p.detailWidth != inner || p.detail.Height != height {
		p.detail.Width = inner
		p.detail.Height = height
		p.detail.SetContent(p.detailContent(n, inner))
		p.detail.GotoTop()
		p.detailID = n.ID
		p.detailWidth = inner
	}
	return frame.Render(p.detail.View())
}

func (p *PanelView) detailContent(n notify.Notification, width int) string {
	var b strings.Builder

	title := lipgloss.NewStyle().Foreground(styles.TypeColor(n.Type)).Bold(true).
		Render(styles.TypeIcon(n.Type) + " " + string(n.Type))
	b.WriteString(title)
	b.WriteString("  ")
	b.WriteString(styles.PanelTimeStyle.Render(n.CreatedAt.In(p.loc).Format("Mon Jan 2 15:04")))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Bold(true).Width(width).Render(n.Message))
	b.WriteString("\n")

	if n.Description != "" {
		b.WriteString(p.renderMarkdown(n.Description, width))
	}

	if len(n.Extra) > 0 {
		b.WriteString("\n")
		keys := make([]string, 0, len(n.Extra))
		for k := range n.Extra {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s %s\n", styles.PanelTimeStyle.Render(k+":"), extraValue(n.Extra[k]))
		}
	}
	return b.String()
}

// extraValue renders nested payload fields as colored JSON and scalars as is.
func extraValue(v any) string {
	switch v.(type) {
	case map[string]any, []any:
		if out, ok := jsoncolor.Value(v); ok {
			return "\n" + out
		}
	}
	return fmt.Sprint(v)
}

// renderMarkdown renders s with glamour, falling back to plain wrapped text
// when the renderer cannot be built.
func (p *PanelView) renderMarkdown(s string, width int) string {
	if p.renderer == nil || p.rendererWrap != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStyles(styles.GlamourStyle()),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			p.log.Warn().Err(err).Msg("markdown renderer unavailable")
			return "\n" + lipgloss.NewStyle().Width(width).Render(s)
		}
		p.renderer = r
		p.rendererWrap = width
	}

	out, err := p.renderer.Render(s)
	if err != nil {
		p.log.Debug().Err(err).Msg("render description")
		return "\n" + lipgloss.NewStyle().Width(width).Render(s)
	}
	return out
}

// ResetTheme drops cached renderings after a theme change.
func (p *PanelView) ResetTheme() {
	p.renderer = nil
	p.detailID = 0
}
