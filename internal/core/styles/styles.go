// Package styles provides shared lipgloss styles for CLI and TUI components.
package styles

import (
	"github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/lucasb-eyer/go-colorful"
)

// CurrentPalette holds the active theme palette.
var CurrentPalette Palette

// Exported color aliases for convenience.
var (
	ColorPrimary    lipgloss.Color
	ColorSecondary  lipgloss.Color
	ColorAccent     lipgloss.Color
	ColorForeground lipgloss.Color
	ColorMuted      lipgloss.Color
	ColorBackground lipgloss.Color
	ColorSurface    lipgloss.Color
	ColorSuccess    lipgloss.Color
	ColorWarning    lipgloss.Color
	ColorError      lipgloss.Color
)

// Style exports.
var (
	// CLI styles.
	CommandHeaderStyle lipgloss.Style
	CommandStyle       lipgloss.Style
	DividerStyle       lipgloss.Style
	ErrorTextStyle     lipgloss.Style
	WarningTextStyle   lipgloss.Style
	SuccessTextStyle   lipgloss.Style

	// Confirm dialog.
	ModalStyle               lipgloss.Style
	ModalTitleStyle          lipgloss.Style
	ModalMessageStyle        lipgloss.Style
	ModalHelpStyle           lipgloss.Style
	ModalButtonStyle         lipgloss.Style
	ModalButtonSelectedStyle lipgloss.Style

	// Toasts.
	ToastStyle        lipgloss.Style
	ToastMessageStyle lipgloss.Style

	// Notification panel.
	PanelTitleStyle    lipgloss.Style
	PanelTabStyle      lipgloss.Style
	PanelTabOnStyle    lipgloss.Style
	PanelGroupStyle    lipgloss.Style
	PanelItemStyle     lipgloss.Style
	PanelReadItemStyle lipgloss.Style
	PanelSelectedStyle lipgloss.Style
	PanelTimeStyle     lipgloss.Style
	PanelEmptyStyle    lipgloss.Style
	PanelDetailStyle   lipgloss.Style

	// Status bar.
	StatusBarStyle   lipgloss.Style
	StatusBadgeStyle lipgloss.Style
	StatusOKStyle    lipgloss.Style
	StatusWarnStyle  lipgloss.Style
	StatusErrStyle   lipgloss.Style
	StatusMutedStyle lipgloss.Style
)

// SetTheme sets the active palette and rebuilds all global styles.
func SetTheme(p Palette) {
	CurrentPalette = p

	ColorPrimary = p.Primary
	ColorSecondary = p.Secondary
	ColorAccent = p.Accent
	ColorForeground = p.Foreground
	ColorMuted = p.Muted
	ColorBackground = p.Background
	ColorSurface = p.Surface
	ColorSuccess = p.Success
	ColorWarning = p.Warning
	ColorError = p.Error

	CommandHeaderStyle = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)
	CommandStyle = lipgloss.NewStyle().
		Foreground(ColorForeground)
	DividerStyle = lipgloss.NewStyle().
		Foreground(ColorMuted)
	ErrorTextStyle = lipgloss.NewStyle().Foreground(ColorError)
	WarningTextStyle = lipgloss.NewStyle().Foreground(ColorWarning)
	SuccessTextStyle = lipgloss.NewStyle().Foreground(ColorSuccess)

	ModalStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(1, 2)
	ModalTitleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorForeground)
	ModalMessageStyle = lipgloss.NewStyle().
		Foreground(ColorForeground).
		MarginTop(1)
	ModalHelpStyle = lipgloss.NewStyle().
		Foreground(ColorMuted).
		MarginTop(1)
	ModalButtonStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Background(ColorSurface).
		Foreground(ColorMuted)
	ModalButtonSelectedStyle = lipgloss.NewStyle().
		Padding(0, 1).
		Background(ColorPrimary).
		Foreground(ColorBackground).
		Bold(true)

	ToastStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorPrimary).
		Padding(0, 1)
	ToastMessageStyle = lipgloss.NewStyle().
		Foreground(ColorForeground)

	PanelTitleStyle = lipgloss.NewStyle().
		Foreground(ColorPrimary).
		Bold(true)
	PanelTabStyle = lipgloss.NewStyle().
		Foreground(ColorMuted).
		Padding(0, 1)
	PanelTabOnStyle = lipgloss.NewStyle().
		Foreground(ColorBackground).
		Background(ColorPrimary).
		Padding(0, 1).
		Bold(true)
	PanelGroupStyle = lipgloss.NewStyle().
		Foreground(ColorSecondary).
		Bold(true).
		MarginTop(1)
	PanelItemStyle = lipgloss.NewStyle().
		Foreground(ColorForeground).
		Bold(true)
	PanelReadItemStyle = lipgloss.NewStyle().
		Foreground(ColorMuted)
	PanelSelectedStyle = lipgloss.NewStyle().
		Background(ColorSurface)
	PanelTimeStyle = lipgloss.NewStyle().
		Foreground(ColorMuted)
	PanelEmptyStyle = lipgloss.NewStyle().
		Foreground(ColorMuted).
		Italic(true)
	PanelDetailStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(ColorSurface).
		PaddingLeft(1)

	StatusBarStyle = lipgloss.NewStyle().
		Foreground(ColorForeground).
		Background(ColorSurface).
		Padding(0, 1)
	StatusBadgeStyle = lipgloss.NewStyle().
		Foreground(ColorBackground).
		Background(ColorError).
		Bold(true).
		Padding(0, 1)
	StatusOKStyle = lipgloss.NewStyle().
		Foreground(ColorSuccess).
		Background(ColorSurface)
	StatusWarnStyle = lipgloss.NewStyle().
		Foreground(ColorWarning).
		Background(ColorSurface)
	StatusErrStyle = lipgloss.NewStyle().
		Foreground(ColorError).
		Background(ColorSurface)
	StatusMutedStyle = lipgloss.NewStyle().
		Foreground(ColorMuted).
		Background(ColorSurface)
}

// nolint:gochecknoinits // bootstrap default theme before any style is accessed.
func init() {
	SetTheme(themes[DefaultTheme])
}

// TypeColor returns the accent color for a notification type.
func TypeColor(t notify.Type) lipgloss.Color {
	switch t {
	case notify.TypeBooking:
		return ColorPrimary
	case notify.TypePayment, notify.TypeSuccess:
		return ColorSuccess
	case notify.TypeReminder:
		return ColorSecondary
	case notify.TypeAdmin:
		return ColorAccent
	case notify.TypeWarning:
		return ColorWarning
	case notify.TypeError:
		return ColorError
	default:
		return ColorMuted
	}
}

// TypeIcon returns the glyph shown next to a notification of type t.
func TypeIcon(t notify.Type) string {
	switch t {
	case notify.TypeBooking:
		return IconCalendar
	case notify.TypePayment:
		return IconCreditCard
	case notify.TypeReminder:
		return IconClock
	case notify.TypeAdmin:
		return IconShield
	case notify.TypeSuccess:
		return IconCheck
	case notify.TypeWarning:
		return IconWarning
	case notify.TypeError:
		return IconError
	default:
		return IconInfo
	}
}

// ToastStyleFor returns the toast box style for t.
func ToastStyleFor(t notify.Type) lipgloss.Style {
	return ToastStyle.BorderForeground(TypeColor(t))
}

// VariantColor returns the accent color of a confirm dialog variant.
func VariantColor(v notify.Variant) lipgloss.Color {
	switch v {
	case notify.VariantDanger:
		return ColorError
	case notify.VariantWarning:
		return ColorWarning
	default:
		return ColorPrimary
	}
}

// ConfirmStyles returns the dialog frame and the focused confirm button
// style for a variant. Variants only change colors.
func ConfirmStyles(v notify.Variant) (frame, confirmFocused lipgloss.Style) {
	accent := VariantColor(v)
	frame = ModalStyle.
		BorderForeground(accent).
		BorderBackground(Blend(ColorBackground, accent, 0.08))
	confirmFocused = ModalButtonSelectedStyle.Background(accent)
	return frame, confirmFocused
}

// Blend mixes a toward b by t (0..1) in Lab space. Colors that are not hex
// values return a unchanged.
func Blend(a, b lipgloss.Color, t float64) lipgloss.Color {
	ca, err := colorful.Hex(string(a))
	if err != nil {
		return a
	}
	cb, err := colorful.Hex(string(b))
	if err != nil {
		return a
	}
	return lipgloss.Color(ca.BlendLab(cb, t).Clamped().Hex())
}

func colorPtr(c lipgloss.Color) *string {
	if c == "" {
		return nil
	}
	s := string(c)
	return &s
}

// GlamourStyle returns a Glamour style config derived from the active theme.
func GlamourStyle() ansi.StyleConfig {
	cfg := glamourstyles.DarkStyleConfig

	fg := colorPtr(ColorForeground)
	primary := colorPtr(ColorPrimary)
	secondary := colorPtr(ColorSecondary)
	muted := colorPtr(ColorMuted)
	surface := colorPtr(ColorSurface)

	cfg.Document.Color = fg
	cfg.Document.Margin = nil

	cfg.Paragraph.Color = fg

	cfg.Heading.Color = primary
	cfg.H1.Color = fg
	cfg.H1.BackgroundColor = surface
	cfg.H2.Color = primary
	cfg.H3.Color = primary

	cfg.BlockQuote.Color = muted
	cfg.HorizontalRule.Color = muted

	cfg.Link.Color = secondary
	cfg.LinkText.Color = secondary

	cfg.Code.Color = secondary
	cfg.CodeBlock.Color = muted

	return cfg
}
