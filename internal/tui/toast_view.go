package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/core/styles"
	"github.com/colonyops/herald/internal/tui/components"
)

const toastWidth = 40

// ToastView renders the store's toast queue as a stack in the lower-right
// corner, oldest at the top and newest at the bottom. When the stack does
// not fit, the oldest toasts collapse into a "+N more" line.
type ToastView struct {
	toasts []notify.Toast
}

// NewToastView returns an empty toast view.
func NewToastView() *ToastView {
	return &ToastView{}
}

// SetToasts replaces the rendered toasts.
func (v *ToastView) SetToasts(toasts []notify.Toast) {
	v.toasts = toasts
}

// HasToasts reports whether any toast is displayed.
func (v *ToastView) HasToasts() bool {
	return len(v.toasts) > 0
}

// View renders the stack limited to maxHeight lines. A maxHeight of zero or
// less means unlimited.
func (v *ToastView) View(maxHeight int) string {
	if len(v.toasts) == 0 {
		return ""
	}

	// Render newest first so the budget keeps the most recent toasts.
	rendered := make([]string, 0, len(v.toasts))
	used := 0
	hidden := 0
	for i := len(v.toasts) - 1; i >= 0; i-- {
		box := renderToast(v.toasts[i])
		h := lipgloss.Height(box)
		// Reserve a line for the overflow marker.
		if maxHeight > 0 && used+h > maxHeight-1 && len(rendered) > 0 {
			hidden = i + 1
			break
		}
		rendered = append(rendered, box)
		used += h
	}

	lines := make([]string, 0, len(rendered)+1)
	if hidden > 0 {
		more := styles.PanelTimeStyle.Render(fmt.Sprintf("+%d more", hidden))
		lines = append(lines, lipgloss.PlaceHorizontal(toastWidth, lipgloss.Right, more))
	}
	for i := len(rendered) - 1; i >= 0; i-- {
		lines = append(lines, rendered[i])
	}
	return strings.Join(lines, "\n")
}

func renderToast(t notify.Toast) string {
	icon := lipgloss.NewStyle().Foreground(styles.TypeColor(t.Type)).Render(styles.TypeIcon(t.Type))
	content := icon + " " + styles.ToastMessageStyle.Render(t.Message)
	return styles.ToastStyleFor(t.Type).Width(toastWidth).Render(content)
}

// Overlay draws the stack over background in the lower-right corner, leaving
// the bottom line (the status bar) uncovered.
func (v *ToastView) Overlay(background string, width, height int) string {
	stack := v.View(height - 1)
	if stack == "" {
		return background
	}

	w, h := components.Size(stack)
	x := max(width-w-1, 0)
	y := max(height-h-1, 0)
	return components.PlaceOverlay(x, y, stack, background)
}
