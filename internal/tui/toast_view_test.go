package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toasts(msgs ...string) []notify.Toast {
	out := make([]notify.Toast, 0, len(msgs))
	for i, m := range msgs {
		out = append(out, notify.Toast{ID: int64(i + 1), Message: m, Type: notify.TypeInfo})
	}
	return out
}

func TestToastView_empty(t *testing.T) {
	v := NewToastView()
	assert.False(t, v.HasToasts())
	assert.Empty(t, v.View(0))
	assert.Equal(t, "background", v.Overlay("background", 80, 24))
}

func TestToastView_newest_at_bottom(t *testing.T) {
	v := NewToastView()
	v.SetToasts(toasts("first", "second"))

	out := ansi.Strip(v.View(0))
	assert.Less(t, strings.Index(out, "first"), strings.Index(out, "second"))
}

func TestToastView_collapses_overflow(t *testing.T) {
	v := NewToastView()
	v.SetToasts(toasts("one", "two", "three", "four"))

	// Each toast is three lines tall: two fit plus the marker.
	out := ansi.Strip(v.View(7))
	assert.Contains(t, out, "+2 more")
	assert.NotContains(t, out, "one")
	assert.NotContains(t, out, "two")
	assert.Contains(t, out, "three")
	assert.Contains(t, out, "four")
}

func TestToastView_Overlay_keeps_status_line(t *testing.T) {
	v := NewToastView()
	v.SetToasts(toasts("hello"))

	rows := make([]string, 10)
	for i := range rows {
		rows[i] = strings.Repeat(".", 60)
	}
	rows[9] = strings.Repeat("s", 60)

	out := strings.Split(ansi.Strip(v.Overlay(strings.Join(rows, "\n"), 60, 10)), "\n")
	require.Len(t, out, 10)
	assert.Equal(t, rows[9], out[9])
	assert.Contains(t, out[7], "hello")
}
