// Package components provides reusable TUI components.
package components

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

// PlaceOverlay draws fg on top of bg with its top-left corner at column x,
// row y. Background cells outside fg are preserved; bg is extended with blank
// rows when fg reaches past its last line.
func PlaceOverlay(x, y int, fg, bg string) string {
	x = max(x, 0)
	y = max(y, 0)

	fgLines := strings.Split(fg, "\n")
	bgLines := strings.Split(bg, "\n")

	fgWidth := 0
	for _, line := range fgLines {
		fgWidth = max(fgWidth, ansi.StringWidth(line))
	}

	for len(bgLines) < y+len(fgLines) {
		bgLines = append(bgLines, "")
	}

	for i, line := range fgLines {
		row := y + i
		bgLine := bgLines[row]
		if w := ansi.StringWidth(bgLine); w < x {
			bgLine += Pad(x - w)
		}

		left := ansi.Truncate(bgLine, x, "")
		right := ansi.TruncateLeft(bgLine, x+fgWidth, "")
		fill := Pad(fgWidth - ansi.StringWidth(line))

		bgLines[row] = left + ansi.ResetStyle + line + fill + ansi.ResetStyle + right
	}

	return strings.Join(bgLines, "\n")
}

// PlaceCenter overlays fg centered within a width x height background.
func PlaceCenter(fg, bg string, width, height int) string {
	fgW, fgH := Size(fg)
	return PlaceOverlay((width-fgW)/2, (height-fgH)/2, fg, bg)
}

// Size returns the display width and line count of s.
func Size(s string) (width, height int) {
	lines := strings.Split(s, "\n")
	for _, line := range lines {
		width = max(width, ansi.StringWidth(line))
	}
	return width, len(lines)
}
