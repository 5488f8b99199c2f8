// Package jsoncolor renders JSON values with theme colors for the detail pane.
package jsoncolor

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/colonyops/herald/internal/core/styles"
)

// Colorize pretty-prints JSON bytes with theme-aware syntax coloring.
// Falls back to the raw string on invalid JSON.
func Colorize(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}

	var (
		key     = fg(styles.ColorPrimary)
		str     = fg(styles.ColorSuccess)
		num     = fg(styles.ColorWarning)
		boolean = fg(styles.ColorSecondary)
		null    = fg(styles.ColorError)
		punct   = fg(styles.ColorMuted)
		bracket = fg(styles.ColorForeground)
	)

	var out strings.Builder
	raw := buf.String()

	i := 0
	for i < len(raw) {
		ch := raw[i]
		rest := raw[i:]
		switch {
		case ch == '"':
			end := findStringEnd(raw, i)
			s := raw[i : end+1]

			// a string followed by a colon is an object key
			after := strings.TrimLeft(raw[end+1:], " \t")
			if strings.HasPrefix(after, ":") {
				out.WriteString(key.Render(s))
			} else {
				out.WriteString(str.Render(s))
			}
			i = end + 1

		case ch == ':' || ch == ',':
			out.WriteString(punct.Render(string(ch)))
			i++

		case ch >= '0' && ch <= '9' || ch == '-':
			end := i + 1
			for end < len(raw) && strings.IndexByte("0123456789.eE+-", raw[end]) >= 0 {
				end++
			}
			out.WriteString(num.Render(raw[i:end]))
			i = end

		case strings.HasPrefix(rest, "true"):
			out.WriteString(boolean.Render("true"))
			i += 4

		case strings.HasPrefix(rest, "false"):
			out.WriteString(boolean.Render("false"))
			i += 5

		case strings.HasPrefix(rest, "null"):
			out.WriteString(null.Render("null"))
			i += 4

		case strings.IndexByte("{}[]", ch) >= 0:
			out.WriteString(bracket.Render(string(ch)))
			i++

		default:
			out.WriteByte(ch)
			i++
		}
	}

	return out.String()
}

// Value marshals v and colorizes the result. ok is false when v cannot be
// marshaled.
func Value(v any) (out string, ok bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", false
	}
	return Colorize(data), true
}

func fg(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// findStringEnd returns the index of the closing quote for a JSON string starting at pos.
func findStringEnd(s string, pos int) int {
	for i := pos + 1; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '"' {
			return i
		}
	}
	return len(s) - 1
}
