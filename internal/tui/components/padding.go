package components

import (
	"strings"
	"sync"
)

const maxCachedPad = 200

var (
	padOnce  sync.Once
	padCache [maxCachedPad + 1]string
)

// Pad returns a string of n spaces. Widths up to 200 are served from a
// cache.
func Pad(n int) string {
	if n <= 0 {
		return ""
	}
	if n > maxCachedPad {
		return strings.Repeat(" ", n)
	}
	padOnce.Do(func() {
		full := strings.Repeat(" ", maxCachedPad)
		for i := range padCache {
			padCache[i] = full[:i]
		}
	})
	return padCache[n]
}
