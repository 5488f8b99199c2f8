// Package panel holds the pure queries behind the notification panel: the
// display window, day grouping, relative timestamps and list filters.
package panel

import (
	"fmt"
	"slices"
	"time"

	"github.com/colonyops/herald/internal/core/notify"
)

// Day is the window unit.
const Day = 24 * time.Hour

// DefaultWindow is the window the panel opens with.
const DefaultWindow = 7

var windows = []int{7, 15, 30}

// Windows returns the selectable window sizes in days.
func Windows() []int {
	return slices.Clone(windows)
}

// ValidWindow reports whether days is a selectable window size.
func ValidWindow(days int) bool {
	return slices.Contains(windows, days)
}

// NextWindow cycles 7 -> 15 -> 30 -> 7. Unknown values reset to the default.
func NextWindow(days int) int {
	i := slices.Index(windows, days)
	if i < 0 {
		return DefaultWindow
	}
	return windows[(i+1)%len(windows)]
}

// Window returns the records with CreatedAt in [now-days, now]. Both bounds are
// inclusive. Order is preserved and the input is not modified.
func Window(list []notify.Notification, now time.Time, days int) []notify.Notification {
	cutoff := now.Add(-time.Duration(days) * Day)

	out := make([]notify.Notification, 0, len(list))
	for _, n := range list {
		if n.CreatedAt.Before(cutoff) || n.CreatedAt.After(now) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Group is one calendar day of notifications.
type Group struct {
	Key   string // 2006-01-02 in the display location
	Label string
	Items []notify.Notification
}

// GroupByDay partitions list by local calendar date. Groups appear in the
// order their first record is encountered, so a most-recent-first list yields
// most-recent-first groups.
func GroupByDay(list []notify.Notification, now time.Time, loc *time.Location) []Group {
	if loc == nil {
		loc = time.Local
	}

	var groups []Group
	index := make(map[string]int)

	for _, n := range list {
		local := n.CreatedAt.In(loc)
		key := local.Format(time.DateOnly)

		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{Key: key, Label: dayLabel(local, now.In(loc))})
		}
		groups[i].Items = append(groups[i].Items, n)
	}

	return groups
}

func dayLabel(t, now time.Time) string {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	switch {
	case !t.Before(today):
		return "Today"
	case !t.Before(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case t.Year() != now.Year():
		return t.Format("Mon, Jan 2 2006")
	default:
		return t.Format("Mon, Jan 2")
	}
}

// RelativeTime renders how long ago t was.
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < Day:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*Day:
		return fmt.Sprintf("%dd ago", int(d/Day))
	default:
		return "a while ago"
	}
}

// FilterUnread keeps unread records.
func FilterUnread(list []notify.Notification) []notify.Notification {
	return filter(list, func(n notify.Notification) bool { return !n.Read })
}

// FilterType keeps records of type t.
func FilterType(list []notify.Notification, t notify.Type) []notify.Notification {
	return filter(list, func(n notify.Notification) bool { return n.Type == t })
}

func filter(list []notify.Notification, keep func(notify.Notification) bool) []notify.Notification {
	out := make([]notify.Notification, 0, len(list))
	for _, n := range list {
		if keep(n) {
			out = append(out, n)
		}
	}
	return out
}
