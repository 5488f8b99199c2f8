// Package notify defines the notification, toast and confirmation types shared
// by the store, the transports and the TUI.
package notify

import (
	"maps"
	"strings"
	"time"
)

// Type tags a notification with the domain event that produced it.
type Type string

const (
	TypeBooking  Type = "booking"
	TypePayment  Type = "payment"
	TypeReminder Type = "reminder"
	TypeAdmin    Type = "admin"
	TypeSuccess  Type = "success"
	TypeWarning  Type = "warning"
	TypeError    Type = "error"
	TypeInfo     Type = "info"
)

var allTypes = []Type{
	TypeBooking,
	TypePayment,
	TypeReminder,
	TypeAdmin,
	TypeSuccess,
	TypeWarning,
	TypeError,
	TypeInfo,
}

// Types returns every supported notification type.
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// IsValid reports whether t is one of the supported types.
func (t Type) IsValid() bool {
	for _, v := range allTypes {
		if v == t {
			return true
		}
	}
	return false
}

// ParseType normalizes s to a supported Type. Unknown or empty values map to
// TypeInfo.
func ParseType(s string) Type {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if t.IsValid() {
		return t
	}
	return TypeInfo
}

// Notification is a persistent, in-session record of a domain event.
type Notification struct {
	ID          int64
	SourceID    string // server-side id from the wire payload, may be empty
	Message     string
	Type        Type
	Description string
	Read        bool
	CreatedAt   time.Time
	Extra       map[string]any
}

// Clone returns a copy of n that does not share the Extra map.
func (n Notification) Clone() Notification {
	if n.Extra != nil {
		n.Extra = maps.Clone(n.Extra)
	}
	return n
}

// Toast is a transient, display-only alert.
type Toast struct {
	ID        int64
	Message   string
	Type      Type
	Duration  time.Duration // <= 0 means the toast stays until dismissed
	CreatedAt time.Time
}

// Sticky reports whether the toast has no auto-removal timer.
func (t Toast) Sticky() bool {
	return t.Duration <= 0
}
