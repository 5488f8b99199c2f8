// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication within herald.
package eventbus

import (
	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/transport"
)

// Event names an event type.
type Event string

// Keep list sorted A-Z.
const (
	EventConnectivityChanged   Event = "connectivity.changed"
	EventNotificationAdded     Event = "notification.added"
	EventPayloadDropped        Event = "payload.dropped"
	EventTransportStateChanged Event = "transport.state-changed"
	EventTuiStarted            Event = "tui.started"
	EventTuiStopped            Event = "tui.stopped"
)

// ConnectivityChangedPayload is emitted when the reachability probe flips.
type ConnectivityChangedPayload struct {
	Online bool
}

// NotificationAddedPayload is emitted after a transport payload is ingested.
type NotificationAddedPayload struct {
	ID       int64
	SourceID string
	Type     notify.Type
	Mode     transport.Mode
}

// PayloadDroppedPayload is emitted when an inbound payload is rejected.
type PayloadDroppedPayload struct {
	Mode   transport.Mode
	Reason string
	Size   int
}

// TransportStateChangedPayload is emitted on every realtime state transition.
type TransportStateChangedPayload struct {
	Old  transport.State
	New  transport.State
	Mode transport.Mode
	Err  error
}

// TUIStartedPayload is emitted when the TUI starts.
type TUIStartedPayload struct{}

// TUIStoppedPayload is emitted when the TUI stops.
type TUIStoppedPayload struct{}
