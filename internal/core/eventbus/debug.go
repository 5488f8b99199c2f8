package eventbus

import (
	"fmt"

	"github.com/rs/zerolog"
)

// RegisterDebugLogger traces bus traffic on logger. Deliveries log at debug
// with the payload's identifying fields; drops warn and subscriber panics
// log as errors.
func RegisterDebugLogger(bus *EventBus, logger zerolog.Logger) {
	bus.OnPublish(func(event Event, payload any) {
		describe(logger.Debug(), event, payload).Msg("event")
	})
	bus.OnDrop(func(event Event, payload any) {
		describe(logger.Warn(), event, payload).Msg("event bus full, dropping")
	})
	bus.OnPanic(func(event Event, payload any, recovered any) {
		describe(logger.Error(), event, payload).
			Str("panic", fmt.Sprint(recovered)).
			Msg("subscriber panicked")
	})
}

// describe adds the event name and the fields worth seeing in a trace. The
// notification body is never logged.
func describe(e *zerolog.Event, event Event, payload any) *zerolog.Event {
	e = e.Str("event", string(event))

	switch p := payload.(type) {
	case NotificationAddedPayload:
		e = e.Int64("id", p.ID).Str("type", string(p.Type)).Str("mode", string(p.Mode))
		if p.SourceID != "" {
			e = e.Str("source_id", p.SourceID)
		}
	case PayloadDroppedPayload:
		e = e.Str("mode", string(p.Mode)).Str("reason", p.Reason).Int("size", p.Size)
	case TransportStateChangedPayload:
		e = e.Stringer("from", p.Old).Stringer("to", p.New).Str("mode", string(p.Mode))
		if p.Err != nil {
			e = e.AnErr("cause", p.Err)
		}
	case ConnectivityChangedPayload:
		e = e.Bool("online", p.Online)
	}
	return e
}
