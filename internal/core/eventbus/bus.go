package eventbus

import (
	"context"
	"sync"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus delivers events asynchronously on the goroutine running Start.
// Publish never blocks: when the buffer is full the event is dropped and the
// OnDrop hooks fire.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New returns a bus with the given buffer size.
func New(size int) *EventBus {
	if size <= 0 {
		size = 1
	}
	return &EventBus{
		ch:   make(chan envelope, size),
		subs: make(map[Event][]func(any)),
	}
}

// Start dispatches events until ctx is cancelled.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	subs := make([]func(any), len(bus.subs[env.event]))
	copy(subs, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					bus.runOnPanic(env.event, env.payload, r)
				}
			}()
			fn(env.payload)
		}()
	}
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(event)
}

// PublishConnectivityChanged publishes a connectivity.changed event.
func (bus *EventBus) PublishConnectivityChanged(p ConnectivityChangedPayload) {
	bus.send(EventConnectivityChanged, p)
}

// SubscribeConnectivityChanged registers fn for connectivity.changed.
func (bus *EventBus) SubscribeConnectivityChanged(fn func(ConnectivityChangedPayload)) {
	bus.subscribe(EventConnectivityChanged, func(p any) { fn(p.(ConnectivityChangedPayload)) })
}

// PublishNotificationAdded publishes a notification.added event.
func (bus *EventBus) PublishNotificationAdded(p NotificationAddedPayload) {
	bus.send(EventNotificationAdded, p)
}

// SubscribeNotificationAdded registers fn for notification.added.
func (bus *EventBus) SubscribeNotificationAdded(fn func(NotificationAddedPayload)) {
	bus.subscribe(EventNotificationAdded, func(p any) { fn(p.(NotificationAddedPayload)) })
}

// PublishPayloadDropped publishes a payload.dropped event.
func (bus *EventBus) PublishPayloadDropped(p PayloadDroppedPayload) {
	bus.send(EventPayloadDropped, p)
}

// SubscribePayloadDropped registers fn for payload.dropped.
func (bus *EventBus) SubscribePayloadDropped(fn func(PayloadDroppedPayload)) {
	bus.subscribe(EventPayloadDropped, func(p any) { fn(p.(PayloadDroppedPayload)) })
}

// PublishTransportStateChanged publishes a transport.state-changed event.
func (bus *EventBus) PublishTransportStateChanged(p TransportStateChangedPayload) {
	bus.send(EventTransportStateChanged, p)
}

// SubscribeTransportStateChanged registers fn for transport.state-changed.
func (bus *EventBus) SubscribeTransportStateChanged(fn func(TransportStateChangedPayload)) {
	bus.subscribe(EventTransportStateChanged, func(p any) { fn(p.(TransportStateChangedPayload)) })
}

// PublishTuiStarted publishes a tui.started event.
func (bus *EventBus) PublishTuiStarted(p TUIStartedPayload) {
	bus.send(EventTuiStarted, p)
}

// SubscribeTuiStarted registers fn for tui.started.
func (bus *EventBus) SubscribeTuiStarted(fn func(TUIStartedPayload)) {
	bus.subscribe(EventTuiStarted, func(p any) { fn(p.(TUIStartedPayload)) })
}

// PublishTuiStopped publishes a tui.stopped event.
func (bus *EventBus) PublishTuiStopped(p TUIStoppedPayload) {
	bus.send(EventTuiStopped, p)
}

// SubscribeTuiStopped registers fn for tui.stopped.
func (bus *EventBus) SubscribeTuiStopped(fn func(TUIStoppedPayload)) {
	bus.subscribe(EventTuiStopped, func(p any) { fn(p.(TUIStoppedPayload)) })
}
