package eventbus

import "sync"

// hookList is an append-only list of observers. Callers iterate a snapshot,
// so a hook may register further hooks without deadlocking.
type hookList[F any] struct {
	mu  sync.RWMutex
	fns []F
}

func (l *hookList[F]) add(fn F) {
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *hookList[F]) snapshot() []F {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]F(nil), l.fns...)
}

type hooks struct {
	published  hookList[func(Event, any)]
	dropped    hookList[func(Event, any)]
	subscribed hookList[func(Event)]
	panicked   hookList[func(Event, any, any)]
}

// OnPublish observes every event accepted into the buffer. It runs on the
// publisher's goroutine.
func (bus *EventBus) OnPublish(fn func(Event, any)) { bus.hooks.published.add(fn) }

// OnDrop observes events rejected because the buffer was full.
func (bus *EventBus) OnDrop(fn func(Event, any)) { bus.hooks.dropped.add(fn) }

// OnSubscribe observes subscriber registration.
func (bus *EventBus) OnSubscribe(fn func(Event)) { bus.hooks.subscribed.add(fn) }

// OnPanic observes a recovered subscriber panic. A panicking OnPanic hook is
// itself recovered and ignored.
func (bus *EventBus) OnPanic(fn func(Event, any, any)) { bus.hooks.panicked.add(fn) }

// send is the non-blocking enqueue behind every typed Publish method.
func (bus *EventBus) send(event Event, payload any) {
	observers := &bus.hooks.published
	select {
	case bus.ch <- envelope{event: event, payload: payload}:
	default:
		observers = &bus.hooks.dropped
	}
	for _, fn := range observers.snapshot() {
		fn(event, payload)
	}
}

func (bus *EventBus) runOnSubscribe(event Event) {
	for _, fn := range bus.hooks.subscribed.snapshot() {
		fn(event)
	}
}

func (bus *EventBus) runOnPanic(event Event, payload any, recovered any) {
	for _, fn := range bus.hooks.panicked.snapshot() {
		func() {
			defer func() { _ = recover() }()
			fn(event, payload, recovered)
		}()
	}
}
