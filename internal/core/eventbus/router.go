package eventbus

// OnlineSetter receives reachability changes.
type OnlineSetter interface {
	SetOnline(online bool)
}

// ConnectivityRouter fans connectivity.changed events out to the components
// that gate on reachability (store sound gating, adapter push retries).
type ConnectivityRouter struct {
	bus     *EventBus
	targets []OnlineSetter
}

// NewConnectivityRouter constructs a router for the given targets.
func NewConnectivityRouter(bus *EventBus, targets ...OnlineSetter) *ConnectivityRouter {
	return &ConnectivityRouter{bus: bus, targets: targets}
}

// Register subscribes the router to the bus.
func (r *ConnectivityRouter) Register() {
	if r == nil || r.bus == nil {
		return
	}

	r.bus.SubscribeConnectivityChanged(func(p ConnectivityChangedPayload) {
		for _, t := range r.targets {
			t.SetOnline(p.Online)
		}
	})
}
