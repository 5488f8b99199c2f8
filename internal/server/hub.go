package server

import (
	"sync"
)

// subscriberBuffer is the number of frames queued per connection before new
// frames are dropped for that connection.
const subscriberBuffer = 16

// Hub fans published frames out to connected websocket subscribers, keyed by
// user id.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan []byte]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan []byte]struct{}),
	}
}

// Subscribe registers a subscriber for userID and returns its frame channel
// and a cleanup function. Cleanup closes the channel and may be called more
// than once.
func (h *Hub) Subscribe(userID string) (<-chan []byte, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan []byte, subscriberBuffer)
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[chan []byte]struct{})
	}
	h.subscribers[userID][ch] = struct{}{}

	cleanup := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[userID][ch]; !ok {
			return
		}
		delete(h.subscribers[userID], ch)
		close(ch)
		if len(h.subscribers[userID]) == 0 {
			delete(h.subscribers, userID)
		}
	}

	return ch, cleanup
}

// Publish sends frame to every subscriber of recipient, or to every
// subscriber when recipient is the broadcast address. It returns the number
// of subscribers that received the frame; full subscribers are skipped.
func (h *Hub) Publish(recipient string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	send := func(subs map[chan []byte]struct{}) {
		for ch := range subs {
			select {
			case ch <- frame:
				delivered++
			default:
			}
		}
	}

	if recipient == broadcast {
		for _, subs := range h.subscribers {
			send(subs)
		}
		return delivered
	}

	send(h.subscribers[recipient])
	return delivered
}

// CloseAll closes every subscriber channel, ending their connections.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, subs := range h.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(h.subscribers, userID)
	}
}

// SubscriberCount returns the number of active subscribers for a user.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

// TotalSubscribers returns the number of active subscribers across all users.
func (h *Hub) TotalSubscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	total := 0
	for _, subs := range h.subscribers {
		total += len(subs)
	}
	return total
}
