// Package inbox holds the notification store: the single source of truth for
// notifications, the unread counter, the toast queue, the confirmation slot and
// the session preferences. Components read snapshots and mutate only through
// Store methods.
package inbox

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/core/panel"
	"github.com/colonyops/herald/internal/sound"
	"github.com/colonyops/herald/pkg/clock"
	"github.com/rs/zerolog"
)

const (
	DefaultToastDuration = 4 * time.Second
	ErrorToastDuration   = 5 * time.Second
)

// Options configure a Store. Zero values select the defaults.
type Options struct {
	Clock  clock.Clock
	Player sound.Player
	// SoundEnabled is the initial sound preference. Use NewOptions for the
	// default of true.
	SoundEnabled         bool
	DefaultToastDuration time.Duration
	ErrorToastDuration   time.Duration
	Logger               zerolog.Logger
}

// NewOptions returns Options with sound enabled and default durations.
func NewOptions() Options {
	return Options{
		SoundEnabled:         true,
		DefaultToastDuration: DefaultToastDuration,
		ErrorToastDuration:   ErrorToastDuration,
	}
}

// Snapshot is an immutable copy of the store state. Notifications are most
// recent first; toasts are in insertion order.
type Snapshot struct {
	Version       uint64
	Notifications []notify.Notification
	Unread        int
	Toasts        []notify.Toast
	Confirm       *notify.ConfirmRequest
	SoundEnabled  bool
	Online        bool
}

// Stats summarizes the notification list.
type Stats struct {
	Total  int
	Unread int
	ByType map[notify.Type]int
}

// Store is safe for concurrent use. Subscribers are called synchronously
// after each mutation, in mutation order, and must not call mutating Store
// methods from within the callback.
type Store struct {
	clock  clock.Clock
	player sound.Player
	ids    *notify.IDGenerator
	log    zerolog.Logger

	defaultToast time.Duration
	errorToast   time.Duration

	mu            sync.Mutex
	notifications []notify.Notification
	unread        int
	toasts        []notify.Toast
	timers        map[int64]clock.Timer
	confirm       *notify.ConfirmRequest
	soundEnabled  bool
	online        bool
	sources       map[string]struct{}
	version       uint64
	closed        bool

	pubMu   sync.Mutex
	subsMu  sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// New returns an empty store. The store starts online.
func New(opts Options) *Store {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Player == nil {
		opts.Player = sound.Nop{}
	}
	if opts.DefaultToastDuration == 0 {
		opts.DefaultToastDuration = DefaultToastDuration
	}
	if opts.ErrorToastDuration == 0 {
		opts.ErrorToastDuration = ErrorToastDuration
	}

	return &Store{
		clock:        opts.Clock,
		player:       opts.Player,
		ids:          notify.NewIDGenerator(opts.Clock.Now),
		log:          opts.Logger,
		defaultToast: opts.DefaultToastDuration,
		errorToast:   opts.ErrorToastDuration,
		timers:       make(map[int64]clock.Timer),
		soundEnabled: opts.SoundEnabled,
		online:       true,
		sources:      make(map[string]struct{}),
		subs:         make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn for every subsequent state change and returns a
// function that removes it.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// update runs fn under the state lock and publishes a snapshot if fn reports
// a change. pubMu is taken first so publications are delivered in mutation
// order.
func (s *Store) update(fn func() bool) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return
	}
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.subsMu.Lock()
	subs := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subsMu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	list := make([]notify.Notification, len(s.notifications))
	for i, n := range s.notifications {
		list[i] = n.Clone()
	}

	var confirm *notify.ConfirmRequest
	if s.confirm != nil {
		c := *s.confirm
		confirm = &c
	}

	return Snapshot{
		Version:       s.version,
		Notifications: list,
		Unread:        s.unread,
		Toasts:        slices.Clone(s.toasts),
		Confirm:       confirm,
		SoundEnabled:  s.soundEnabled,
		Online:        s.online,
	}
}

// AddNotification records p as a new unread notification at the head of the
// list, queues a toast with the same message and type, and plays the alert
// cue when sound is enabled and the client is online. A missing message is
// stored as an empty string. It returns the notification id.
func (s *Store) AddNotification(p notify.Payload) int64 {
	var (
		id   int64
		play bool
		cue  sound.Cue
	)

	s.update(func() bool {
		now := s.clock.Now()
		n := notify.Notification{
			ID:          s.ids.Next(),
			SourceID:    p.ID,
			Message:     p.Message,
			Type:        notify.ParseType(p.Type),
			Description: p.Description,
			CreatedAt:   now,
		}
		if len(p.Extra) > 0 {
			n.Extra = maps.Clone(p.Extra)
		}
		id = n.ID

		s.notifications = slices.Insert(s.notifications, 0, n)
		s.unread++
		if n.SourceID != "" {
			s.sources[n.SourceID] = struct{}{}
		}

		s.pushToastLocked(n.Message, n.Type, s.durationFor(n.Type), now)
		play = s.soundEnabled && s.online
		cue = sound.Cue{Type: n.Type, Message: n.Message}
		return true
	})

	if play {
		if err := s.player.Play(context.Background(), cue); err != nil {
			s.log.Debug().Err(err).Msg("alert sound failed")
		}
	}

	return id
}

// HasSource reports whether a notification with the given server-side id was
// ingested during this session, even if it has since been deleted.
func (s *Store) HasSource(sourceID string) bool {
	if sourceID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sources[sourceID]
	return ok
}

// MarkAsRead marks one notification read. Unknown ids and already read
// notifications are ignored.
func (s *Store) MarkAsRead(id int64) {
	s.update(func() bool {
		i := s.indexLocked(id)
		if i < 0 || s.notifications[i].Read {
			return false
		}
		s.notifications[i].Read = true
		s.decrementUnreadLocked()
		return true
	})
}

// MarkAllAsRead marks every notification read.
func (s *Store) MarkAllAsRead() {
	s.update(func() bool {
		changed := false
		for i := range s.notifications {
			if !s.notifications[i].Read {
				s.notifications[i].Read = true
				changed = true
			}
		}
		s.unread = 0
		return changed
	})
}

// DeleteNotification removes one notification. Unknown ids are ignored.
func (s *Store) DeleteNotification(id int64) {
	s.update(func() bool {
		i := s.indexLocked(id)
		if i < 0 {
			return false
		}
		if !s.notifications[i].Read {
			s.decrementUnreadLocked()
		}
		s.notifications = slices.Delete(s.notifications, i, i+1)
		return true
	})
}

// ClearAllNotifications empties the list. Toasts are unaffected.
func (s *Store) ClearAllNotifications() {
	s.update(func() bool {
		if len(s.notifications) == 0 && s.unread == 0 {
			return false
		}
		s.notifications = nil
		s.unread = 0
		return true
	})
}

// GetOldNotifications returns the notifications created within the last days
// days, bounds inclusive. It does not modify the store.
func (s *Store) GetOldNotifications(days int) []notify.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := panel.Window(s.notifications, s.clock.Now(), days)
	for i := range list {
		list[i] = list[i].Clone()
	}
	return list
}

// Notifications returns a copy of the list, most recent first.
func (s *Store) Notifications() []notify.Notification {
	return s.Snapshot().Notifications
}

// UnreadCount returns the unread counter.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Stats returns totals for the status bar.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Total:  len(s.notifications),
		Unread: s.unread,
		ByType: make(map[notify.Type]int),
	}
	for _, n := range s.notifications {
		st.ByType[n.Type]++
	}
	return st
}

// ToggleSound flips the sound preference and returns the new value.
func (s *Store) ToggleSound() bool {
	var enabled bool
	s.update(func() bool {
		s.soundEnabled = !s.soundEnabled
		enabled = s.soundEnabled
		return true
	})
	return enabled
}

// SoundEnabled returns the sound preference.
func (s *Store) SoundEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.soundEnabled
}

// SetOnline records network reachability.
func (s *Store) SetOnline(online bool) {
	s.update(func() bool {
		if s.online == online {
			return false
		}
		s.online = online
		return true
	})
}

// Online reports the last known reachability.
func (s *Store) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Close stops all toast timers and dismisses a pending confirmation. The
// store remains readable.
func (s *Store) Close() {
	var pending *notify.ConfirmRequest

	s.update(func() bool {
		if s.closed {
			return false
		}
		s.closed = true
		for id, t := range s.timers {
			t.Stop()
			delete(s.timers, id)
		}
		pending = s.confirm
		s.confirm = nil
		return pending != nil
	})

	if pending != nil {
		finish(pending, notify.OutcomeDismissed)
	}
}

func (s *Store) indexLocked(id int64) int {
	return slices.IndexFunc(s.notifications, func(n notify.Notification) bool {
		return n.ID == id
	})
}

func (s *Store) decrementUnreadLocked() {
	if s.unread > 0 {
		s.unread--
	}
}
