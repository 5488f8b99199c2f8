package inbox

import (
	"slices"
	"time"

	"github.com/colonyops/herald/internal/core/notify"
)

// ShowToast queues an ephemeral toast with the default duration for typ. It
// is not added to the notification list.
func (s *Store) ShowToast(message string, typ notify.Type) int64 {
	return s.ShowToastFor(message, typ, s.durationFor(typ))
}

// ShowToastFor queues a toast removed after d. A d of zero or less keeps the
// toast until RemoveToast.
func (s *Store) ShowToastFor(message string, typ notify.Type, d time.Duration) int64 {
	var id int64
	s.update(func() bool {
		id = s.pushToastLocked(message, notify.ParseType(string(typ)), d, s.clock.Now())
		return true
	})
	return id
}

// RemoveToast removes a toast and cancels its timer. Removing a toast that is
// already gone is a no-op.
func (s *Store) RemoveToast(id int64) {
	s.update(func() bool {
		return s.removeToastLocked(id)
	})
}

// RemoveAllToasts removes every toast.
func (s *Store) RemoveAllToasts() {
	s.update(func() bool {
		if len(s.toasts) == 0 {
			return false
		}
		for _, t := range s.toasts {
			if timer, ok := s.timers[t.ID]; ok {
				timer.Stop()
				delete(s.timers, t.ID)
			}
		}
		s.toasts = nil
		return true
	})
}

// Toasts returns the active toasts in insertion order.
func (s *Store) Toasts() []notify.Toast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.toasts)
}

func (s *Store) durationFor(typ notify.Type) time.Duration {
	if typ == notify.TypeError {
		return s.errorToast
	}
	return s.defaultToast
}

func (s *Store) pushToastLocked(message string, typ notify.Type, d time.Duration, now time.Time) int64 {
	t := notify.Toast{
		ID:        s.ids.Next(),
		Message:   message,
		Type:      typ,
		Duration:  d,
		CreatedAt: now,
	}
	s.toasts = append(s.toasts, t)

	if !t.Sticky() && !s.closed {
		id := t.ID
		s.timers[id] = s.clock.AfterFunc(d, func() { s.expireToast(id) })
	}
	return t.ID
}

// expireToast runs on the timer goroutine. A toast dismissed before its timer
// fired is already gone and nothing changes.
func (s *Store) expireToast(id int64) {
	s.update(func() bool {
		delete(s.timers, id)
		return s.removeToastLocked(id)
	})
}

func (s *Store) removeToastLocked(id int64) bool {
	i := slices.IndexFunc(s.toasts, func(t notify.Toast) bool { return t.ID == id })
	if i < 0 {
		return false
	}
	if timer, ok := s.timers[id]; ok {
		timer.Stop()
		delete(s.timers, id)
	}
	s.toasts = slices.Delete(s.toasts, i, i+1)
	return true
}
