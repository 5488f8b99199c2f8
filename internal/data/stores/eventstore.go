// Package stores provides SQLite-backed persistence for the reference events
// server.
package stores

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colonyops/herald/internal/core/notify"
	"github.com/colonyops/herald/internal/data/db"
	"github.com/google/uuid"
)

// Broadcast is the recipient value delivered to every user.
const Broadcast = "*"

// DefaultListLimit caps ListSince when the caller passes no limit.
const DefaultListLimit = 500

// Event is a published notification addressed to one user or to everyone.
type Event struct {
	ID        string
	Recipient string
	Payload   notify.Payload
	CreatedAt time.Time
}

// EventStore is an append-only event log backed by SQLite.
type EventStore struct {
	db  *db.DB
	now func() time.Time
}

// NewEventStore creates a new SQLite-backed event log.
func NewEventStore(db *db.DB) *EventStore {
	return &EventStore{db: db, now: time.Now}
}

// Append stores p for recipient. A missing payload id is replaced with a
// UUID and created_at is always set to the server's clock.
func (s *EventStore) Append(ctx context.Context, recipient string, p notify.Payload) (Event, error) {
	if recipient == "" {
		recipient = Broadcast
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Type = string(notify.ParseType(p.Type))
	p.SentAt = s.now().UTC()

	data, err := json.Marshal(p)
	if err != nil {
		return Event{}, fmt.Errorf("marshal payload: %w", err)
	}

	_, err = s.db.Conn().ExecContext(ctx,
		"INSERT INTO events (id, recipient, type, payload, created_at) VALUES (?, ?, ?, ?, ?)",
		p.ID, recipient, p.Type, string(data), p.SentAt.UnixNano(),
	)
	if IsConstraintError(err) {
		return Event{}, fmt.Errorf("%w: %s", ErrDuplicateEvent, p.ID)
	}
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}

	return Event{ID: p.ID, Recipient: recipient, Payload: p, CreatedAt: p.SentAt}, nil
}

// ListSince returns events visible to recipient (addressed to them or
// broadcast) created at or after since, oldest first.
func (s *EventStore) ListSince(ctx context.Context, recipient string, since time.Time, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, recipient, payload, created_at FROM events
		WHERE (recipient = ? OR recipient = ?) AND created_at >= ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`,
		recipient, Broadcast, unixNanos(since), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []Event
	for rows.Next() {
		var (
			ev        Event
			payload   string
			createdAt int64
		)
		if err := rows.Scan(&ev.ID, &ev.Recipient, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &ev.Payload); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", ev.ID, err)
		}
		ev.CreatedAt = time.Unix(0, createdAt).UTC()
		events = append(events, ev)
	}

	return events, rows.Err()
}

// Prune deletes events created before cutoff and returns the number removed.
func (s *EventStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.Conn().ExecContext(ctx, "DELETE FROM events WHERE created_at < ?", unixNanos(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	return res.RowsAffected()
}

// unixNanos clamps times before the epoch (including the zero time) to 0.
func unixNanos(t time.Time) int64 {
	if t.Before(time.Unix(0, 0)) {
		return 0
	}
	return t.UnixNano()
}
