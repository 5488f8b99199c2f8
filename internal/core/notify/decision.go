package notify

import (
	"context"
	"strings"
	"sync"
)

// Variant selects the visual treatment of a confirmation dialog. It carries no
// behavioral difference.
type Variant string

const (
	VariantDanger  Variant = "danger"
	VariantWarning Variant = "warning"
	VariantInfo    Variant = "info"
)

// ParseVariant normalizes s; unknown values map to VariantInfo.
func ParseVariant(s string) Variant {
	switch v := Variant(strings.ToLower(strings.TrimSpace(s))); v {
	case VariantDanger, VariantWarning, VariantInfo:
		return v
	default:
		return VariantInfo
	}
}

// ConfirmOptions describes a confirmation request.
type ConfirmOptions struct {
	Title       string
	Message     string
	ConfirmText string
	CancelText  string
	Variant     Variant

	// OnConfirm runs before the decision settles true.
	OnConfirm func()
	// OnCancel runs before the decision settles false, whatever the reason.
	OnCancel func()
}

// Normalize fills defaults for empty labels and variant.
func (o ConfirmOptions) Normalize() ConfirmOptions {
	if o.Title == "" {
		o.Title = "Are you sure?"
	}
	if o.ConfirmText == "" {
		o.ConfirmText = "Confirm"
	}
	if o.CancelText == "" {
		o.CancelText = "Cancel"
	}
	o.Variant = ParseVariant(string(o.Variant))
	return o
}

// ConfirmRequest is the single active confirmation held by the store.
type ConfirmRequest struct {
	ID int64
	ConfirmOptions
	Decision *Decision
}

// Outcome records how a Decision was settled.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeConfirmed
	OutcomeCancelled
	OutcomeDismissed // escape, backdrop or explicit close
	OutcomeReplaced  // superseded by a newer request
)

func (o Outcome) String() string {
	switch o {
	case OutcomeConfirmed:
		return "confirmed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeDismissed:
		return "dismissed"
	case OutcomeReplaced:
		return "replaced"
	default:
		return "pending"
	}
}

// Decision is a single-settlement handle for a user's confirm/cancel choice.
// Only OutcomeConfirmed resolves to true.
type Decision struct {
	once    sync.Once
	done    chan struct{}
	mu      sync.Mutex
	outcome Outcome
}

// NewDecision returns an unsettled Decision.
func NewDecision() *Decision {
	return &Decision{done: make(chan struct{})}
}

// Settle records outcome and wakes waiters. Only the first call has any
// effect; it reports whether this call settled the decision.
func (d *Decision) Settle(outcome Outcome) bool {
	if outcome == OutcomePending {
		return false
	}

	settled := false
	d.once.Do(func() {
		d.mu.Lock()
		d.outcome = outcome
		d.mu.Unlock()
		close(d.done)
		settled = true
	})
	return settled
}

// Done is closed once the decision settles.
func (d *Decision) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the decision settles or ctx ends.
func (d *Decision) Wait(ctx context.Context) (bool, error) {
	select {
	case <-d.done:
		return d.Outcome() == OutcomeConfirmed, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Result returns the decision value and whether it has settled.
func (d *Decision) Result() (confirmed, settled bool) {
	o := d.Outcome()
	return o == OutcomeConfirmed, o != OutcomePending
}

// Outcome returns how the decision settled, or OutcomePending.
func (d *Decision) Outcome() Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outcome
}
