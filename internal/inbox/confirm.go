package inbox

import (
	"github.com/colonyops/herald/internal/core/notify"
)

// ShowConfirm places a confirmation request in the single slot and returns its
// decision handle. A request already pending is replaced: its cancel
// continuation runs and its decision settles false with OutcomeReplaced.
//
// Continuations run after the slot is cleared and before the decision
// settles, outside the store lock. Inside OnConfirm or OnCancel,
// ActiveConfirm reports nil, or the replacing request when the request was
// superseded. A continuation may call ShowConfirm to chain a follow-up.
func (s *Store) ShowConfirm(opts notify.ConfirmOptions) *notify.Decision {
	req := &notify.ConfirmRequest{
		ID:             s.ids.Next(),
		ConfirmOptions: opts.Normalize(),
		Decision:       notify.NewDecision(),
	}

	var prev *notify.ConfirmRequest
	s.update(func() bool {
		prev = s.confirm
		s.confirm = req
		return true
	})

	if prev != nil {
		finish(prev, notify.OutcomeReplaced)
	}
	return req.Decision
}

// ActiveConfirm returns a copy of the pending request, or nil.
func (s *Store) ActiveConfirm() *notify.ConfirmRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirm == nil {
		return nil
	}
	c := *s.confirm
	return &c
}

// AcceptConfirm confirms the pending request.
func (s *Store) AcceptConfirm() bool {
	return s.ResolveConfirm(0, notify.OutcomeConfirmed)
}

// CancelConfirm cancels the pending request.
func (s *Store) CancelConfirm() bool {
	return s.ResolveConfirm(0, notify.OutcomeCancelled)
}

// DismissConfirm dismisses the pending request (escape or backdrop).
func (s *Store) DismissConfirm() bool {
	return s.ResolveConfirm(0, notify.OutcomeDismissed)
}

// CloseConfirm settles the pending decision false and clears the slot.
func (s *Store) CloseConfirm() {
	s.DismissConfirm()
}

// ResolveConfirm settles the pending request with outcome. A non-zero id must
// match the pending request, so a stale dialog cannot resolve its
// replacement. The slot is cleared first, then the continuation runs, then
// the decision settles. It reports whether a request was resolved.
func (s *Store) ResolveConfirm(id int64, outcome notify.Outcome) bool {
	if outcome == notify.OutcomePending {
		return false
	}

	var req *notify.ConfirmRequest
	s.update(func() bool {
		if s.confirm == nil || (id != 0 && s.confirm.ID != id) {
			return false
		}
		req = s.confirm
		s.confirm = nil
		return true
	})

	if req == nil {
		return false
	}
	finish(req, outcome)
	return true
}

// finish runs the continuation for outcome and settles the decision, even if
// the continuation panics.
func finish(req *notify.ConfirmRequest, outcome notify.Outcome) {
	defer req.Decision.Settle(outcome)

	if outcome == notify.OutcomeConfirmed {
		if req.OnConfirm != nil {
			req.OnConfirm()
		}
		return
	}
	if req.OnCancel != nil {
		req.OnCancel()
	}
}
