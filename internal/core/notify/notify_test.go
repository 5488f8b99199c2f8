package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
	}{
		{"booking", TypeBooking},
		{"PAYMENT", TypePayment},
		{"  reminder ", TypeReminder},
		{"admin", TypeAdmin},
		{"error", TypeError},
		{"", TypeInfo},
		{"celebration", TypeInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseType(tt.in))
		})
	}
}

func TestNotification_Clone_does_not_share_extra(t *testing.T) {
	n := Notification{Extra: map[string]any{"k": "v"}}
	c := n.Clone()
	c.Extra["k"] = "changed"

	assert.Equal(t, "v", n.Extra["k"])
}

func TestIDGenerator_same_millisecond_is_unique(t *testing.T) {
	fixed := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	g := NewIDGenerator(func() time.Time { return fixed })

	a := g.Next()
	b := g.Next()
	c := g.Next()

	assert.Equal(t, fixed.UnixMilli(), a)
	assert.Equal(t, a+1, b)
	assert.Equal(t, b+1, c)
}

func TestIDGenerator_clock_going_backwards_stays_monotonic(t *testing.T) {
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	g := NewIDGenerator(func() time.Time { return now })

	first := g.Next()
	now = now.Add(-time.Hour)
	second := g.Next()

	assert.Greater(t, second, first)
}

func TestIDGenerator_concurrent_calls_unique(t *testing.T) {
	g := NewIDGenerator(nil)

	const workers = 8
	const perWorker = 250

	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				id := g.Next()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestDecision_settles_once(t *testing.T) {
	d := NewDecision()

	confirmed, settled := d.Result()
	assert.False(t, confirmed)
	assert.False(t, settled)

	assert.True(t, d.Settle(OutcomeConfirmed))
	assert.False(t, d.Settle(OutcomeCancelled), "second settle is ignored")

	confirmed, settled = d.Result()
	assert.True(t, confirmed)
	assert.True(t, settled)
	assert.Equal(t, OutcomeConfirmed, d.Outcome())
}

func TestDecision_pending_outcome_does_not_settle(t *testing.T) {
	d := NewDecision()
	assert.False(t, d.Settle(OutcomePending))

	select {
	case <-d.Done():
		t.Fatal("decision should not be settled")
	default:
	}
}

func TestDecision_Wait(t *testing.T) {
	d := NewDecision()

	go d.Settle(OutcomeDismissed)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ok, err := d.Wait(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "dismissed", d.Outcome().String())
}

func TestDecision_Wait_context_cancelled(t *testing.T) {
	d := NewDecision()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfirmOptions_Normalize(t *testing.T) {
	o := ConfirmOptions{Variant: "DANGER"}.Normalize()

	assert.Equal(t, "Confirm", o.ConfirmText)
	assert.Equal(t, "Cancel", o.CancelText)
	assert.NotEmpty(t, o.Title)
	assert.Equal(t, VariantDanger, o.Variant)

	assert.Equal(t, VariantInfo, ConfirmOptions{Variant: "purple"}.Normalize().Variant)
}
