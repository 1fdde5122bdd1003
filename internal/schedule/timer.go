package schedule

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// State is a timer's position in its lifecycle. Armed moves to exactly one of Fired or
// Cancelled and never changes again.
type State int32

const (
	StateArmed State = iota
	StateFired
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateArmed:
		return "armed"
	case StateFired:
		return "fired"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "armed":
		*s = StateArmed
	case "fired":
		*s = StateFired
	case "cancelled":
		*s = StateCancelled
	default:
		return fmt.Errorf("unknown timer state %q", b)
	}
	return nil
}

// Callback runs once when a timer fires, on its own goroutine. A returned error or panic is
// logged and affects no other timer.
type Callback func(ctx context.Context, t *Timer) error

// Timer is the handle returned by Arm.
type Timer struct {
	ID      string
	Label   string
	Request Request
	ArmedAt time.Time
	FireAt  time.Time

	seq   uint64
	index int
	state atomic.Int32
	cb    Callback
	owner *Scheduler
	done  chan struct{}
}

// State returns the timer's current state.
func (t *Timer) State() State {
	return State(t.state.Load())
}

// Done is closed once the timer is cancelled, or once its callback has returned.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}

// Cancel stops the timer if it is still armed and reports whether it did. Once Cancel returns
// true the callback will never run. Cancelling a fired or cancelled timer is a no-op.
func (t *Timer) Cancel() bool {
	return t.owner.cancel(t)
}

// Info is a read-only view of a timer for listings.
type Info struct {
	ID      string    `json:"id"`
	Label   string    `json:"label,omitempty"`
	Kind    Kind      `json:"kind"`
	When    string    `json:"when"`
	ArmedAt time.Time `json:"armed_at"`
	FireAt  time.Time `json:"fire_at"`
	State   State     `json:"state"`
}

// Info returns a snapshot of the timer.
func (t *Timer) Info() Info {
	return Info{
		ID:      t.ID,
		Label:   t.Label,
		Kind:    t.Request.Kind,
		When:    t.Request.String(),
		ArmedAt: t.ArmedAt,
		FireAt:  t.FireAt,
		State:   t.State(),
	}
}
