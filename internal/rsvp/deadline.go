package rsvp

import "time"

// DeadlineGate decides whether new submissions are still accepted.
type DeadlineGate struct {
	Deadline time.Time
	Now      func() time.Time
}

// NewDeadlineGate returns a gate using the wall clock.
func NewDeadlineGate(deadline time.Time) DeadlineGate {
	return DeadlineGate{Deadline: deadline, Now: time.Now}
}

// Passed reports whether now is at or after the deadline. A zero deadline
// never passes.
func (g DeadlineGate) Passed() bool {
	if g.Deadline.IsZero() {
		return false
	}
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return !now().Before(g.Deadline)
}
