package rsvp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeadlineGate(t *testing.T) {
	deadline := time.Date(2025, 11, 16, 6, 0, 0, 0, time.UTC)
	at := func(ts time.Time) func() time.Time { return func() time.Time { return ts } }

	assert.False(t, DeadlineGate{Deadline: deadline, Now: at(deadline.Add(-time.Second))}.Passed())
	assert.True(t, DeadlineGate{Deadline: deadline, Now: at(deadline)}.Passed())
	assert.True(t, DeadlineGate{Deadline: deadline, Now: at(deadline.Add(time.Hour))}.Passed())
	assert.False(t, DeadlineGate{Now: at(deadline)}.Passed(), "zero deadline never passes")
	assert.False(t, NewDeadlineGate(time.Now().Add(time.Hour)).Passed())
}
