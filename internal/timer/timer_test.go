package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerExpiry(t *testing.T) {
	clock := NewVirtualClock(time.Unix(0, 0))
	tm := New(clock)

	assert.False(t, tm.Expired(), "disarmed timer never expires")

	tm.Start(5 * time.Second)
	assert.False(t, tm.Expired())

	clock.Advance(4 * time.Second)
	assert.False(t, tm.Expired())

	clock.Advance(1 * time.Second)
	assert.True(t, tm.Expired())

	tm.Stop()
	assert.False(t, tm.Expired())
}

func TestTimersAreIndependent(t *testing.T) {
	clock := NewVirtualClock(time.Unix(0, 0))
	a := New(clock)
	b := New(clock)

	a.Start(1 * time.Second)
	b.Start(10 * time.Second)

	clock.Advance(2 * time.Second)
	assert.True(t, a.Expired())
	assert.False(t, b.Expired())
}
