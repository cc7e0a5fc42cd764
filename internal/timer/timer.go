// Package timer provides the opaque timer handles the core asks to arm and
// poll (spec §9 "Time": "Timers are opaque handles issued by an external
// service; the core asks expired? and start(deadline_ms)"). Six logical
// session timers plus the three L2 timers (AT response, satellite response,
// CIS response) all
// share one underlying tick source (spec §5 "Timer resources"); that source
// is Clock.Now, so tests can swap in a virtual clock.
package timer

import "time"

// Clock is the tick source every Timer is measured against. The real
// implementation is time.Now; tests substitute a virtual clock that only
// advances when told to, matching spec §9 ("A test double replaces the
// service with a virtual clock").
type Clock interface {
	Now() time.Time
}

// RealClock wraps time.Now.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// VirtualClock is a test double whose Now() only changes via Advance.
type VirtualClock struct {
	now time.Time
}

// NewVirtualClock creates a virtual clock starting at t.
func NewVirtualClock(t time.Time) *VirtualClock {
	return &VirtualClock{now: t}
}

func (c *VirtualClock) Now() time.Time { return c.now }

// Advance moves the virtual clock forward by d.
func (c *VirtualClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// Timer is a single logical timer: start it with a deadline, poll Expired
// on later ticks, Stop to disarm. It never blocks.
type Timer struct {
	clock    Clock
	deadline time.Time
	armed    bool
}

// New creates a disarmed timer against clock.
func New(clock Clock) *Timer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Timer{clock: clock}
}

// Start arms the timer to expire after d from the current clock reading.
func (t *Timer) Start(d time.Duration) {
	t.deadline = t.clock.Now().Add(d)
	t.armed = true
}

// Stop disarms the timer. Expired returns false on a disarmed timer.
func (t *Timer) Stop() {
	t.armed = false
}

// Armed reports whether the timer is currently running.
func (t *Timer) Armed() bool { return t.armed }

// Expired reports whether the timer is armed and its deadline has passed. It
// does not implicitly disarm — callers that want one-shot semantics call
// Stop after observing expiry, mirroring how the L2 driver explicitly
// cancels a conversation's deadline on every terminal state (spec §3
// invariant 3).
func (t *Timer) Expired() bool {
	return t.armed && !t.clock.Now().Before(t.deadline)
}

// Remaining returns the time left before expiry, or 0 if expired or disarmed.
func (t *Timer) Remaining() time.Duration {
	if !t.armed {
		return 0
	}
	if d := t.deadline.Sub(t.clock.Now()); d > 0 {
		return d
	}
	return 0
}
