package gesture

import "time"

// Gate rate-limits actions to at most one per interval. It is a single slot
// shared by every action kind: accepting any action closes the gate for all.
//
// The zero Gate has never accepted an action and admits the first one.
type Gate struct {
	Interval time.Duration
	last     time.Time
	fired    bool
}

// NewGate creates an open gate with the given interval.
func NewGate(interval time.Duration) Gate {
	return Gate{Interval: interval}
}

// Allow reports whether an action at now would be accepted: either nothing has
// been accepted yet, or strictly more than Interval has passed since the last one.
func (g Gate) Allow(now time.Time) bool {
	return !g.fired || now.Sub(g.last) > g.Interval
}

// Accept records an accepted action at now and returns the updated gate.
func (g Gate) Accept(now time.Time) Gate {
	g.last = now
	g.fired = true
	return g
}

// Last returns the time of the last accepted action and whether there was one.
func (g Gate) Last() (time.Time, bool) {
	return g.last, g.fired
}
