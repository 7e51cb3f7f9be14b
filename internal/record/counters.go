package record

import "sync/atomic"

// Counters tallies records by action plus structurally invalid records.
// The event loop is the only writer; readers may load concurrently.
type Counters struct {
	byAction [numActions]atomic.Uint64
	invalid  atomic.Uint64
}

// Count records one resolved record. Invalid records go to the invalid tally.
func (c *Counters) Count(status Status, a Action) {
	if status == StatusInvalid || a >= numActions || a == ActionNone {
		c.invalid.Add(1)
		return
	}
	c.byAction[a].Add(1)
}

// Get returns the tally for one action.
func (c *Counters) Get(a Action) uint64 {
	if a >= numActions {
		return 0
	}
	return c.byAction[a].Load()
}

// Invalid returns the invalid-record tally.
func (c *Counters) Invalid() uint64 {
	return c.invalid.Load()
}

// Total returns the sum over all actions and invalid records.
func (c *Counters) Total() uint64 {
	t := c.invalid.Load()
	for i := range c.byAction {
		t += c.byAction[i].Load()
	}
	return t
}

// Snapshot is a point-in-time copy of the counters keyed by action name.
type Snapshot struct {
	ByAction map[string]uint64
	Invalid  uint64
	Total    uint64
}

// Snapshot copies the counters. Each field is read atomically.
func (c *Counters) Snapshot() Snapshot {
	s := Snapshot{ByAction: make(map[string]uint64, numActions)}
	for _, a := range Actions() {
		v := c.byAction[a].Load()
		s.ByAction[a.String()] = v
		s.Total += v
	}
	s.Invalid = c.invalid.Load()
	s.Total += s.Invalid
	return s
}
