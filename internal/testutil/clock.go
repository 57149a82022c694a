package testutil

import "sync"

// DeterministicClock is the engine.Sequencer used by the scenario harness.
// It counts committed events from zero and can be rewound, so a scenario
// replayed against a fresh store reproduces the same seqs and event IDs.
type DeterministicClock struct {
	mu   sync.Mutex
	last int64
}

// NewDeterministicClock returns a clock for an empty event log.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next records a committed event and returns its seq.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last++
	return c.last
}

// Current returns the seq of the last committed event.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Reset rewinds the clock to an empty log. Pair it with a fresh store.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last = 0
}
