package engine

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/roach88/rps/internal/store"
)

// Sequencer stamps events with seq values. Current is the seq of the last
// committed event; the engine stamps a pending operation with Current()+1
// and calls Next only after its transaction commits, so a rejected
// operation never burns a seq.
//
// Implemented by Clock and testutil.DeterministicClock.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is the production Sequencer. It is a logical clock, never wall
// time: replaying the same operations on a fresh database gives the same
// seqs and therefore the same event IDs.
type Clock struct {
	last atomic.Int64
}

// NewClock returns a clock for an empty event log.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose last committed seq is last.
func NewClockAt(last int64) *Clock {
	c := &Clock{}
	c.last.Store(last)
	return c
}

// ResumeClock positions a clock after the last event stored in s, so a
// reopened database continues its seq instead of colliding with it.
func ResumeClock(ctx context.Context, s *store.Store) (*Clock, error) {
	last, err := s.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume clock: %w", err)
	}
	return NewClockAt(last), nil
}

// Next records one more committed event and returns its seq.
func (c *Clock) Next() int64 {
	return c.last.Add(1)
}

// Current returns the seq of the last committed event.
func (c *Clock) Current() int64 {
	return c.last.Load()
}
