package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rps/internal/engine"
	"github.com/roach88/rps/internal/ir"
)

var _ engine.Sequencer = (*DeterministicClock)(nil)

// playOpening runs create and join on a fresh store and returns the event
// IDs and seqs.
func playOpening(t *testing.T, clock *DeterministicClock) ([]string, []int64) {
	t.Helper()
	s := NewStore(t)
	Seed(t, s, map[ir.Identity]uint64{"alice": 1000, "bob": 1000})
	e := engine.New(s, NewFixedFlowGenerator("flow-replay"), engine.WithClock(clock))
	ctx := context.Background()

	g, err := e.Create(ctx, "alice", 100)
	require.NoError(t, err)
	_, err = e.Join(ctx, "bob", g.Key)
	require.NoError(t, err)

	events, err := s.ReadAllEvents(ctx)
	require.NoError(t, err)
	ids := make([]string, len(events))
	seqs := make([]int64, len(events))
	for i, ev := range events {
		ids[i] = ev.ID
		seqs[i] = ev.Seq
	}
	return ids, seqs
}

func TestDeterministicClock_ResetReplaysIDs(t *testing.T) {
	clock := NewDeterministicClock()

	firstIDs, firstSeqs := playOpening(t, clock)
	assert.Equal(t, []int64{1, 2}, firstSeqs)
	assert.Equal(t, int64(2), clock.Current())

	clock.Reset()
	secondIDs, secondSeqs := playOpening(t, clock)
	assert.Equal(t, firstSeqs, secondSeqs)
	assert.Equal(t, firstIDs, secondIDs)
}

func TestDeterministicClock_WithoutResetContinues(t *testing.T) {
	clock := NewDeterministicClock()

	firstIDs, _ := playOpening(t, clock)
	secondIDs, secondSeqs := playOpening(t, clock)

	// seq is part of the event ID, so a clock carried over changes every ID.
	assert.Equal(t, []int64{3, 4}, secondSeqs)
	assert.NotEqual(t, firstIDs, secondIDs)
}

func TestDeterministicClock_ConcurrentNext(t *testing.T) {
	clock := NewDeterministicClock()

	const n = 50
	var mu sync.Mutex
	seen := make(map[int64]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seq := clock.Next()
			mu.Lock()
			seen[seq] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n, "every seq handed out once")
	assert.Equal(t, int64(n), clock.Current())
}
