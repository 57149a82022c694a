package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/rps/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestGame returns an Open game for creator with the given wager.
func createTestGame(creator ir.Identity, wager uint64, seq int64) ir.GameRecord {
	return ir.GameRecord{
		Key:     ir.DeriveGameKey(creator, wager),
		Creator: creator,
		Wager:   wager,
		Status:  ir.StatusOpen,
		Seq:     seq,
	}
}

// createTestEvent returns a minimal event for key at seq.
func createTestEvent(key ir.GameKey, action string, seq int64) ir.Event {
	args := ir.IRObject{"seq": ir.IRInt(seq)}
	return ir.Event{
		ID:        ir.MustEventID("test-flow", key, action, args, seq),
		Seq:       seq,
		FlowToken: "test-flow",
		GameKey:   key,
		Action:    action,
		Caller:    "alice",
		Args:      args,
		Result:    ir.IRObject{},
	}
}

// mustUpdate runs fn in a transaction and fails the test on error.
func mustUpdate(t *testing.T, s *Store, fn func(tx *Tx) error) {
	t.Helper()
	if err := s.Update(context.Background(), fn); err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
}
