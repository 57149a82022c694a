package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rps/internal/ir"
	"github.com/roach88/rps/internal/queryir"
)

func TestReadEvents_Empty(t *testing.T) {
	s := createTestStore(t)

	events, err := s.ReadEvents(context.Background(), "nothing")
	require.NoError(t, err)
	assert.NotNil(t, events, "should return empty slice, not nil")
	assert.Empty(t, events)
}

func TestReadEvents_OrderedAndScopedToGame(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	k1 := ir.DeriveGameKey("alice", 1)
	k2 := ir.DeriveGameKey("bob", 1)

	mustUpdate(t, s, func(tx *Tx) error {
		for _, ev := range []ir.Event{
			createTestEvent(k1, ir.ActionJoin, 3),
			createTestEvent(k2, ir.ActionCreate, 2),
			createTestEvent(k1, ir.ActionCreate, 1),
		} {
			if err := tx.WriteEvent(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})

	events, err := s.ReadEvents(ctx, k1)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, ir.ActionCreate, events[0].Action)
	assert.Equal(t, int64(3), events[1].Seq)
	assert.Equal(t, ir.IRObject{"seq": ir.IRInt(3)}, events[1].Args)

	all, err := s.ReadAllEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ev, found, err := s.ReadEvent(ctx, 2)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, k2, ev.GameKey)

	_, found, err = s.ReadEvent(ctx, 99)
	require.NoError(t, err)
	assert.False(t, found)

	flow, err := s.ReadFlow(ctx, "test-flow")
	require.NoError(t, err)
	assert.Len(t, flow, 3)
}

func TestReadEvents_LargeIntegersKeepPrecision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	key := ir.DeriveGameKey("alice", 1)

	ev := createTestEvent(key, ir.ActionCreate, 1)
	ev.Result = ir.IRObject{"escrow": ir.IRInt(9007199254740993)} // 2^53 + 1
	mustUpdate(t, s, func(tx *Tx) error { return tx.WriteEvent(ctx, ev) })

	events, err := s.ReadEvents(ctx, key)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ir.IRInt(9007199254740993), events[0].Result["escrow"])
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	mustUpdate(t, s, func(tx *Tx) error {
		return tx.WriteEvent(ctx, createTestEvent("k", ir.ActionCreate, 41))
	})

	seq, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(41), seq)
}

func TestReadGames_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustUpdate(t, s, func(tx *Tx) error {
		if err := tx.InsertGame(ctx, createTestGame("bob", 1, 2)); err != nil {
			return err
		}
		return tx.InsertGame(ctx, createTestGame("alice", 1, 1))
	})

	games, err := s.ReadGames(ctx)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, ir.Identity("alice"), games[0].Creator)
	assert.Equal(t, ir.Identity("bob"), games[1].Creator)
}

func TestSelectGames_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ended := createTestGame("alice", 5, 3)
	ended.Opponent = "bob"
	ended.Status = ir.StatusEnded
	ended.Outcome = ir.OutcomeTie
	ended.CreatorReady = true
	ended.JoinerReady = true

	mustUpdate(t, s, func(tx *Tx) error {
		for _, g := range []ir.GameRecord{createTestGame("alice", 1, 1), createTestGame("bob", 1, 2), ended} {
			if err := tx.InsertGame(ctx, g); err != nil {
				return err
			}
		}
		return nil
	})

	where, err := queryir.Where(map[string]any{"creator": "alice"})
	require.NoError(t, err)
	games, err := s.SelectGames(ctx, where)
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, uint64(1), games[0].Wager)
	assert.Equal(t, uint64(5), games[1].Wager)

	where, err = queryir.Where(map[string]any{"status": "Ended", "joiner_ready": true})
	require.NoError(t, err)
	games, err = s.SelectGames(ctx, where)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, ended, games[0])

	where, err = queryir.Where(map[string]any{"status": "Committed"})
	require.NoError(t, err)
	games, err = s.SelectGames(ctx, where)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestSelectGames_InvalidFilter(t *testing.T) {
	s := createTestStore(t)

	_, err := s.SelectGames(context.Background(), queryir.Equals{Field: "salt", Value: ir.IRString("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown column "salt"`)
}

func TestReadBalance_Unknown(t *testing.T) {
	s := createTestStore(t)

	bal, err := s.ReadBalance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bal)
}

func TestBlobToDigest_BadLength(t *testing.T) {
	_, err := blobToDigest([]byte{1, 2, 3})
	assert.Error(t, err)

	d, err := blobToDigest(nil)
	require.NoError(t, err)
	assert.True(t, d.IsZero())
}
