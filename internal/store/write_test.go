package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rps/internal/ir"
	"github.com/roach88/rps/internal/ledger"
)

var _ ledger.Accounts = (*Tx)(nil)

func TestInsertGame_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	g := createTestGame("alice", 100, 1)

	mustUpdate(t, s, func(tx *Tx) error { return tx.InsertGame(ctx, g) })

	got, found, err := s.ReadGame(ctx, g.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, g, got)
	assert.True(t, got.CreatorCommitment.IsZero())
	assert.Equal(t, ir.Identity(""), got.Opponent)
}

func TestInsertGame_DuplicateKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	g := createTestGame("alice", 100, 1)

	mustUpdate(t, s, func(tx *Tx) error { return tx.InsertGame(ctx, g) })

	err := s.Update(ctx, func(tx *Tx) error { return tx.InsertGame(ctx, g) })
	assert.Error(t, err)
}

func TestUpdateGame_AllMutableFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	g := createTestGame("alice", 100, 1)
	mustUpdate(t, s, func(tx *Tx) error { return tx.InsertGame(ctx, g) })

	g.Opponent = "bob"
	g.CreatorCommitment = ir.Commitment(ir.Rock, []byte("s1"))
	g.JoinerCommitment = ir.Commitment(ir.Paper, []byte("s2"))
	g.CreatorReady = true
	g.JoinerReady = true
	g.Status = ir.StatusEnded
	g.Outcome = ir.OutcomeJoinerWins
	g.Seq = 7
	mustUpdate(t, s, func(tx *Tx) error { return tx.UpdateGame(ctx, g) })

	got, found, err := s.ReadGame(ctx, g.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, g, got)
}

func TestUpdateGame_Missing(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.UpdateGame(ctx, createTestGame("ghost", 1, 1))
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0 rows affected")
}

func TestLoadGame_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustUpdate(t, s, func(tx *Tx) error {
		_, found, err := tx.LoadGame(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	})
}

func TestUpdate_RollbackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	g := createTestGame("alice", 100, 1)
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx *Tx) error {
		require.NoError(t, tx.InsertGame(ctx, g))
		require.NoError(t, tx.SaveBalance(ctx, "alice", 50))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, found, err := s.ReadGame(ctx, g.Key)
	require.NoError(t, err)
	assert.False(t, found, "game must not survive a rolled back transaction")

	bal, err := s.ReadBalance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), bal)
}

func TestBalances_ThroughLedger(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustUpdate(t, s, func(tx *Tx) error {
		if _, err := ledger.Deposit(ctx, tx, "alice", 100); err != nil {
			return err
		}
		_, err := ledger.Transfer(ctx, tx, "alice", "escrow/x", 30)
		return err
	})

	balances, err := s.ReadBalances(ctx)
	require.NoError(t, err)
	assert.Equal(t, []AccountBalance{
		{Account: "alice", Balance: 70},
		{Account: "escrow/x", Balance: 30},
	}, balances)
}

func TestSaveBalance_RejectsOutOfRange(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	err := s.Update(ctx, func(tx *Tx) error {
		return tx.SaveBalance(ctx, "alice", 1<<63)
	})
	assert.Error(t, err)
}

func TestWriteEvent_CanonicalJSON(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	key := ir.DeriveGameKey("alice", 5)

	ev := createTestEvent(key, ir.ActionCreate, 1)
	ev.Args = ir.IRObject{"wager": ir.IRInt(5), "creator": ir.IRString("alice")}
	ev.Result = ir.IRObject{"status": ir.IRString("Open")}
	mustUpdate(t, s, func(tx *Tx) error { return tx.WriteEvent(ctx, ev) })

	var args string
	require.NoError(t, s.db.QueryRow("SELECT args FROM events WHERE seq = 1").Scan(&args))
	assert.Equal(t, `{"creator":"alice","wager":5}`, args)
}

func TestWriteTransfer_LinkedToEvent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	key := ir.DeriveGameKey("alice", 5)

	mustUpdate(t, s, func(tx *Tx) error {
		if err := tx.WriteEvent(ctx, createTestEvent(key, ir.ActionCreate, 1)); err != nil {
			return err
		}
		return tx.WriteTransfer(ctx, ir.Transfer{EventSeq: 1, From: "alice", To: ir.EscrowAccount(key), Amount: 5})
	})

	transfers, err := s.ReadTransfers(ctx, key)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, ir.Transfer{EventSeq: 1, From: "alice", To: ir.EscrowAccount(key), Amount: 5}, transfers[0])
}
