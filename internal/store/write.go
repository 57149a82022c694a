package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/rps/internal/ir"
)

// Tx is a write transaction handed to the callback of Store.Update.
// It satisfies ledger.Accounts, so ledger movements join the transaction.
type Tx struct {
	tx *sql.Tx
}

// LoadGame reads a game inside the transaction.
// found is false (with a nil error) when no record exists for key.
func (t *Tx) LoadGame(ctx context.Context, key ir.GameKey) (game ir.GameRecord, found bool, err error) {
	return loadGame(ctx, t.tx, key)
}

// InsertGame creates a new game record. Fails if the key already exists.
func (t *Tx) InsertGame(ctx context.Context, g ir.GameRecord) error {
	wager, err := toInt64(g.Wager)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO games
		(game_key, creator, opponent, creator_commitment, joiner_commitment,
		 creator_ready, joiner_ready, wager, status, outcome, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(g.Key),
		string(g.Creator),
		string(g.Opponent),
		digestToBlob(g.CreatorCommitment),
		digestToBlob(g.JoinerCommitment),
		boolToInt(g.CreatorReady),
		boolToInt(g.JoinerReady),
		wager,
		string(g.Status),
		string(g.Outcome),
		g.Seq,
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	return nil
}

// UpdateGame overwrites the mutable fields of an existing game in a single
// UPDATE. Creator and wager are immutable and are not written.
func (t *Tx) UpdateGame(ctx context.Context, g ir.GameRecord) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE games SET
			opponent = ?,
			creator_commitment = ?,
			joiner_commitment = ?,
			creator_ready = ?,
			joiner_ready = ?,
			status = ?,
			outcome = ?,
			seq = ?
		WHERE game_key = ?
	`,
		string(g.Opponent),
		digestToBlob(g.CreatorCommitment),
		digestToBlob(g.JoinerCommitment),
		boolToInt(g.CreatorReady),
		boolToInt(g.JoinerReady),
		string(g.Status),
		string(g.Outcome),
		g.Seq,
		string(g.Key),
	)
	if err != nil {
		return fmt.Errorf("update game: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update game: rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("update game %s: %d rows affected", g.Key, n)
	}
	return nil
}

// LoadBalance implements ledger.Accounts. Unknown accounts have balance 0.
func (t *Tx) LoadBalance(ctx context.Context, account string) (uint64, error) {
	return loadBalance(ctx, t.tx, account)
}

// SaveBalance implements ledger.Accounts.
func (t *Tx) SaveBalance(ctx context.Context, account string, balance uint64) error {
	v, err := toInt64(balance)
	if err != nil {
		return fmt.Errorf("save balance %s: %w", account, err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO balances (account, balance) VALUES (?, ?)
		ON CONFLICT(account) DO UPDATE SET balance = excluded.balance
	`, account, v)
	if err != nil {
		return fmt.Errorf("save balance %s: %w", account, err)
	}
	return nil
}

// WriteEvent appends an event to the log.
// Args and Result are serialized to canonical JSON per RFC 8785.
func (t *Tx) WriteEvent(ctx context.Context, ev ir.Event) error {
	argsJSON, err := marshalObject(ev.Args)
	if err != nil {
		return fmt.Errorf("write event: marshal args: %w", err)
	}
	resultJSON, err := marshalObject(ev.Result)
	if err != nil {
		return fmt.Errorf("write event: marshal result: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO events
		(seq, id, flow_token, game_key, action, caller, args, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.Seq,
		ev.ID,
		ev.FlowToken,
		string(ev.GameKey),
		ev.Action,
		string(ev.Caller),
		argsJSON,
		resultJSON,
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

// WriteTransfer records a ledger movement.
// The event referenced by EventSeq must already be written (foreign key).
func (t *Tx) WriteTransfer(ctx context.Context, tr ir.Transfer) error {
	amount, err := toInt64(tr.Amount)
	if err != nil {
		return fmt.Errorf("write transfer: %w", err)
	}

	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO transfers (event_seq, from_account, to_account, amount)
		VALUES (?, ?, ?, ?)
	`, tr.EventSeq, tr.From, tr.To, amount)
	if err != nil {
		return fmt.Errorf("write transfer: %w", err)
	}
	return nil
}
