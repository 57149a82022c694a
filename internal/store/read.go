package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/rps/internal/ir"
	"github.com/roach88/rps/internal/queryir"
	"github.com/roach88/rps/internal/querysql"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectGame = `
	SELECT game_key, creator, opponent, creator_commitment, joiner_commitment,
	       creator_ready, joiner_ready, wager, status, outcome, seq
	FROM games
`

// ReadGame retrieves a single game by key.
// found is false (with a nil error) when no record exists.
func (s *Store) ReadGame(ctx context.Context, key ir.GameKey) (game ir.GameRecord, found bool, err error) {
	return loadGame(ctx, s.db, key)
}

// ReadGames returns all games ordered by last-mutation seq.
func (s *Store) ReadGames(ctx context.Context) ([]ir.GameRecord, error) {
	return s.SelectGames(ctx, nil)
}

// gameColumns is the scanGame column order.
var gameColumns = []string{
	"game_key", "creator", "opponent", "creator_commitment", "joiner_commitment",
	"creator_ready", "joiner_ready", "wager", "status", "outcome", "seq",
}

// SelectGames returns the games matching filter (nil matches all), ordered
// by last-mutation seq.
func (s *Store) SelectGames(ctx context.Context, filter queryir.Predicate) ([]ir.GameRecord, error) {
	query, params, err := querysql.Compile(queryir.Select{From: "games", Filter: filter, Fields: gameColumns})
	if err != nil {
		return nil, fmt.Errorf("select games: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	games := []ir.GameRecord{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}
	return games, nil
}

func loadGame(ctx context.Context, q queryer, key ir.GameKey) (ir.GameRecord, bool, error) {
	row := q.QueryRowContext(ctx, selectGame+` WHERE game_key = ?`, string(key))
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.GameRecord{}, false, nil
	}
	if err != nil {
		return ir.GameRecord{}, false, err
	}
	return g, true, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (ir.GameRecord, error) {
	var (
		g                           ir.GameRecord
		key, creator, opponent      string
		status, outcome             string
		creatorCommit, joinerCommit []byte
		creatorReady, joinerReady   int
		wager                       int64
	)

	err := row.Scan(&key, &creator, &opponent, &creatorCommit, &joinerCommit,
		&creatorReady, &joinerReady, &wager, &status, &outcome, &g.Seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return g, err
		}
		return g, fmt.Errorf("scan game: %w", err)
	}

	g.Key = ir.GameKey(key)
	g.Creator = ir.Identity(creator)
	g.Opponent = ir.Identity(opponent)
	g.CreatorReady = creatorReady == 1
	g.JoinerReady = joinerReady == 1
	g.Status = ir.Status(status)
	g.Outcome = ir.Outcome(outcome)

	if g.Wager, err = toUint64(wager); err != nil {
		return g, fmt.Errorf("scan game %s: wager: %w", key, err)
	}
	if g.CreatorCommitment, err = blobToDigest(creatorCommit); err != nil {
		return g, fmt.Errorf("scan game %s: creator %w", key, err)
	}
	if g.JoinerCommitment, err = blobToDigest(joinerCommit); err != nil {
		return g, fmt.Errorf("scan game %s: joiner %w", key, err)
	}
	return g, nil
}

// ReadBalance returns the balance of one account (0 if unknown).
func (s *Store) ReadBalance(ctx context.Context, account string) (uint64, error) {
	return loadBalance(ctx, s.db, account)
}

func loadBalance(ctx context.Context, q queryer, account string) (uint64, error) {
	var bal int64
	err := q.QueryRowContext(ctx, `SELECT balance FROM balances WHERE account = ?`, account).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load balance %s: %w", account, err)
	}
	return toUint64(bal)
}

// AccountBalance is one row of the balances table.
type AccountBalance struct {
	Account string `json:"account"`
	Balance uint64 `json:"balance"`
}

// ReadBalances returns every known account ordered by name.
func (s *Store) ReadBalances(ctx context.Context) ([]AccountBalance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account, balance FROM balances
		ORDER BY account COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	out := []AccountBalance{}
	for rows.Next() {
		var (
			ab  AccountBalance
			bal int64
		)
		if err := rows.Scan(&ab.Account, &bal); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		if ab.Balance, err = toUint64(bal); err != nil {
			return nil, fmt.Errorf("scan balance %s: %w", ab.Account, err)
		}
		out = append(out, ab)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate balances: %w", err)
	}
	return out, nil
}

const selectEvent = `
	SELECT seq, id, flow_token, game_key, action, caller, args, result
	FROM events
`

// ReadEvents returns the log of one game ordered by seq.
// Returns an empty slice (not nil) if the game has no events.
func (s *Store) ReadEvents(ctx context.Context, key ir.GameKey) ([]ir.Event, error) {
	return s.queryEvents(ctx, selectEvent+` WHERE game_key = ? ORDER BY seq ASC`, string(key))
}

// ReadFlow returns all events sharing a flow token ordered by seq.
func (s *Store) ReadFlow(ctx context.Context, flowToken string) ([]ir.Event, error) {
	return s.queryEvents(ctx, selectEvent+` WHERE flow_token = ? ORDER BY seq ASC`, flowToken)
}

// ReadEvent returns the event with the given seq.
func (s *Store) ReadEvent(ctx context.Context, seq int64) (ir.Event, bool, error) {
	events, err := s.queryEvents(ctx, selectEvent+` WHERE seq = ?`, seq)
	if err != nil {
		return ir.Event{}, false, err
	}
	if len(events) == 0 {
		return ir.Event{}, false, nil
	}
	return events[0], true, nil
}

// ReadAllEvents returns the whole log ordered by seq.
func (s *Store) ReadAllEvents(ctx context.Context) ([]ir.Event, error) {
	return s.queryEvents(ctx, selectEvent+` ORDER BY seq ASC`)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		var (
			ev                ir.Event
			key, caller       string
			argsJSON, resJSON string
		)
		if err := rows.Scan(&ev.Seq, &ev.ID, &ev.FlowToken, &key, &ev.Action, &caller, &argsJSON, &resJSON); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.GameKey = ir.GameKey(key)
		ev.Caller = ir.Identity(caller)
		if ev.Args, err = unmarshalObject(argsJSON); err != nil {
			return nil, fmt.Errorf("event %d: unmarshal args: %w", ev.Seq, err)
		}
		if ev.Result, err = unmarshalObject(resJSON); err != nil {
			return nil, fmt.Errorf("event %d: unmarshal result: %w", ev.Seq, err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ReadTransfers returns the ledger movements caused by one game's events,
// ordered by event seq then insertion order.
func (s *Store) ReadTransfers(ctx context.Context, key ir.GameKey) ([]ir.Transfer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.event_seq, t.from_account, t.to_account, t.amount
		FROM transfers t
		JOIN events e ON t.event_seq = e.seq
		WHERE e.game_key = ?
		ORDER BY t.event_seq ASC, t.id ASC
	`, string(key))
	if err != nil {
		return nil, fmt.Errorf("query transfers: %w", err)
	}
	defer rows.Close()

	transfers := []ir.Transfer{}
	for rows.Next() {
		var (
			tr     ir.Transfer
			amount int64
		)
		if err := rows.Scan(&tr.EventSeq, &tr.From, &tr.To, &amount); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		if tr.Amount, err = toUint64(amount); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return transfers, nil
}

// LastSeq returns the highest seq in the event log, or 0 for an empty log.
// The engine clock resumes from here.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}
