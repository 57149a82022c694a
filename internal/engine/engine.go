package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/rps/internal/ir"
	"github.com/roach88/rps/internal/ledger"
	"github.com/roach88/rps/internal/store"
)

// MaxWager is the largest accepted wager. The pot (2 x wager) must fit a
// signed 64-bit balance.
const MaxWager = math.MaxInt64 / 2

// Engine executes game operations against a store.
//
// Thread-safety: all exported methods are safe for concurrent use; mutating
// operations are serialized.
type Engine struct {
	mu      sync.Mutex
	store   *store.Store
	clock   Sequencer
	flowGen FlowTokenGenerator
	logger  *slog.Logger
}

// EngineOption allows configuration of engine parameters.
type EngineOption func(*Engine)

// WithClock sets the logical clock. Use ResumeClock when reopening an
// existing database.
func WithClock(c Sequencer) EngineOption {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the structured logger. Default: discard.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over s. Flow tokens come from flowGen, one per
// operation.
func New(s *store.Store, flowGen FlowTokenGenerator, opts ...EngineOption) *Engine {
	e := &Engine{
		store:   s,
		clock:   NewClock(),
		flowGen: flowGen,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Open creates an Engine whose clock resumes after the last event in s.
func Open(ctx context.Context, s *store.Store, flowGen FlowTokenGenerator, opts ...EngineOption) (*Engine, error) {
	clock, err := ResumeClock(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("open engine: %w", err)
	}
	opts = append([]EngineOption{WithClock(clock)}, opts...)
	return New(s, flowGen, opts...), nil
}

// step is the state of one operation inside its store transaction.
type step struct {
	tx        *store.Tx
	seq       int64
	transfers []ir.Transfer
}

// transfer moves value through the ledger and remembers the movement for
// the transfer log.
func (s *step) transfer(ctx context.Context, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if _, err := ledger.Transfer(ctx, s.tx, from, to, amount); err != nil {
		return err
	}
	s.transfers = append(s.transfers, ir.Transfer{EventSeq: s.seq, From: from, To: to, Amount: amount})
	return nil
}

// record is what an operation writes to the event log.
type record struct {
	args   ir.IRObject
	result ir.IRObject
}

// apply runs fn inside one transaction, then appends the event and its
// transfers. The clock only advances if the transaction commits.
func (e *Engine) apply(
	ctx context.Context,
	action string,
	caller ir.Identity,
	key ir.GameKey,
	fn func(s *step) (record, error),
) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	seq := e.clock.Current() + 1
	flowToken := e.flowGen.Generate()

	err := e.store.Update(ctx, func(tx *store.Tx) error {
		s := &step{tx: tx, seq: seq}
		rec, err := fn(s)
		if err != nil {
			return err
		}

		id, err := ir.EventID(flowToken, key, action, rec.args, seq)
		if err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
		ev := ir.Event{
			ID:        id,
			Seq:       seq,
			FlowToken: flowToken,
			GameKey:   key,
			Action:    action,
			Caller:    caller,
			Args:      rec.args,
			Result:    rec.result,
		}
		if err := tx.WriteEvent(ctx, ev); err != nil {
			return err
		}
		for _, tr := range s.transfers {
			if err := tx.WriteTransfer(ctx, tr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Debug("operation rejected",
			"action", action,
			"game_key", shortKey(key),
			"caller", caller,
			"code", CodeOf(err),
			"error", err)
		return err
	}

	e.clock.Next()
	e.logger.Info("operation applied",
		"action", action,
		"game_key", shortKey(key),
		"caller", caller,
		"seq", seq,
		"flow_token", flowToken)
	return nil
}

// Create opens a game for caller and escrows the wager. The game key is
// derived from caller and wager, so a creator holds one game per wager.
func (e *Engine) Create(ctx context.Context, caller ir.Identity, wager uint64) (ir.GameRecord, error) {
	if err := checkCaller(caller, ""); err != nil {
		return ir.GameRecord{}, err
	}
	if wager > MaxWager {
		return ir.GameRecord{}, newGameError(CodeInvalidWager, "", caller, "wager %d exceeds maximum %d", wager, uint64(MaxWager))
	}

	key := ir.DeriveGameKey(caller, wager)
	var game ir.GameRecord

	err := e.apply(ctx, ir.ActionCreate, caller, key, func(s *step) (record, error) {
		_, found, err := s.tx.LoadGame(ctx, key)
		if err != nil {
			return record{}, err
		}
		if found {
			return record{}, newGameError(CodeGameExists, key, caller, "a game with wager %d already exists", wager)
		}

		game = ir.GameRecord{
			Key:     key,
			Creator: caller,
			Wager:   wager,
			Status:  ir.StatusOpen,
			Seq:     s.seq,
		}
		if err := s.tx.InsertGame(ctx, game); err != nil {
			return record{}, err
		}
		if err := s.transfer(ctx, string(caller), ir.EscrowAccount(key), wager); err != nil {
			return record{}, ledgerError(err, key, caller, "escrow wager")
		}

		result, err := gameResult(ctx, s, game)
		return record{
			args: ir.IRObject{
				"creator": ir.IRString(caller),
				"wager":   ir.IRInt(int64(wager)),
			},
			result: result,
		}, err
	})
	if err != nil {
		return ir.GameRecord{}, err
	}
	return game, nil
}

// Join makes caller the opponent of an Open game and escrows the matching
// wager. The game becomes Committed.
func (e *Engine) Join(ctx context.Context, caller ir.Identity, key ir.GameKey) (ir.GameRecord, error) {
	if err := checkCaller(caller, key); err != nil {
		return ir.GameRecord{}, err
	}

	var game ir.GameRecord
	err := e.apply(ctx, ir.ActionJoin, caller, key, func(s *step) (record, error) {
		g, err := e.load(ctx, s, key, caller)
		if err != nil {
			return record{}, err
		}
		if g.Status != ir.StatusOpen {
			return record{}, newGameError(CodeGameNotOpen, key, caller, "game is %s", g.Status)
		}
		if g.Creator == caller {
			return record{}, newGameError(CodeUnauthorized, key, caller, "creator cannot join their own game")
		}

		g.Opponent = caller
		g.Status = ir.StatusCommitted
		g.Seq = s.seq
		if err := s.tx.UpdateGame(ctx, g); err != nil {
			return record{}, err
		}
		if err := s.transfer(ctx, string(caller), ir.EscrowAccount(key), g.Wager); err != nil {
			return record{}, ledgerError(err, key, caller, "escrow wager")
		}
		game = g

		result, err := gameResult(ctx, s, g)
		return record{
			args:   ir.IRObject{"joiner": ir.IRString(caller)},
			result: result,
		}, err
	})
	if err != nil {
		return ir.GameRecord{}, err
	}
	return game, nil
}

// Commit stores SHA-256(move || salt) as the caller's commitment. The move
// and salt themselves are never persisted. Each party commits exactly once.
func (e *Engine) Commit(ctx context.Context, caller ir.Identity, key ir.GameKey, move ir.Move, salt []byte) (ir.GameRecord, error) {
	if err := checkCaller(caller, key); err != nil {
		return ir.GameRecord{}, err
	}

	var game ir.GameRecord
	err := e.apply(ctx, ir.ActionCommit, caller, key, func(s *step) (record, error) {
		g, err := e.load(ctx, s, key, caller)
		if err != nil {
			return record{}, err
		}
		if g.Status == ir.StatusEnded {
			return record{}, newGameError(CodeGameAlreadyEnded, key, caller, "game has ended")
		}
		role := g.RoleOf(caller)
		if role == ir.RoleNone {
			return record{}, newGameError(CodeUnauthorized, key, caller, "caller is not a party to this game")
		}
		if !move.Valid() {
			return record{}, newGameError(CodeInvalidMove, key, caller, "%s is not rock, paper or scissors", move)
		}

		slot := &g.CreatorCommitment
		if role == ir.RoleJoiner {
			slot = &g.JoinerCommitment
		}
		if !slot.IsZero() {
			return record{}, newGameError(CodeMoveAlreadyCommitted, key, caller, "move already committed")
		}
		*slot = ir.Commitment(move, salt)
		g.Seq = s.seq
		if err := s.tx.UpdateGame(ctx, g); err != nil {
			return record{}, err
		}
		game = g

		return record{
			args: ir.IRObject{"role": ir.IRString(roleName(role))},
			result: ir.IRObject{
				"commitment": ir.IRString(slot.Hex()),
				"status":     ir.IRString(string(g.Status)),
			},
		}, nil
	})
	if err != nil {
		return ir.GameRecord{}, err
	}
	return game, nil
}

// Finalize marks the caller ready. When both parties are ready the outcome
// is decided, the escrow is paid out and the game ends, in the same
// transaction as the final ready flag.
func (e *Engine) Finalize(ctx context.Context, caller ir.Identity, key ir.GameKey) (ir.GameRecord, error) {
	if err := checkCaller(caller, key); err != nil {
		return ir.GameRecord{}, err
	}

	var game ir.GameRecord
	err := e.apply(ctx, ir.ActionFinalize, caller, key, func(s *step) (record, error) {
		g, err := e.load(ctx, s, key, caller)
		if err != nil {
			return record{}, err
		}
		if g.Status == ir.StatusEnded {
			return record{}, newGameError(CodeGameAlreadyEnded, key, caller, "game has ended")
		}

		role := g.RoleOf(caller)
		switch role {
		case ir.RoleCreator:
			if g.CreatorCommitment.IsZero() {
				return record{}, newGameError(CodeMoveNotSelected, key, caller, "commit a move before finalizing")
			}
			g.CreatorReady = true
		case ir.RoleJoiner:
			if g.JoinerCommitment.IsZero() {
				return record{}, newGameError(CodeMoveNotSelected, key, caller, "commit a move before finalizing")
			}
			g.JoinerReady = true
		default:
			return record{}, newGameError(CodeUnauthorized, key, caller, "caller is not a party to this game")
		}

		if g.CreatorReady && g.JoinerReady {
			g.Outcome = DecideWinner(g.CreatorCommitment, g.JoinerCommitment)
			g.Status = ir.StatusEnded
			if err := settle(ctx, s, g); err != nil {
				return record{}, err
			}
		}
		g.Seq = s.seq
		if err := s.tx.UpdateGame(ctx, g); err != nil {
			return record{}, err
		}
		game = g

		result, err := gameResult(ctx, s, g)
		return record{
			args:   ir.IRObject{"role": ir.IRString(roleName(role))},
			result: result,
		}, err
	})
	if err != nil {
		return ir.GameRecord{}, err
	}
	if game.Status == ir.StatusEnded {
		e.logger.Info("game resolved",
			"game_key", shortKey(key),
			"outcome", game.Outcome,
			"pot", 2*game.Wager)
	}
	return game, nil
}

// Game returns the current record for key.
func (e *Engine) Game(ctx context.Context, key ir.GameKey) (ir.GameRecord, error) {
	g, found, err := e.store.ReadGame(ctx, key)
	if err != nil {
		return ir.GameRecord{}, fmt.Errorf("read game: %w", err)
	}
	if !found {
		return ir.GameRecord{}, newGameError(CodeGameNotFound, key, "", "no game with this key")
	}
	return g, nil
}

// Verify reports whether (move, salt) opens the caller's commitment.
// It does not change the game and does not influence the outcome.
func (e *Engine) Verify(ctx context.Context, caller ir.Identity, key ir.GameKey, move ir.Move, salt []byte) (bool, error) {
	g, err := e.Game(ctx, key)
	if err != nil {
		return false, err
	}

	var d ir.Digest
	switch g.RoleOf(caller) {
	case ir.RoleCreator:
		d = g.CreatorCommitment
	case ir.RoleJoiner:
		d = g.JoinerCommitment
	default:
		return false, newGameError(CodeUnauthorized, key, caller, "caller is not a party to this game")
	}
	if d.IsZero() {
		return false, newGameError(CodeMoveNotSelected, key, caller, "no commitment to verify")
	}
	return ir.VerifyCommitment(d, move, salt), nil
}

// Fund credits account from outside the game economy (genesis balances,
// faucets). Escrow accounts cannot be funded.
func (e *Engine) Fund(ctx context.Context, account ir.Identity, amount uint64) (ledger.Receipt, error) {
	if err := checkFunding(account, amount); err != nil {
		return ledger.Receipt{}, err
	}

	var receipt ledger.Receipt
	err := e.apply(ctx, ir.ActionFund, account, "", func(s *step) (record, error) {
		r, err := ledger.Deposit(ctx, s.tx, string(account), amount)
		if err != nil {
			return record{}, ledgerError(err, "", account, "deposit")
		}
		s.transfers = append(s.transfers, ir.Transfer{EventSeq: s.seq, To: string(account), Amount: amount})
		receipt = r

		return record{
			args: ir.IRObject{
				"account": ir.IRString(account),
				"amount":  ir.IRInt(int64(amount)),
			},
			result: ir.IRObject{"balance": ir.IRInt(int64(r.To.Current))},
		}, nil
	})
	if err != nil {
		return ledger.Receipt{}, err
	}
	return receipt, nil
}

// Genesis deposits every non-zero balance in one transaction under a
// single event. Entries are checked before anything is written, so a bad
// account leaves the ledger untouched.
func (e *Engine) Genesis(ctx context.Context, balances map[ir.Identity]uint64) ([]ledger.Receipt, error) {
	accounts := make([]ir.Identity, 0, len(balances))
	for account, amount := range balances {
		if amount == 0 {
			continue
		}
		if err := checkFunding(account, amount); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if len(accounts) == 0 {
		return nil, nil
	}
	slices.Sort(accounts)

	var receipts []ledger.Receipt
	err := e.apply(ctx, ir.ActionGenesis, "", "", func(s *step) (record, error) {
		args := make(ir.IRObject, len(accounts))
		result := make(ir.IRObject, len(accounts))
		receipts = receipts[:0]
		for _, account := range accounts {
			amount := balances[account]
			r, err := ledger.Deposit(ctx, s.tx, string(account), amount)
			if err != nil {
				return record{}, ledgerError(err, "", account, "genesis deposit")
			}
			s.transfers = append(s.transfers, ir.Transfer{EventSeq: s.seq, To: string(account), Amount: amount})
			receipts = append(receipts, r)
			args[string(account)] = ir.IRInt(int64(amount))
			result[string(account)] = ir.IRInt(int64(r.To.Current))
		}
		return record{
			args:   ir.IRObject{"accounts": args},
			result: ir.IRObject{"balances": result},
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return receipts, nil
}

// checkFunding rejects deposits to empty or reserved accounts and amounts
// that do not fit a balance.
func checkFunding(account ir.Identity, amount uint64) error {
	if account == "" || strings.HasPrefix(string(account), ir.EscrowPrefix) {
		return newGameError(CodeInvalidAccount, "", account, "cannot fund account %q", account)
	}
	if amount == 0 || amount > ledger.MaxBalance {
		return newGameError(CodeInvalidAmount, "", account, "amount %d out of range", amount)
	}
	return nil
}

// checkCaller rejects requests without a usable identity. Escrow account
// names are reserved and can never act as a player.
func checkCaller(caller ir.Identity, key ir.GameKey) error {
	if caller == "" {
		return newGameError(CodeUnauthorized, key, "", "missing caller identity")
	}
	if strings.HasPrefix(string(caller), ir.EscrowPrefix) {
		return newGameError(CodeUnauthorized, key, caller, "reserved identity")
	}
	return nil
}

// load reads the game for key inside the transaction.
func (e *Engine) load(ctx context.Context, s *step, key ir.GameKey, caller ir.Identity) (ir.GameRecord, error) {
	g, found, err := s.tx.LoadGame(ctx, key)
	if err != nil {
		return ir.GameRecord{}, err
	}
	if !found {
		return ir.GameRecord{}, newGameError(CodeGameNotFound, key, caller, "no game with this key")
	}
	return g, nil
}

// gameResult is the event result for lifecycle operations.
func gameResult(ctx context.Context, s *step, g ir.GameRecord) (ir.IRObject, error) {
	escrow, err := s.tx.LoadBalance(ctx, ir.EscrowAccount(g.Key))
	if err != nil {
		return nil, err
	}
	result := ir.IRObject{
		"status":        ir.IRString(string(g.Status)),
		"creator_ready": ir.IRBool(g.CreatorReady),
		"joiner_ready":  ir.IRBool(g.JoinerReady),
		"escrow":        ir.IRInt(int64(escrow)),
	}
	if g.Outcome != ir.OutcomeNone {
		result["outcome"] = ir.IRString(string(g.Outcome))
	}
	return result, nil
}

// ledgerError turns ledger rejections a caller can cause into GameErrors.
// Anything else is an internal failure and is wrapped as-is.
func ledgerError(err error, key ir.GameKey, caller ir.Identity, op string) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		ge := newGameError(CodeInsufficientBalance, key, caller, "%s: insufficient balance", op)
		ge.Err = err
		return ge
	case errors.Is(err, ledger.ErrAmount), errors.Is(err, ledger.ErrOverflow):
		ge := newGameError(CodeInvalidAmount, key, caller, "%s: %v", op, err)
		ge.Err = err
		return ge
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func roleName(r ir.Role) string {
	switch r {
	case ir.RoleCreator:
		return "creator"
	case ir.RoleJoiner:
		return "joiner"
	default:
		return "none"
	}
}
