package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"reflect"

	"github.com/roach88/rps/internal/engine"
	"github.com/roach88/rps/internal/ir"
	"github.com/roach88/rps/internal/ledger"
	"github.com/roach88/rps/internal/store"
	"github.com/roach88/rps/internal/testutil"
)

// OutputSuccess is the output case of a step the engine accepted.
const OutputSuccess = "Success"

// Harness is the test execution engine.
// It runs scenarios with deterministic clock and flow tokens.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	clock  *testutil.DeterministicClock
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Deterministic helpers ensure reproducible results.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Deposit genesis balances
// 3. Execute flow steps through the engine, validating expect clauses
// 4. Evaluate assertions
//
// A step rejected by the engine is part of the trace, not an execution
// error. Run only returns an error for malformed steps or internal faults.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	flowGen := testutil.NewFixedFlowGenerator(scenario.FlowToken)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests

	h := &Harness{
		store:  st,
		engine: engine.New(st, flowGen, engine.WithClock(clock), engine.WithLogger(logger)),
		clock:  clock,
		logger: logger,
	}

	ctx := context.Background()

	if err := h.seed(ctx, scenario.Accounts); err != nil {
		return nil, fmt.Errorf("failed to seed accounts: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	balances, err := st.ReadBalances(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read balances: %w", err)
	}
	for _, b := range balances {
		result.Balances[b.Account] = b.Balance
	}

	return result, nil
}

// seed deposits genesis balances in one transaction. Deposits bypass the
// event log, so they consume no seq.
func (h *Harness) seed(ctx context.Context, accounts map[string]uint64) error {
	return h.store.Update(ctx, func(tx *store.Tx) error {
		for _, account := range sortedAccounts(accounts) {
			amount := accounts[account]
			if amount == 0 {
				continue
			}
			if _, err := ledger.Deposit(ctx, tx, account, amount); err != nil {
				return fmt.Errorf("deposit %s: %w", account, err)
			}
		}
		return nil
	})
}

// executeFlow runs all flow steps through the engine and validates expect
// clauses.
//
// Each step is dispatched to the engine operation named by Invoke, then
// recorded with its case ("Success" or the engine error code) and, when
// accepted, the result of the event it wrote.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		opErr, err := h.dispatch(ctx, step)
		if err != nil {
			return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, err)
		}

		ran := Step{Action: step.Invoke, Caller: step.As, Args: step.Args, Case: OutputSuccess}

		if opErr != nil {
			code := engine.CodeOf(opErr)
			if code == "" {
				return fmt.Errorf("flow step %d (%s): %w", i, step.Invoke, opErr)
			}
			ran.Case = string(code)
		} else {
			ran.Seq = h.clock.Current()
			ev, found, err := h.store.ReadEvent(ctx, ran.Seq)
			if err != nil {
				return fmt.Errorf("flow step %d: read event: %w", i, err)
			}
			if !found {
				return fmt.Errorf("flow step %d: no event at seq %d", i, ran.Seq)
			}
			ran.Result = ev.Result
		}

		result.record(ran)
		h.checkExpect(step, result.Steps[i], opErr, result)

		h.logger.Info("flow step completed",
			"step", i,
			"action", step.Invoke,
			"caller", step.As,
			"case", ran.Case,
			"seq", ran.Seq,
		)
	}

	return nil
}

// checkExpect compares a step's outcome with its expect clause. A step
// without one must succeed.
func (h *Harness) checkExpect(step FlowStep, ran Step, opErr error, result *Result) {
	i := ran.Index
	got := ran.Result
	expectedCase := OutputSuccess
	if step.Expect != nil {
		expectedCase = step.Expect.Case
	}

	if ran.Case != expectedCase {
		msg := fmt.Sprintf("flow[%d] %s as %q: expected case %s, got %s", i, step.Invoke, step.As, expectedCase, ran.Case)
		if opErr != nil {
			msg += fmt.Sprintf(" (%v)", opErr)
		}
		result.AddError(msg)
		return
	}

	if step.Expect == nil || step.Expect.Result == nil {
		return
	}

	want, err := ir.ToIRObject(step.Expect.Result)
	if err != nil {
		result.AddError(fmt.Sprintf("flow[%d].expect.result: %v", i, err))
		return
	}
	for _, key := range want.SortedKeys() {
		if !reflect.DeepEqual(got[key], want[key]) {
			result.AddError(fmt.Sprintf("flow[%d] %s: result field %q = %v, expected %v",
				i, step.Invoke, key, got[key], want[key]))
		}
	}
}

// dispatch runs one step. opErr is the engine's verdict; err means the step
// itself is malformed.
func (h *Harness) dispatch(ctx context.Context, step FlowStep) (opErr, err error) {
	caller := ir.Identity(step.As)

	switch step.Invoke {
	case ir.ActionCreate:
		wager, err := argUint(step.Args, "wager")
		if err != nil {
			return nil, err
		}
		_, opErr = h.engine.Create(ctx, caller, wager)

	case ir.ActionJoin:
		key, err := gameKey(step.Args)
		if err != nil {
			return nil, err
		}
		_, opErr = h.engine.Join(ctx, caller, key)

	case ir.ActionCommit:
		key, err := gameKey(step.Args)
		if err != nil {
			return nil, err
		}
		move, err := argMove(step.Args)
		if err != nil {
			return nil, err
		}
		salt, _ := step.Args["salt"].(string)
		_, opErr = h.engine.Commit(ctx, caller, key, move, []byte(salt))

	case ir.ActionFinalize:
		key, err := gameKey(step.Args)
		if err != nil {
			return nil, err
		}
		_, opErr = h.engine.Finalize(ctx, caller, key)

	case ir.ActionFund:
		account := caller
		if a, ok := step.Args["account"].(string); ok {
			account = ir.Identity(a)
		}
		amount, err := argUint(step.Args, "amount")
		if err != nil {
			return nil, err
		}
		_, opErr = h.engine.Fund(ctx, account, amount)

	default:
		return nil, fmt.Errorf("unknown action %q", step.Invoke)
	}

	return opErr, nil
}

// gameKey resolves the game a step addresses: an explicit "game" key, or
// "creator" plus "wager".
func gameKey(args map[string]interface{}) (ir.GameKey, error) {
	if key, ok := args["game"].(string); ok {
		return ir.GameKey(key), nil
	}
	creator, ok := args["creator"].(string)
	if !ok {
		return "", fmt.Errorf("args: need game, or creator and wager")
	}
	wager, err := argUint(args, "wager")
	if err != nil {
		return "", err
	}
	return ir.DeriveGameKey(ir.Identity(creator), wager), nil
}

// argUint reads a non-negative integer argument. YAML decodes integers as
// int, or uint64 when they exceed int64.
func argUint(args map[string]interface{}, name string) (uint64, error) {
	switch v := args[name].(type) {
	case int:
		if v < 0 {
			return 0, fmt.Errorf("args.%s: must be non-negative, got %d", name, v)
		}
		return uint64(v), nil
	case int64:
		if v < 0 {
			return 0, fmt.Errorf("args.%s: must be non-negative, got %d", name, v)
		}
		return uint64(v), nil
	case uint64:
		return v, nil
	case nil:
		return 0, fmt.Errorf("args.%s is required", name)
	default:
		return 0, fmt.Errorf("args.%s: want integer, got %T", name, v)
	}
}

// argMove reads "move" as a name (rock, paper, scissors) or a raw number.
// Raw numbers are passed through unchecked so scenarios can exercise
// INVALID_MOVE.
func argMove(args map[string]interface{}) (ir.Move, error) {
	switch v := args["move"].(type) {
	case string:
		return ir.ParseMove(v)
	case int:
		if v < 0 || v > math.MaxUint8 {
			return 0, fmt.Errorf("args.move: %d out of range", v)
		}
		return ir.Move(v), nil
	default:
		return 0, fmt.Errorf("args.move is required")
	}
}
