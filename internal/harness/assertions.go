package harness

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/rps/internal/ir"
	"github.com/roach88/rps/internal/queryir"
	"github.com/roach88/rps/internal/querysql"
	"github.com/roach88/rps/internal/store"
)

// AssertionError describes a failed assertion. Trace assertions attach the
// steps they looked at.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Steps    []Step
}

func (e *AssertionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&b, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&b, "  Actual: %s\n", e.Actual)

	if len(e.Steps) > 0 {
		b.WriteString("\nSteps:\n")
		for _, s := range e.Steps {
			fmt.Fprintf(&b, "  [%d] %s as %s %v -> %s (seq %d)\n", s.Index, s.Action, s.Caller, s.Args, s.Case, s.Seq)
		}
	}
	return b.String()
}

// firstStep returns the index of the first step running action whose args
// contain want, or -1.
func firstStep(steps []Step, action string, want map[string]interface{}) int {
	for i, s := range steps {
		if s.Action == action && matchArgs(s.Args, want) {
			return i
		}
	}
	return -1
}

// assertTraceContains passes when some step, accepted or not, ran the
// action with args containing assertion.Args.
func assertTraceContains(steps []Step, assertion Assertion) error {
	if firstStep(steps, assertion.Action, assertion.Args) >= 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("action %s with args %v", assertion.Action, assertion.Args),
		Actual:   "not found in trace",
		Steps:    steps,
	}
}

// assertTraceOrder passes when the first occurrences of the listed actions
// appear in the listed order. Other steps may sit between them.
func assertTraceOrder(steps []Step, assertion Assertion) error {
	at := make([]int, len(assertion.Actions))
	for i, action := range assertion.Actions {
		at[i] = firstStep(steps, action, nil)
		if at[i] < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   "missing action: " + action,
				Steps:    steps,
			}
		}
	}

	for i := 1; i < len(at); i++ {
		if at[i-1] >= at[i] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (step %d) should be before %s (step %d)",
					assertion.Actions[i-1], at[i-1], assertion.Actions[i], at[i]),
				Steps: steps,
			}
		}
	}
	return nil
}

// assertTraceCount passes when exactly assertion.Count steps ran the
// action. Rejected steps count.
func assertTraceCount(steps []Step, assertion Assertion) error {
	n := 0
	for _, s := range steps {
		if s.Action == assertion.Action {
			n++
		}
	}
	if n == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
		Actual:   fmt.Sprintf("%d occurrences", n),
		Steps:    steps,
	}
}

// assertFinalState checks the single row of a catalog table selected by
// the where clause. The query goes through queryir, so only catalog tables
// and columns can be named and values are always bound. Expect is a subset
// of the row.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}

	query, args, err := finalStateQuery(assertion)
	if err != nil {
		return fmt.Errorf("final_state: %w", err)
	}

	where := formatWhereClause(assertion.Where)
	row, columns, matched, err := selectRow(ctx, st, query, args)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: "query table " + assertion.Table,
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	switch {
	case matched == 0:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, where),
			Actual:   "row not found",
		}
	case matched > 1:
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, where),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		want := assertion.Expect[key]
		got, ok := row[key]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, want, want),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, got, got),
			}
		}
	}
	return nil
}

// selectRow runs query and returns its first row by column name, the
// column list and how many rows matched (0, 1, or 2 meaning "more").
func selectRow(ctx context.Context, st *store.Store, query string, args []any) (map[string]interface{}, []string, int, error) {
	rows, err := st.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, 0, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, 0, fmt.Errorf("get columns: %w", err)
	}
	if !rows.Next() {
		return nil, columns, 0, rows.Err()
	}

	values := make([]interface{}, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, nil, 0, fmt.Errorf("scan row: %w", err)
	}

	row := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		row[col] = values[i]
	}
	if rows.Next() {
		return row, columns, 2, nil
	}
	return row, columns, 1, rows.Err()
}

// finalStateQuery compiles the table and where clause of a final_state
// assertion to SQL.
func finalStateQuery(assertion Assertion) (string, []any, error) {
	filter, err := queryir.Where(assertion.Where)
	if err != nil {
		return "", nil, fmt.Errorf("where: %w", err)
	}
	return querysql.Compile(queryir.Select{From: assertion.Table, Filter: filter})
}

// formatWhereClause renders a where map as "k=v AND ..." in key order.
func formatWhereClause(where map[string]interface{}) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, where[k])
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares a scenario value with a value scanned from
// SQLite. SQLite hands back int64 for integers and booleans, and []byte
// for commitment BLOBs, which scenarios write as hex.
func stateValuesEqual(expected, actual interface{}) bool {
	if expected == nil || actual == nil {
		return expected == nil && actual == nil
	}

	switch v := expected.(type) {
	case ir.IRString:
		expected = string(v)
	case ir.IRInt:
		expected = int64(v)
	case ir.IRBool:
		expected = bool(v)
	}

	switch exp := expected.(type) {
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case []byte:
			return exp == hex.EncodeToString(act)
		}
		return false
	case bool:
		switch act := actual.(type) {
		case bool:
			return exp == act
		case int64:
			return exp == (act != 0)
		}
		return false
	case int:
		return intEquals(int64(exp), actual)
	case int64:
		return intEquals(exp, actual)
	case uint64:
		return exp <= math.MaxInt64 && intEquals(int64(exp), actual)
	}
	return reflect.DeepEqual(expected, actual)
}

func intEquals(want int64, actual interface{}) bool {
	switch act := actual.(type) {
	case int64:
		return want == act
	case int:
		return want == int64(act)
	}
	return false
}

// matchArgs reports whether actual holds every key of want with an equal
// value. Extra keys in actual are ignored.
func matchArgs(actual, want map[string]interface{}) bool {
	for key, w := range want {
		a, ok := actual[key]
		if !ok || !reflect.DeepEqual(a, w) {
			return false
		}
	}
	return true
}

// assertBalance checks that a ledger account, or a game's escrow, holds
// exactly the expected amount. Unknown accounts hold 0.
func assertBalance(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Amount == nil {
		return fmt.Errorf("balance assertion requires amount")
	}
	account, name := assertion.Account, assertion.Account
	if ref := assertion.Escrow; ref != nil {
		account = ir.EscrowAccount(ref.Key())
		name = fmt.Sprintf("escrow of %s/%d", ref.Creator, ref.Wager)
	}

	got, err := st.ReadBalance(ctx, account)
	if err != nil {
		return fmt.Errorf("read balance %s: %w", account, err)
	}
	if got == *assertion.Amount {
		return nil
	}
	return &AssertionError{
		Type:     AssertBalance,
		Expected: fmt.Sprintf("%s = %d", name, *assertion.Amount),
		Actual:   fmt.Sprintf("%s = %d", name, got),
	}
}

// AssertionContext gives final_state and balance assertions the store the
// scenario ran against.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions checks every assertion against the result and the
// store, and returns one message per failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var failures []string
	hasStore := actx != nil && actx.Store != nil

	for i, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Steps, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Steps, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Steps, assertion)
		case AssertFinalState:
			if !hasStore {
				err = fmt.Errorf("assertion[%d]: final_state requires database context", i)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		case AssertBalance:
			if !hasStore {
				err = fmt.Errorf("assertion[%d]: balance requires database context", i)
			} else {
				err = assertBalance(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}
