package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rps/internal/ir"
	"github.com/roach88/rps/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Game   gameFlags
	Flow   string // optional - events of one request flow
	Action string // optional - filter to specific action
}

// TraceEvent is one event of the log with the transfers it caused.
type TraceEvent struct {
	Seq       int64                  `json:"seq"`
	ID        string                 `json:"id"`
	FlowToken string                 `json:"flow_token"`
	GameKey   string                 `json:"game_key,omitempty"`
	Action    string                 `json:"action"`
	Caller    string                 `json:"caller"`
	Args      map[string]interface{} `json:"args,omitempty"`
	Result    map[string]interface{} `json:"result,omitempty"`
	Transfers []ir.Transfer          `json:"transfers,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	GameKey  string       `json:"game_key,omitempty"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int    `json:"total_events"`
	Transfers   int    `json:"transfers"`
	Moved       uint64 `json:"moved"` // sum of transferred amounts
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the event and transfer log",
		Long: `Show the event log in seq order, each event with the ledger transfers
it caused.

Without a game, shows every event (including deposits). Only accepted
operations are logged; rejected requests leave no trace.

Examples:
  rps trace --creator alice --wager 100
  rps trace --game 5f2c... --action Game.finalize
  rps trace --flow 01926f3a-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	opts.Game.register(cmd)
	cmd.Flags().StringVar(&opts.Flow, "flow", "", "only events of this flow token")
	cmd.Flags().StringVar(&opts.Action, "action", "", "filter to specific action URI")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	var key ir.GameKey
	if opts.Game.Game != "" || opts.Game.Creator != "" {
		k, err := opts.Game.key()
		if err != nil {
			return out.Fail(err)
		}
		key = k
	}

	s, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer s.Close()

	result, err := buildTrace(ctx, s.store, key, opts.Flow, opts.Action)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "failed to read trace", err))
	}

	// Output results
	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTrace reads events (all, one game's, or one flow's) and attaches
// their transfers.
func buildTrace(ctx context.Context, st *store.Store, key ir.GameKey, flow, actionFilter string) (TraceResult, error) {
	var events []ir.Event
	var err error
	switch {
	case key != "":
		events, err = st.ReadEvents(ctx, key)
	case flow != "":
		events, err = st.ReadFlow(ctx, flow)
	default:
		events, err = st.ReadAllEvents(ctx)
	}
	if err != nil {
		return TraceResult{}, err
	}

	transfers, err := readTransfers(ctx, st, key, events)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{GameKey: string(key), Timeline: []TraceEvent{}}
	for _, ev := range events {
		if flow != "" && ev.FlowToken != flow {
			continue
		}
		if actionFilter != "" && ev.Action != actionFilter {
			continue
		}
		te := TraceEvent{
			Seq:       ev.Seq,
			ID:        ev.ID,
			FlowToken: ev.FlowToken,
			GameKey:   string(ev.GameKey),
			Action:    ev.Action,
			Caller:    string(ev.Caller),
			Args:      irObjectToMap(ev.Args),
			Result:    irObjectToMap(ev.Result),
			Transfers: transfers[ev.Seq],
		}
		result.Timeline = append(result.Timeline, te)
		result.Stats.Transfers += len(te.Transfers)
		for _, tr := range te.Transfers {
			result.Stats.Moved += tr.Amount
		}
	}
	result.Stats.TotalEvents = len(result.Timeline)
	return result, nil
}

// readTransfers groups transfers by event seq. Without a game key it reads
// the transfers of every game touched by events, plus deposits.
func readTransfers(ctx context.Context, st *store.Store, key ir.GameKey, events []ir.Event) (map[int64][]ir.Transfer, error) {
	keys := map[ir.GameKey]bool{}
	if key != "" {
		keys[key] = true
	} else {
		for _, ev := range events {
			keys[ev.GameKey] = true
		}
	}

	bySeq := make(map[int64][]ir.Transfer)
	for k := range keys {
		trs, err := st.ReadTransfers(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("read transfers: %w", err)
		}
		for _, tr := range trs {
			bySeq[tr.EventSeq] = append(bySeq[tr.EventSeq], tr)
		}
	}
	return bySeq, nil
}

// irObjectToMap converts an ir.IRObject to a plain map.
func irObjectToMap(obj ir.IRObject) map[string]interface{} {
	if obj == nil {
		return nil
	}

	result := make(map[string]interface{})
	for k, v := range obj {
		result[k] = irValueToInterface(v)
	}
	return result
}

// irValueToInterface converts an ir.IRValue to a plain interface{}.
func irValueToInterface(v ir.IRValue) interface{} {
	switch val := v.(type) {
	case ir.IRString:
		return string(val)
	case ir.IRInt:
		return int64(val)
	case ir.IRBool:
		return bool(val)
	case ir.IRArray:
		result := make([]interface{}, len(val))
		for i, elem := range val {
			result[i] = irValueToInterface(elem)
		}
		return result
	case ir.IRObject:
		return irObjectToMap(val)
	default:
		return nil
	}
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	if result.GameKey != "" {
		fmt.Fprintf(w, "Trace for Game: %s\n", result.GameKey)
	} else {
		fmt.Fprintln(w, "Trace for all events")
	}
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event, verbose)
		}
	}
	fmt.Fprintln(w)

	// Stats section
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Transfers:    %d\n", result.Stats.Transfers)
	fmt.Fprintf(w, "  Moved:        %d\n", result.Stats.Moved)

	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	caller := event.Caller
	if caller == "" {
		caller = "(init)"
	}
	fmt.Fprintf(w, "  [%d] %s by %s\n", event.Seq, event.Action, caller)
	if len(event.Args) > 0 {
		fmt.Fprintf(w, "       Args: %s\n", formatArgs(event.Args))
	}
	if len(event.Result) > 0 {
		fmt.Fprintf(w, "       Result: %s\n", formatArgs(event.Result))
	}
	for _, tr := range event.Transfers {
		fmt.Fprintf(w, "       %s -> %s: %d\n", accountLabel(tr.From), accountLabel(tr.To), tr.Amount)
	}
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
		fmt.Fprintf(w, "       Flow: %s\n", event.FlowToken)
	}
}

// accountLabel shortens escrow accounts and names the deposit source.
func accountLabel(account string) string {
	switch {
	case account == "":
		return "(deposit)"
	case strings.HasPrefix(account, ir.EscrowPrefix):
		return ir.EscrowPrefix + truncateID(strings.TrimPrefix(account, ir.EscrowPrefix))
	default:
		return account
	}
}

// formatArgs formats a map of args for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]interface{}) string {
	if len(args) == 0 {
		return "{}"
	}

	// Sort keys for deterministic output
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case map[string]interface{}:
		return formatArgs(val)
	case []interface{}:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
