package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rps/internal/ir"
	"github.com/roach88/rps/internal/queryir"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Creator  string
	Opponent string
	Outcome  string
	Wager    uint64
}

// GameHistory is the output of the history command.
type GameHistory struct {
	Games []GameView `json:"games"`
}

func (h GameHistory) String() string {
	if len(h.Games) == 0 {
		return "(no settled games)"
	}
	lines := make([]string, len(h.Games))
	for i, g := range h.Games {
		lines[i] = fmt.Sprintf("%s  %-11s  %s vs %s  wager %d", truncateID(g.Key), g.Outcome, g.Creator, g.Opponent, g.Wager)
	}
	return strings.Join(lines, "\n")
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List settled games",
		Long: `List games that have ended, in settlement order. Filters combine with AND.

Games still in play are never listed; use "rps show" for one game.

Examples:
  rps history
  rps history --creator alice --outcome CreatorWins --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Creator, "creator", "", "only games opened by this identity")
	cmd.Flags().StringVar(&opts.Opponent, "opponent", "", "only games joined by this identity")
	cmd.Flags().StringVar(&opts.Outcome, "outcome", "", "CreatorWins, JoinerWins or Tie")
	cmd.Flags().Uint64Var(&opts.Wager, "wager", 0, "only games with this wager")

	return cmd
}

// historyFilter builds the games filter: ended games plus the flags that
// were set.
func historyFilter(opts *HistoryOptions, cmd *cobra.Command) (queryir.Predicate, error) {
	where := map[string]any{"status": string(ir.StatusEnded)}
	if opts.Outcome != "" {
		switch ir.Outcome(opts.Outcome) {
		case ir.OutcomeCreatorWins, ir.OutcomeJoinerWins, ir.OutcomeTie:
		default:
			return nil, &LoadError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid --outcome %q", opts.Outcome)}
		}
		where["outcome"] = opts.Outcome
	}
	if opts.Creator != "" {
		where["creator"] = opts.Creator
	}
	if opts.Opponent != "" {
		where["opponent"] = opts.Opponent
	}
	if cmd.Flags().Changed("wager") {
		where["wager"] = opts.Wager
	}
	return queryir.Where(where)
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	filter, err := historyFilter(opts, cmd)
	if err != nil {
		return out.Fail(err)
	}

	s, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer s.Close()

	games, err := s.store.SelectGames(ctx, filter)
	if err != nil {
		return out.Fail(err)
	}

	history := GameHistory{Games: make([]GameView, 0, len(games))}
	for _, g := range games {
		view, err := s.newGameView(ctx, g)
		if err != nil {
			return out.Fail(err)
		}
		history.Games = append(history.Games, view)
	}
	return out.Success(history)
}
