package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rps/internal/ir"
)

// GameView is a game as the CLI prints it.
type GameView struct {
	Key               string `json:"game_key"`
	Creator           string `json:"creator"`
	Opponent          string `json:"opponent,omitempty"`
	Wager             uint64 `json:"wager"`
	Status            string `json:"status"`
	Outcome           string `json:"outcome,omitempty"`
	CreatorCommitment string `json:"creator_commitment,omitempty"`
	JoinerCommitment  string `json:"joiner_commitment,omitempty"`
	CreatorReady      bool   `json:"creator_ready"`
	JoinerReady       bool   `json:"joiner_ready"`
	Escrow            uint64 `json:"escrow"`
	Seq               int64  `json:"seq"`
}

func (v GameView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "game:     %s\n", v.Key)
	fmt.Fprintf(&b, "creator:  %s\n", v.Creator)
	fmt.Fprintf(&b, "opponent: %s\n", orDash(v.Opponent))
	fmt.Fprintf(&b, "wager:    %d\n", v.Wager)
	fmt.Fprintf(&b, "status:   %s\n", v.Status)
	if v.Outcome != "" {
		fmt.Fprintf(&b, "outcome:  %s\n", v.Outcome)
	}
	fmt.Fprintf(&b, "creator:  committed=%t ready=%t\n", v.CreatorCommitment != "", v.CreatorReady)
	fmt.Fprintf(&b, "joiner:   committed=%t ready=%t\n", v.JoinerCommitment != "", v.JoinerReady)
	fmt.Fprintf(&b, "escrow:   %d", v.Escrow)
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// newGameView reads the escrow balance alongside g.
func (s *session) newGameView(ctx context.Context, g ir.GameRecord) (GameView, error) {
	escrow, err := s.store.ReadBalance(ctx, ir.EscrowAccount(g.Key))
	if err != nil {
		return GameView{}, fmt.Errorf("read escrow: %w", err)
	}
	v := GameView{
		Key:          string(g.Key),
		Creator:      string(g.Creator),
		Opponent:     string(g.Opponent),
		Wager:        g.Wager,
		Status:       string(g.Status),
		Outcome:      string(g.Outcome),
		CreatorReady: g.CreatorReady,
		JoinerReady:  g.JoinerReady,
		Escrow:       escrow,
		Seq:          g.Seq,
	}
	if !g.CreatorCommitment.IsZero() {
		v.CreatorCommitment = g.CreatorCommitment.Hex()
	}
	if !g.JoinerCommitment.IsZero() {
		v.JoinerCommitment = g.JoinerCommitment.Hex()
	}
	return v, nil
}

// gameFlags address a game by key, or by creator and wager.
type gameFlags struct {
	Game    string
	Creator string
	Wager   uint64
}

func (g *gameFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&g.Game, "game", "", "game key")
	cmd.Flags().StringVar(&g.Creator, "creator", "", "creator of the game (with --wager, instead of --game)")
	cmd.Flags().Uint64Var(&g.Wager, "wager", 0, "wager of the game (with --creator)")
}

func (g *gameFlags) key() (ir.GameKey, error) {
	if g.Game != "" {
		if g.Creator != "" {
			return "", NewExitError(ExitCommandError, "use either --game or --creator/--wager, not both")
		}
		return ir.GameKey(g.Game), nil
	}
	if g.Creator == "" {
		return "", NewExitError(ExitCommandError, "--game or --creator is required")
	}
	return ir.DeriveGameKey(ir.Identity(g.Creator), g.Wager), nil
}

// gameOp is one engine call that yields a game record.
type gameOp func(ctx context.Context, s *session) (ir.GameRecord, error)

// runGameOp opens a session, runs op and prints the resulting game.
func runGameOp(opts *RootOptions, cmd *cobra.Command, op gameOp) error {
	out := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer s.Close()

	g, err := op(ctx, s)
	if err != nil {
		return out.Fail(err)
	}

	view, err := s.newGameView(ctx, g)
	if err != nil {
		return out.Fail(err)
	}
	return out.Success(view)
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	var as string
	var wager uint64

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Open a game and escrow the wager",
		Long: `Open a game as --as and move the wager into the game's escrow.

The game key is derived from the creator and the wager, so a player can hold
one game per wager amount.

Example:
  rps create --as alice --wager 100`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGameOp(rootOpts, cmd, func(ctx context.Context, s *session) (ir.GameRecord, error) {
				return s.engine.Create(ctx, ir.Identity(as), wager)
			})
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "caller identity (required)")
	_ = cmd.MarkFlagRequired("as")
	cmd.Flags().Uint64Var(&wager, "wager", 0, "wager to escrow")

	return cmd
}

// NewJoinCommand creates the join command.
func NewJoinCommand(rootOpts *RootOptions) *cobra.Command {
	var as string
	game := &gameFlags{}

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join an open game and escrow the matching wager",
		Long: `Join an open game as --as. The game becomes Committed.

Examples:
  rps join --as bob --creator alice --wager 100
  rps join --as bob --game 5f2c...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGameOp(rootOpts, cmd, func(ctx context.Context, s *session) (ir.GameRecord, error) {
				key, err := game.key()
				if err != nil {
					return ir.GameRecord{}, err
				}
				return s.engine.Join(ctx, ir.Identity(as), key)
			})
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "caller identity (required)")
	_ = cmd.MarkFlagRequired("as")
	game.register(cmd)

	return cmd
}

// NewCommitCommand creates the commit command.
func NewCommitCommand(rootOpts *RootOptions) *cobra.Command {
	var as, move, salt string
	game := &gameFlags{}

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit a hidden move",
		Long: `Store SHA-256(move || salt) as the caller's commitment.

The move and salt are not stored. Keep the salt to prove the move later
with "rps verify". Each player commits once.

Example:
  rps commit --as alice --creator alice --wager 100 --move rock --salt s3cret`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGameOp(rootOpts, cmd, func(ctx context.Context, s *session) (ir.GameRecord, error) {
				key, err := game.key()
				if err != nil {
					return ir.GameRecord{}, err
				}
				m, err := ir.ParseMove(move)
				if err != nil {
					return ir.GameRecord{}, WrapExitError(ExitCommandError, "invalid --move", err)
				}
				return s.engine.Commit(ctx, ir.Identity(as), key, m, []byte(salt))
			})
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "caller identity (required)")
	_ = cmd.MarkFlagRequired("as")
	cmd.Flags().StringVar(&move, "move", "", "rock, paper or scissors (required)")
	_ = cmd.MarkFlagRequired("move")
	cmd.Flags().StringVar(&salt, "salt", "", "secret salt")
	game.register(cmd)

	return cmd
}

// NewFinalizeCommand creates the finalize command.
func NewFinalizeCommand(rootOpts *RootOptions) *cobra.Command {
	var as string
	game := &gameFlags{}

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Mark yourself ready; resolves the game once both players are",
		Long: `Mark the caller ready. The caller must have committed a move.

When both players are ready the outcome is decided from the commitments,
the escrow is paid out and the game ends.

Example:
  rps finalize --as bob --creator alice --wager 100`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGameOp(rootOpts, cmd, func(ctx context.Context, s *session) (ir.GameRecord, error) {
				key, err := game.key()
				if err != nil {
					return ir.GameRecord{}, err
				}
				return s.engine.Finalize(ctx, ir.Identity(as), key)
			})
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "caller identity (required)")
	_ = cmd.MarkFlagRequired("as")
	game.register(cmd)

	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	game := &gameFlags{}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a game",
		Long: `Show the current record of a game and its escrow balance.

Example:
  rps show --creator alice --wager 100 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGameOp(rootOpts, cmd, func(ctx context.Context, s *session) (ir.GameRecord, error) {
				key, err := game.key()
				if err != nil {
					return ir.GameRecord{}, err
				}
				return s.engine.Game(ctx, key)
			})
		},
	}

	game.register(cmd)

	return cmd
}

// VerifyResult is the output of the verify command.
type VerifyResult struct {
	Key    string `json:"game_key"`
	Caller string `json:"caller"`
	Move   string `json:"move"`
	Valid  bool   `json:"valid"`
}

func (r VerifyResult) String() string {
	if r.Valid {
		return fmt.Sprintf("✓ %s committed %s", r.Caller, r.Move)
	}
	return fmt.Sprintf("✗ %s did not commit %s with this salt", r.Caller, r.Move)
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	var as, move, salt string
	game := &gameFlags{}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check a move and salt against a stored commitment",
		Long: `Check that --move and --salt open the caller's commitment.

This does not change the game or its outcome.

Exit codes:
  0 - The move and salt match the commitment
  1 - They do not match, or the caller has no commitment
  2 - Command error

Example:
  rps verify --as alice --creator alice --wager 100 --move rock --salt s3cret`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(rootOpts, cmd, ir.Identity(as), game, move, salt)
		},
	}

	cmd.Flags().StringVar(&as, "as", "", "identity whose commitment to check (required)")
	_ = cmd.MarkFlagRequired("as")
	cmd.Flags().StringVar(&move, "move", "", "rock, paper or scissors (required)")
	_ = cmd.MarkFlagRequired("move")
	cmd.Flags().StringVar(&salt, "salt", "", "salt used at commit time")
	game.register(cmd)

	return cmd
}

func runVerify(opts *RootOptions, cmd *cobra.Command, caller ir.Identity, game *gameFlags, move, salt string) error {
	out := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	key, err := game.key()
	if err != nil {
		return out.Fail(err)
	}
	m, err := ir.ParseMove(move)
	if err != nil {
		return out.Fail(WrapExitError(ExitCommandError, "invalid --move", err))
	}

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer s.Close()

	ok, err := s.engine.Verify(ctx, caller, key, m, []byte(salt))
	if err != nil {
		return out.Fail(err)
	}

	result := VerifyResult{Key: string(key), Caller: string(caller), Move: m.String(), Valid: ok}
	if err := out.Success(result); err != nil {
		return err
	}
	if !ok {
		return NewExitError(ExitFailure, "commitment does not match")
	}
	return nil
}
