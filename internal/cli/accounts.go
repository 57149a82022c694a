package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rps/internal/ir"
	"github.com/roach88/rps/internal/store"
)

// BalanceList is the output of the balance and init commands.
type BalanceList struct {
	Balances []store.AccountBalance `json:"balances"`
}

func (l BalanceList) String() string {
	if len(l.Balances) == 0 {
		return "(no accounts)"
	}
	width := 0
	for _, b := range l.Balances {
		if len(b.Account) > width {
			width = len(b.Account)
		}
	}
	lines := make([]string, len(l.Balances))
	for i, b := range l.Balances {
		lines[i] = fmt.Sprintf("%-*s  %d", width, b.Account, b.Balance)
	}
	return strings.Join(lines, "\n")
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	var escrowOf gameFlags
	var withEscrow bool

	cmd := &cobra.Command{
		Use:   "balance [account...]",
		Short: "Show ledger balances",
		Long: `Show the balance of each named account. Unknown accounts hold 0.

Without arguments, lists every account in the ledger. With --escrow, shows
the escrow account of the game named by --game or --creator/--wager.

Examples:
  rps balance alice bob
  rps balance --escrow --creator alice --wager 100
  rps balance --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBalance(rootOpts, cmd, args, withEscrow, &escrowOf)
		},
	}

	cmd.Flags().BoolVar(&withEscrow, "escrow", false, "show the escrow of a game")
	escrowOf.register(cmd)

	return cmd
}

func runBalance(opts *RootOptions, cmd *cobra.Command, accounts []string, withEscrow bool, game *gameFlags) error {
	out := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	if withEscrow {
		key, err := game.key()
		if err != nil {
			return out.Fail(err)
		}
		accounts = append(accounts, ir.EscrowAccount(key))
	}

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer s.Close()

	var list BalanceList
	if len(accounts) == 0 {
		list.Balances, err = s.store.ReadBalances(ctx)
		if err != nil {
			return out.Fail(err)
		}
		return out.Success(list)
	}

	for _, account := range accounts {
		bal, err := s.store.ReadBalance(ctx, account)
		if err != nil {
			return out.Fail(err)
		}
		list.Balances = append(list.Balances, store.AccountBalance{Account: account, Balance: bal})
	}
	return out.Success(list)
}

// FundResult is the output of the fund command.
type FundResult struct {
	Account string `json:"account"`
	Amount  uint64 `json:"amount"`
	Balance uint64 `json:"balance"`
}

func (r FundResult) String() string {
	return fmt.Sprintf("funded %s with %d (balance %d)", r.Account, r.Amount, r.Balance)
}

// NewFundCommand creates the fund command.
func NewFundCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fund <account> <amount>",
		Short: "Credit an account from outside the game",
		Long: `Credit an account. The deposit is recorded in the event log.

Escrow accounts cannot be funded.

Example:
  rps fund alice 1000`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFund(rootOpts, cmd, args[0], args[1])
		},
	}

	return cmd
}

func runFund(opts *RootOptions, cmd *cobra.Command, account, amountArg string) error {
	out := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	amount, err := strconv.ParseUint(amountArg, 10, 64)
	if err != nil {
		return out.Fail(&LoadError{Code: ErrCodeInvalidInput, Message: fmt.Sprintf("invalid amount %q", amountArg)})
	}

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer s.Close()

	receipt, err := s.engine.Fund(ctx, ir.Identity(account), amount)
	if err != nil {
		return out.Fail(err)
	}
	return out.Success(FundResult{Account: account, Amount: amount, Balance: receipt.To.Current})
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database and apply genesis balances from the config",
		Long: `Create the database and fund every account listed in the config.

All genesis deposits are one event in one transaction: a rejected account
funds nobody. An initialized database (one with events) is refused so
balances are not funded twice.

Example config (rps.cue):
  database: "rps.db"
  accounts: { alice: 1000, bob: 1000 }

Example:
  rps init --config rps.cue`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd)
		},
	}

	return cmd
}

func runInit(opts *RootOptions, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd)
	ctx := commandContext(cmd)

	s, err := openSession(ctx, opts, cmd)
	if err != nil {
		return out.Fail(err)
	}
	defer s.Close()

	last, err := s.store.LastSeq(ctx)
	if err != nil {
		return out.Fail(err)
	}
	if last > 0 {
		return out.Fail(NewExitError(ExitCommandError, fmt.Sprintf("database already initialized (%d events)", last)))
	}

	balances := make(map[ir.Identity]uint64, len(s.config.Accounts))
	for account, amount := range s.config.Accounts {
		balances[ir.Identity(account)] = amount
	}
	receipts, err := s.engine.Genesis(ctx, balances)
	if err != nil {
		return out.Fail(err)
	}

	var list BalanceList
	for _, r := range receipts {
		out.VerboseLog("funded %s with %d", r.To.Account, r.Amount)
		list.Balances = append(list.Balances, store.AccountBalance{Account: r.To.Account, Balance: r.To.Current})
	}
	return out.Success(list)
}
