package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/rps/internal/engine"
	"github.com/roach88/rps/internal/ir"
)

// DefaultDatabase is used when neither --db nor the config names a database.
const DefaultDatabase = "rps.db"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // SQLite path; overrides the config file
	Config   string // CUE config file

	// FlowGenerator allows overriding the flow token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	FlowGenerator engine.FlowTokenGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the rps CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// newRootCommand builds the command tree over opts. Flag values are bound
// to opts; fields without a flag (FlowGenerator) are kept.
func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rps",
		Short: "Stake-backed Rock-Paper-Scissors",
		Long: `Two-party Rock-Paper-Scissors with escrowed wagers.

Players create and join games, commit hidden moves, and finalize. When both
players are ready the outcome is decided from the commitments and the escrow
is paid out. All state lives in one SQLite database.`,
		Version:       fmt.Sprintf("%s (event log v%s)", ir.EngineVersion, ir.IRVersion),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config, else "+DefaultDatabase+")")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to CUE config file")

	// Game lifecycle
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewJoinCommand(opts))
	cmd.AddCommand(NewCommitCommand(opts))
	cmd.AddCommand(NewFinalizeCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))

	// Ledger
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewFundCommand(opts))
	cmd.AddCommand(NewInitCommand(opts))

	// Inspection and testing
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
