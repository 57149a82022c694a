package engine

import (
	"context"

	"github.com/roach88/rps/internal/ir"
)

// DecideWinner maps the first byte of each commitment to a hand (mod 3)
// and compares them. Rock=0 beats Scissors=2, Paper=1 beats Rock=0,
// Scissors=2 beats Paper=1.
//
// The outcome is a function of the digests alone; the committed moves are
// never revealed to the engine.
func DecideWinner(creator, joiner ir.Digest) ir.Outcome {
	c := ir.Move(creator[0] % 3)
	j := ir.Move(joiner[0] % 3)

	switch {
	case c == j:
		return ir.OutcomeTie
	case beats(c, j):
		return ir.OutcomeCreatorWins
	default:
		return ir.OutcomeJoinerWins
	}
}

func beats(a, b ir.Move) bool {
	return (a == ir.Rock && b == ir.Scissors) ||
		(a == ir.Paper && b == ir.Rock) ||
		(a == ir.Scissors && b == ir.Paper)
}

// settle pays the escrow out according to g.Outcome. The winner takes the
// whole pot; a tie returns each wager. Escrow must be empty afterwards.
func settle(ctx context.Context, s *step, g ir.GameRecord) error {
	escrow := ir.EscrowAccount(g.Key)

	switch g.Outcome {
	case ir.OutcomeCreatorWins:
		if err := s.transfer(ctx, escrow, string(g.Creator), 2*g.Wager); err != nil {
			return err
		}
	case ir.OutcomeJoinerWins:
		if err := s.transfer(ctx, escrow, string(g.Opponent), 2*g.Wager); err != nil {
			return err
		}
	case ir.OutcomeTie:
		if err := s.transfer(ctx, escrow, string(g.Creator), g.Wager); err != nil {
			return err
		}
		if err := s.transfer(ctx, escrow, string(g.Opponent), g.Wager); err != nil {
			return err
		}
	default:
		return newGameError(CodeEscrowImbalance, g.Key, "", "cannot settle unresolved outcome %q", g.Outcome)
	}

	left, err := s.tx.LoadBalance(ctx, escrow)
	if err != nil {
		return err
	}
	if left != 0 {
		return newGameError(CodeEscrowImbalance, g.Key, "", "escrow holds %d after settlement", left)
	}
	return nil
}
