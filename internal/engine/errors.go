package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/rps/internal/ir"
)

// ErrorCode categorizes rejected operations.
type ErrorCode string

const (
	// CodeGameNotOpen indicates Join on a game that already has an opponent.
	CodeGameNotOpen ErrorCode = "GAME_NOT_OPEN"

	// CodeUnauthorized indicates the caller is not a party to the game,
	// the creator tried to join their own game, or no identity was given.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeMoveNotSelected indicates Finalize before the caller committed.
	CodeMoveNotSelected ErrorCode = "MOVE_NOT_SELECTED"

	// CodeGameAlreadyEnded indicates any mutation of an Ended game.
	CodeGameAlreadyEnded ErrorCode = "GAME_ALREADY_ENDED"

	// CodeGameNotFound indicates no record exists for the key.
	CodeGameNotFound ErrorCode = "GAME_NOT_FOUND"

	// CodeGameExists indicates Create for a creator+wager that already has a game.
	CodeGameExists ErrorCode = "GAME_EXISTS"

	// CodeInvalidMove indicates a move outside rock, paper, scissors.
	CodeInvalidMove ErrorCode = "INVALID_MOVE"

	// CodeMoveAlreadyCommitted indicates a second Commit by the same party.
	CodeMoveAlreadyCommitted ErrorCode = "MOVE_ALREADY_COMMITTED"

	// CodeInvalidWager indicates a wager whose pot would not fit a balance.
	CodeInvalidWager ErrorCode = "INVALID_WAGER"

	// CodeInsufficientBalance indicates a party cannot cover the wager.
	CodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"

	// CodeInvalidAmount indicates a zero or out-of-range funding amount.
	CodeInvalidAmount ErrorCode = "INVALID_AMOUNT"

	// CodeInvalidAccount indicates funding an empty or reserved account.
	CodeInvalidAccount ErrorCode = "INVALID_ACCOUNT"

	// CodeEscrowImbalance indicates escrow did not drain to zero on settlement.
	// It is an internal fault, never a caller mistake.
	CodeEscrowImbalance ErrorCode = "ESCROW_IMBALANCE"
)

// GameError is a rejected operation. The store transaction that produced it
// has been rolled back, so the game record is unchanged.
type GameError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// GameKey identifies the affected game, if any.
	GameKey ir.GameKey

	// Caller is the identity that made the request.
	Caller ir.Identity

	// Err is the underlying cause (ledger errors), if any.
	Err error
}

// Error implements the error interface.
func (e *GameError) Error() string {
	if e.GameKey != "" {
		return fmt.Sprintf("%s: %s (game=%s, caller=%s)", e.Code, e.Message, shortKey(e.GameKey), e.Caller)
	}
	if e.Caller != "" {
		return fmt.Sprintf("%s: %s (caller=%s)", e.Code, e.Message, e.Caller)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *GameError) Unwrap() error {
	return e.Err
}

// CodeOf returns the ErrorCode carried by err, or "" if err is not a GameError.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var ge *GameError
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}

// IsCode reports whether err is a GameError with the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

func newGameError(code ErrorCode, key ir.GameKey, caller ir.Identity, format string, args ...any) *GameError {
	return &GameError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		GameKey: key,
		Caller:  caller,
	}
}

// shortKey abbreviates a game key for messages and logs.
func shortKey(key ir.GameKey) string {
	if len(key) > 12 {
		return string(key[:12])
	}
	return string(key)
}
