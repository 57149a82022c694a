// Package ledger moves value between named accounts.
//
// It knows nothing about games: escrow is just another account. Balances
// live behind the Accounts interface so that every movement happens inside
// the caller's storage transaction and rolls back with it.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrSameAccount is returned when a transfer names one account twice.
	ErrSameAccount = errors.New("ledger: sender and recipient are the same account")

	// ErrAmount is returned for a zero amount.
	ErrAmount = errors.New("ledger: amount must be positive")

	// ErrInsufficientBalance is returned when the sender cannot cover the amount.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrOverflow is returned when a credit would not fit in a balance.
	ErrOverflow = errors.New("ledger: balance overflow")

	// ErrAccount is returned for an empty account name.
	ErrAccount = errors.New("ledger: empty account name")
)

// MaxBalance is the largest balance an account may hold. Balances are stored
// as SQLite INTEGER, which is signed 64-bit.
const MaxBalance = math.MaxInt64

// Accounts loads and saves balances. A missing account has balance 0.
type Accounts interface {
	LoadBalance(ctx context.Context, account string) (uint64, error)
	SaveBalance(ctx context.Context, account string, balance uint64) error
}

// Balance is the before/after view of one account touched by a movement.
type Balance struct {
	Account string `json:"account"`
	Prev    uint64 `json:"prev"`
	Current uint64 `json:"current"`
}

// Receipt records one movement. From is empty for deposits.
type Receipt struct {
	From   Balance `json:"from"`
	To     Balance `json:"to"`
	Amount uint64  `json:"amount"`
}

// Transfer moves amount from one account to another.
func Transfer(ctx context.Context, accts Accounts, from, to string, amount uint64) (Receipt, error) {
	if from == "" || to == "" {
		return Receipt{}, ErrAccount
	}
	if from == to {
		return Receipt{}, ErrSameAccount
	}
	if amount == 0 {
		return Receipt{}, ErrAmount
	}

	fromBal, err := accts.LoadBalance(ctx, from)
	if err != nil {
		return Receipt{}, fmt.Errorf("load %s: %w", from, err)
	}
	if fromBal < amount {
		return Receipt{}, fmt.Errorf("transfer %d from %s (balance %d): %w", amount, from, fromBal, ErrInsufficientBalance)
	}
	toBal, err := accts.LoadBalance(ctx, to)
	if err != nil {
		return Receipt{}, fmt.Errorf("load %s: %w", to, err)
	}
	if toBal > MaxBalance-amount {
		return Receipt{}, fmt.Errorf("credit %d to %s: %w", amount, to, ErrOverflow)
	}

	receipt := Receipt{
		From:   Balance{Account: from, Prev: fromBal, Current: fromBal - amount},
		To:     Balance{Account: to, Prev: toBal, Current: toBal + amount},
		Amount: amount,
	}
	if err := accts.SaveBalance(ctx, from, receipt.From.Current); err != nil {
		return Receipt{}, fmt.Errorf("save %s: %w", from, err)
	}
	if err := accts.SaveBalance(ctx, to, receipt.To.Current); err != nil {
		return Receipt{}, fmt.Errorf("save %s: %w", to, err)
	}
	return receipt, nil
}

// Deposit credits an account from outside the ledger.
func Deposit(ctx context.Context, accts Accounts, account string, amount uint64) (Receipt, error) {
	if account == "" {
		return Receipt{}, ErrAccount
	}
	if amount == 0 {
		return Receipt{}, ErrAmount
	}

	bal, err := accts.LoadBalance(ctx, account)
	if err != nil {
		return Receipt{}, fmt.Errorf("load %s: %w", account, err)
	}
	if bal > MaxBalance-amount {
		return Receipt{}, fmt.Errorf("deposit %d to %s: %w", amount, account, ErrOverflow)
	}

	receipt := Receipt{
		To:     Balance{Account: account, Prev: bal, Current: bal + amount},
		Amount: amount,
	}
	if err := accts.SaveBalance(ctx, account, receipt.To.Current); err != nil {
		return Receipt{}, fmt.Errorf("save %s: %w", account, err)
	}
	return receipt, nil
}

// MapAccounts is an in-memory Accounts, used by tests and dry runs.
type MapAccounts map[string]uint64

// LoadBalance implements Accounts.
func (m MapAccounts) LoadBalance(_ context.Context, account string) (uint64, error) {
	return m[account], nil
}

// SaveBalance implements Accounts.
func (m MapAccounts) SaveBalance(_ context.Context, account string, balance uint64) error {
	m[account] = balance
	return nil
}
