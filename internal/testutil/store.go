package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rps/internal/ir"
	"github.com/roach88/rps/internal/ledger"
	"github.com/roach88/rps/internal/store"
)

// NewStore opens a fresh SQLite store in a temp dir, closed on cleanup.
func NewStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Seed deposits balances directly, bypassing the event log.
func Seed(t testing.TB, s *store.Store, balances map[ir.Identity]uint64) {
	t.Helper()
	ctx := context.Background()
	err := s.Update(ctx, func(tx *store.Tx) error {
		for account, amount := range balances {
			if amount == 0 {
				continue
			}
			if _, err := ledger.Deposit(ctx, tx, string(account), amount); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

// Balance reads one balance and fails the test on error.
func Balance(t testing.TB, s *store.Store, account string) uint64 {
	t.Helper()
	bal, err := s.ReadBalance(context.Background(), account)
	require.NoError(t, err)
	return bal
}
