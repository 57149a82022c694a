package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rps/internal/engine"
	"github.com/roach88/rps/internal/ir"
	"github.com/roach88/rps/internal/store"
)

func decodeBalances(t *testing.T, out string) []store.AccountBalance {
	t.Helper()
	var resp struct {
		Status string      `json:"status"`
		Data   BalanceList `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data.Balances
}

func TestFundCommand(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, nil, "--db", db, "fund", "alice", "250")
	require.NoError(t, err)
	assert.Contains(t, out, "funded alice with 250 (balance 250)")

	out, err = execute(t, nil, "--db", db, "--format", "json", "fund", "alice", "50")
	require.NoError(t, err)
	var resp struct {
		Data FundResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, FundResult{Account: "alice", Amount: 50, Balance: 300}, resp.Data)
}

func TestFundCommand_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		code     string
	}{
		{"not a number", []string{"alice", "lots"}, ExitCommandError, ErrCodeInvalidInput},
		{"negative", []string{"alice", "-5"}, ExitCommandError, ErrCodeInvalidInput},
		{"zero", []string{"alice", "0"}, ExitFailure, string(engine.CodeInvalidAmount)},
		{"escrow account", []string{ir.EscrowPrefix + "x", "10"}, ExitFailure, string(engine.CodeInvalidAccount)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", tempDB(t), "--format", "json", "fund", "--"}, tt.args...)
			out, err := execute(t, nil, args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
			assert.Equal(t, tt.code, decodeError(t, out).Code)
			assert.True(t, IsReported(err))
		})
	}
}

func TestFundCommand_ErrorNamesCodeOnce(t *testing.T) {
	out, err := execute(t, nil, "--db", tempDB(t), "fund", "--", ir.EscrowPrefix+"x", "10")
	require.Error(t, err)
	assert.Equal(t, `INVALID_ACCOUNT: cannot fund account "escrow/x" (caller=escrow/x)`, err.Error())
	assert.Equal(t, "Error [INVALID_ACCOUNT]: cannot fund account \"escrow/x\"\n", out)
}

func TestBalanceCommand(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, nil, "--db", db, "balance")
	require.NoError(t, err)
	assert.Contains(t, out, "(no accounts)")

	fundPlayers(t, db)
	_, err = execute(t, nil, "--db", db, "create", "--as", "alice", "--wager", "100")
	require.NoError(t, err)

	t.Run("all accounts", func(t *testing.T) {
		out, err := execute(t, nil, "--db", db, "--format", "json", "balance")
		require.NoError(t, err)
		balances := decodeBalances(t, out)
		require.Len(t, balances, 3)
		assert.Equal(t, store.AccountBalance{Account: "alice", Balance: 900}, balances[0])
		assert.Equal(t, store.AccountBalance{Account: "bob", Balance: 1000}, balances[1])
		assert.Equal(t, ir.EscrowAccount(ir.DeriveGameKey("alice", 100)), balances[2].Account)
	})

	t.Run("unknown account is zero", func(t *testing.T) {
		out, err := execute(t, nil, "--db", db, "--format", "json", "balance", "nobody")
		require.NoError(t, err)
		assert.Equal(t, []store.AccountBalance{{Account: "nobody", Balance: 0}}, decodeBalances(t, out))
	})

	t.Run("escrow", func(t *testing.T) {
		out, err := execute(t, nil, "--db", db, "--format", "json", "balance", "--escrow", "--creator", "alice", "--wager", "100")
		require.NoError(t, err)
		balances := decodeBalances(t, out)
		require.Len(t, balances, 1)
		assert.Equal(t, uint64(100), balances[0].Balance)
	})

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, nil, "--db", db, "balance", "alice", "bob")
		require.NoError(t, err)
		assert.Equal(t, "alice  900\nbob    1000\n", out)
	})
}

// writeConfig writes a CUE config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rps.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestInitCommand(t *testing.T) {
	db := tempDB(t)
	cfg := writeConfig(t, fmt.Sprintf(`
database: %q
accounts: {
	bob:   300
	alice: 500
	zed:   0
}
`, db))

	out, err := execute(t, nil, "--config", cfg, "--format", "json", "init")
	require.NoError(t, err)
	assert.Equal(t, []store.AccountBalance{
		{Account: "alice", Balance: 500},
		{Account: "bob", Balance: 300},
	}, decodeBalances(t, out))

	// The config names the database, so balance sees the genesis funds.
	out, err = execute(t, nil, "--config", cfg, "--format", "json", "balance", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(500), decodeBalances(t, out)[0].Balance)

	_, err = execute(t, nil, "--config", cfg, "init")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "already initialized")
}

func TestInitCommand_RejectedAccountFundsNobody(t *testing.T) {
	db := tempDB(t)
	bad := writeConfig(t, "accounts: {\n\talice: 1000\n\t\"escrow/x\": 5\n}\n")

	out, err := execute(t, nil, "--config", bad, "--db", db, "--format", "json", "init")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, string(engine.CodeInvalidAccount), decodeError(t, out).Code)

	out, err = execute(t, nil, "--db", db, "--format", "json", "balance", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), decodeBalances(t, out)[0].Balance)

	// The failed init left no event, so a corrected config still applies.
	good := writeConfig(t, "accounts: alice: 1000\n")
	out, err = execute(t, nil, "--config", good, "--db", db, "--format", "json", "init")
	require.NoError(t, err)
	assert.Equal(t, []store.AccountBalance{{Account: "alice", Balance: 1000}}, decodeBalances(t, out))
}

func TestInitCommand_DBFlagOverridesConfig(t *testing.T) {
	configured := tempDB(t)
	override := tempDB(t)
	cfg := writeConfig(t, fmt.Sprintf("database: %q\naccounts: alice: 10\n", configured))

	_, err := execute(t, nil, "--config", cfg, "--db", override, "init")
	require.NoError(t, err)

	out, err := execute(t, nil, "--db", override, "--format", "json", "balance", "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), decodeBalances(t, out)[0].Balance)

	_, err = os.Stat(configured)
	assert.True(t, os.IsNotExist(err), "configured database should not be created")
}

func TestInitCommand_BadConfig(t *testing.T) {
	cfg := writeConfig(t, "accounts: alice: -1\n")

	out, err := execute(t, nil, "--config", cfg, "--db", tempDB(t), "--format", "json", "init")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, ErrCodeInvalidConfig, decodeError(t, out).Code)
}
