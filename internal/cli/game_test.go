package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rps/internal/engine"
	"github.com/roach88/rps/internal/ir"
)

// execute runs the rps command tree with args and returns stdout.
func execute(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	if opts == nil {
		opts = &RootOptions{}
	}
	cmd := newRootCommand(opts)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "rps.db")
}

// decodeGame decodes a JSON game response.
func decodeGame(t *testing.T, out string) GameView {
	t.Helper()
	var resp struct {
		Status string   `json:"status"`
		Data   GameView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

// decodeError decodes a JSON error response.
func decodeError(t *testing.T, out string) CLIError {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	return *resp.Error
}

// fundPlayers credits alice and bob with 1000 each.
func fundPlayers(t *testing.T, db string) {
	t.Helper()
	for _, account := range []string{"alice", "bob"} {
		_, err := execute(t, nil, "--db", db, "fund", account, "1000")
		require.NoError(t, err)
	}
}

func TestGameLifecycle(t *testing.T) {
	db := tempDB(t)
	fundPlayers(t, db)
	game := []string{"--creator", "alice", "--wager", "100"}

	out, err := execute(t, nil, "--db", db, "--format", "json", "create", "--as", "alice", "--wager", "100")
	require.NoError(t, err)
	view := decodeGame(t, out)
	assert.Equal(t, string(ir.DeriveGameKey("alice", 100)), view.Key)
	assert.Equal(t, "Open", view.Status)
	assert.Equal(t, uint64(100), view.Escrow)

	out, err = execute(t, nil, append([]string{"--db", db, "--format", "json", "join", "--as", "bob"}, game...)...)
	require.NoError(t, err)
	view = decodeGame(t, out)
	assert.Equal(t, "Committed", view.Status)
	assert.Equal(t, "bob", view.Opponent)
	assert.Equal(t, uint64(200), view.Escrow)

	out, err = execute(t, nil, append([]string{"--db", db, "--format", "json", "commit", "--as", "alice", "--move", "rock", "--salt", "s1"}, game...)...)
	require.NoError(t, err)
	view = decodeGame(t, out)
	assert.Equal(t, "e4098525c95396d35263a052f9a6a24b349eb469edbcab058c223e6a65ab73f4", view.CreatorCommitment)
	assert.Empty(t, view.JoinerCommitment)

	_, err = execute(t, nil, append([]string{"--db", db, "commit", "--as", "bob", "--move", "scissors", "--salt", "s2"}, game...)...)
	require.NoError(t, err)

	out, err = execute(t, nil, append([]string{"--db", db, "--format", "json", "finalize", "--as", "alice"}, game...)...)
	require.NoError(t, err)
	view = decodeGame(t, out)
	assert.True(t, view.CreatorReady)
	assert.Equal(t, "Committed", view.Status)

	out, err = execute(t, nil, append([]string{"--db", db, "--format", "json", "finalize", "--as", "bob"}, game...)...)
	require.NoError(t, err)
	view = decodeGame(t, out)
	assert.Equal(t, "Ended", view.Status)
	assert.Equal(t, "JoinerWins", view.Outcome)
	assert.Equal(t, uint64(0), view.Escrow)

	out, err = execute(t, nil, "--db", db, "--format", "json", "balance", "alice", "bob")
	require.NoError(t, err)
	var balances struct {
		Data BalanceList `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &balances))
	require.Len(t, balances.Data.Balances, 2)
	assert.Equal(t, uint64(900), balances.Data.Balances[0].Balance)
	assert.Equal(t, uint64(1100), balances.Data.Balances[1].Balance)
}

func TestGameCommand_TextOutput(t *testing.T) {
	db := tempDB(t)
	fundPlayers(t, db)

	out, err := execute(t, nil, "--db", db, "create", "--as", "alice", "--wager", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "creator:  alice")
	assert.Contains(t, out, "opponent: -")
	assert.Contains(t, out, "status:   Open")
	assert.Contains(t, out, "escrow:   100")
}

func TestGameCommand_Rejections(t *testing.T) {
	db := tempDB(t)
	fundPlayers(t, db)
	game := []string{"--creator", "alice", "--wager", "100"}

	_, err := execute(t, nil, "--db", db, "create", "--as", "alice", "--wager", "100")
	require.NoError(t, err)
	_, err = execute(t, nil, append([]string{"--db", db, "join", "--as", "bob"}, game...)...)
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
		code engine.ErrorCode
	}{
		{"join full game", []string{"join", "--as", "carol"}, engine.CodeGameNotOpen},
		{"outsider commit", []string{"commit", "--as", "carol", "--move", "rock"}, engine.CodeUnauthorized},
		{"finalize before commit", []string{"finalize", "--as", "bob"}, engine.CodeMoveNotSelected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--db", db, "--format", "json"}, tt.args...)
			out, err := execute(t, nil, append(args, game...)...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.True(t, engine.IsCode(err, tt.code), "got %v", err)

			cliErr := decodeError(t, out)
			assert.Equal(t, string(tt.code), cliErr.Code)
		})
	}

	// Rejections leave the game untouched.
	out, err := execute(t, nil, append([]string{"--db", db, "--format", "json", "show"}, game...)...)
	require.NoError(t, err)
	view := decodeGame(t, out)
	assert.Equal(t, "bob", view.Opponent)
	assert.Empty(t, view.CreatorCommitment)
	assert.Equal(t, uint64(200), view.Escrow)
}

func TestCreateCommand_InsufficientBalance(t *testing.T) {
	out, err := execute(t, nil, "--db", tempDB(t), "--format", "json", "create", "--as", "alice", "--wager", "100")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, string(engine.CodeInsufficientBalance), decodeError(t, out).Code)
}

func TestGameFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   gameFlags
		want    ir.GameKey
		wantErr string
	}{
		{"by key", gameFlags{Game: "abc"}, "abc", ""},
		{"by creator and wager", gameFlags{Creator: "alice", Wager: 100}, ir.DeriveGameKey("alice", 100), ""},
		{"neither", gameFlags{}, "", "--game or --creator is required"},
		{"both", gameFlags{Game: "abc", Creator: "alice"}, "", "not both"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := tt.flags.key()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, ExitCommandError, GetExitCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestCommitCommand_InvalidMove(t *testing.T) {
	_, err := execute(t, nil, "--db", tempDB(t), "commit", "--as", "alice", "--creator", "alice", "--move", "lizard")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid --move")
}

func TestCreateCommand_RequiresAs(t *testing.T) {
	_, err := execute(t, nil, "--db", tempDB(t), "create", "--wager", "10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"as" not set`)
}

func TestShowCommand_NotFound(t *testing.T) {
	out, err := execute(t, nil, "--db", tempDB(t), "--format", "json", "show", "--game", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, string(engine.CodeGameNotFound), decodeError(t, out).Code)
}

func TestVerifyCommand(t *testing.T) {
	db := tempDB(t)
	fundPlayers(t, db)
	game := []string{"--creator", "alice", "--wager", "100"}

	_, err := execute(t, nil, "--db", db, "create", "--as", "alice", "--wager", "100")
	require.NoError(t, err)
	_, err = execute(t, nil, append([]string{"--db", db, "commit", "--as", "alice", "--move", "rock", "--salt", "s1"}, game...)...)
	require.NoError(t, err)

	t.Run("match", func(t *testing.T) {
		out, err := execute(t, nil, append([]string{"--db", db, "verify", "--as", "alice", "--move", "rock", "--salt", "s1"}, game...)...)
		require.NoError(t, err)
		assert.Contains(t, out, "✓ alice committed rock")
	})

	t.Run("wrong salt", func(t *testing.T) {
		out, err := execute(t, nil, append([]string{"--db", db, "--format", "json", "verify", "--as", "alice", "--move", "rock", "--salt", "s2"}, game...)...)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		var resp struct {
			Data VerifyResult `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.False(t, resp.Data.Valid)
		assert.Equal(t, "rock", resp.Data.Move)
	})

	t.Run("not a party", func(t *testing.T) {
		_, err := execute(t, nil, append([]string{"--db", db, "verify", "--as", "bob", "--move", "rock"}, game...)...)
		require.Error(t, err)
		assert.True(t, engine.IsCode(err, engine.CodeUnauthorized))
	})
}
