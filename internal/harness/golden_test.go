package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rps/internal/ir"
)

// TestScenarios runs every scenario in testdata/scenarios and compares its
// trace with testdata/golden/<name>.golden.
func TestScenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(f)
			require.NoError(t, err)
			require.Equal(t, name, scenario.Name, "scenario name must match file name")

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)

			require.NoError(t, AssertGolden(t, scenario, result))
		})
	}
}

func TestRunWithGolden_FullGame(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/full_game.yaml")
	require.NoError(t, err)

	require.NoError(t, RunWithGolden(t, scenario))
}

func TestGoldenBytes_MatchesFile(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/tie_with_rejections.yaml")
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)

	got, err := GoldenBytes(scenario, result)
	require.NoError(t, err)

	want, err := os.ReadFile("testdata/golden/tie_with_rejections.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))
}

func TestGoldenBytes_Deterministic(t *testing.T) {
	scenario := &Scenario{Name: "determinism_test", FlowToken: "fixed-token"}
	result := NewResult()
	result.record(Step{
		Action: ir.ActionCommit,
		Caller: "alice",
		Args:   map[string]interface{}{"creator": "alice", "wager": 3, "move": "rock"},
		Case:   OutputSuccess,
		Result: ir.IRObject{"status": ir.IRString("Committed")},
		Seq:    1,
	})

	first, err := GoldenBytes(scenario, result)
	require.NoError(t, err)
	second, err := GoldenBytes(scenario, result)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGoldenBytes_RejectedStep(t *testing.T) {
	scenario := &Scenario{Name: "test_scenario"}
	result := NewResult()
	result.record(Step{
		Action: ir.ActionJoin,
		Caller: "carol",
		Args:   map[string]interface{}{"creator": "alice", "wager": 5},
		Case:   "GAME_NOT_OPEN",
	})
	result.record(Step{Action: ir.ActionFund, Case: "INVALID_ACCOUNT"})

	got, err := GoldenBytes(scenario, result)
	require.NoError(t, err)

	// No flow token, no result for rejected steps, and empty caller and
	// args are left out.
	assert.Equal(t,
		`{"scenario":"test_scenario","steps":[`+
			`{"action":"Game.join","args":{"creator":"alice","wager":5},"caller":"carol","case":"GAME_NOT_OPEN","seq":0,"step":0},`+
			`{"action":"Ledger.fund","case":"INVALID_ACCOUNT","seq":0,"step":1}]}`,
		string(got))
}
