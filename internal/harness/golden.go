package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/rps/internal/ir"
)

// snapshot is the golden form of a run: the scenario's name and flow token
// plus every step in order. It is written as canonical JSON so the bytes
// only change when a step's case, seq or result changes.
func snapshot(scenario *Scenario, steps []Step) map[string]any {
	list := make([]any, len(steps))
	for i, step := range steps {
		entry := map[string]any{
			"step":   step.Index,
			"action": step.Action,
			"case":   step.Case,
			"seq":    step.Seq,
		}
		if step.Caller != "" {
			entry["caller"] = step.Caller
		}
		if len(step.Args) > 0 {
			entry["args"] = step.Args
		}
		if step.Result != nil {
			entry["result"] = step.Result
		}
		list[i] = entry
	}

	out := map[string]any{
		"scenario": scenario.Name,
		"steps":    list,
	}
	if scenario.FlowToken != "" {
		out["flow_token"] = scenario.FlowToken
	}
	return out
}

// GoldenBytes is the canonical JSON written to golden files. The rps test
// command compares against the same bytes.
func GoldenBytes(scenario *Scenario, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(snapshot(scenario, result.Steps))
}

// RunWithGolden runs scenario and compares its steps with
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario, result)
}

// AssertGolden compares an already-run result with the golden file of
// scenario.
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := GoldenBytes(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
