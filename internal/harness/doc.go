// Package harness runs Rock-Paper-Scissors game scenarios against the real
// engine and checks them as executable contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: full_game
//	description: "What this scenario validates"
//	accounts:
//	  alice: 1000
//	  bob: 1000
//	flow:
//	  - invoke: Game.create
//	    as: alice
//	    args: { wager: 100 }
//	  - invoke: Game.join
//	    as: bob
//	    args: { creator: alice, wager: 100 }
//	    expect:
//	      case: Success
//	      result: { status: Committed, escrow: 200 }
//	  - invoke: Game.commit
//	    as: alice
//	    args: { creator: alice, wager: 100, move: rock, salt: s1 }
//	assertions:
//	  - type: balance
//	    escrow: { creator: alice, wager: 100 }
//	    amount: 200
//	  - type: final_state
//	    table: games
//	    where: { creator: alice }
//	    expect: { status: Committed }
//
// A step without an expect clause must succeed. Every step is recorded in
// result.Steps. A rejected step keeps its error code as its case, has seq 0
// and no result.
//
// # Assertion Types
//
//   - trace_contains: a step ran the action with matching args
//   - trace_order: the actions first ran in the given order
//   - trace_count: the action ran exactly N times
//   - final_state: a row of games, balances, events or transfers matches
//   - balance: a ledger account or game escrow holds an exact amount
//
// # Deterministic Testing
//
// Every scenario runs on a fresh in-memory SQLite database with a
// deterministic logical clock and a fixed flow token, so step lists are
// identical across runs and can be compared against golden files in
// testdata/golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/full_game.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
