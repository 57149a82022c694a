package harness

import "github.com/roach88/rps/internal/ir"

// Step is one flow step as it ran: the request the scenario made and the
// engine's answer. A rejected step carries the error code as Case, Seq 0
// and no Result, since it wrote no event.
type Step struct {
	Index  int                    `json:"index"`
	Action string                 `json:"action"`
	Caller string                 `json:"caller,omitempty"`
	Args   map[string]interface{} `json:"args,omitempty"`
	Case   string                 `json:"case"`
	Result ir.IRObject            `json:"result,omitempty"`
	Seq    int64                  `json:"seq"`
}

// Accepted reports whether the engine applied the step.
func (s Step) Accepted() bool {
	return s.Case == OutputSuccess
}

// Result is the outcome of one scenario run.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Steps are the flow steps in execution order, rejected ones included.
	Steps []Step `json:"steps"`

	// Errors lists every failed expectation. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Balances holds the ledger after the run, escrow accounts included.
	Balances map[string]uint64 `json:"balances,omitempty"`
}

// NewResult returns an empty, passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Steps:    []Step{},
		Errors:   []string{},
		Balances: make(map[string]uint64),
	}
}

// AddError records a failed expectation and fails the result.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// record appends a step in execution order.
func (r *Result) record(step Step) {
	step.Index = len(r.Steps)
	r.Steps = append(r.Steps, step)
}
