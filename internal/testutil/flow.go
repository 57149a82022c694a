package testutil

// DefaultFlowToken is used when a scenario does not name a flow token.
const DefaultFlowToken = "test-flow-default"

// FixedFlowGenerator stamps every request with one token, typically the
// scenario's flow_token. Event IDs then depend only on the operations, so
// golden traces are byte-identical between runs. Unlike
// engine.FixedGenerator it never runs out.
type FixedFlowGenerator struct {
	token string
}

// NewFixedFlowGenerator returns a generator for token, or for
// DefaultFlowToken when token is empty.
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = DefaultFlowToken
	}
	return &FixedFlowGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}
