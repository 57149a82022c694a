package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// FlowTokenGenerator supplies the flow token of one request. Every
// operation draws a token, including operations the engine then rejects;
// only committed operations leave it in the event log.
type FlowTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator is the production generator. UUIDv7 tokens sort by
// creation time, so "rps trace --flow" output lines up with request order.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7. It panics only if the system
// random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator hands out a scripted list of tokens, one per request.
// Drawing past the end panics: a test that makes more requests than it
// scripted is wrong.
type FixedGenerator struct {
	mu     sync.Mutex
	tokens []string
	used   int
}

// NewFixedGenerator returns a generator that yields tokens in order.
func NewFixedGenerator(tokens ...string) *FixedGenerator {
	return &FixedGenerator{tokens: tokens}
}

// Generate returns the next scripted token.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.used == len(g.tokens) {
		panic(fmt.Sprintf("FixedGenerator: request %d but only %d tokens scripted", g.used+1, len(g.tokens)))
	}
	token := g.tokens[g.used]
	g.used++
	return token
}

// Remaining reports how many scripted tokens are left.
func (g *FixedGenerator) Remaining() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.tokens) - g.used
}
