// Package testutil holds deterministic stand-ins for tests.
package testutil

import (
	"fmt"
	"sync"
)

// SequenceGenerator issues request ids "<prefix>-1", "<prefix>-2", ...
// It satisfies action.IDGenerator and never runs out, unlike
// action.FixedGenerator, so command tests need not count requests.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator. An empty prefix means "req".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "req"
	}
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}

// Issued reports how many ids were handed out.
func (g *SequenceGenerator) Issued() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}
