package testfixtures

import (
	"fmt"
	"sync"
)

// IDGenerator produces deterministic prefixed identifiers for tests, counting
// per prefix so the first session is always ses_1 regardless of how many
// events were generated before it.
type IDGenerator struct {
	mu       sync.Mutex
	counters map[string]uint64
}

// NewIDGenerator constructs a generator with all counters at zero.
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{counters: make(map[string]uint64)}
}

// Next returns the next identifier for the given prefix.
func (g *IDGenerator) Next(prefix string) string {
	if prefix == "" {
		prefix = "id"
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counters[prefix]++
	return fmt.Sprintf("%s_%d", prefix, g.counters[prefix])
}

// NextFunc exposes Next as a function suitable for dependency injection.
func (g *IDGenerator) NextFunc() func(prefix string) string {
	if g == nil {
		return func(string) string { return "" }
	}
	return g.Next
}

// SequenceFunc returns a zero-argument generator bound to one prefix, matching
// the shape token generators take.
func (g *IDGenerator) SequenceFunc(prefix string) func() string {
	return func() string {
		return g.Next(prefix)
	}
}

// Reset clears every counter.
func (g *IDGenerator) Reset() {
	g.mu.Lock()
	g.counters = make(map[string]uint64)
	g.mu.Unlock()
}
