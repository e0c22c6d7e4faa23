package client

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Generator produces salts for payment networks and nonces for creates.
// Values must be at least 16 hex characters to serve as salts.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type Generator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 values as 32 lowercase hex
// characters (hyphens removed).
//
// Uses github.com/google/uuid package for RFC 9562 compliant UUIDs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) Generate() string {
	return strings.ReplaceAll(uuid.Must(uuid.NewV7()).String(), "-", "")
}

// FixedGenerator returns predetermined values for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu     sync.Mutex
	values []string
	idx    int
}

// NewFixedGenerator creates a generator that returns values in order.
//
// Example:
//
//	gen := NewFixedGenerator("0000000000000001", "0000000000000002")
//	gen.Generate() // "0000000000000001"
//	gen.Generate() // "0000000000000002"
//	gen.Generate() // panic: all values exhausted
func NewFixedGenerator(values ...string) *FixedGenerator {
	return &FixedGenerator{values: values}
}

// Generate returns the next predetermined value.
//
// Panics if all values have been consumed, so a test that creates more
// requests than it planned for fails loudly.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.values) {
		panic("FixedGenerator: all values exhausted")
	}
	v := g.values[g.idx]
	g.idx++
	return v
}
