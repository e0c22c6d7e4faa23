package testutil

import (
	"fmt"
	"sync"
)

// HexSequence generates "0000000000000001", "0000000000000002", ... .
// The values are valid payment network salts and deterministic nonces.
//
// Thread-safety: HexSequence is safe for concurrent use.
type HexSequence struct {
	mu sync.Mutex
	n  uint64
}

// NewHexSequence creates a sequence whose first value ends in 1.
func NewHexSequence() *HexSequence {
	return &HexSequence{}
}

// Generate returns the next value.
func (g *HexSequence) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%016x", g.n)
}
