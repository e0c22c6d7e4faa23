package detect

import (
	"context"
	"strings"
	"sync"
)

// MemorySource is an in-memory EventSource for tests and local runs.
//
// Thread-safety: MemorySource is safe for concurrent use.
type MemorySource struct {
	mu     sync.RWMutex
	events map[memoryKey][]TransferEvent
}

type memoryKey struct {
	network   string
	name      EventName
	reference string
	address   string
}

// NewMemorySource creates an empty source.
func NewMemorySource() *MemorySource {
	return &MemorySource{events: make(map[memoryKey][]TransferEvent)}
}

func keyOf(q Query) memoryKey {
	return memoryKey{
		network:   q.Network,
		name:      q.Name,
		reference: strings.ToLower(q.PaymentReference),
		address:   strings.ToLower(q.Address),
	}
}

// Add records an event under the query that should find it. The event's
// Name and To default to the query's.
func (m *MemorySource) Add(q Query, ev TransferEvent) {
	if ev.Name == "" {
		ev.Name = q.Name
	}
	if ev.To == "" {
		ev.To = q.Address
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(q)
	m.events[k] = append(m.events[k], ev)
}

// TransferEvents implements EventSource. Addresses and references match
// case-insensitively.
func (m *MemorySource) TransferEvents(_ context.Context, q Query) ([]TransferEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	found := m.events[keyOf(q)]
	out := make([]TransferEvent, len(found))
	copy(out, found)
	return out, nil
}
