package extension

import (
	"fmt"

	"github.com/roach88/reqlog/internal/ir"
)

// Dispatcher applies extension actions through a registry.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Recognizes reports whether the dispatcher has a module for id.
func (d *Dispatcher) Recognizes(id string) bool {
	return d.registry.Recognizes(id)
}

// ApplyActionToExtensions applies one extension action and returns the new
// extensions map. prev, action and req are left untouched; modules only ever
// see copies.
//
// An id with no registered module fails with *ir.ExtensionNotRecognizedError.
func (d *Dispatcher) ApplyActionToExtensions(prev ir.ExtensionsState, action ir.ExtensionAction, req *ir.Request, signer ir.Identity, timestamp int64) (ir.ExtensionsState, error) {
	ext, ok := d.registry.Get(action.ID)
	if !ok {
		return nil, &ir.ExtensionNotRecognizedError{ID: action.ID}
	}

	var current *ir.ExtensionState
	if st, ok := prev[action.ID]; ok {
		c := st.Clone()
		current = &c
	}

	next, err := ext.ApplyAction(current, action.Clone(), req.Clone(), signer, timestamp)
	if err != nil {
		return nil, fmt.Errorf("extension %s action %s: %w", action.ID, action.Action, err)
	}
	if next.ID != action.ID {
		return nil, &ir.InvariantError{Message: fmt.Sprintf("extension %s returned state for %q", action.ID, next.ID)}
	}

	out := prev.Clone()
	out[action.ID] = next
	return out, nil
}
