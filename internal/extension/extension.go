// Package extension routes extension-scoped actions to the module that owns
// the extension id.
//
// Modules are pure reducers over their own ir.ExtensionState slice of a
// request. The registry is filled at startup and only read afterwards.
package extension

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/reqlog/internal/ir"
)

var (
	// ErrRegistryRequired indicates a missing registry.
	ErrRegistryRequired = errors.New("extension registry is required")
	// ErrExtensionRequired indicates a nil extension passed to Register.
	ErrExtensionRequired = errors.New("extension is required")
	// ErrExtensionIDRequired indicates an extension with an empty id.
	ErrExtensionIDRequired = errors.New("extension id is required")
	// ErrExtensionAlreadyRegistered indicates a duplicate registration.
	ErrExtensionAlreadyRegistered = errors.New("extension already registered")
)

// Extension is a pluggable reducer for one extension id.
//
// ApplyAction receives the current sub-state (nil before the extension's
// create action) and returns the next one. It must not modify state, action
// or req, and must return *ir.RejectError for actions it refuses.
type Extension interface {
	ID() string
	Type() ir.ExtensionType
	ApplyAction(state *ir.ExtensionState, action ir.ExtensionAction, req *ir.Request, signer ir.Identity, timestamp int64) (ir.ExtensionState, error)
}

// Registry maps extension ids to modules.
type Registry struct {
	mu         sync.RWMutex
	extensions map[string]Extension
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{extensions: make(map[string]Extension)}
}

// Register adds an extension. Ids are unique.
func (r *Registry) Register(ext Extension) error {
	if r == nil {
		return ErrRegistryRequired
	}
	if ext == nil {
		return ErrExtensionRequired
	}
	id := strings.TrimSpace(ext.ID())
	if id == "" {
		return ErrExtensionIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.extensions[id]; exists {
		return fmt.Errorf("%w: %s", ErrExtensionAlreadyRegistered, id)
	}
	r.extensions[id] = ext
	return nil
}

// Get returns the extension registered under id.
func (r *Registry) Get(id string) (Extension, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext, ok := r.extensions[id]
	return ext, ok
}

// Recognizes reports whether id has a registered module.
func (r *Registry) Recognizes(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.extensions))
	for id := range r.extensions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
