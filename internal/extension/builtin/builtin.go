// Package builtin assembles the registry of extensions shipped with reqlog.
package builtin

import (
	"github.com/roach88/reqlog/internal/extension"
	"github.com/roach88/reqlog/internal/extension/contentdata"
	"github.com/roach88/reqlog/internal/extension/paymentnetwork"
)

// Registry returns a new registry holding content-data and every
// reference-based payment network.
func Registry() *extension.Registry {
	r := extension.NewRegistry()
	exts := []extension.Extension{contentdata.New()}
	for _, pn := range paymentnetwork.All() {
		exts = append(exts, pn)
	}
	for _, ext := range exts {
		if err := r.Register(ext); err != nil {
			// Built-in ids are distinct constants.
			panic(err)
		}
	}
	return r
}

// Dispatcher returns a dispatcher over Registry().
func Dispatcher() *extension.Dispatcher {
	return extension.NewDispatcher(Registry())
}
