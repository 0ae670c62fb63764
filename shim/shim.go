// Package shim defines the contract a Wayland compositor implements to be
// driven in-process by waycheck.
//
// A compositor provides a Funcs table, either directly from Go test code or
// by exporting the same entry points from a plugin (see Load). Every entry
// except CreateClientSocket is required.
package shim

import (
	"errors"
	"fmt"
)

// Instance is the compositor's opaque server handle.
type Instance any

var (
	// ErrMissingEntry is wrapped by Validate for each required entry that
	// is nil.
	ErrMissingEntry = errors.New("missing required shim entry")

	// ErrNotImplemented reports that the shim lacks an optional capability.
	// Callers are expected to fall back to another strategy.
	ErrNotImplemented = errors.New("function not implemented in display server shim")
)

// Funcs is the capability table of a compositor under test.
type Funcs struct {
	// CreateServer builds a server instance from the process argument list.
	CreateServer func(args []string) (Instance, error)

	// DestroyServer releases an instance.
	DestroyServer func(Instance)

	// StartServer makes the compositor accept clients.
	StartServer func(Instance) error

	// StopServer shuts the compositor down.
	StopServer func(Instance) error

	// CreateClientSocket returns a descriptor connected to a fresh client
	// session, or a negative value on failure. Optional.
	CreateClientSocket func(Instance) (int, error)
}

// Validate reports the first missing required entry.
func (f *Funcs) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: no shim", ErrMissingEntry)
	}
	switch {
	case f.CreateServer == nil:
		return fmt.Errorf("%w: CreateServer", ErrMissingEntry)
	case f.DestroyServer == nil:
		return fmt.Errorf("%w: DestroyServer", ErrMissingEntry)
	case f.StartServer == nil:
		return fmt.Errorf("%w: StartServer", ErrMissingEntry)
	case f.StopServer == nil:
		return fmt.Errorf("%w: StopServer", ErrMissingEntry)
	}
	return nil
}

// SupportsClientSocket reports whether the optional socket entry exists.
func (f *Funcs) SupportsClientSocket() bool {
	return f != nil && f.CreateClientSocket != nil
}
