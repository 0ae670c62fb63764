package shim

import (
	"errors"
	"fmt"
	"plugin"
)

// Exported symbol names looked up in a shim plugin.
const (
	SymbolCreateServer       = "CreateServer"
	SymbolDestroyServer      = "DestroyServer"
	SymbolStartServer        = "StartServer"
	SymbolStopServer         = "StopServer"
	SymbolCreateClientSocket = "CreateClientSocket"
)

type symbolTable interface {
	Lookup(name string) (plugin.Symbol, error)
}

// Load opens a Go plugin built with -buildmode=plugin and collects its
// entry points. Missing required entries are reported like Validate does;
// a missing CreateClientSocket is not an error.
func Load(path string) (*Funcs, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shim %s: %w", path, err)
	}
	return lookupFuncs(p)
}

func lookupFuncs(tab symbolTable) (*Funcs, error) {
	f := &Funcs{}
	var errs []error

	if sym, ok := lookup(tab, SymbolCreateServer); ok {
		fn, ok := sym.(func([]string) (Instance, error))
		if !ok {
			errs = append(errs, badSymbol(SymbolCreateServer, sym))
		}
		f.CreateServer = fn
	}
	if sym, ok := lookup(tab, SymbolDestroyServer); ok {
		fn, ok := sym.(func(Instance))
		if !ok {
			errs = append(errs, badSymbol(SymbolDestroyServer, sym))
		}
		f.DestroyServer = fn
	}
	if sym, ok := lookup(tab, SymbolStartServer); ok {
		fn, ok := sym.(func(Instance) error)
		if !ok {
			errs = append(errs, badSymbol(SymbolStartServer, sym))
		}
		f.StartServer = fn
	}
	if sym, ok := lookup(tab, SymbolStopServer); ok {
		fn, ok := sym.(func(Instance) error)
		if !ok {
			errs = append(errs, badSymbol(SymbolStopServer, sym))
		}
		f.StopServer = fn
	}
	if sym, ok := lookup(tab, SymbolCreateClientSocket); ok {
		fn, ok := sym.(func(Instance) (int, error))
		if !ok {
			errs = append(errs, badSymbol(SymbolCreateClientSocket, sym))
		}
		f.CreateClientSocket = fn
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func lookup(tab symbolTable, name string) (plugin.Symbol, bool) {
	sym, err := tab.Lookup(name)
	if err != nil || sym == nil {
		return nil, false
	}
	return sym, true
}

func badSymbol(name string, sym plugin.Symbol) error {
	return fmt.Errorf("shim symbol %s has unexpected type %T", name, sym)
}
