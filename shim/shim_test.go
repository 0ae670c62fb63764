package shim

import (
	"errors"
	"plugin"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSymbols map[string]plugin.Symbol

func (f fakeSymbols) Lookup(name string) (plugin.Symbol, error) {
	sym, ok := f[name]
	if !ok {
		return nil, errors.New("plugin: symbol " + name + " not found")
	}
	return sym, nil
}

func completeSymbols() fakeSymbols {
	return fakeSymbols{
		SymbolCreateServer:  func([]string) (Instance, error) { return "server", nil },
		SymbolDestroyServer: func(Instance) {},
		SymbolStartServer:   func(Instance) error { return nil },
		SymbolStopServer:    func(Instance) error { return nil },
	}
}

func TestValidate(t *testing.T) {
	full := func() *Funcs {
		return &Funcs{
			CreateServer:  func([]string) (Instance, error) { return nil, nil },
			DestroyServer: func(Instance) {},
			StartServer:   func(Instance) error { return nil },
			StopServer:    func(Instance) error { return nil },
		}
	}

	tests := []struct {
		name    string
		mutate  func(f *Funcs)
		missing string
	}{
		{name: "complete", mutate: func(f *Funcs) {}},
		{name: "no create", mutate: func(f *Funcs) { f.CreateServer = nil }, missing: "CreateServer"},
		{name: "no destroy", mutate: func(f *Funcs) { f.DestroyServer = nil }, missing: "DestroyServer"},
		{name: "no start", mutate: func(f *Funcs) { f.StartServer = nil }, missing: "StartServer"},
		{name: "no stop", mutate: func(f *Funcs) { f.StopServer = nil }, missing: "StopServer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := full()
			tt.mutate(f)
			err := f.Validate()
			if tt.missing == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrMissingEntry)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}

	var nilFuncs *Funcs
	assert.ErrorIs(t, nilFuncs.Validate(), ErrMissingEntry)
	assert.False(t, nilFuncs.SupportsClientSocket())
}

func TestLookupFuncsOptionalSocket(t *testing.T) {
	f, err := lookupFuncs(completeSymbols())
	require.NoError(t, err)
	assert.False(t, f.SupportsClientSocket())

	syms := completeSymbols()
	syms[SymbolCreateClientSocket] = func(Instance) (int, error) { return 3, nil }
	f, err = lookupFuncs(syms)
	require.NoError(t, err)
	assert.True(t, f.SupportsClientSocket())

	inst, err := f.CreateServer(nil)
	require.NoError(t, err)
	assert.Equal(t, "server", inst)
}

func TestLookupFuncsMissingRequired(t *testing.T) {
	syms := completeSymbols()
	delete(syms, SymbolStopServer)

	_, err := lookupFuncs(syms)
	assert.ErrorIs(t, err, ErrMissingEntry)
}

func TestLookupFuncsWrongSignature(t *testing.T) {
	syms := completeSymbols()
	syms[SymbolStartServer] = func(Instance) {}

	_, err := lookupFuncs(syms)
	require.Error(t, err)
	assert.Contains(t, err.Error(), SymbolStartServer)
}
