// Package conformance holds the compositor conformance cases and the two
// ways to run them: RunAll from a Go test, or a Runner from the CLI.
package conformance

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/bnema/waycheck/internal/client"
	"github.com/bnema/waycheck/internal/server"
	"github.com/bnema/waycheck/shim"
	"github.com/stretchr/testify/require"
)

// Case is one conformance check. Run returns nil when the compositor
// behaved correctly.
type Case struct {
	Name        string
	Description string
	Run         func(env *Env) error
}

// ErrEnvClosed is returned by Connect once the environment is closed.
var ErrEnvClosed = errors.New("environment closed")

var registry = map[string]Case{}

func register(c Case) {
	if _, ok := registry[c.Name]; ok {
		panic("conformance: duplicate case " + c.Name)
	}
	registry[c.Name] = c
}

// Cases returns every case sorted by name.
func Cases() []Case {
	cases := make([]Case, 0, len(registry))
	for _, c := range registry {
		cases = append(cases, c)
	}
	sort.Slice(cases, func(i, j int) bool {
		return cases[i].Name < cases[j].Name
	})
	return cases
}

// Select returns the named cases in the given order, or every case when
// names is empty.
func Select(names []string) ([]Case, error) {
	if len(names) == 0 {
		return Cases(), nil
	}
	cases := make([]Case, 0, len(names))
	for _, name := range names {
		c, ok := registry[name]
		if !ok {
			return nil, fmt.Errorf("unknown case %q", name)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// Env is what a case runs against: a started server and the clients the
// case connected.
type Env struct {
	Server *server.Server

	opts    []client.Option
	mu      sync.Mutex
	clients []*client.Client
	closed  bool
}

// NewEnv wraps a started server. opts apply to every Connect.
func NewEnv(srv *server.Server, opts ...client.Option) *Env {
	return &Env{Server: srv, opts: opts}
}

// Connect opens a new client connection. It is closed with the Env.
func (e *Env) Connect() (*client.Client, error) {
	c, err := client.New(e.Server, e.opts...)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		c.Close()
		return nil, ErrEnvClosed
	}
	e.clients = append(e.clients, c)
	e.mu.Unlock()
	return c, nil
}

// Close closes every client and refuses later connections. It may be
// called from another goroutine to unblock a running case.
func (e *Env) Close() {
	e.mu.Lock()
	clients := e.clients
	e.clients = nil
	e.closed = true
	e.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

// RunAll runs every case as a subtest against a fresh in-process server
// built from funcs.
func RunAll(t *testing.T, funcs *shim.Funcs, opts ...client.Option) {
	t.Helper()

	for _, c := range Cases() {
		t.Run(c.Name, func(t *testing.T) {
			env := NewEnv(server.InProcess(t, funcs), opts...)
			t.Cleanup(env.Close)
			require.NoError(t, c.Run(env))
		})
	}
}
