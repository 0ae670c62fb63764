package server

import (
	"os"
	"testing"

	"github.com/bnema/waycheck/shim"
)

// InProcess creates and starts a server from the process arguments for the
// duration of a test. Stop and Destroy run from tb.Cleanup.
func InProcess(tb testing.TB, funcs *shim.Funcs) *Server {
	tb.Helper()

	s, err := New(funcs, os.Args)
	if err != nil {
		tb.Fatalf("failed to set up display server: %v", err)
	}
	tb.Cleanup(s.Destroy)

	if err := s.Start(); err != nil {
		tb.Fatalf("failed to start display server: %v", err)
	}
	tb.Cleanup(func() {
		if !s.Running() {
			return
		}
		if err := s.Stop(); err != nil {
			tb.Errorf("failed to stop display server: %v", err)
		}
	})

	return s
}
