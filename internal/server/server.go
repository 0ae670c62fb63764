// Package server manages the lifecycle of one compositor under test through
// its shim.
package server

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"syscall"

	"github.com/bnema/waycheck/internal/logger"
	"github.com/bnema/waycheck/shim"
	"golang.org/x/sys/unix"
)

// ErrInvalidState is returned when lifecycle calls arrive out of order.
var ErrInvalidState = errors.New("display server lifecycle called out of order")

type state int

const (
	stateCreated state = iota
	stateStarted
	stateStopped
	stateDestroyed
)

func (s state) String() string {
	switch s {
	case stateCreated:
		return "created"
	case stateStarted:
		return "started"
	case stateStopped:
		return "stopped"
	case stateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Server owns exactly one compositor instance created through a shim.
type Server struct {
	mu       sync.Mutex
	funcs    *shim.Funcs
	instance shim.Instance
	state    state
}

// New validates the shim and creates a server instance, passing args to the
// compositor unmodified.
func New(funcs *shim.Funcs, args []string) (*Server, error) {
	if err := funcs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid display server shim: %w", err)
	}

	instance, err := funcs.CreateServer(args)
	if err != nil {
		return nil, fmt.Errorf("failed to create display server: %w", err)
	}

	if !funcs.SupportsClientSocket() {
		logger.Debug("Display server shim has no CreateClientSocket, clients will use WAYLAND_DISPLAY")
	}

	return &Server{
		funcs:    funcs,
		instance: instance,
		state:    stateCreated,
	}, nil
}

// Start tells the compositor to begin accepting connections.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateCreated {
		return fmt.Errorf("start in state %s: %w", s.state, ErrInvalidState)
	}
	if err := s.funcs.StartServer(s.instance); err != nil {
		return fmt.Errorf("failed to start display server: %w", err)
	}
	s.state = stateStarted
	logger.Debug("Display server started")
	return nil
}

// Stop tells the compositor to shut down. The server counts as stopped even
// when the shim reports an error.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *Server) stopLocked() error {
	if s.state != stateStarted {
		return fmt.Errorf("stop in state %s: %w", s.state, ErrInvalidState)
	}
	s.state = stateStopped
	if err := s.funcs.StopServer(s.instance); err != nil {
		return fmt.Errorf("failed to stop display server: %w", err)
	}
	logger.Debug("Display server stopped")
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateStarted
}

// CreateClientSocket asks the compositor for a descriptor connected to a
// new client session. It returns shim.ErrNotImplemented when the shim lacks
// the capability, and an *os.SyscallError when the shim fails.
func (s *Server) CreateClientSocket() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateDestroyed {
		return -1, fmt.Errorf("create client socket in state %s: %w", s.state, ErrInvalidState)
	}
	if !s.funcs.SupportsClientSocket() {
		return -1, shim.ErrNotImplemented
	}

	fd, err := s.funcs.CreateClientSocket(s.instance)
	if fd >= 0 && err == nil {
		return fd, nil
	}
	if fd >= 0 {
		_ = unix.Close(fd)
	}

	var errno syscall.Errno
	if !errors.As(err, &errno) {
		errno = syscall.EBADF
	}
	sysErr := os.NewSyscallError("create_client_socket", errno)
	if err != nil && !errors.Is(err, errno) {
		return -1, fmt.Errorf("failed to get client socket from server: %w (%w)", sysErr, err)
	}
	return -1, fmt.Errorf("failed to get client socket from server: %w", sysErr)
}

// Destroy releases the instance, stopping it first if needed. Calling it
// more than once is a no-op.
func (s *Server) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateDestroyed {
		return
	}
	if s.state == stateStarted {
		if err := s.stopLocked(); err != nil {
			logger.Errorf("Failed to stop display server during teardown: %v", err)
		}
	}
	s.funcs.DestroyServer(s.instance)
	s.instance = nil
	s.state = stateDestroyed
}
