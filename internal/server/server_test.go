package server

import (
	"errors"
	"os"
	"syscall"
	"testing"

	"github.com/bnema/waycheck/shim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeShim records the calls made through its Funcs table.
type fakeShim struct {
	args      []string
	calls     []string
	socketFD  int
	socketErr error
	startErr  error
}

func (f *fakeShim) funcs(withSocket bool) *shim.Funcs {
	funcs := &shim.Funcs{
		CreateServer: func(args []string) (shim.Instance, error) {
			f.args = args
			f.calls = append(f.calls, "create")
			return f, nil
		},
		DestroyServer: func(shim.Instance) { f.calls = append(f.calls, "destroy") },
		StartServer: func(shim.Instance) error {
			f.calls = append(f.calls, "start")
			return f.startErr
		},
		StopServer: func(shim.Instance) error {
			f.calls = append(f.calls, "stop")
			return nil
		},
	}
	if withSocket {
		funcs.CreateClientSocket = func(shim.Instance) (int, error) {
			f.calls = append(f.calls, "socket")
			return f.socketFD, f.socketErr
		}
	}
	return funcs
}

func TestNewRejectsIncompleteShim(t *testing.T) {
	f := &fakeShim{}
	funcs := f.funcs(false)
	funcs.StartServer = nil

	_, err := New(funcs, nil)
	assert.ErrorIs(t, err, shim.ErrMissingEntry)
	assert.Empty(t, f.calls, "no instance is created for an invalid shim")

	funcs = f.funcs(false)
	funcs.StopServer = nil
	_, err = New(funcs, nil)
	assert.ErrorIs(t, err, shim.ErrMissingEntry)
}

func TestNewPassesArgsUnmodified(t *testing.T) {
	f := &fakeShim{}
	args := []string{"waycheck", "--backend=headless", "-v"}

	_, err := New(f.funcs(false), args)
	require.NoError(t, err)
	assert.Equal(t, args, f.args)
}

func TestLifecycleOrder(t *testing.T) {
	f := &fakeShim{}
	s, err := New(f.funcs(false), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Stop(), ErrInvalidState, "stop before start")

	require.NoError(t, s.Start())
	assert.True(t, s.Running())
	assert.ErrorIs(t, s.Start(), ErrInvalidState, "double start")

	require.NoError(t, s.Stop())
	assert.False(t, s.Running())
	assert.ErrorIs(t, s.Stop(), ErrInvalidState, "double stop")

	s.Destroy()
	s.Destroy()
	assert.Equal(t, []string{"create", "start", "stop", "destroy"}, f.calls)
}

func TestStartFailureLeavesServerStopped(t *testing.T) {
	f := &fakeShim{startErr: errors.New("no backend")}
	s, err := New(f.funcs(false), nil)
	require.NoError(t, err)

	err = s.Start()
	require.Error(t, err)
	assert.False(t, s.Running())
}

func TestDestroyStopsRunningServer(t *testing.T) {
	f := &fakeShim{}
	s, err := New(f.funcs(false), nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	s.Destroy()
	assert.Equal(t, []string{"create", "start", "stop", "destroy"}, f.calls)
}

func TestCreateClientSocketNotImplemented(t *testing.T) {
	f := &fakeShim{}
	s, err := New(f.funcs(false), nil)
	require.NoError(t, err)

	fd, err := s.CreateClientSocket()
	assert.Equal(t, -1, fd)
	assert.ErrorIs(t, err, shim.ErrNotImplemented)
}

func TestCreateClientSocket(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	f := &fakeShim{socketFD: int(r.Fd())}
	s, err := New(f.funcs(true), nil)
	require.NoError(t, err)

	fd, err := s.CreateClientSocket()
	require.NoError(t, err)
	assert.Equal(t, int(r.Fd()), fd)
}

func TestCreateClientSocketInvalidDescriptor(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		errno syscall.Errno
	}{
		{name: "negative without error", err: nil, errno: syscall.EBADF},
		{name: "negative with errno", err: syscall.EMFILE, errno: syscall.EMFILE},
		{name: "negative with other error", err: errors.New("boom"), errno: syscall.EBADF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeShim{socketFD: -1, socketErr: tt.err}
			s, err := New(f.funcs(true), nil)
			require.NoError(t, err)

			_, err = s.CreateClientSocket()
			require.Error(t, err)
			assert.NotErrorIs(t, err, shim.ErrNotImplemented)

			var sysErr *os.SyscallError
			require.ErrorAs(t, err, &sysErr)
			assert.ErrorIs(t, sysErr, tt.errno)
		})
	}
}

func TestInProcessFixture(t *testing.T) {
	f := &fakeShim{}

	t.Run("fixture", func(t *testing.T) {
		s := InProcess(t, f.funcs(false))
		assert.True(t, s.Running())
		assert.Equal(t, os.Args, f.args)
	})

	assert.Equal(t, []string{"create", "start", "stop", "destroy"}, f.calls)
}

func TestEmergencyStopTrigger(t *testing.T) {
	f := &fakeShim{}
	s, err := New(f.funcs(false), nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())

	es := NewEmergencyStop(s)
	es.Start()
	defer es.Stop()

	es.Trigger("test")
	assert.True(t, es.Triggered())
	assert.False(t, s.Running())

	// A second trigger finds the server already stopped.
	es.Trigger("test")
	assert.Equal(t, []string{"create", "start", "stop"}, f.calls)
	es.Stop()
}
