// Package testcompositor is a minimal in-process Wayland compositor used to
// exercise the harness. It speaks just enough of the core protocol to run
// the conformance cases: it binds globals, validates shm buffers on commit,
// releases them and completes frame callbacks.
package testcompositor

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/bnema/waycheck/internal/logger"
	"github.com/bnema/waycheck/internal/wire"
	"github.com/bnema/waycheck/shim"
	"golang.org/x/sys/unix"
)

// ErrNotRunning is returned when a client socket is requested while the
// compositor is stopped.
var ErrNotRunning = errors.New("compositor is not running")

type options struct {
	noClientSocket  bool
	clientSocketErr error
	listenPath      string
	skipValidation  bool
}

// Option configures the compositor built by Funcs.
type Option func(*options)

// WithoutClientSocket leaves CreateClientSocket out of the shim table.
func WithoutClientSocket() Option {
	return func(o *options) {
		o.noClientSocket = true
	}
}

// WithClientSocketError makes CreateClientSocket fail with err.
func WithClientSocketError(err error) Option {
	return func(o *options) {
		o.clientSocketErr = err
	}
}

// WithListener also accepts clients on a unix socket at path.
func WithListener(path string) Option {
	return func(o *options) {
		o.listenPath = path
	}
}

// WithoutBufferValidation disables the shm size check, giving a compositor
// that happily accepts a truncated pool.
func WithoutBufferValidation() Option {
	return func(o *options) {
		o.skipValidation = true
	}
}

// Compositor is one server instance.
type Compositor struct {
	opts options
	args []string

	mu       sync.Mutex
	running  bool
	listener *net.UnixListener
	clients  map[*client]struct{}
	wg       sync.WaitGroup
}

// New creates a stopped compositor.
func New(args []string, opts ...Option) *Compositor {
	c := &Compositor{
		args:    args,
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(&c.opts)
	}
	return c
}

// Funcs returns a shim table whose instances are compositors built with
// opts.
func Funcs(opts ...Option) *shim.Funcs {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	funcs := &shim.Funcs{
		CreateServer: func(args []string) (shim.Instance, error) {
			return New(args, opts...), nil
		},
		DestroyServer: func(inst shim.Instance) {
			inst.(*Compositor).Stop()
		},
		StartServer: func(inst shim.Instance) error {
			return inst.(*Compositor).Start()
		},
		StopServer: func(inst shim.Instance) error {
			return inst.(*Compositor).Stop()
		},
	}
	if !o.noClientSocket {
		funcs.CreateClientSocket = func(inst shim.Instance) (int, error) {
			return inst.(*Compositor).CreateClientSocket()
		}
	}
	return funcs
}

// Args returns the argument list the compositor was created with.
func (c *Compositor) Args() []string {
	return c.args
}

func (c *Compositor) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return errors.New("compositor already running")
	}
	if c.opts.listenPath != "" {
		l, err := net.ListenUnix("unix", &net.UnixAddr{Name: c.opts.listenPath, Net: "unix"})
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", c.opts.listenPath, err)
		}
		c.listener = l
		c.wg.Add(1)
		go c.acceptLoop(l)
	}
	c.running = true
	logger.Debug("Test compositor started")
	return nil
}

func (c *Compositor) acceptLoop(l *net.UnixListener) {
	defer c.wg.Done()
	for {
		uc, err := l.AcceptUnix()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				logger.Debugf("Test compositor accept failed: %v", err)
			}
			return
		}
		c.serve(wire.NewConn(uc))
	}
}

// Stop disconnects every client and waits for their goroutines. It is a
// no-op on a stopped compositor.
func (c *Compositor) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	if c.listener != nil {
		c.listener.Close()
		c.listener = nil
		_ = os.Remove(c.opts.listenPath)
	}
	for cl := range c.clients {
		cl.conn.Close()
	}
	c.mu.Unlock()

	c.wg.Wait()
	logger.Debug("Test compositor stopped")
	return nil
}

// CreateClientSocket connects a new client over a socketpair and returns
// the client end.
func (c *Compositor) CreateClientSocket() (int, error) {
	if c.opts.clientSocketErr != nil {
		return -1, c.opts.clientSocketErr
	}
	if !c.Running() {
		return -1, ErrNotRunning
	}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, os.NewSyscallError("socketpair", err)
	}
	conn, err := wire.FileConn(fds[1])
	if err != nil {
		unix.Close(fds[0])
		return -1, err
	}
	c.serve(conn)
	return fds[0], nil
}

func (c *Compositor) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Clients returns the number of connected clients.
func (c *Compositor) Clients() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}

func (c *Compositor) serve(conn *wire.Conn) {
	cl := newClient(conn, !c.opts.skipValidation)

	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.clients[cl] = struct{}{}
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		cl.run()

		c.mu.Lock()
		delete(c.clients, cl)
		c.mu.Unlock()
	}()
}
