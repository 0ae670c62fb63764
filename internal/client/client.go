// Package client is the test-side connection to a compositor under test. It
// binds the core globals, drives event dispatch until a condition holds and
// turns connection faults into ProtocolError or ConnectionError values.
//
// A Client is meant to be used from one goroutine. Event handlers, including
// frame and release callbacks, run inline from DispatchUntil and Roundtrip.
package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bnema/waycheck/internal/logger"
	"github.com/bnema/waycheck/internal/protocols"
	"github.com/bnema/waycheck/internal/wire"
	"github.com/bnema/waycheck/shim"
	"golang.org/x/sys/unix"
)

// SocketSource hands out connected client sockets. *server.Server
// implements it.
type SocketSource interface {
	CreateClientSocket() (int, error)
}

type options struct {
	displayName string
}

// Option configures New.
type Option func(*options)

// WithDisplayName sets the socket name used when the source cannot create
// a client socket itself. Empty means the usual environment lookup.
func WithDisplayName(name string) Option {
	return func(o *options) {
		o.displayName = name
	}
}

// Client is one live connection with its bound globals.
type Client struct {
	ctx      *wire.Context
	display  *protocols.Display
	registry *protocols.Registry

	compositor *protocols.Compositor
	shm        *protocols.Shm
	shell      *protocols.Shell

	bindErr   error
	closeOnce sync.Once
	closeErr  error
}

// binder binds one kind of global the first time it is announced.
type binder struct {
	supported uint32
	bind      func(c *Client, name, version uint32) error
}

var globalBinders = map[string]binder{
	protocols.ShmInterface.Name: {
		supported: protocols.ShmInterface.Version,
		bind: func(c *Client, name, version uint32) error {
			if c.shm != nil {
				return nil
			}
			shm := &protocols.Shm{}
			if err := c.registry.Bind(name, shm, version); err != nil {
				return err
			}
			c.shm = shm
			return nil
		},
	},
	protocols.CompositorInterface.Name: {
		supported: protocols.CompositorInterface.Version,
		bind: func(c *Client, name, version uint32) error {
			if c.compositor != nil {
				return nil
			}
			compositor := &protocols.Compositor{}
			if err := c.registry.Bind(name, compositor, version); err != nil {
				return err
			}
			c.compositor = compositor
			return nil
		},
	},
	protocols.ShellInterface.Name: {
		supported: protocols.ShellInterface.Version,
		bind: func(c *Client, name, version uint32) error {
			if c.shell != nil {
				return nil
			}
			shell := &protocols.Shell{}
			if err := c.registry.Bind(name, shell, version); err != nil {
				return err
			}
			c.shell = shell
			return nil
		},
	},
}

// New connects to the compositor behind src and binds its globals. When src
// does not implement client socket creation the connection falls back to
// the environment (WAYLAND_SOCKET, WAYLAND_DISPLAY, wayland-0).
func New(src SocketSource, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ctx, err := connect(src, o)
	if err != nil {
		return nil, err
	}

	c := &Client{
		ctx:     ctx,
		display: protocols.NewDisplay(ctx),
	}

	registry, err := c.display.GetRegistry()
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: failed to get registry: %w", ErrConnect, err)
	}
	c.registry = registry
	registry.SetGlobalHandler(c.handleGlobal)

	if err := c.Roundtrip(); err != nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: initial roundtrip failed: %w", ErrConnect, err)
	}
	if c.bindErr != nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnect, c.bindErr)
	}
	return c, nil
}

func connect(src SocketSource, o options) (*wire.Context, error) {
	fd, err := -1, shim.ErrNotImplemented
	if src != nil {
		fd, err = src.CreateClientSocket()
	}

	switch {
	case err == nil:
		ctx, err := wire.ConnectFD(fd)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnect, err)
		}
		return ctx, nil

	case errors.Is(err, shim.ErrNotImplemented):
		logger.Warn("Display server cannot create client sockets, connecting through the environment")
		ctx, err := wire.Connect(o.displayName)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnect, err)
		}
		return ctx, nil

	default:
		return nil, fmt.Errorf("%w: %w", ErrConnect, err)
	}
}

func (c *Client) handleGlobal(e protocols.RegistryGlobalEvent) {
	b, ok := globalBinders[e.Interface]
	if !ok {
		logger.Debugf("Ignoring global %s (name %d, version %d)", e.Interface, e.Name, e.Version)
		return
	}
	version := min(e.Version, b.supported)
	if err := b.bind(c, e.Name, version); err != nil && c.bindErr == nil {
		c.bindErr = fmt.Errorf("failed to bind %s: %w", e.Interface, err)
	}
}

// DispatchUntil dispatches events until pred returns true. pred is checked
// before each blocking dispatch, so it returns immediately if pred already
// holds. There is no timeout: a compositor that never satisfies pred blocks
// the caller until the connection fails or Close is called.
func (c *Client) DispatchUntil(pred func() bool) error {
	for !pred() {
		if err := c.ctx.Dispatch(); err != nil {
			return translateError(c.ctx)
		}
	}
	return nil
}

// Roundtrip blocks until the compositor has processed every request sent
// so far.
func (c *Client) Roundtrip() error {
	cb, err := c.display.Sync()
	if err != nil {
		return c.requestError(err)
	}
	done := false
	cb.SetDoneHandler(func(protocols.CallbackDoneEvent) {
		done = true
	})
	return c.DispatchUntil(func() bool { return done })
}

// requestError reports a failed request. A broken pipe can hide a protocol
// error still queued on the socket, so the input is drained first.
func (c *Client) requestError(err error) error {
	if errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET) {
		for c.ctx.LastError() == nil {
			_ = c.ctx.Dispatch()
		}
	}
	if c.ctx.LastError() == nil {
		return err
	}
	return translateError(c.ctx)
}

func (c *Client) Display() *protocols.Display {
	return c.display
}

func (c *Client) Compositor() *protocols.Compositor {
	return c.compositor
}

func (c *Client) Shm() *protocols.Shm {
	return c.shm
}

func (c *Client) Shell() *protocols.Shell {
	return c.shell
}

func (c *Client) Context() *wire.Context {
	return c.ctx
}

// Close closes the connection. It is safe to call more than once and from
// another goroutine, where it aborts a blocked DispatchUntil with a
// ConnectionError.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ctx.Close()
	})
	return c.closeErr
}
