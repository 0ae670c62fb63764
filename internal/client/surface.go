package client

import (
	"errors"
	"fmt"

	"github.com/bnema/waycheck/internal/protocols"
)

var errNoGlobal = errors.New("global not advertised by compositor")

// frameRequest is one outstanding wl_surface.frame. Firing and teardown
// both check and set handled, so onFrame runs at most once and the
// callback proxy is released exactly once.
type frameRequest struct {
	callback *protocols.Callback
	onFrame  func(time uint32)
	handled  bool
}

func (r *frameRequest) release() {
	if r.handled {
		return
	}
	r.handled = true
	r.onFrame = nil
	r.callback.Destroy()
}

// Surface wraps a wl_surface owned by the test.
type Surface struct {
	client       *Client
	surface      *protocols.Surface
	shellSurface *protocols.ShellSurface
	pending      *frameRequest
}

// CreateSurface creates a surface with no role.
func (c *Client) CreateSurface() (*Surface, error) {
	if c.compositor == nil {
		return nil, fmt.Errorf("wl_compositor: %w", errNoGlobal)
	}
	ws, err := c.compositor.CreateSurface()
	if err != nil {
		return nil, c.requestError(err)
	}
	return &Surface{client: c, surface: ws}, nil
}

// CreateVisibleSurface creates a toplevel surface. No buffer is attached;
// width and height are the intended size and are only used for the title.
func (c *Client) CreateVisibleSurface(width, height int) (*Surface, error) {
	if c.shell == nil {
		return nil, fmt.Errorf("wl_shell: %w", errNoGlobal)
	}
	s, err := c.CreateSurface()
	if err != nil {
		return nil, err
	}

	if err := c.makeToplevel(s, fmt.Sprintf("waycheck %dx%d", width, height)); err != nil {
		return nil, err
	}
	return s, nil
}

// makeToplevel gives s the wl_shell_surface toplevel role. s is destroyed
// if any request fails.
func (c *Client) makeToplevel(s *Surface, title string) error {
	ss, err := c.shell.GetShellSurface(s.surface)
	if err != nil {
		rerr := c.requestError(err)
		_ = s.Destroy()
		return rerr
	}
	s.shellSurface = ss
	ss.SetPingHandler(func(e protocols.ShellSurfacePingEvent) {
		_ = ss.Pong(e.Serial)
	})

	err = ss.SetTitle(title)
	if err == nil {
		err = ss.SetToplevel()
	}
	if err != nil {
		rerr := c.requestError(err)
		_ = s.Destroy()
		return rerr
	}
	return nil
}

// Proxy returns the underlying wl_surface.
func (s *Surface) Proxy() *protocols.Surface {
	return s.surface
}

// FramePending reports whether a frame request is outstanding.
func (s *Surface) FramePending() bool {
	return s.pending != nil
}

// AddFrameCallback requests a frame callback. onFrame runs once, from
// dispatch, with the compositor's timestamp. The request takes effect on
// the next commit.
func (s *Surface) AddFrameCallback(onFrame func(time uint32)) error {
	if s.pending != nil {
		return ErrFramePending
	}
	cb, err := s.surface.Frame()
	if err != nil {
		return s.client.requestError(err)
	}

	req := &frameRequest{callback: cb, onFrame: onFrame}
	cb.SetDoneHandler(func(e protocols.CallbackDoneEvent) {
		if req.handled {
			return
		}
		fn := req.onFrame
		if s.pending == req {
			s.pending = nil
		}
		req.release()
		if fn != nil {
			fn(e.CallbackData)
		}
	})
	s.pending = req
	return nil
}

// Attach, Damage and Commit forward to the wl_surface.
func (s *Surface) Attach(buffer *ShmBuffer, x, y int32) error {
	var b *protocols.Buffer
	if buffer != nil {
		b = buffer.buffer
	}
	if err := s.surface.Attach(b, x, y); err != nil {
		return s.client.requestError(err)
	}
	return nil
}

func (s *Surface) Damage(x, y, width, height int32) error {
	if err := s.surface.Damage(x, y, width, height); err != nil {
		return s.client.requestError(err)
	}
	return nil
}

func (s *Surface) Commit() error {
	if err := s.surface.Commit(); err != nil {
		return s.client.requestError(err)
	}
	return nil
}

// Destroy drops an outstanding frame request without running it, then
// destroys the role and the surface.
func (s *Surface) Destroy() error {
	if s.pending != nil {
		s.pending.release()
		s.pending = nil
	}
	if s.shellSurface != nil {
		s.shellSurface.Destroy()
		s.shellSurface = nil
	}
	return s.surface.Destroy()
}
