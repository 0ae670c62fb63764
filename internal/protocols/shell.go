package protocols

import "github.com/bnema/waycheck/internal/wire"

// Shell is the legacy wl_shell.
type Shell struct {
	wire.BaseProxy
}

func (s *Shell) Interface() *wire.Interface {
	return ShellInterface
}

// GetShellSurface gives surface the shell surface role.
func (s *Shell) GetShellSurface(surface *Surface) (*ShellSurface, error) {
	ss := &ShellSurface{}
	s.Context().Register(ss)
	if err := s.Context().SendRequest(s, ShellGetShellSurface, ss, surface); err != nil {
		s.Context().Unregister(ss)
		return nil, err
	}
	return ss, nil
}

// Destroy releases the proxy; wl_shell has no destructor request.
func (s *Shell) Destroy() {
	s.Context().Unregister(s)
}

type ShellSurfacePingEvent struct {
	Serial uint32
}

type ShellSurfaceConfigureEvent struct {
	Edges  uint32
	Width  int32
	Height int32
}

// ShellSurface is wl_shell_surface.
type ShellSurface struct {
	wire.BaseProxy
	pingHandler      func(ShellSurfacePingEvent)
	configureHandler func(ShellSurfaceConfigureEvent)
}

func (s *ShellSurface) Interface() *wire.Interface {
	return ShellSurfaceInterface
}

func (s *ShellSurface) SetPingHandler(f func(ShellSurfacePingEvent)) {
	s.pingHandler = f
}

func (s *ShellSurface) SetConfigureHandler(f func(ShellSurfaceConfigureEvent)) {
	s.configureHandler = f
}

func (s *ShellSurface) Pong(serial uint32) error {
	return s.Context().SendRequest(s, ShellSurfacePong, serial)
}

func (s *ShellSurface) SetToplevel() error {
	return s.Context().SendRequest(s, ShellSurfaceSetToplevel)
}

func (s *ShellSurface) SetTitle(title string) error {
	return s.Context().SendRequest(s, ShellSurfaceSetTitle, title)
}

// Destroy releases the proxy. The role ends when its surface is destroyed.
func (s *ShellSurface) Destroy() {
	s.Context().Unregister(s)
}

func (s *ShellSurface) Dispatch(ev *wire.Event) {
	switch ev.Opcode {
	case ShellSurfaceEventPing:
		e := ShellSurfacePingEvent{Serial: ev.Uint32()}
		if ev.Err() == nil && s.pingHandler != nil {
			s.pingHandler(e)
		}
	case ShellSurfaceEventConfigure:
		e := ShellSurfaceConfigureEvent{
			Edges:  ev.Uint32(),
			Width:  ev.Int32(),
			Height: ev.Int32(),
		}
		if ev.Err() == nil && s.configureHandler != nil {
			s.configureHandler(e)
		}
	}
}
