package protocols

import "github.com/bnema/waycheck/internal/wire"

// Compositor is wl_compositor.
type Compositor struct {
	wire.BaseProxy
}

func (c *Compositor) Interface() *wire.Interface {
	return CompositorInterface
}

func (c *Compositor) CreateSurface() (*Surface, error) {
	s := &Surface{}
	c.Context().Register(s)
	if err := c.Context().SendRequest(c, CompositorCreateSurface, s); err != nil {
		c.Context().Unregister(s)
		return nil, err
	}
	return s, nil
}

func (c *Compositor) CreateRegion() (*Region, error) {
	r := &Region{}
	c.Context().Register(r)
	if err := c.Context().SendRequest(c, CompositorCreateRegion, r); err != nil {
		c.Context().Unregister(r)
		return nil, err
	}
	return r, nil
}

// Destroy releases the proxy; wl_compositor has no destructor request.
func (c *Compositor) Destroy() {
	c.Context().Unregister(c)
}

// Surface is wl_surface.
type Surface struct {
	wire.BaseProxy
}

func (s *Surface) Interface() *wire.Interface {
	return SurfaceInterface
}

func (s *Surface) Destroy() error {
	err := s.Context().SendRequest(s, SurfaceDestroy)
	s.Context().Unregister(s)
	return err
}

// Attach sets the pending buffer. A nil buffer removes the content.
func (s *Surface) Attach(buffer *Buffer, x, y int32) error {
	var id wire.Object
	if buffer != nil {
		id = wire.Object(buffer.ID())
	}
	return s.Context().SendRequest(s, SurfaceAttach, id, x, y)
}

func (s *Surface) Damage(x, y, width, height int32) error {
	return s.Context().SendRequest(s, SurfaceDamage, x, y, width, height)
}

func (s *Surface) DamageBuffer(x, y, width, height int32) error {
	return s.Context().SendRequest(s, SurfaceDamageBuffer, x, y, width, height)
}

// Frame requests a notification for the next presented frame.
func (s *Surface) Frame() (*Callback, error) {
	cb := &Callback{}
	s.Context().Register(cb)
	if err := s.Context().SendRequest(s, SurfaceFrame, cb); err != nil {
		s.Context().Unregister(cb)
		return nil, err
	}
	return cb, nil
}

func (s *Surface) SetOpaqueRegion(region *Region) error {
	var id wire.Object
	if region != nil {
		id = wire.Object(region.ID())
	}
	return s.Context().SendRequest(s, SurfaceSetOpaqueRegion, id)
}

func (s *Surface) SetInputRegion(region *Region) error {
	var id wire.Object
	if region != nil {
		id = wire.Object(region.ID())
	}
	return s.Context().SendRequest(s, SurfaceSetInputRegion, id)
}

func (s *Surface) SetBufferScale(scale int32) error {
	return s.Context().SendRequest(s, SurfaceSetBufferScale, scale)
}

func (s *Surface) Commit() error {
	return s.Context().SendRequest(s, SurfaceCommit)
}

// Region is wl_region.
type Region struct {
	wire.BaseProxy
}

func (r *Region) Interface() *wire.Interface {
	return RegionInterface
}

func (r *Region) Add(x, y, width, height int32) error {
	return r.Context().SendRequest(r, RegionAdd, x, y, width, height)
}

func (r *Region) Subtract(x, y, width, height int32) error {
	return r.Context().SendRequest(r, RegionSubtract, x, y, width, height)
}

func (r *Region) Destroy() error {
	err := r.Context().SendRequest(r, RegionDestroy)
	r.Context().Unregister(r)
	return err
}
