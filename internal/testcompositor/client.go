package testcompositor

import (
	"errors"
	"fmt"
	"time"

	"github.com/bnema/waycheck/internal/logger"
	"github.com/bnema/waycheck/internal/protocols"
	"github.com/bnema/waycheck/internal/wire"
	"golang.org/x/sys/unix"
)

// globals advertised to every client, in registry name order starting at 1.
var globals = []*wire.Interface{
	{Name: "wl_compositor", Version: 4},
	{Name: "wl_shm", Version: 1},
	{Name: "wl_shell", Version: 1},
	{Name: "wl_output", Version: 2},
}

// errClientKilled stops the request loop after a protocol error was posted.
var errClientKilled = errors.New("client disconnected after protocol error")

// Server-side object records.
type (
	displayRes  struct{}
	registryRes struct{}
	globalRes   struct{ iface *wire.Interface }
	regionRes   struct{}
	callbackRes struct{}

	poolRes struct {
		fd   int
		size int32
		refs int
	}

	bufferRes struct {
		pool                  *poolRes
		offset, width, height int32
		stride                int32
	}

	surfaceRes struct {
		pending       *bufferRes
		pendingID     uint32
		attached      bool
		current       *bufferRes
		currentID     uint32
		frames        []uint32
		pendingFrames []uint32
	}

	shellSurfaceRes struct {
		surface uint32
	}
)

func (p *poolRes) unref() {
	p.refs--
	if p.refs == 0 && p.fd >= 0 {
		unix.Close(p.fd)
		p.fd = -1
	}
}

// client is the compositor's view of one connection.
type client struct {
	conn     *wire.Conn
	validate bool
	objects  map[uint32]any
	serial   uint32
}

func newClient(conn *wire.Conn, validate bool) *client {
	return &client{
		conn:     conn,
		validate: validate,
		objects:  map[uint32]any{1: &displayRes{}},
	}
}

func (c *client) run() {
	defer c.close()
	for {
		req, err := c.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, unix.EPIPE) {
				logger.Debugf("Test compositor: client read failed: %v", err)
			}
			return
		}
		if err := c.handle(req); err != nil {
			if !errors.Is(err, errClientKilled) {
				logger.Debugf("Test compositor: dropping client: %v", err)
			}
			return
		}
	}
}

func (c *client) close() {
	pools := make(map[*poolRes]struct{})
	for _, obj := range c.objects {
		switch o := obj.(type) {
		case *poolRes:
			pools[o] = struct{}{}
		case *bufferRes:
			pools[o.pool] = struct{}{}
		}
	}
	for p := range pools {
		if p.fd >= 0 {
			unix.Close(p.fd)
			p.fd = -1
		}
	}
	c.conn.Close()
}

func (c *client) nextSerial() uint32 {
	c.serial++
	return c.serial
}

// postError sends wl_display.error and disconnects the client.
func (c *client) postError(objectID uint32, code uint32, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	logger.Debugf("Test compositor: posting error %d on object %d: %s", code, objectID, msg)
	if err := c.conn.WriteMessage(1, protocols.DisplayEventError, wire.Object(objectID), code, msg); err != nil {
		return err
	}
	return errClientKilled
}

func (c *client) add(id uint32, obj any) error {
	if id == 0 {
		return c.postError(1, protocols.DisplayErrorInvalidObject, "invalid new id 0")
	}
	if _, ok := c.objects[id]; ok {
		return c.postError(1, protocols.DisplayErrorInvalidObject, "object %d already exists", id)
	}
	c.objects[id] = obj
	return nil
}

func (c *client) remove(id uint32) error {
	delete(c.objects, id)
	return c.conn.WriteMessage(1, protocols.DisplayEventDeleteID, id)
}

func (c *client) handle(req *wire.Event) error {
	obj, ok := c.objects[req.Sender]
	if !ok {
		return c.postError(1, protocols.DisplayErrorInvalidObject, "invalid object %d", req.Sender)
	}

	var err error
	switch o := obj.(type) {
	case *displayRes:
		err = c.handleDisplay(req)
	case *registryRes:
		err = c.handleRegistry(req)
	case *globalRes:
		err = c.handleGlobal(req, o)
	case *regionRes:
		if req.Opcode == protocols.RegionDestroy {
			err = c.remove(req.Sender)
		}
	case *poolRes:
		err = c.handlePool(req, o)
	case *bufferRes:
		if req.Opcode == protocols.BufferDestroy {
			o.pool.unref()
			err = c.remove(req.Sender)
		}
	case *surfaceRes:
		err = c.handleSurface(req, o)
	case *shellSurfaceRes:
		err = c.handleShellSurface(req, o)
	default:
		return c.postError(1, protocols.DisplayErrorInvalidMethod, "object %d has no requests", req.Sender)
	}
	if err != nil {
		return err
	}
	if req.Err() != nil {
		return c.postError(1, protocols.DisplayErrorInvalidMethod, "malformed request on object %d: %v", req.Sender, req.Err())
	}
	return nil
}

func (c *client) handleDisplay(req *wire.Event) error {
	switch req.Opcode {
	case protocols.DisplaySync:
		id := req.Uint32()
		if req.Err() != nil {
			return nil
		}
		if err := c.conn.WriteMessage(id, protocols.CallbackEventDone, c.nextSerial()); err != nil {
			return err
		}
		return c.conn.WriteMessage(1, protocols.DisplayEventDeleteID, id)

	case protocols.DisplayGetRegistry:
		id := req.Uint32()
		if req.Err() != nil {
			return nil
		}
		if err := c.add(id, &registryRes{}); err != nil {
			return err
		}
		for i, g := range globals {
			if err := c.conn.WriteMessage(id, protocols.RegistryEventGlobal, uint32(i+1), g.Name, g.Version); err != nil {
				return err
			}
		}
		return nil
	}
	return c.postError(1, protocols.DisplayErrorInvalidMethod, "invalid wl_display opcode %d", req.Opcode)
}

func (c *client) handleRegistry(req *wire.Event) error {
	if req.Opcode != protocols.RegistryBind {
		return c.postError(req.Sender, protocols.DisplayErrorInvalidMethod, "invalid wl_registry opcode %d", req.Opcode)
	}
	name := req.Uint32()
	iface := req.Str()
	version := req.Uint32()
	id := req.Uint32()
	if req.Err() != nil {
		return nil
	}

	if name == 0 || int(name) > len(globals) {
		return c.postError(req.Sender, protocols.DisplayErrorInvalidObject, "invalid global %s (%d)", iface, name)
	}
	g := globals[name-1]
	if g.Name != iface || version == 0 || version > g.Version {
		return c.postError(req.Sender, protocols.DisplayErrorInvalidObject,
			"invalid version for global %s (%d): have %d, wanted %d", iface, name, g.Version, version)
	}
	if err := c.add(id, &globalRes{iface: g}); err != nil {
		return err
	}

	if g.Name == "wl_shm" {
		for _, f := range []protocols.ShmFormat{protocols.ShmFormatArgb8888, protocols.ShmFormatXrgb8888} {
			if err := c.conn.WriteMessage(id, protocols.ShmEventFormat, uint32(f)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *client) handleGlobal(req *wire.Event, g *globalRes) error {
	switch g.iface.Name {
	case "wl_compositor":
		id := req.Uint32()
		if req.Err() != nil {
			return nil
		}
		switch req.Opcode {
		case protocols.CompositorCreateSurface:
			return c.add(id, &surfaceRes{})
		case protocols.CompositorCreateRegion:
			return c.add(id, &regionRes{})
		}

	case "wl_shm":
		if req.Opcode != protocols.ShmCreatePool {
			break
		}
		id := req.Uint32()
		fd := req.FD()
		size := req.Int32()
		if req.Err() != nil {
			if fd >= 0 {
				unix.Close(fd)
			}
			return nil
		}
		if size <= 0 {
			unix.Close(fd)
			return c.postError(req.Sender, protocols.ShmErrorInvalidStride, "invalid size (%d)", size)
		}
		return c.add(id, &poolRes{fd: fd, size: size, refs: 1})

	case "wl_shell":
		if req.Opcode != protocols.ShellGetShellSurface {
			break
		}
		id := req.Uint32()
		surface := req.Uint32()
		if req.Err() != nil {
			return nil
		}
		if _, ok := c.objects[surface].(*surfaceRes); !ok {
			return c.postError(1, protocols.DisplayErrorInvalidObject, "invalid surface %d", surface)
		}
		return c.add(id, &shellSurfaceRes{surface: surface})

	case "wl_output":
		// wl_output v2 has no requests.
	}
	return c.postError(req.Sender, protocols.DisplayErrorInvalidMethod, "invalid %s opcode %d", g.iface.Name, req.Opcode)
}

func (c *client) handlePool(req *wire.Event, p *poolRes) error {
	switch req.Opcode {
	case protocols.ShmPoolCreateBuffer:
		id := req.Uint32()
		offset := req.Int32()
		width := req.Int32()
		height := req.Int32()
		stride := req.Int32()
		format := protocols.ShmFormat(req.Uint32())
		if req.Err() != nil {
			return nil
		}
		if format != protocols.ShmFormatArgb8888 && format != protocols.ShmFormatXrgb8888 {
			return c.postError(req.Sender, protocols.ShmErrorInvalidFormat, "invalid format 0x%x", uint32(format))
		}
		if offset < 0 || width <= 0 || height <= 0 || stride < width ||
			int64(height)*int64(stride) > int64(p.size)-int64(offset) {
			return c.postError(req.Sender, protocols.ShmErrorInvalidStride,
				"invalid width, height or stride (%dx%d, %d)", width, height, stride)
		}
		p.refs++
		return c.add(id, &bufferRes{pool: p, offset: offset, width: width, height: height, stride: stride})

	case protocols.ShmPoolDestroy:
		p.unref()
		return c.remove(req.Sender)

	case protocols.ShmPoolResize:
		size := req.Int32()
		if req.Err() != nil {
			return nil
		}
		if size < p.size {
			return c.postError(req.Sender, protocols.ShmErrorInvalidFd, "shrinking pool invalid")
		}
		p.size = size
		return nil
	}
	return c.postError(req.Sender, protocols.DisplayErrorInvalidMethod, "invalid wl_shm_pool opcode %d", req.Opcode)
}

func (c *client) handleSurface(req *wire.Event, s *surfaceRes) error {
	switch req.Opcode {
	case protocols.SurfaceDestroy:
		return c.remove(req.Sender)

	case protocols.SurfaceAttach:
		id := req.Uint32()
		req.Int32()
		req.Int32()
		if req.Err() != nil {
			return nil
		}
		s.attached = true
		s.pendingID = id
		s.pending = nil
		if id != 0 {
			b, ok := c.objects[id].(*bufferRes)
			if !ok {
				return c.postError(1, protocols.DisplayErrorInvalidObject, "invalid buffer %d", id)
			}
			s.pending = b
		}
		return nil

	case protocols.SurfaceFrame:
		id := req.Uint32()
		if req.Err() != nil {
			return nil
		}
		if err := c.add(id, &callbackRes{}); err != nil {
			return err
		}
		s.pendingFrames = append(s.pendingFrames, id)
		return nil

	case protocols.SurfaceCommit:
		return c.commit(s)

	case protocols.SurfaceDamage, protocols.SurfaceDamageBuffer,
		protocols.SurfaceSetOpaqueRegion, protocols.SurfaceSetInputRegion,
		protocols.SurfaceSetBufferScale:
		return nil
	}
	return c.postError(req.Sender, protocols.DisplayErrorInvalidMethod, "invalid wl_surface opcode %d", req.Opcode)
}

// commit applies pending state. A newly attached buffer is read right
// away: it is checked against the size of its pool file, posting
// wl_shm.error.invalid_fd on the buffer when the file is too short, and
// otherwise released. Frame callbacks complete when the surface has
// content.
func (c *client) commit(s *surfaceRes) error {
	if s.attached {
		s.attached = false
		s.current, s.currentID = s.pending, s.pendingID
		s.pending, s.pendingID = nil, 0

		if s.current != nil {
			if err := c.checkBuffer(s.currentID, s.current); err != nil {
				return err
			}
			if err := c.conn.WriteMessage(s.currentID, protocols.BufferEventRelease); err != nil {
				return err
			}
		}
	}

	s.frames = append(s.frames, s.pendingFrames...)
	s.pendingFrames = nil
	if s.current == nil {
		return nil
	}

	now := uint32(time.Now().UnixMilli())
	for _, id := range s.frames {
		if err := c.conn.WriteMessage(id, protocols.CallbackEventDone, now); err != nil {
			return err
		}
		if err := c.remove(id); err != nil {
			return err
		}
	}
	s.frames = nil
	return nil
}

func (c *client) checkBuffer(id uint32, b *bufferRes) error {
	if !c.validate {
		return nil
	}
	var st unix.Stat_t
	if err := unix.Fstat(b.pool.fd, &st); err != nil {
		return c.postError(id, protocols.ShmErrorInvalidFd, "failed to stat pool file: %v", err)
	}
	need := int64(b.offset) + int64(b.stride)*int64(b.height)
	if st.Size < need {
		return c.postError(id, protocols.ShmErrorInvalidFd,
			"error accessing SHM buffer: pool file is %d bytes, buffer needs %d", st.Size, need)
	}
	return nil
}

func (c *client) handleShellSurface(req *wire.Event, ss *shellSurfaceRes) error {
	switch req.Opcode {
	case protocols.ShellSurfaceSetToplevel:
		return c.conn.WriteMessage(req.Sender, protocols.ShellSurfaceEventPing, c.nextSerial())
	case protocols.ShellSurfacePong:
		serial := req.Uint32()
		if req.Err() == nil {
			logger.Debugf("Test compositor: pong %d from surface %d", serial, ss.surface)
		}
		return nil
	case protocols.ShellSurfaceSetTitle:
		req.Str()
		return nil
	}
	return c.postError(req.Sender, protocols.DisplayErrorInvalidMethod, "invalid wl_shell_surface opcode %d", req.Opcode)
}
