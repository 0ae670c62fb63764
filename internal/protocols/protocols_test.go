package protocols

import (
	"testing"

	"github.com/bnema/waycheck/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// peer returns a client context with a registered display, and the raw
// server end of the same socket.
func peer(t *testing.T) (*wire.Context, *Display, *wire.Conn) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	require.NoError(t, err)

	ctx, err := wire.ConnectFD(fds[0])
	require.NoError(t, err)
	server, err := wire.FileConn(fds[1])
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx.Close()
		server.Close()
	})
	return ctx, NewDisplay(ctx), server
}

func TestDisplayIsObjectOne(t *testing.T) {
	_, display, _ := peer(t)
	assert.Equal(t, uint32(1), display.ID())
	assert.Same(t, DisplayInterface, display.Interface())
}

func TestRegistryAnnouncesGlobals(t *testing.T) {
	ctx, display, server := peer(t)

	registry, err := display.GetRegistry()
	require.NoError(t, err)

	req, err := server.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), req.Sender)
	assert.Equal(t, uint16(DisplayGetRegistry), req.Opcode)
	assert.Equal(t, registry.ID(), req.Uint32())

	var got []RegistryGlobalEvent
	registry.SetGlobalHandler(func(e RegistryGlobalEvent) {
		got = append(got, e)
	})

	require.NoError(t, server.WriteMessage(registry.ID(), RegistryEventGlobal, uint32(3), "wl_shm", uint32(1)))
	for len(got) == 0 {
		require.NoError(t, ctx.Dispatch())
	}
	assert.Equal(t, RegistryGlobalEvent{Name: 3, Interface: "wl_shm", Version: 1}, got[0])

	shm := &Shm{}
	require.NoError(t, registry.Bind(3, shm, 1))

	bind, err := server.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, uint16(RegistryBind), bind.Opcode)
	assert.Equal(t, uint32(3), bind.Uint32())
	assert.Equal(t, "wl_shm", bind.Str())
	assert.Equal(t, uint32(1), bind.Uint32())
	assert.Equal(t, shm.ID(), bind.Uint32())
	assert.Same(t, shm, ctx.Lookup(shm.ID()))
}

func TestDisplayErrorFaultsConnection(t *testing.T) {
	ctx, display, server := peer(t)

	registry, err := display.GetRegistry()
	require.NoError(t, err)
	shm := &Shm{}
	require.NoError(t, registry.Bind(1, shm, 1))

	var seen []DisplayErrorEvent
	display.SetErrorHandler(func(e DisplayErrorEvent) {
		seen = append(seen, e)
	})

	require.NoError(t, server.WriteMessage(1, DisplayEventError, shm.ID(), uint32(ShmErrorInvalidFd), "bad fd"))

	err = ctx.Dispatch()
	require.ErrorIs(t, err, unix.EPROTO)

	iface, id, code := ctx.ProtocolError()
	assert.Same(t, ShmInterface, iface)
	assert.Equal(t, shm.ID(), id)
	assert.Equal(t, uint32(ShmErrorInvalidFd), code)
	require.Len(t, seen, 1)
	assert.Equal(t, "bad fd", seen[0].Message)
}

func TestSurfaceRequests(t *testing.T) {
	ctx, display, server := peer(t)

	registry, err := display.GetRegistry()
	require.NoError(t, err)
	compositor := &Compositor{}
	require.NoError(t, registry.Bind(2, compositor, 4))

	surface, err := compositor.CreateSurface()
	require.NoError(t, err)
	require.NoError(t, surface.Attach(nil, 0, 0))

	cb, err := surface.Frame()
	require.NoError(t, err)

	// get_registry, bind, create_surface
	for i := 0; i < 3; i++ {
		_, err := server.ReadMessage()
		require.NoError(t, err)
	}

	attach, err := server.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, surface.ID(), attach.Sender)
	assert.Equal(t, uint16(SurfaceAttach), attach.Opcode)
	assert.Equal(t, uint32(0), attach.Uint32(), "nil buffer is the null object")

	frame, err := server.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, uint16(SurfaceFrame), frame.Opcode)
	assert.Equal(t, cb.ID(), frame.Uint32())

	var data []uint32
	cb.SetDoneHandler(func(e CallbackDoneEvent) {
		data = append(data, e.CallbackData)
	})
	require.NoError(t, server.WriteMessage(cb.ID(), CallbackEventDone, uint32(1234)))
	require.NoError(t, ctx.Dispatch())
	assert.Equal(t, []uint32{1234}, data)
}
