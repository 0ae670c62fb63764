package testcompositor

import (
	"path/filepath"
	"syscall"
	"testing"

	"github.com/bnema/waycheck/internal/protocols"
	"github.com/bnema/waycheck/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func started(t *testing.T, opts ...Option) *Compositor {
	t.Helper()
	c := New([]string{"test"}, opts...)
	require.NoError(t, c.Start())
	t.Cleanup(func() { c.Stop() })
	return c
}

// connect returns a client context with a display on a fresh socket.
func connect(t *testing.T, c *Compositor) (*wire.Context, *protocols.Display) {
	t.Helper()
	fd, err := c.CreateClientSocket()
	require.NoError(t, err)
	ctx, err := wire.ConnectFD(fd)
	require.NoError(t, err)
	t.Cleanup(func() { ctx.Close() })
	return ctx, protocols.NewDisplay(ctx)
}

func roundtrip(t *testing.T, ctx *wire.Context, display *protocols.Display) {
	t.Helper()
	cb, err := display.Sync()
	require.NoError(t, err)
	done := false
	cb.SetDoneHandler(func(protocols.CallbackDoneEvent) { done = true })
	for !done {
		require.NoError(t, ctx.Dispatch())
	}
}

func TestFuncsTable(t *testing.T) {
	funcs := Funcs()
	require.NoError(t, funcs.Validate())
	assert.True(t, funcs.SupportsClientSocket())

	funcs = Funcs(WithoutClientSocket())
	require.NoError(t, funcs.Validate())
	assert.False(t, funcs.SupportsClientSocket())
}

func TestShimLifecycle(t *testing.T) {
	funcs := Funcs()
	inst, err := funcs.CreateServer([]string{"waycheck", "-v"})
	require.NoError(t, err)
	assert.Equal(t, []string{"waycheck", "-v"}, inst.(*Compositor).Args())

	_, err = funcs.CreateClientSocket(inst)
	assert.ErrorIs(t, err, ErrNotRunning)

	require.NoError(t, funcs.StartServer(inst))
	fd, err := funcs.CreateClientSocket(inst)
	require.NoError(t, err)
	syscall.Close(fd)

	require.NoError(t, funcs.StopServer(inst))
	funcs.DestroyServer(inst)
	assert.Equal(t, 0, inst.(*Compositor).Clients())
}

func TestClientSocketError(t *testing.T) {
	c := started(t, WithClientSocketError(syscall.EMFILE))
	fd, err := c.CreateClientSocket()
	assert.Equal(t, -1, fd)
	assert.ErrorIs(t, err, syscall.EMFILE)
}

func TestRegistryAdvertisesGlobals(t *testing.T) {
	c := started(t)
	ctx, display := connect(t, c)

	registry, err := display.GetRegistry()
	require.NoError(t, err)

	got := map[string]uint32{}
	registry.SetGlobalHandler(func(e protocols.RegistryGlobalEvent) {
		got[e.Interface] = e.Version
	})
	roundtrip(t, ctx, display)

	assert.Equal(t, map[string]uint32{
		"wl_compositor": 4,
		"wl_shm":        1,
		"wl_shell":      1,
		"wl_output":     2,
	}, got)
}

func TestInvalidObjectIsProtocolError(t *testing.T) {
	c := started(t)
	ctx, _ := connect(t, c)

	bogus := &protocols.Surface{}
	bogus.SetID(42)
	ctx.Register(bogus)
	require.NoError(t, bogus.Commit())

	var err error
	for err == nil {
		err = ctx.Dispatch()
	}
	assert.ErrorIs(t, err, syscall.EPROTO)

	iface, id, code := ctx.ProtocolError()
	assert.Same(t, protocols.DisplayInterface, iface)
	assert.Equal(t, uint32(1), id)
	assert.Equal(t, uint32(protocols.DisplayErrorInvalidObject), code)
}

func TestListener(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wayland-test")
	c := started(t, WithListener(path))

	ctx, err := wire.Connect(path)
	require.NoError(t, err)
	defer ctx.Close()
	display := protocols.NewDisplay(ctx)
	roundtrip(t, ctx, display)
	assert.Equal(t, 1, c.Clients())
}

func TestStopDisconnectsClients(t *testing.T) {
	c := started(t)
	ctx, display := connect(t, c)
	roundtrip(t, ctx, display)

	require.NoError(t, c.Stop())

	var err error
	for err == nil {
		err = ctx.Dispatch()
	}
	assert.ErrorIs(t, err, syscall.EPIPE)
}
