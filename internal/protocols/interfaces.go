// Package protocols implements client proxies for the core Wayland protocol
// objects the harness needs: display, registry, callback, compositor,
// surface, region, shm, shm pool, buffer, shell and shell surface.
package protocols

import "github.com/bnema/waycheck/internal/wire"

// Interface descriptors. Versions are the highest this client speaks.
var (
	DisplayInterface      = &wire.Interface{Name: "wl_display", Version: 1}
	RegistryInterface     = &wire.Interface{Name: "wl_registry", Version: 1}
	CallbackInterface     = &wire.Interface{Name: "wl_callback", Version: 1}
	CompositorInterface   = &wire.Interface{Name: "wl_compositor", Version: 4}
	SurfaceInterface      = &wire.Interface{Name: "wl_surface", Version: 4}
	RegionInterface       = &wire.Interface{Name: "wl_region", Version: 1}
	ShmInterface          = &wire.Interface{Name: "wl_shm", Version: 1}
	ShmPoolInterface      = &wire.Interface{Name: "wl_shm_pool", Version: 1}
	BufferInterface       = &wire.Interface{Name: "wl_buffer", Version: 1}
	ShellInterface        = &wire.Interface{Name: "wl_shell", Version: 1}
	ShellSurfaceInterface = &wire.Interface{Name: "wl_shell_surface", Version: 1}
	OutputInterface       = &wire.Interface{Name: "wl_output", Version: 2}
)

// Request opcodes.
const (
	DisplaySync        = 0
	DisplayGetRegistry = 1

	RegistryBind = 0

	CompositorCreateSurface = 0
	CompositorCreateRegion  = 1

	SurfaceDestroy         = 0
	SurfaceAttach          = 1
	SurfaceDamage          = 2
	SurfaceFrame           = 3
	SurfaceSetOpaqueRegion = 4
	SurfaceSetInputRegion  = 5
	SurfaceCommit          = 6
	SurfaceSetBufferScale  = 8
	SurfaceDamageBuffer    = 9

	RegionDestroy  = 0
	RegionAdd      = 1
	RegionSubtract = 2

	ShmCreatePool = 0

	ShmPoolCreateBuffer = 0
	ShmPoolDestroy      = 1
	ShmPoolResize       = 2

	BufferDestroy = 0

	ShellGetShellSurface = 0

	ShellSurfacePong        = 0
	ShellSurfaceSetToplevel = 3
	ShellSurfaceSetTitle    = 8
)

// Event opcodes.
const (
	DisplayEventError    = 0
	DisplayEventDeleteID = 1

	RegistryEventGlobal       = 0
	RegistryEventGlobalRemove = 1

	CallbackEventDone = 0

	ShmEventFormat = 0

	BufferEventRelease = 0

	ShellSurfaceEventPing      = 0
	ShellSurfaceEventConfigure = 1
	ShellSurfaceEventPopupDone = 2
)

// wl_display.error codes.
const (
	DisplayErrorInvalidObject  = 0
	DisplayErrorInvalidMethod  = 1
	DisplayErrorNoMemory       = 2
	DisplayErrorImplementation = 3
)

// wl_shm.error codes.
const (
	ShmErrorInvalidFormat = 0
	ShmErrorInvalidStride = 1
	ShmErrorInvalidFd     = 2
)

// ShmFormat is a wl_shm pixel format.
type ShmFormat uint32

const (
	ShmFormatArgb8888 ShmFormat = 0
	ShmFormatXrgb8888 ShmFormat = 1
)
