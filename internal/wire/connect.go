package wire

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
)

// DefaultDisplay is the socket name used when WAYLAND_DISPLAY is unset.
const DefaultDisplay = "wayland-0"

var ErrNoRuntimeDir = errors.New("XDG_RUNTIME_DIR is not set")

// Connect opens a client connection the way libwayland's
// wl_display_connect does. With an empty name it honours WAYLAND_SOCKET
// (an inherited descriptor, consumed and unset), then WAYLAND_DISPLAY, then
// DefaultDisplay. Relative names resolve against XDG_RUNTIME_DIR.
func Connect(name string) (*Context, error) {
	if name == "" {
		if v, ok := os.LookupEnv("WAYLAND_SOCKET"); ok && v != "" {
			_ = os.Unsetenv("WAYLAND_SOCKET")
			fd, err := strconv.Atoi(v)
			if err != nil {
				return nil, fmt.Errorf("invalid WAYLAND_SOCKET %q: %w", v, err)
			}
			return ConnectFD(fd)
		}
		name = os.Getenv("WAYLAND_DISPLAY")
		if name == "" {
			name = DefaultDisplay
		}
	}

	path, err := SocketPath(name)
	if err != nil {
		return nil, err
	}

	uc, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", path, err)
	}
	return NewContext(NewConn(uc)), nil
}

// ConnectFD creates a client context on an already connected descriptor,
// taking ownership of it.
func ConnectFD(fd int) (*Context, error) {
	conn, err := FileConn(fd)
	if err != nil {
		return nil, err
	}
	return NewContext(conn), nil
}

// SocketPath resolves a display name to a socket path.
func SocketPath(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", ErrNoRuntimeDir
	}
	return filepath.Join(runtimeDir, name), nil
}
