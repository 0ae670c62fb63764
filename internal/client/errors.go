package client

import (
	"errors"
	"fmt"

	"github.com/bnema/waycheck/internal/wire"
	"golang.org/x/sys/unix"
)

var (
	// ErrConnect is returned when no connection to the compositor could be
	// established.
	ErrConnect = errors.New("failed to connect to display server")

	// ErrFramePending is returned when a surface already has a frame
	// request outstanding.
	ErrFramePending = errors.New("frame callback already pending")
)

// ConnectionError is a transport failure: the socket broke or the
// compositor went away without reporting a protocol error.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("error while dispatching Wayland events: %v", e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ProtocolError is a fatal protocol error posted by the compositor.
type ProtocolError struct {
	Interface *wire.Interface
	ObjectID  uint32
	Code      uint32
	Message   string
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("protocol error on interface %s (object %d): code %d", e.Interface, e.ObjectID, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is matches another ProtocolError with the same interface and code, so
// tests can compare against a template value.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	if !ok {
		return false
	}
	return interfaceName(t.Interface) == interfaceName(e.Interface) && t.Code == e.Code
}

func interfaceName(i *wire.Interface) string {
	if i == nil {
		return ""
	}
	return i.Name
}

// faultSource is the part of a connection that remembers why it failed.
type faultSource interface {
	LastError() error
	ProtocolError() (*wire.Interface, uint32, uint32)
	ProtocolErrorMessage() string
}

func translateError(f faultSource) error {
	err := f.LastError()
	if !errors.Is(err, unix.EPROTO) {
		return &ConnectionError{Err: err}
	}
	iface, id, code := f.ProtocolError()
	return &ProtocolError{
		Interface: iface,
		ObjectID:  id,
		Code:      code,
		Message:   f.ProtocolErrorMessage(),
	}
}
