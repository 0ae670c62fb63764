// Package wire implements the Wayland wire protocol: message framing, file
// descriptor passing, the client-side object table and event dispatch.
//
// Protocol objects built on top of it embed BaseProxy and send requests with
// Context.SendRequest; incoming events are delivered to their Dispatch method.
package wire

import (
	"encoding/binary"
	"errors"
)

const (
	headerSize     = 8
	maxMessageSize = 4096
	maxFDsPerMsg   = 28
)

// Wayland uses the host byte order on the wire.
var byteOrder = binary.NativeEndian

var (
	// ErrMessageTooLarge is returned when an encoded message exceeds the
	// 4096 byte limit of the wire format.
	ErrMessageTooLarge = errors.New("wayland message too large")

	// ErrMalformed is returned when a message cannot be decoded.
	ErrMalformed = errors.New("malformed wayland message")
)

// Interface describes a protocol interface. Proxies return a shared pointer
// per interface, so descriptors can be compared by identity.
type Interface struct {
	Name    string
	Version uint32
}

func (i *Interface) String() string {
	if i == nil {
		return "<unknown>"
	}
	return i.Name
}

// Proxy is a client-side handle on a protocol object.
type Proxy interface {
	ID() uint32
	SetID(id uint32)
	Context() *Context
	SetContext(ctx *Context)
	Interface() *Interface
}

// Dispatcher is implemented by proxies that receive events.
type Dispatcher interface {
	Dispatch(ev *Event)
}

// BaseProxy carries the id and owning context of a proxy.
type BaseProxy struct {
	id  uint32
	ctx *Context
}

func (p *BaseProxy) ID() uint32 {
	return p.id
}

func (p *BaseProxy) SetID(id uint32) {
	p.id = id
}

func (p *BaseProxy) Context() *Context {
	return p.ctx
}

func (p *BaseProxy) SetContext(ctx *Context) {
	p.ctx = ctx
}

// Fixed is a signed 24.8 fixed point number.
type Fixed int32

func FixedFromFloat(v float64) Fixed {
	return Fixed(v * 256)
}

func (f Fixed) Float() float64 {
	return float64(f) / 256
}

// FD marks an argument that is passed as a file descriptor.
type FD int

// Object encodes a nullable object argument by id. Zero is the null object.
type Object uint32
