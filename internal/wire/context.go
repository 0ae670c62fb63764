package wire

import (
	"errors"
	"fmt"

	"github.com/bnema/waycheck/internal/logger"
	"golang.org/x/sys/unix"
)

// Context is the client end of one connection: it owns the socket, the
// table of live proxies and the connection's fault state.
//
// A Context is not safe for concurrent use, with the exception of Close.
type Context struct {
	conn    *Conn
	objects map[uint32]Proxy
	nextID  uint32

	err   error
	fault *protocolFault
}

type protocolFault struct {
	iface    *Interface
	objectID uint32
	code     uint32
	message  string
}

// NewContext creates a client context on conn. Object id 1 is reserved for
// the display, which the caller registers first.
func NewContext(conn *Conn) *Context {
	return &Context{
		conn:    conn,
		objects: make(map[uint32]Proxy),
		nextID:  1,
	}
}

// AllocateID returns the next client object id. Ids are never reused, which
// the server accepts since each new id extends its table by one.
func (c *Context) AllocateID() uint32 {
	id := c.nextID
	c.nextID++
	return id
}

// Register adds p to the object table, allocating an id if it has none.
func (c *Context) Register(p Proxy) {
	if p.ID() == 0 {
		p.SetID(c.AllocateID())
	}
	p.SetContext(c)
	c.objects[p.ID()] = p
}

// Unregister drops p. Events still in flight for it are discarded.
func (c *Context) Unregister(p Proxy) {
	if cur, ok := c.objects[p.ID()]; ok && cur == p {
		delete(c.objects, p.ID())
	}
}

// DeleteID handles the server's acknowledgement that id is gone.
func (c *Context) DeleteID(id uint32) {
	delete(c.objects, id)
}

func (c *Context) Lookup(id uint32) Proxy {
	return c.objects[id]
}

// SendRequest marshals a request from p. Once the connection has failed,
// requests are dropped and the fault is returned.
func (c *Context) SendRequest(p Proxy, opcode uint16, args ...any) error {
	if c.err != nil {
		return c.err
	}
	err := c.conn.WriteMessage(p.ID(), opcode, args...)
	if err == nil {
		return nil
	}
	// A peer that hung up may still have left a protocol error in our
	// receive buffer, so a broken pipe is not made sticky here. The next
	// Dispatch reports whatever actually happened.
	if errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET) {
		return err
	}
	if errors.Is(err, ErrMessageTooLarge) {
		return err
	}
	return c.fail(err)
}

// Dispatch blocks until at least one event is available, then delivers every
// complete event already received. It stops at the first fault.
func (c *Context) Dispatch() error {
	if c.err != nil {
		return c.err
	}

	for {
		ev, err := c.conn.ReadMessage()
		if err != nil {
			return c.fail(err)
		}
		c.deliver(ev)
		if c.err != nil {
			return c.err
		}
		if !c.conn.Buffered() {
			return nil
		}
	}
}

func (c *Context) deliver(ev *Event) {
	p, ok := c.objects[ev.Sender]
	if !ok {
		logger.Debugf("Dropping event %d for unknown object %d", ev.Opcode, ev.Sender)
		return
	}
	d, ok := p.(Dispatcher)
	if !ok {
		logger.Debugf("Object %d (%s) does not handle events", ev.Sender, p.Interface())
		return
	}
	d.Dispatch(ev)
	if ev.Err() != nil && c.err == nil {
		c.fail(fmt.Errorf("%s: %w: %w", p.Interface(), ev.Err(), unix.EINVAL))
	}
}

// SetProtocolError records a fatal protocol error reported by the server.
// Only the first fault is kept.
func (c *Context) SetProtocolError(iface *Interface, objectID, code uint32, message string) {
	if c.err != nil {
		return
	}
	c.fault = &protocolFault{
		iface:    iface,
		objectID: objectID,
		code:     code,
		message:  message,
	}
	c.err = unix.EPROTO
}

// LastError returns the connection fault, or nil while it is healthy.
// Protocol errors are reported as EPROTO.
func (c *Context) LastError() error {
	return c.err
}

// ProtocolError returns the interface, object id and code of the protocol
// error that faulted the connection. All are zero if there was none.
func (c *Context) ProtocolError() (*Interface, uint32, uint32) {
	if c.fault == nil {
		return nil, 0, 0
	}
	return c.fault.iface, c.fault.objectID, c.fault.code
}

// ProtocolErrorMessage returns the server's description of the protocol
// error, if any.
func (c *Context) ProtocolErrorMessage() string {
	if c.fault == nil {
		return ""
	}
	return c.fault.message
}

func (c *Context) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return c.err
}

// Close closes the connection. Proxies remain registered but can no longer
// send requests.
func (c *Context) Close() error {
	return c.conn.Close()
}
