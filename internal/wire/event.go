package wire

import (
	"fmt"
)

// Event is one decoded message. Arguments are read in order with the typed
// accessors; the first decoding failure is kept in Err and later reads
// return zero values.
type Event struct {
	Sender uint32
	Opcode uint16

	data []byte
	off  int
	fds  *fdQueue
	err  error
}

// Size returns the payload length in bytes, excluding the header.
func (e *Event) Size() int {
	return len(e.data)
}

func (e *Event) Err() error {
	return e.err
}

func (e *Event) fail(what string) {
	if e.err == nil {
		e.err = fmt.Errorf("object %d opcode %d: short %s at offset %d: %w",
			e.Sender, e.Opcode, what, e.off, ErrMalformed)
	}
}

func (e *Event) Uint32() uint32 {
	if e.err != nil {
		return 0
	}
	if len(e.data)-e.off < 4 {
		e.fail("uint")
		return 0
	}
	v := byteOrder.Uint32(e.data[e.off:])
	e.off += 4
	return v
}

func (e *Event) Int32() int32 {
	return int32(e.Uint32())
}

func (e *Event) Fixed() Fixed {
	return Fixed(e.Uint32())
}

// Str reads a string argument. A null string decodes as "".
func (e *Event) Str() string {
	n := int(e.Uint32())
	if e.err != nil || n == 0 {
		return ""
	}
	if len(e.data)-e.off < align4(n) {
		e.fail("string")
		return ""
	}
	s := string(e.data[e.off : e.off+n-1])
	e.off += align4(n)
	return s
}

func (e *Event) Array() []byte {
	n := int(e.Uint32())
	if e.err != nil {
		return nil
	}
	if len(e.data)-e.off < align4(n) {
		e.fail("array")
		return nil
	}
	b := make([]byte, n)
	copy(b, e.data[e.off:e.off+n])
	e.off += align4(n)
	return b
}

// FD takes the next received file descriptor. The caller owns it.
func (e *Event) FD() int {
	if e.err != nil {
		return -1
	}
	fd, ok := e.fds.pop()
	if !ok {
		e.fail("fd")
		return -1
	}
	return fd
}
