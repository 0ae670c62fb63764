package wire

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Conn frames Wayland messages over a unix stream socket. It is used by both
// ends of a connection: Context builds the client on it and the test
// compositor reads requests with it.
type Conn struct {
	uc *net.UnixConn

	in  []byte
	fds *fdQueue

	wmu sync.Mutex
}

// NewConn wraps an established unix socket.
func NewConn(uc *net.UnixConn) *Conn {
	return &Conn{uc: uc, fds: &fdQueue{}}
}

// FileConn adopts a connected socket descriptor. On success the descriptor
// is owned by the returned Conn.
func FileConn(fd int) (*Conn, error) {
	if fd < 0 {
		return nil, &os.SyscallError{Syscall: "adopt socket", Err: unix.EBADF}
	}
	f := os.NewFile(uintptr(fd), "wayland-socket")
	if f == nil {
		return nil, &os.SyscallError{Syscall: "adopt socket", Err: unix.EBADF}
	}
	// net.FileConn duplicates the descriptor, so the original is closed
	// either way.
	defer f.Close()

	c, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("failed to adopt socket %d: %w", fd, err)
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("descriptor %d is not a unix socket", fd)
	}
	return NewConn(uc), nil
}

// Buffered reports whether a complete message can be read without blocking.
func (c *Conn) Buffered() bool {
	if len(c.in) < headerSize {
		return false
	}
	size := int(byteOrder.Uint32(c.in[4:8]) >> 16)
	return size <= len(c.in)
}

// ReadMessage blocks until one complete message is available and returns it.
func (c *Conn) ReadMessage() (*Event, error) {
	for !c.Buffered() {
		if err := c.fill(); err != nil {
			return nil, err
		}
	}

	sender := byteOrder.Uint32(c.in[0:4])
	word := byteOrder.Uint32(c.in[4:8])
	size := int(word >> 16)
	if size < headerSize || size%4 != 0 {
		return nil, fmt.Errorf("object %d: invalid message size %d: %w", sender, size, ErrMalformed)
	}

	data := make([]byte, size-headerSize)
	copy(data, c.in[headerSize:size])
	c.in = c.in[size:]

	return &Event{
		Sender: sender,
		Opcode: uint16(word & 0xffff),
		data:   data,
		fds:    c.fds,
	}, nil
}

func (c *Conn) fill() error {
	buf := make([]byte, maxMessageSize)
	oob := make([]byte, unix.CmsgSpace(maxFDsPerMsg*4))

	n, oobn, _, _, err := c.uc.ReadMsgUnix(buf, oob)
	if oobn > 0 {
		if perr := c.fds.parse(oob[:oobn]); perr != nil && err == nil {
			err = perr
		}
	}
	if n > 0 {
		c.in = append(c.in, buf[:n]...)
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			return unix.EPIPE
		}
		return err
	}
	if n == 0 {
		return unix.EPIPE
	}
	return nil
}

// WriteMessage encodes and sends one message. FD arguments travel as
// SCM_RIGHTS ancillary data; the caller keeps ownership of them.
func (c *Conn) WriteMessage(sender uint32, opcode uint16, args ...any) error {
	msg, fds, err := encode(sender, opcode, args...)
	if err != nil {
		return err
	}

	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	n, _, err := c.uc.WriteMsgUnix(msg, oob, nil)
	if err != nil {
		return err
	}
	if n != len(msg) {
		return io.ErrShortWrite
	}
	return nil
}

// Close closes the socket and any received descriptors nobody claimed. It
// may be called from another goroutine to abort a blocked read.
func (c *Conn) Close() error {
	c.fds.closeAll()
	return c.uc.Close()
}

// fdQueue holds descriptors received ahead of the messages that consume
// them.
type fdQueue struct {
	mu  sync.Mutex
	fds []int
}

func (q *fdQueue) parse(oob []byte) error {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return fmt.Errorf("failed to parse control message: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range msgs {
		fds, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		q.fds = append(q.fds, fds...)
	}
	return nil
}

func (q *fdQueue) pop() (int, bool) {
	if q == nil {
		return -1, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.fds) == 0 {
		return -1, false
	}
	fd := q.fds[0]
	q.fds = q.fds[1:]
	return fd, true
}

func (q *fdQueue) closeAll() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, fd := range q.fds {
		_ = unix.Close(fd)
	}
	q.fds = nil
}
