package client

import (
	"errors"
	"fmt"
	"math"

	"github.com/bnema/waycheck/internal/protocols"
	"github.com/bnema/waycheck/internal/shm"
)

const bytesPerPixel = 4

// ErrBufferSize reports dimensions that wl_shm cannot describe.
var ErrBufferSize = errors.New("invalid buffer size")

// ShmLayout returns the stride and pool size of a width x height ARGB8888
// buffer. Both must fit the protocol's int32 fields.
func ShmLayout(width, height int) (stride, size int32, err error) {
	if width <= 0 || height <= 0 {
		return 0, 0, fmt.Errorf("%w: %dx%d", ErrBufferSize, width, height)
	}
	if width > math.MaxInt32/bytesPerPixel || height > math.MaxInt32 {
		return 0, 0, fmt.Errorf("%w: %dx%d overflows int32", ErrBufferSize, width, height)
	}
	s := int64(width) * bytesPerPixel
	total := s * int64(height)
	if total > math.MaxInt32 {
		return 0, 0, fmt.Errorf("%w: %dx%d needs %d bytes", ErrBufferSize, width, height, total)
	}
	return int32(s), int32(total), nil
}

// ShmBuffer is an ARGB8888 wl_buffer backed by an anonymous shared file.
type ShmBuffer struct {
	client *Client
	buffer *protocols.Buffer
	data   []byte

	width, height int
	listeners     []func() bool
}

// CreateShmBuffer allocates a width x height buffer. The pool and the file
// are released before returning; the buffer keeps its storage.
func (c *Client) CreateShmBuffer(width, height int) (*ShmBuffer, error) {
	if c.shm == nil {
		return nil, fmt.Errorf("wl_shm: %w", errNoGlobal)
	}
	stride, size, err := ShmLayout(width, height)
	if err != nil {
		return nil, err
	}

	f, err := shm.CreateAnonymousFile(int64(size))
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer file: %w", err)
	}
	defer f.Close()

	data, err := shm.Map(f, int(size))
	if err != nil {
		return nil, err
	}

	pool, err := c.shm.CreatePool(int(f.Fd()), size)
	if err != nil {
		_ = shm.Unmap(data)
		return nil, c.requestError(err)
	}
	defer pool.Destroy()

	wb, err := pool.CreateBuffer(0, int32(width), int32(height), stride, protocols.ShmFormatArgb8888)
	if err != nil {
		_ = shm.Unmap(data)
		return nil, c.requestError(err)
	}

	b := &ShmBuffer{
		client: c,
		buffer: wb,
		data:   data,
		width:  width,
		height: height,
	}
	wb.SetReleaseHandler(func(protocols.BufferReleaseEvent) {
		b.fireRelease()
	})
	return b, nil
}

// AddReleaseListener subscribes fn to buffer releases. fn stays subscribed
// while it returns true.
func (b *ShmBuffer) AddReleaseListener(fn func() bool) {
	b.listeners = append(b.listeners, fn)
}

// fireRelease runs the listeners present when the release arrived, in
// subscription order. Listeners added meanwhile run on the next release.
func (b *ShmBuffer) fireRelease() {
	current := b.listeners
	n := len(current)

	var kept []func() bool
	for _, fn := range current[:n] {
		if fn() {
			kept = append(kept, fn)
		}
	}
	if len(b.listeners) > n {
		kept = append(kept, b.listeners[n:]...)
	}
	b.listeners = kept
}

// Data is the mapped pixel storage, stride width*4.
func (b *ShmBuffer) Data() []byte {
	return b.data
}

func (b *ShmBuffer) Width() int {
	return b.width
}

func (b *ShmBuffer) Height() int {
	return b.height
}

// Proxy returns the underlying wl_buffer.
func (b *ShmBuffer) Proxy() *protocols.Buffer {
	return b.buffer
}

// Destroy destroys the wl_buffer and unmaps its storage.
func (b *ShmBuffer) Destroy() error {
	err := b.buffer.Destroy()
	b.listeners = nil
	if b.data != nil {
		if uerr := shm.Unmap(b.data); uerr != nil && err == nil {
			err = uerr
		}
		b.data = nil
	}
	if err != nil {
		return b.client.requestError(err)
	}
	return nil
}
