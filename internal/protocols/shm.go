package protocols

import "github.com/bnema/waycheck/internal/wire"

// ShmFormatEvent advertises a supported pixel format.
type ShmFormatEvent struct {
	Format ShmFormat
}

// Shm is wl_shm, the shared memory buffer factory.
type Shm struct {
	wire.BaseProxy
	formatHandler func(ShmFormatEvent)
}

func (s *Shm) Interface() *wire.Interface {
	return ShmInterface
}

func (s *Shm) SetFormatHandler(f func(ShmFormatEvent)) {
	s.formatHandler = f
}

// CreatePool creates a pool backed by fd. The descriptor is sent to the
// compositor and stays owned by the caller.
func (s *Shm) CreatePool(fd int, size int32) (*ShmPool, error) {
	p := &ShmPool{}
	s.Context().Register(p)
	if err := s.Context().SendRequest(s, ShmCreatePool, p, wire.FD(fd), size); err != nil {
		s.Context().Unregister(p)
		return nil, err
	}
	return p, nil
}

// Destroy releases the proxy; wl_shm v1 has no destructor request.
func (s *Shm) Destroy() {
	s.Context().Unregister(s)
}

func (s *Shm) Dispatch(ev *wire.Event) {
	if ev.Opcode != ShmEventFormat {
		return
	}
	e := ShmFormatEvent{Format: ShmFormat(ev.Uint32())}
	if ev.Err() == nil && s.formatHandler != nil {
		s.formatHandler(e)
	}
}

// ShmPool is wl_shm_pool.
type ShmPool struct {
	wire.BaseProxy
}

func (p *ShmPool) Interface() *wire.Interface {
	return ShmPoolInterface
}

func (p *ShmPool) CreateBuffer(offset, width, height, stride int32, format ShmFormat) (*Buffer, error) {
	b := &Buffer{}
	p.Context().Register(b)
	err := p.Context().SendRequest(p, ShmPoolCreateBuffer, b, offset, width, height, stride, uint32(format))
	if err != nil {
		p.Context().Unregister(b)
		return nil, err
	}
	return b, nil
}

func (p *ShmPool) Resize(size int32) error {
	return p.Context().SendRequest(p, ShmPoolResize, size)
}

// Destroy destroys the pool. Buffers created from it keep their storage.
func (p *ShmPool) Destroy() error {
	err := p.Context().SendRequest(p, ShmPoolDestroy)
	p.Context().Unregister(p)
	return err
}

// BufferReleaseEvent signals the compositor no longer reads the buffer.
type BufferReleaseEvent struct{}

// Buffer is wl_buffer.
type Buffer struct {
	wire.BaseProxy
	releaseHandler func(BufferReleaseEvent)
}

func (b *Buffer) Interface() *wire.Interface {
	return BufferInterface
}

func (b *Buffer) SetReleaseHandler(f func(BufferReleaseEvent)) {
	b.releaseHandler = f
}

func (b *Buffer) Destroy() error {
	err := b.Context().SendRequest(b, BufferDestroy)
	b.Context().Unregister(b)
	return err
}

func (b *Buffer) Dispatch(ev *wire.Event) {
	if ev.Opcode == BufferEventRelease && b.releaseHandler != nil {
		b.releaseHandler(BufferReleaseEvent{})
	}
}
