package conformance

import (
	"errors"
	"fmt"

	"github.com/bnema/waycheck/internal/client"
	"github.com/bnema/waycheck/internal/protocols"
	"github.com/bnema/waycheck/internal/shm"
)

func init() {
	register(Case{
		Name:        "truncated_shm_file",
		Description: "A buffer whose pool file was truncated after creation must raise wl_shm.error.invalid_fd on the buffer",
		Run:         truncatedShmFile,
	})
	register(Case{
		Name:        "frame_callback_completes",
		Description: "A frame callback requested before committing a valid buffer must complete",
		Run:         frameCallbackCompletes,
	})
	register(Case{
		Name:        "buffer_release_notifies",
		Description: "A committed buffer must be released so it can be reused",
		Run:         bufferReleaseNotifies,
	})
}

// createBadShmBuffer creates a buffer whose backing file is cut to 12
// bytes once the compositor holds it, so reading it goes out of bounds.
func createBadShmBuffer(c *client.Client, width, height int) (*protocols.Buffer, error) {
	stride, size, err := client.ShmLayout(width, height)
	if err != nil {
		return nil, err
	}

	f, err := shm.CreateAnonymousFile(int64(size))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pool, err := c.Shm().CreatePool(int(f.Fd()), size)
	if err != nil {
		return nil, err
	}
	buffer, err := pool.CreateBuffer(0, int32(width), int32(height), stride, protocols.ShmFormatArgb8888)
	if err != nil {
		return nil, err
	}
	if err := pool.Destroy(); err != nil {
		return nil, err
	}

	if err := f.Truncate(12); err != nil {
		return nil, fmt.Errorf("failed to truncate pool file: %w", err)
	}
	return buffer, nil
}

func truncatedShmFile(env *Env) error {
	c, err := env.Connect()
	if err != nil {
		return err
	}

	consumed := false
	var bad *protocols.Buffer

	err = func() error {
		surface, err := c.CreateVisibleSurface(200, 200)
		if err != nil {
			return err
		}
		if bad, err = createBadShmBuffer(c, 200, 200); err != nil {
			return err
		}
		if err := surface.Proxy().Attach(bad, 0, 0); err != nil {
			return err
		}
		if err := surface.Damage(0, 0, 200, 200); err != nil {
			return err
		}
		if err := surface.AddFrameCallback(func(uint32) { consumed = true }); err != nil {
			return err
		}
		if err := surface.Commit(); err != nil {
			return err
		}
		return c.DispatchUntil(func() bool { return consumed })
	}()

	var perr *client.ProtocolError
	if errors.As(err, &perr) {
		if bad != nil {
			_ = bad.Destroy()
		}
		if perr.Code != protocols.ShmErrorInvalidFd {
			return fmt.Errorf("expected wl_shm.error.invalid_fd (%d), got code %d: %w",
				protocols.ShmErrorInvalidFd, perr.Code, err)
		}
		if perr.Interface != protocols.BufferInterface {
			return fmt.Errorf("expected protocol error on wl_buffer, got %s: %w", perr.Interface, err)
		}
		return nil
	}
	if err != nil {
		return err
	}
	return errors.New("expected protocol error not raised")
}

func frameCallbackCompletes(env *Env) error {
	c, err := env.Connect()
	if err != nil {
		return err
	}
	surface, err := c.CreateVisibleSurface(64, 64)
	if err != nil {
		return err
	}
	defer surface.Destroy()

	buffer, err := c.CreateShmBuffer(64, 64)
	if err != nil {
		return err
	}
	defer buffer.Destroy()
	fill(buffer.Data(), 0xff336699)

	frames := 0
	if err := surface.Attach(buffer, 0, 0); err != nil {
		return err
	}
	if err := surface.Damage(0, 0, 64, 64); err != nil {
		return err
	}
	if err := surface.AddFrameCallback(func(uint32) { frames++ }); err != nil {
		return err
	}
	if err := surface.Commit(); err != nil {
		return err
	}
	if err := c.DispatchUntil(func() bool { return frames > 0 }); err != nil {
		return err
	}

	if surface.FramePending() {
		return errors.New("frame request still pending after its callback ran")
	}
	// Another roundtrip must not deliver the same frame twice.
	if err := c.Roundtrip(); err != nil {
		return err
	}
	if frames != 1 {
		return fmt.Errorf("frame callback ran %d times", frames)
	}
	return nil
}

func bufferReleaseNotifies(env *Env) error {
	c, err := env.Connect()
	if err != nil {
		return err
	}
	surface, err := c.CreateVisibleSurface(32, 32)
	if err != nil {
		return err
	}
	defer surface.Destroy()

	buffer, err := c.CreateShmBuffer(32, 32)
	if err != nil {
		return err
	}
	defer buffer.Destroy()

	var once, every int
	buffer.AddReleaseListener(func() bool {
		once++
		return false
	})
	buffer.AddReleaseListener(func() bool {
		every++
		return true
	})

	for i := 1; i <= 2; i++ {
		if err := surface.Attach(buffer, 0, 0); err != nil {
			return err
		}
		if err := surface.Damage(0, 0, 32, 32); err != nil {
			return err
		}
		if err := surface.Commit(); err != nil {
			return err
		}
		if err := c.DispatchUntil(func() bool { return every == i }); err != nil {
			return err
		}
	}

	if once != 1 {
		return fmt.Errorf("one-shot release listener ran %d times", once)
	}
	return nil
}

func fill(data []byte, argb uint32) {
	for i := 0; i+3 < len(data); i += 4 {
		data[i] = byte(argb)
		data[i+1] = byte(argb >> 8)
		data[i+2] = byte(argb >> 16)
		data[i+3] = byte(argb >> 24)
	}
}
