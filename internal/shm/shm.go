// Package shm creates anonymous shared memory files for wl_shm pools.
package shm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CreateAnonymousFile returns a file of the given size that exists only as
// long as a descriptor refers to it. It prefers memfd_create and falls back
// to an unlinked file in XDG_RUNTIME_DIR.
func CreateAnonymousFile(size int64) (*os.File, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid size %d", size)
	}

	f, err := memfd(size)
	if err == nil {
		return f, nil
	}

	f, err = tmpfile(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create anonymous file: %w", err)
	}
	return f, nil
}

func memfd(size int64) (*os.File, error) {
	fd, err := unix.MemfdCreate("waycheck-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	f := os.NewFile(uintptr(fd), "waycheck-shm")
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func tmpfile(size int64) (*os.File, error) {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, "waycheck-shm-*")
	if err != nil {
		return nil, err
	}
	if err := os.Remove(f.Name()); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

// Map maps size bytes of f shared and writable.
func Map(f *os.File, size int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, &os.SyscallError{Syscall: "mmap", Err: err}
	}
	return data, nil
}

// Unmap releases a mapping returned by Map.
func Unmap(data []byte) error {
	if data == nil {
		return nil
	}
	return unix.Munmap(data)
}
