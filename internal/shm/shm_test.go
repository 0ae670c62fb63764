package shm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAnonymousFile(t *testing.T) {
	f, err := CreateAnonymousFile(200 * 200 * 4)
	require.NoError(t, err)
	defer f.Close()

	st, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(160000), st.Size())
}

func TestCreateAnonymousFileCanBeTruncated(t *testing.T) {
	f, err := CreateAnonymousFile(4096)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.Truncate(12))
	st, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(12), st.Size())
}

func TestTmpfileFallback(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	f, err := tmpfile(64)
	require.NoError(t, err)
	defer f.Close()

	st, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(64), st.Size())
}

func TestMapIsShared(t *testing.T) {
	f, err := CreateAnonymousFile(16)
	require.NoError(t, err)
	defer f.Close()

	data, err := Map(f, 16)
	require.NoError(t, err)
	data[0] = 0xff
	require.NoError(t, Unmap(data))

	buf := make([]byte, 1)
	_, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), buf[0])
}

func TestCreateAnonymousFileRejectsNegativeSize(t *testing.T) {
	_, err := CreateAnonymousFile(-1)
	assert.Error(t, err)
}
