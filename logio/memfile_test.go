package logio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemFileWriteReadRoundTrip(t *testing.T) {
	f := NewMemFile(1024)
	require.NoError(t, f.WriteAt(10, []byte("abc")))
	buf := make([]byte, 3)
	require.NoError(t, f.ReadAt(10, buf))
	assert.Equal(t, "abc", string(buf))
}

func TestMemFileIsAlwaysDurable(t *testing.T) {
	f := NewMemFile(1024)
	assert.True(t, f.WritesAreDurable())
	assert.NoError(t, f.FlushDataOnly())
}

func TestMemFileBytesIsACopy(t *testing.T) {
	f := NewMemFile(8)
	require.NoError(t, f.WriteAt(0, []byte("12345678")))
	snapshot := f.Bytes()
	require.NoError(t, f.WriteAt(0, []byte("ABCDEFGH")))
	assert.Equal(t, "12345678", string(snapshot))
}
