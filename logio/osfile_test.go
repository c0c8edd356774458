package logio

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrodb/redolog/logconfig"
)

func TestOSFileWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logfile")
	f, err := OpenOSFile(path, 4096, logconfig.FlushBuffered, false)
	require.NoError(t, err)
	defer f.Close()

	want := []byte("hello redo log")
	require.NoError(t, f.WriteAt(100, want))

	got := make([]byte, len(want))
	require.NoError(t, f.ReadAt(100, got))
	assert.Equal(t, want, got)
}

func TestOSFileDSyncIsDurable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logfile")
	f, err := OpenOSFile(path, 4096, logconfig.FlushDSync, false)
	require.NoError(t, err)
	defer f.Close()
	assert.True(t, f.WritesAreDurable())
	assert.NoError(t, f.FlushDataOnly())
}

func TestOSFileBufferedIsNotDurableUntilFlushed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logfile")
	f, err := OpenOSFile(path, 4096, logconfig.FlushBuffered, false)
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, f.WritesAreDurable())
	assert.NoError(t, f.FlushDataOnly())
}

func TestOSFileReopenPreservesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logfile")
	f, err := OpenOSFile(path, 4096, logconfig.FlushBuffered, false)
	require.NoError(t, err)
	require.NoError(t, f.WriteAt(0, []byte("persisted")))
	require.NoError(t, f.Close())

	f2, err := OpenOSFile(path, 4096, logconfig.FlushBuffered, false)
	require.NoError(t, err)
	defer f2.Close()
	got := make([]byte, len("persisted"))
	require.NoError(t, f2.ReadAt(0, got))
	assert.Equal(t, "persisted", string(got))
}
