package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritePIDFileWritesOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, writePIDFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	pid, err := strconv.Atoi(string(data))
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestWritePIDFileRefusesWhenLiveProcessHolds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644))

	err := writePIDFile(path)
	assert.Error(t, err)
}

func TestWritePIDFileOverwritesStalePID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	// A PID unlikely to correspond to a live process.
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o644))

	require.NoError(t, writePIDFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(data))
}

func TestRemovePIDFileIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, writePIDFile(path))
	require.NoError(t, removePIDFile(path))
	require.NoError(t, removePIDFile(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
