package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeProcess(t *testing.T, alive map[int]int64) {
	t.Helper()
	prevAlive, prevStart := isAlive, startTime
	t.Cleanup(func() { isAlive, startTime = prevAlive, prevStart })

	isAlive = func(pid int) bool {
		_, ok := alive[pid]
		return ok || pid == os.Getpid()
	}
	startTime = func(pid int) (int64, error) {
		if pid == os.Getpid() {
			return 1000, nil
		}
		return alive[pid], nil
	}
}

func TestAcquireAndRelease(t *testing.T) {
	fakeProcess(t, nil)
	path := filepath.Join(t.TempDir(), "run", "hud.pid")

	require.NoError(t, Acquire(path))
	entry, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, Entry{PID: os.Getpid(), ProcStarted: 1000}, entry)

	running, pid, err := IsRunning(path)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, Release(path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, Release(path))
}

func TestAcquireRefusesRunningDaemon(t *testing.T) {
	fakeProcess(t, map[int]int64{4242: 77})
	path := filepath.Join(t.TempDir(), "hud.pid")
	require.NoError(t, os.WriteFile(path, []byte("4242 77\n"), 0644))

	err := Acquire(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4242")
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"dead pid", "4343 77\n"},
		{"reused pid", "4242 12\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fakeProcess(t, map[int]int64{4242: 77})
			path := filepath.Join(t.TempDir(), "hud.pid")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			require.NoError(t, Acquire(path))
			entry, err := Read(path)
			require.NoError(t, err)
			assert.Equal(t, os.Getpid(), entry.PID)
		})
	}
}

func TestReleaseKeepsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hud.pid")
	other := strconv.Itoa(os.Getpid() + 1)
	require.NoError(t, os.WriteFile(path, []byte(other), 0644))

	require.NoError(t, Release(path))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestReadLegacyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hud.pid")
	require.NoError(t, os.WriteFile(path, []byte("123"), 0644))
	entry, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, Entry{PID: 123}, entry)
}
