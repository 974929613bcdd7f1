//go:build !windows

package ipc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocketPathOverride(t *testing.T) {
	t.Setenv("STASH_SOCKET", "/tmp/custom.sock")
	assert.Equal(t, "/tmp/custom.sock", SocketPath())
}

func TestSocketPathXDG(t *testing.T) {
	t.Setenv("STASH_SOCKET", "")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "/run/user/1000/stash.sock", SocketPath())
}

func TestListenAndIsRunning(t *testing.T) {
	// Unix socket paths are length-limited; keep it short.
	dir, err := os.MkdirTemp("", "st")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "s.sock")
	t.Setenv("STASH_SOCKET", path)

	assert.False(t, IsRunning())

	// A stale file is replaced.
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	l, err := Listen()
	require.NoError(t, err)
	defer l.Close()

	go func() {
		for {
			c, err := l.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()
	assert.True(t, IsRunning())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
