//go:build !windows

package ipc

import (
	"net"
	"os"
	"path/filepath"
)

func socketPath() string {
	// Linux: prefer XDG_RUNTIME_DIR
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "stash.sock")
	}
	// macOS / fallback
	return filepath.Join(os.TempDir(), "stash.sock")
}

func listenIPC(path string) (net.Listener, error) {
	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	// History is private; only the owner may connect.
	_ = os.Chmod(path, 0o600)
	return l, nil
}

func dialIPC(path string) (net.Conn, error) {
	return net.Dial("unix", path)
}
