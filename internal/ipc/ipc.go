// Package ipc locates and serves the local IPC channel that CLI tools
// (list/search/copy/pick/...) use to talk to a running stash daemon.
//
// The channel is plain gRPC served over a Unix domain socket (a named pipe
// on Windows), using the same HistoryService as the optional TCP listener.
package ipc

import (
	"net"
	"os"
)

// SocketPath returns the platform-appropriate path for the IPC socket.
//
//   - Linux:   $XDG_RUNTIME_DIR/stash.sock, else $TMPDIR/stash.sock
//   - macOS:   $TMPDIR/stash.sock
//   - Windows: \\.\pipe\stash
//
// $STASH_SOCKET overrides all of them.
func SocketPath() string {
	if s := os.Getenv("STASH_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a stash daemon appears to be listening on the
// IPC socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := Dial()
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Dial connects to the IPC socket.
func Dial() (net.Conn, error) { return dialIPC(SocketPath()) }

// Listen creates and returns a net.Listener on the IPC socket path, removing
// any stale socket file first.
func Listen() (net.Listener, error) {
	path := SocketPath()
	// Remove stale socket from a previous (crashed) run.
	_ = os.Remove(path)
	return listenIPC(path)
}
