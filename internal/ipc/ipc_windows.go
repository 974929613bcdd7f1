//go:build windows

package ipc

import (
	"net"

	"github.com/Microsoft/go-winio"
)

const pipeName = `\\.\pipe\stash`

func socketPath() string { return pipeName }

func listenIPC(path string) (net.Listener, error) {
	// Owner-only DACL.
	return winio.ListenPipe(path, &winio.PipeConfig{SecurityDescriptor: "D:P(A;;GA;;;OW)"})
}

func dialIPC(path string) (net.Conn, error) {
	return winio.DialPipe(path, nil)
}
