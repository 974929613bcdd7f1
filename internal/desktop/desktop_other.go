//go:build !darwin && !windows && !linux

package desktop

// New returns the no-op desktop.
func New() Desktop { return Noop{} }
