// Package clip provides a unified interface to the system clipboard across
// platforms. Build constraints select the appropriate implementation:
//
//	clip_darwin.go   macOS via golang.design/x/clipboard + cgo changeCount
//	clip_windows.go  Windows via golang.design/x/clipboard + GetClipboardSequenceNumber
//	clip_linux.go    Linux via golang.design/x/clipboard, counter emulated by polling
//	clip_other.go    headless / container, in-memory
package clip

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// ChangeCount returns the clipboard generation counter. It increases
	// every time the clipboard contents change, whoever changed them.
	ChangeCount() int64

	// ReadText returns the clipboard string, if any.
	ReadText() (string, bool)

	// ReadImage returns the clipboard image bytes, preferring TIFF over PNG
	// where the platform offers both.
	ReadImage() ([]byte, bool)

	// Clear empties the clipboard.
	Clear() error

	// WriteText replaces the whole clipboard with a string.
	WriteText(text string) error

	// WriteImage replaces the whole clipboard with PNG bytes.
	WriteImage(png []byte) error

	// Close releases any resources held by the backend.
	Close()
}
