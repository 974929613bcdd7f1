//go:build windows

package clip

// #cgo LDFLAGS: -luser32
//
// #include <windows.h>
//
// static unsigned long stash_sequence() {
//     return (unsigned long)GetClipboardSequenceNumber();
// }
//
// static int stash_clear() {
//     if (!OpenClipboard(NULL)) return 0;
//     int ok = EmptyClipboard() ? 1 : 0;
//     CloseClipboard();
//     return ok;
// }
import "C"

import (
	"errors"
	"log/slog"

	"golang.design/x/clipboard"
)

type windowsBackend struct{}

// New returns the Windows clipboard backend.
// clipboard.Init is called here rather than in init() so that CLI sub-commands
// that never construct a Backend don't log spurious warnings.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard init failed", "err", err)
	}
	return &windowsBackend{}
}

func (b *windowsBackend) Name() string { return "Windows Clipboard" }

func (b *windowsBackend) ChangeCount() int64 { return int64(C.stash_sequence()) }

func (b *windowsBackend) ReadText() (string, bool) {
	text := clipboard.Read(clipboard.FmtText)
	return string(text), text != nil
}

func (b *windowsBackend) ReadImage() ([]byte, bool) {
	img := clipboard.Read(clipboard.FmtImage)
	return img, len(img) > 0
}

func (b *windowsBackend) Clear() error {
	if C.stash_clear() == 0 {
		return errors.New("clipboard busy")
	}
	return nil
}

func (b *windowsBackend) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (b *windowsBackend) WriteImage(png []byte) error {
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

func (b *windowsBackend) Close() {}
