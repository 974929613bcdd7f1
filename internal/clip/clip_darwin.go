//go:build darwin

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
// #include <stdlib.h>
// #include <string.h>
//
// NSInteger stash_changeCount() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
//
// void stash_clear() {
//     [[NSPasteboard generalPasteboard] clearContents];
// }
//
// void* stash_read_tiff(int* n) {
//     NSData* d = [[NSPasteboard generalPasteboard] dataForType:NSPasteboardTypeTIFF];
//     if (d == nil || [d length] == 0) { *n = 0; return NULL; }
//     *n = (int)[d length];
//     void* buf = malloc(*n);
//     memcpy(buf, [d bytes], *n);
//     return buf;
// }
import "C"

import (
	"log/slog"

	"golang.design/x/clipboard"
)

type darwinBackend struct{}

// New returns the macOS clipboard backend.
// clipboard.Init is called here rather than in init() so that CLI sub-commands
// that never construct a Backend don't log spurious warnings.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard init failed", "err", err)
	}
	return &darwinBackend{}
}

func (b *darwinBackend) Name() string { return "macOS NSPasteboard" }

func (b *darwinBackend) ChangeCount() int64 { return int64(C.stash_changeCount()) }

func (b *darwinBackend) ReadText() (string, bool) {
	text := clipboard.Read(clipboard.FmtText)
	return string(text), text != nil
}

func (b *darwinBackend) ReadImage() ([]byte, bool) {
	var n C.int
	if p := C.stash_read_tiff(&n); p != nil {
		defer C.free(p)
		return C.GoBytes(p, n), true
	}
	img := clipboard.Read(clipboard.FmtImage)
	return img, len(img) > 0
}

func (b *darwinBackend) Clear() error {
	C.stash_clear()
	return nil
}

func (b *darwinBackend) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (b *darwinBackend) WriteImage(png []byte) error {
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}

func (b *darwinBackend) Close() {}
