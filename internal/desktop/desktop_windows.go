//go:build windows

package desktop

// #cgo LDFLAGS: -luser32
//
// #include <windows.h>
//
// static void* stash_foreground(wchar_t* buf, int n) {
//     HWND h = GetForegroundWindow();
//     if (h != NULL) GetWindowTextW(h, buf, n);
//     return (void*)h;
// }
//
// static int stash_activate(void* h) {
//     if (!IsWindow((HWND)h)) return 0;
//     ShowWindow((HWND)h, SW_RESTORE);
//     return SetForegroundWindow((HWND)h) ? 1 : 0;
// }
//
// static void stash_paste() {
//     INPUT in[4] = {0};
//     in[0].type = INPUT_KEYBOARD; in[0].ki.wVk = VK_CONTROL;
//     in[1].type = INPUT_KEYBOARD; in[1].ki.wVk = 'V';
//     in[2].type = INPUT_KEYBOARD; in[2].ki.wVk = 'V';        in[2].ki.dwFlags = KEYEVENTF_KEYUP;
//     in[3].type = INPUT_KEYBOARD; in[3].ki.wVk = VK_CONTROL; in[3].ki.dwFlags = KEYEVENTF_KEYUP;
//     SendInput(4, in, sizeof(INPUT));
// }
import "C"

import (
	"fmt"
	"strconv"
	"unicode/utf16"
	"unsafe"
)

type user32 struct{}

// New returns the Windows desktop.
func New() Desktop { return user32{} }

func (user32) Frontmost() (App, bool) {
	var buf [256]C.wchar_t
	h := C.stash_foreground(&buf[0], C.int(len(buf)))
	if h == nil {
		return App{}, false
	}
	u := make([]uint16, 0, len(buf))
	for _, c := range buf {
		if c == 0 {
			break
		}
		u = append(u, uint16(c))
	}
	return App{ID: strconv.FormatUint(uint64(uintptr(h)), 16), Name: string(utf16.Decode(u))}, true
}

func (user32) Activate(app App) error {
	if app.IsZero() {
		return nil
	}
	v, err := strconv.ParseUint(app.ID, 16, 64)
	if err != nil {
		return fmt.Errorf("activate %q: %w", app.ID, err)
	}
	if C.stash_activate(unsafe.Pointer(uintptr(v))) == 0 {
		return fmt.Errorf("activate %s: window is gone", app.Name)
	}
	return nil
}

func (user32) SendPaste() error {
	C.stash_paste()
	return nil
}

func (user32) CanSynthesizeInput() bool { return true }
