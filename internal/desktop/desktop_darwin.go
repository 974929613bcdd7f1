//go:build darwin

package desktop

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa -framework ApplicationServices
// #import <Cocoa/Cocoa.h>
// #import <ApplicationServices/ApplicationServices.h>
// #include <stdlib.h>
// #include <string.h>
//
// int stash_frontmost(char** name) {
//     NSRunningApplication* app = [[NSWorkspace sharedWorkspace] frontmostApplication];
//     if (app == nil) return -1;
//     const char* n = [[app localizedName] UTF8String];
//     *name = n ? strdup(n) : NULL;
//     return (int)[app processIdentifier];
// }
//
// int stash_activate(int pid) {
//     NSRunningApplication* app = [NSRunningApplication runningApplicationWithProcessIdentifier:pid];
//     if (app == nil) return 0;
//     return [app activateWithOptions:0] ? 1 : 0;
// }
//
// void stash_paste() {
//     CGEventSourceRef src = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
//     CGEventRef down = CGEventCreateKeyboardEvent(src, (CGKeyCode)9, true);
//     CGEventRef up = CGEventCreateKeyboardEvent(src, (CGKeyCode)9, false);
//     CGEventSetFlags(down, kCGEventFlagMaskCommand);
//     CGEventSetFlags(up, kCGEventFlagMaskCommand);
//     CGEventPost(kCGAnnotatedSessionEventTap, down);
//     CGEventPost(kCGAnnotatedSessionEventTap, up);
//     CFRelease(down);
//     CFRelease(up);
//     if (src) CFRelease(src);
// }
//
// int stash_trusted() {
//     return AXIsProcessTrusted() ? 1 : 0;
// }
import "C"

import (
	"fmt"
	"strconv"
	"unsafe"
)

type cocoa struct{}

// New returns the macOS desktop.
func New() Desktop { return cocoa{} }

func (cocoa) Frontmost() (App, bool) {
	var name *C.char
	pid := C.stash_frontmost(&name)
	if pid < 0 {
		return App{}, false
	}
	app := App{ID: strconv.Itoa(int(pid))}
	if name != nil {
		app.Name = C.GoString(name)
		C.free(unsafe.Pointer(name))
	}
	return app, true
}

func (cocoa) Activate(app App) error {
	if app.IsZero() {
		return nil
	}
	pid, err := strconv.Atoi(app.ID)
	if err != nil {
		return fmt.Errorf("activate %q: %w", app.ID, err)
	}
	if C.stash_activate(C.int(pid)) == 0 {
		return fmt.Errorf("activate %s: application is gone", app.Name)
	}
	return nil
}

func (cocoa) SendPaste() error {
	C.stash_paste()
	return nil
}

func (cocoa) CanSynthesizeInput() bool { return C.stash_trusted() != 0 }
