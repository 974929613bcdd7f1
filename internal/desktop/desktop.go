// Package desktop talks to the window system on behalf of paste-back: who
// has focus, giving focus back, and synthesizing the paste accelerator.
//
//	desktop_darwin.go   NSWorkspace + CGEvent (Accessibility permission)
//	desktop_windows.go  user32 foreground window + SendInput
//	desktop_linux.go    xdotool (X11 only)
//	desktop_other.go    no-op
package desktop

// App identifies a top-level application or window that can regain focus.
type App struct {
	// ID is the platform handle: a pid on macOS, a window id elsewhere.
	ID   string
	Name string
}

// IsZero reports whether a is unset.
func (a App) IsZero() bool { return a.ID == "" }

// Desktop is implemented per platform.
type Desktop interface {
	// Frontmost returns the application that currently has focus.
	Frontmost() (App, bool)

	// Activate gives focus back to app.
	Activate(app App) error

	// SendPaste synthesizes the platform's paste accelerator.
	SendPaste() error

	// CanSynthesizeInput reports whether SendPaste is permitted.
	CanSynthesizeInput() bool
}

// Noop is a Desktop without a window system. Frontmost is always absent and
// input synthesis is never permitted.
type Noop struct{}

func (Noop) Frontmost() (App, bool)   { return App{}, false }
func (Noop) Activate(App) error       { return nil }
func (Noop) SendPaste() error         { return ErrUnsupported }
func (Noop) CanSynthesizeInput() bool { return false }
