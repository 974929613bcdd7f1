//go:build linux

package desktop

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const xdotoolTimeout = 2 * time.Second

type xdotool struct {
	path string
}

// New returns the xdotool desktop when running under X11 with xdotool on
// PATH, and the no-op desktop otherwise (Wayland has no equivalent).
func New() Desktop {
	if os.Getenv("DISPLAY") == "" || os.Getenv("WAYLAND_DISPLAY") != "" {
		return Noop{}
	}
	path, err := exec.LookPath("xdotool")
	if err != nil {
		return Noop{}
	}
	return &xdotool{path: path}
}

func (x *xdotool) run(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), xdotoolTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, x.path, args...).Output()
	if err != nil {
		return "", fmt.Errorf("xdotool %s: %w", args[0], err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (x *xdotool) Frontmost() (App, bool) {
	id, err := x.run("getactivewindow")
	if err != nil || id == "" {
		return App{}, false
	}
	name, err := x.run("getwindowclassname", id)
	if err != nil || name == "" {
		name, _ = x.run("getwindowname", id)
	}
	return App{ID: id, Name: name}, true
}

func (x *xdotool) Activate(app App) error {
	if app.IsZero() {
		return nil
	}
	_, err := x.run("windowactivate", "--sync", app.ID)
	return err
}

func (x *xdotool) SendPaste() error {
	_, err := x.run("key", "--clearmodifiers", "ctrl+v")
	return err
}

func (x *xdotool) CanSynthesizeInput() bool { return true }
