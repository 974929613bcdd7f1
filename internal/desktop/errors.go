package desktop

import "errors"

// ErrUnsupported is returned when the window system cannot perform the
// request at all.
var ErrUnsupported = errors.New("desktop: unsupported on this platform")

// PermissionHint is logged at startup when paste replay is unavailable.
const PermissionHint = "automatic paste is disabled; grant input permission (macOS: System Settings > Privacy & Security > Accessibility; Linux: install xdotool under X11) and restart"
