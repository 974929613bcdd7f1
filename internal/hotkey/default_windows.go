//go:build windows

package hotkey

import "golang.design/x/hotkey"

// Ctrl+Alt.
func defaultModifiers() []hotkey.Modifier {
	return []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModAlt}
}
