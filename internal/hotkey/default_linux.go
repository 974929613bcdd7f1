//go:build linux

package hotkey

import "golang.design/x/hotkey"

// Ctrl+Alt; Mod1 is Alt under X11.
func defaultModifiers() []hotkey.Modifier {
	return []hotkey.Modifier{hotkey.ModCtrl, hotkey.Mod1}
}
