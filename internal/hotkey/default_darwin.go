//go:build darwin

package hotkey

import "golang.design/x/hotkey"

// Cmd+Option.
func defaultModifiers() []hotkey.Modifier {
	return []hotkey.Modifier{hotkey.ModCmd, hotkey.ModOption}
}
