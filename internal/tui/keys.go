package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the panel's bindings.
type KeyMap struct {
	Up         key.Binding
	Down       key.Binding
	Paste      key.Binding
	PastePlain key.Binding
	Filter     key.Binding
	Delete     key.Binding
	Hide       key.Binding
	Open       key.Binding
	Quit       key.Binding
}

// DefaultKeys mirrors the desktop panel: arrows move, return pastes, a
// modified return pastes plain text, escape closes.
var DefaultKeys = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "ctrl+k"),
		key.WithHelp("↑", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "ctrl+j"),
		key.WithHelp("↓", "down"),
	),
	Paste: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("⏎", "Paste"),
	),
	PastePlain: key.NewBinding(
		key.WithKeys("alt+enter", "ctrl+p"),
		key.WithHelp("⌥⏎", "Plain"),
	),
	Filter: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "Type"),
	),
	Delete: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("^d", "Delete"),
	),
	Hide: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "Close"),
	),
	Open: key.NewBinding(
		key.WithKeys("enter", " "),
		key.WithHelp("⏎", "open"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("^c", "quit"),
	),
}
