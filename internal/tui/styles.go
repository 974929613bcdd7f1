package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent = lipgloss.AdaptiveColor{Light: "#0A64D8", Dark: "#4FA3FF"}
	muted  = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}
	border = lipgloss.AdaptiveColor{Light: "#D0D0D0", Dark: "#3A3A3A"}

	searchStyle = lipgloss.NewStyle().Padding(0, 1)
	filterStyle = lipgloss.NewStyle().Foreground(accent).Padding(0, 1)

	headerStyle   = lipgloss.NewStyle().Foreground(muted).Bold(true).PaddingLeft(1)
	rowStyle      = lipgloss.NewStyle().PaddingLeft(1)
	selectedStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent)
	metaStyle = lipgloss.NewStyle().Foreground(muted)

	listStyle   = lipgloss.NewStyle().BorderRight(true).BorderStyle(lipgloss.NormalBorder()).BorderForeground(border)
	detailStyle = lipgloss.NewStyle().Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(muted)
	titleStyle  = lipgloss.NewStyle().Bold(true)

	barStyle = lipgloss.NewStyle().
			BorderTop(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderForeground(border).
			Padding(0, 1)
	keyStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)

	idleStyle = lipgloss.NewStyle().Foreground(muted).Padding(1, 2)
)
