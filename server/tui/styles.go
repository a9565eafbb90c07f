package tui

import "github.com/charmbracelet/lipgloss"

var (
	gruvboxFg2    = lipgloss.Color("#d5c4a1")
	gruvboxRed    = lipgloss.Color("#fb4934")
	gruvboxGreen  = lipgloss.Color("#b8bb26")
	gruvboxYellow = lipgloss.Color("#fabd2f")
	gruvboxBlue   = lipgloss.Color("#83a598")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(gruvboxYellow)

	infoStyle = lipgloss.NewStyle().
			Foreground(gruvboxFg2).
			Faint(true)

	etaStyle = lipgloss.NewStyle().
			Foreground(gruvboxBlue)

	doneStyle = lipgloss.NewStyle().
			Foreground(gruvboxGreen).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(gruvboxRed).
			Bold(true)

	boxStyle = lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(gruvboxBlue)
)
