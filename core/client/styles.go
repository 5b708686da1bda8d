package client

import "github.com/charmbracelet/lipgloss"

var (
	burlywood   = lipgloss.Color("#deb887")
	roomBlue    = lipgloss.Color("#101F38")
	mutedGrey   = lipgloss.Color("#7a8599")
	errorRed    = lipgloss.Color("#e53935")
	talkingLime = lipgloss.Color("#8BC34A")
)

type styles struct {
	Header  lipgloss.Style
	Message lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Talking lipgloss.Style
	Prompt  lipgloss.Style
	Spinner lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Header: lipgloss.NewStyle().
			Background(roomBlue).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),
		Message: lipgloss.NewStyle().
			Foreground(burlywood).
			MarginBottom(1),
		Muted: lipgloss.NewStyle().
			Foreground(mutedGrey).
			Padding(0, 2),
		Error: lipgloss.NewStyle().
			Foreground(errorRed).
			Padding(0, 2),
		Talking: lipgloss.NewStyle().
			Foreground(talkingLime).
			Bold(true),
		Prompt:  lipgloss.NewStyle().Foreground(burlywood),
		Spinner: lipgloss.NewStyle().Foreground(talkingLime),
	}
}
