package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	accentColor = lipgloss.Color("#7D56F4")
	mutedColor  = lipgloss.Color("#7D7A85")
	borderColor = lipgloss.Color("#5E6472")
	errorColor  = lipgloss.Color("#FF6B6B")

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(1).
			BorderForeground(lipgloss.Color("#FFB454")).
			Background(lipgloss.Color("#1F1D2B"))

	buttonStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Width(5).
			Align(lipgloss.Center)

	pressedButtonStyle = buttonStyle.
				BorderForeground(accentColor).
				Foreground(accentColor).
				Bold(true)

	menuEnabledStyle  = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	menuDisabledStyle = lipgloss.NewStyle().Foreground(mutedColor).Faint(true)
	resultStyle       = lipgloss.NewStyle().Bold(true)
	errorStyle        = lipgloss.NewStyle().Foreground(errorColor)
	hintStyle         = lipgloss.NewStyle().Foreground(mutedColor).Padding(0, 1)
)

func renderPane(title string, body string, width int) string {
	titleText := lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render(title)
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1)
	if width > 0 {
		style = style.Width(width)
	}
	content := body
	if strings.TrimSpace(title) != "" {
		content = lipgloss.JoinVertical(lipgloss.Left, titleText, body)
	}
	return style.Render(content)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
