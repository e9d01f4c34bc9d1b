package main

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	primaryColor = lipgloss.Color("#3B82F6") // Blue, same default as new events
	successColor = lipgloss.Color("#10B981") // Green
	warningColor = lipgloss.Color("#F59E0B") // Amber
	errorColor   = lipgloss.Color("#EF4444") // Red
	mutedColor   = lipgloss.Color("#6B7280") // Gray
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	userMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Bold(true)

	agentMessageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#E5E7EB"))

	errorMessageStyle = lipgloss.NewStyle().
				Foreground(errorColor)

	interimStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	noticeStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	eventTitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	eventTimeStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	conversationBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(mutedColor).
				Padding(0, 1)

	eventsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

func sessionStateStyle(state string) lipgloss.Style {
	switch state {
	case "listening":
		return lipgloss.NewStyle().Foreground(successColor).Bold(true)
	case "error":
		return lipgloss.NewStyle().Foreground(errorColor).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(mutedColor)
	}
}

func syncStatusStyle(status string) lipgloss.Style {
	switch status {
	case "synced":
		return lipgloss.NewStyle().Foreground(successColor)
	case "syncing":
		return lipgloss.NewStyle().Foreground(warningColor)
	case "failed":
		return lipgloss.NewStyle().Foreground(errorColor)
	default:
		return lipgloss.NewStyle().Foreground(mutedColor)
	}
}
