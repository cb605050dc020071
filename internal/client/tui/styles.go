package tui

import "github.com/charmbracelet/lipgloss"

// Color palette
var (
	colorGreen  = lipgloss.Color("40")  // Own messages, liked
	colorYellow = lipgloss.Color("220") // Pending, unread
	colorRed    = lipgloss.Color("196") // Errors
	colorCyan   = lipgloss.Color("39")  // Names, links
	colorGray   = lipgloss.Color("244") // Labels
	colorWhite  = lipgloss.Color("255") // Values
	colorDim    = lipgloss.Color("240") // Timestamps, secondary text
)

// Text styles
var (
	// Title style for the view header
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorWhite)

	// Hint style for "(Esc to quit)"
	hintStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	// Label style for field names
	labelStyle = lipgloss.NewStyle().
			Width(16).
			Foreground(colorGray)

	valueStyle = lipgloss.NewStyle().
			Foreground(colorWhite)

	authorStyle = lipgloss.NewStyle().
			Foreground(colorCyan).
			Bold(true)

	selfStyle = lipgloss.NewStyle().
			Foreground(colorGreen).
			Bold(true)

	timeStyle = lipgloss.NewStyle().
			Foreground(colorDim)

	idStyle = lipgloss.NewStyle().
		Foreground(colorDim)

	likedStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	unreadStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	pendingStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	// Post body, indented under its header
	bodyStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Foreground(colorWhite)

	// Section header, e.g. "Comments"
	sectionStyle = lipgloss.NewStyle().
			Foreground(colorGray).
			Underline(true)
)

// ErrorText returns a styled error line.
func ErrorText(msg string) string {
	return errorStyle.Render(msg)
}

// Title returns a styled heading.
func Title(s string) string {
	return titleStyle.Render(s)
}
