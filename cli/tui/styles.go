// Package tui provides Bubble Tea views for the flashgen CLI.
//
// TUI is opt-in (--tui) and read-only. Views render the same payloads as
// the json/table/yaml renderers and never show data of their own.
package tui

import "github.com/charmbracelet/lipgloss"

var (
	accentColor = lipgloss.Color("#06B6D4") // Cyan
	okColor     = lipgloss.Color("#22C55E") // Green
	warnColor   = lipgloss.Color("#EAB308") // Yellow
	errColor    = lipgloss.Color("#F43F5E") // Rose
	dimColor    = lipgloss.Color("#71717A") // Zinc
	textColor   = lipgloss.Color("#F4F4F5")
)

var (
	// TitleStyle for section headings.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginBottom(1)

	// LabelStyle for field labels; fixed width keeps values aligned.
	LabelStyle = lipgloss.NewStyle().Foreground(dimColor).Width(17)

	ValueStyle = lipgloss.NewStyle().Foreground(textColor)
	MonoStyle  = lipgloss.NewStyle().Foreground(accentColor)

	OKStyle    = lipgloss.NewStyle().Foreground(okColor)
	WarnStyle  = lipgloss.NewStyle().Foreground(warnColor)
	ErrorStyle = lipgloss.NewStyle().Foreground(errColor)

	BoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(dimColor).Padding(1, 2)
	HelpStyle = lipgloss.NewStyle().Foreground(dimColor).MarginTop(1)

	// CounterStyle frames one count of the events view.
	CounterStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 2).Width(18).Align(lipgloss.Center)
	CounterValueStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center)
)

// LevelStyle returns the style for a diagnostic level or an entry point
// state ("ok" or "missing").
func LevelStyle(level string) lipgloss.Style {
	switch level {
	case "ok":
		return OKStyle
	case "warning", "missing":
		return WarnStyle
	case "error":
		return ErrorStyle
	default:
		return ValueStyle
	}
}
