package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/flashgen/events"
)

// barWidth is the width of the longest diagnostic level bar.
const barWidth = 30

// EventsModel shows the summary of a recorded build event journal.
type EventsModel struct {
	summary  *events.Summary
	quitting bool
}

// NewEventsModel creates an events model. Data must be an
// *events.Summary; anything else renders an error line.
func NewEventsModel(data any) EventsModel {
	summary, _ := data.(*events.Summary)
	return EventsModel{summary: summary}
}

// Init implements tea.Model.
func (m EventsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m EventsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, keys.Quit) {
		m.quitting = true
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m EventsModel) View() string {
	if m.quitting {
		return ""
	}
	if m.summary == nil {
		return ErrorStyle.Render("Invalid data type for " + ViewStatsEvents)
	}

	s := m.summary
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Build Events"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		counter("Total", s.Total, accentColor),
		counter("Artifacts", s.Artifacts, okColor),
		counter("Diagnostics", s.Diagnostics, warnColor),
		counter("Other", s.Other, dimColor),
	))
	b.WriteString("\n")

	if len(s.ByLevel) > 0 {
		b.WriteString("\n")
		b.WriteString(levelBars(s.ByLevel))
	}

	if len(s.Executables) > 0 {
		b.WriteString("\n")
		b.WriteString(LabelStyle.Render("Executables:"))
		b.WriteString("\n")
		for _, path := range s.Executables {
			fmt.Fprintf(&b, "  %s\n", ValueStyle.Render(path))
		}
	}

	return b.String() + "\n" + HelpStyle.Render("q: quit")
}

func counter(label string, value int64, color lipgloss.Color) string {
	return CounterStyle.BorderForeground(color).Render(lipgloss.JoinVertical(lipgloss.Center,
		CounterValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value)),
		LabelStyle.UnsetWidth().Render(label),
	))
}

// levelBars draws one bar per diagnostic level, scaled to the largest
// count. Levels are sorted by name.
func levelBars(byLevel map[string]int64) string {
	levels := make([]string, 0, len(byLevel))
	var peak int64
	for level, n := range byLevel {
		levels = append(levels, level)
		if n > peak {
			peak = n
		}
	}
	sort.Strings(levels)

	var b strings.Builder
	for _, level := range levels {
		n := byLevel[level]
		width := int(n * barWidth / peak)
		if width == 0 && n > 0 {
			width = 1
		}
		fmt.Fprintf(&b, "%s %s %d\n",
			LabelStyle.Render(level+":"),
			LevelStyle(level).Render(strings.Repeat("█", width)),
			n)
	}
	return b.String()
}

// RunEventsTUI runs the events TUI.
func RunEventsTUI(data any) error {
	_, err := tea.NewProgram(NewEventsModel(data), tea.WithAltScreen()).Run()
	return err
}

// RenderEventsStatic renders the events view once, without a terminal.
func RenderEventsStatic(data any) string {
	return lipgloss.NewStyle().Padding(1, 2).Render(NewEventsModel(data).View())
}
