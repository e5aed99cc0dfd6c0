package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/flashgen/descriptor"
)

// previewWidth bounds the instructions preview.
const previewWidth = 48

// InspectModel pages through the flash algorithms of a descriptor file.
type InspectModel struct {
	algos    []*descriptor.Descriptor
	valid    bool
	index    int
	quitting bool
}

// NewInspectModel creates an inspect model. Data must be a
// []*descriptor.Descriptor; anything else renders an error line.
func NewInspectModel(data any) InspectModel {
	algos, ok := data.([]*descriptor.Descriptor)
	return InspectModel{algos: algos, valid: ok}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(km, keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(km, keys.Next):
		if m.index < len(m.algos)-1 {
			m.index++
		}
	case key.Matches(km, keys.Prev):
		if m.index > 0 {
			m.index--
		}
	}
	return m, nil
}

// Index returns the algorithm currently shown.
func (m InspectModel) Index() int {
	return m.index
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.valid {
		return ErrorStyle.Render("Invalid data type for " + ViewInspectDescriptor)
	}
	if len(m.algos) == 0 {
		return BoxStyle.Render("No flash algorithms found")
	}

	help := "q: quit"
	if len(m.algos) > 1 {
		help = "←/→: switch algorithm • " + help
	}
	return m.card(m.algos[m.index]) + "\n" + HelpStyle.Render(help)
}

func (m InspectModel) card(d *descriptor.Descriptor) string {
	var b strings.Builder
	title := "Flash Algorithm"
	if len(m.algos) > 1 {
		title = fmt.Sprintf("Flash Algorithm %d/%d", m.index+1, len(m.algos))
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")

	size := "invalid base64"
	if image, err := d.Image(); err == nil {
		size = fmt.Sprintf("%d bytes", len(image))
	}
	field(&b, "Name:", ValueStyle.Render(d.Name))
	field(&b, "Image:", ValueStyle.Render(size))

	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("Entry Points"))
	b.WriteString("\n")
	for _, e := range []struct {
		label string
		addr  descriptor.Address
	}{
		{"pc_init:", d.PCInit},
		{"pc_uninit:", d.PCUnInit},
		{"pc_program_page:", d.PCProgramPage},
		{"pc_erase_sector:", d.PCEraseSector},
		{"pc_erase_all:", d.PCEraseAll},
	} {
		// 0 is written for entry points absent from the symbol table.
		state := "ok"
		if e.addr == 0 {
			state = "missing"
		}
		field(&b, e.label, LevelStyle(state).Render(e.addr.String()))
	}

	b.WriteString("\n")
	b.WriteString(LabelStyle.Render("Instructions:"))
	b.WriteString("\n")
	b.WriteString(MonoStyle.Render(preview(d.Instructions)))

	return BoxStyle.Render(b.String())
}

func field(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%s %s\n", LabelStyle.Render(label), value)
}

func preview(s string) string {
	if len(s) <= previewWidth {
		return s
	}
	return s[:previewWidth] + "…"
}

type keyMap struct {
	Quit key.Binding
	Next key.Binding
	Prev key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Next: key.NewBinding(
		key.WithKeys("right", "l", "tab"),
		key.WithHelp("→", "next"),
	),
	Prev: key.NewBinding(
		key.WithKeys("left", "h", "shift+tab"),
		key.WithHelp("←", "previous"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(data any) error {
	_, err := tea.NewProgram(NewInspectModel(data), tea.WithAltScreen()).Run()
	return err
}

// RenderInspectStatic renders the inspect view once, without a terminal.
func RenderInspectStatic(data any) string {
	return lipgloss.NewStyle().Padding(1, 2).Render(NewInspectModel(data).View())
}
