package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/flashgen/descriptor"
	"github.com/pithecene-io/flashgen/events"
	"github.com/pithecene-io/flashgen/types"
)

func TestIsTUISupported(t *testing.T) {
	tests := []struct {
		viewType string
		want     bool
	}{
		{ViewInspectDescriptor, true},
		{ViewStatsEvents, true},

		{"export", false},
		{"events", false},
		{"version", false},
		{"inspect_unknown", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.viewType, func(t *testing.T) {
			if got := IsTUISupported(tt.viewType); got != tt.want {
				t.Errorf("IsTUISupported(%q) = %v, want %v", tt.viewType, got, tt.want)
			}
		})
	}
}

func TestRun_UnsupportedViewType(t *testing.T) {
	if err := Run("export", nil); err == nil {
		t.Error("expected error for unsupported view type")
	}
}

func testDescriptors() []*descriptor.Descriptor {
	return []*descriptor.Descriptor{
		descriptor.New("algo-a", []byte{0xfe, 0xff}, types.Addresses{Init: 0x11, ProgramPage: 0x21, EraseSector: 0x31}),
		descriptor.New("algo-b", []byte{1, 2, 3}, types.Addresses{Init: 0x41}),
	}
}

func TestRenderInspectStatic_Descriptor(t *testing.T) {
	out := RenderInspectStatic(testDescriptors())

	for _, want := range []string{"Flash Algorithm 1/2", "algo-a", "2 bytes", "0x11", "0x21", "/v8="} {
		if !strings.Contains(out, want) {
			t.Errorf("inspect view missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "algo-b") {
		t.Errorf("inspect view should show one algorithm at a time:\n%s", out)
	}
}

func TestRenderInspectStatic_WrongData(t *testing.T) {
	out := RenderInspectStatic("not descriptors")
	if !strings.Contains(out, "Invalid data type") {
		t.Errorf("expected invalid data message, got:\n%s", out)
	}
}

func TestInspectModel_Paging(t *testing.T) {
	var m tea.Model = NewInspectModel(testDescriptors())

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if got := m.(InspectModel).Index(); got != 1 {
		t.Fatalf("Index after right = %d, want 1", got)
	}
	if !strings.Contains(m.View(), "algo-b") {
		t.Errorf("second page should show algo-b:\n%s", m.View())
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRight})
	if got := m.(InspectModel).Index(); got != 1 {
		t.Errorf("Index past last page = %d, want 1", got)
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyLeft})
	if got := m.(InspectModel).Index(); got != 0 {
		t.Errorf("Index before first page = %d, want 0", got)
	}
}

func TestInspectModel_Quit(t *testing.T) {
	m := NewInspectModel(testDescriptors())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if next.View() != "" {
		t.Errorf("View after quit = %q, want empty", next.View())
	}
}

func TestRenderEventsStatic(t *testing.T) {
	summary := &events.Summary{
		Total:       5,
		Artifacts:   2,
		Executables: []string{"/work/target/release/algo"},
		Diagnostics: 2,
		ByLevel:     map[string]int64{"warning": 2},
		Other:       1,
	}
	out := RenderEventsStatic(summary)

	for _, want := range []string{"Build Events", "Artifacts", "Diagnostics", "warning:", "/work/target/release/algo"} {
		if !strings.Contains(out, want) {
			t.Errorf("events view missing %q:\n%s", want, out)
		}
	}
}

func TestRenderEventsStatic_WrongData(t *testing.T) {
	if out := RenderEventsStatic([]string{"x"}); !strings.Contains(out, "Invalid data type") {
		t.Errorf("expected invalid data message, got:\n%s", out)
	}
}

func TestLevelBars_ScaledToPeak(t *testing.T) {
	out := levelBars(map[string]int64{"warning": 40, "error": 1, "note": 20})
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), out)
	}

	wantBars := []struct {
		prefix string
		width  int
	}{
		{"error:", 1},
		{"note:", barWidth / 2},
		{"warning:", barWidth},
	}
	for i, w := range wantBars {
		if !strings.HasPrefix(lines[i], w.prefix) {
			t.Errorf("line %d = %q, want prefix %q", i, lines[i], w.prefix)
		}
		if got := strings.Count(lines[i], "█"); got != w.width {
			t.Errorf("%s bar width = %d, want %d", w.prefix, got, w.width)
		}
	}
}
