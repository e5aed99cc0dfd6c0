package types //nolint:revive // types is a valid package name

import "testing"

func strPtr(s string) *string { return &s }

func TestBuildEvent_ExecutablePath(t *testing.T) {
	tests := []struct {
		name   string
		event  BuildEvent
		want   string
		wantOK bool
	}{
		{
			name:   "artifact with executable",
			event:  BuildEvent{Kind: EventArtifactProduced, Executable: strPtr("target/thumbv7em-none-eabi/release/algo")},
			want:   "target/thumbv7em-none-eabi/release/algo",
			wantOK: true,
		},
		{
			name:  "artifact without executable",
			event: BuildEvent{Kind: EventArtifactProduced},
		},
		{
			name:  "artifact with empty executable",
			event: BuildEvent{Kind: EventArtifactProduced, Executable: strPtr("")},
		},
		{
			name:  "diagnostic never nominates",
			event: BuildEvent{Kind: EventCompilerDiagnostic, Executable: strPtr("x")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.event.ExecutablePath()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExecutablePath() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestBuildEvent_RenderedText(t *testing.T) {
	e := BuildEvent{Kind: EventCompilerDiagnostic, Rendered: strPtr("warning: unused\n")}
	if got, ok := e.RenderedText(); !ok || got != "warning: unused\n" {
		t.Errorf("RenderedText() = (%q, %v)", got, ok)
	}

	other := BuildEvent{Kind: EventOther, Rendered: strPtr("ignored")}
	if _, ok := other.RenderedText(); ok {
		t.Error("RenderedText() should be false for non-diagnostic events")
	}
}

func TestAddresses_SetGet(t *testing.T) {
	var a Addresses
	for i, name := range EntryPointSymbols {
		if !a.Set(name, uint64(i+1)) {
			t.Fatalf("Set(%q) = false", name)
		}
	}
	for i, name := range EntryPointSymbols {
		got, ok := a.Get(name)
		if !ok || got != uint64(i+1) {
			t.Errorf("Get(%q) = (%d, %v), want (%d, true)", name, got, ok, i+1)
		}
	}
	if a.Set("main", 1) {
		t.Error("Set(main) should be rejected")
	}
}

func TestExportState_IsTerminal(t *testing.T) {
	tests := []struct {
		state ExportState
		want  bool
	}{
		{StateInvoking, false},
		{StateParsingEvents, false},
		{StateResolving, false},
		{StateExtracting, false},
		{StateEmittingDebugInfo, false},
		{StateEmitting, false},
		{StateDone, true},
		{StateFailed, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsTerminal(); got != tt.want {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}
