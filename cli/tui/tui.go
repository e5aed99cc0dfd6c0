package tui

import "fmt"

// View types with TUI support.
const (
	ViewInspectDescriptor = "inspect_descriptor"
	ViewStatsEvents       = "stats_events"
)

// views maps each supported view type to its program.
var views = map[string]func(data any) error{
	ViewInspectDescriptor: RunInspectTUI,
	ViewStatsEvents:       RunEventsTUI,
}

// Run starts the TUI for a view type.
func Run(viewType string, data any) error {
	run, ok := views[viewType]
	if !ok {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
	return run(data)
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	_, ok := views[viewType]
	return ok
}

// SupportedTUIViews returns the supported view types in display order.
func SupportedTUIViews() []string {
	return []string{ViewInspectDescriptor, ViewStatsEvents}
}
