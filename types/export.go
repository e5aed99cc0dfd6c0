//nolint:revive // types is a common Go package naming convention
package types

// ExportState is a stage of the export state machine.
type ExportState string

// Export states, in pipeline order.
const (
	StateInvoking          ExportState = "invoking"
	StateParsingEvents     ExportState = "parsing_events"
	StateResolving         ExportState = "resolving"
	StateExtracting        ExportState = "extracting"
	StateEmittingDebugInfo ExportState = "emitting_debug_info"
	StateEmitting          ExportState = "emitting"
	StateDone              ExportState = "done"
	StateFailed            ExportState = "failed"
)

// IsTerminal returns true if no further transitions are possible.
func (s ExportState) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// ExportMeta identifies a single export invocation.
type ExportMeta struct {
	// ExportID is unique per invocation.
	ExportID string
	// Name is the flash algorithm name written into the descriptor.
	Name string
}
