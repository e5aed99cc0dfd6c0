// Package types defines core domain types for flashgen.
//
//nolint:revive // types is a common Go package naming convention
package types

// EventKind classifies a decoded build event.
type EventKind string

// Event kinds recognised by the export pipeline.
const (
	// EventArtifactProduced is a compiler-artifact message.
	// It only nominates an artifact when Executable is set.
	EventArtifactProduced EventKind = "artifact_produced"
	// EventCompilerDiagnostic is a compiler-message with rendered text.
	EventCompilerDiagnostic EventKind = "compiler_diagnostic"
	// EventOther is any other message, including non-JSON text lines.
	EventOther EventKind = "other"
)

// BuildEvent is one decoded entry of the build tool's structured stream.
// Field tags cover both the msgpack journal and the json/yaml renderers.
type BuildEvent struct {
	// Seq is the 1-based position of the event in its stream.
	Seq int64 `msgpack:"seq" json:"seq" yaml:"seq"`
	// Kind is the event discriminator.
	Kind EventKind `msgpack:"kind" json:"kind" yaml:"kind"`
	// Reason is the raw "reason" field reported by the build tool.
	// Empty for text lines.
	Reason string `msgpack:"reason" json:"reason" yaml:"reason"`
	// PackageID identifies the package the event belongs to, when known.
	PackageID string `msgpack:"package_id,omitempty" json:"package_id,omitempty" yaml:"package_id,omitempty"`
	// Target is the name of the build target, when known.
	Target string `msgpack:"target,omitempty" json:"target,omitempty" yaml:"target,omitempty"`
	// Executable is the path of the produced executable.
	// Nil for library artifacts and for every non-artifact event.
	Executable *string `msgpack:"executable,omitempty" json:"executable,omitempty" yaml:"executable,omitempty"`
	// Level is the diagnostic level ("warning", "error", ...).
	Level string `msgpack:"level,omitempty" json:"level,omitempty" yaml:"level,omitempty"`
	// Rendered is the human-readable diagnostic text.
	Rendered *string `msgpack:"rendered,omitempty" json:"rendered,omitempty" yaml:"rendered,omitempty"`
	// Text is the raw line for events that were not structured.
	Text string `msgpack:"text,omitempty" json:"text,omitempty" yaml:"text,omitempty"`
}

// ExecutablePath returns the executable path and whether it is non-empty.
func (e *BuildEvent) ExecutablePath() (string, bool) {
	if e.Kind != EventArtifactProduced || e.Executable == nil || *e.Executable == "" {
		return "", false
	}
	return *e.Executable, true
}

// RenderedText returns the rendered diagnostic and whether one is present.
func (e *BuildEvent) RenderedText() (string, bool) {
	if e.Kind != EventCompilerDiagnostic || e.Rendered == nil {
		return "", false
	}
	return *e.Rendered, true
}
