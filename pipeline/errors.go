// Package pipeline runs the build-and-export pipeline: build, locate the
// single artifact, resolve entry points, extract the flat image, emit
// debug listings and write the descriptor.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/flashgen/types"
)

// ErrorKind classifies export failures.
type ErrorKind int

const (
	// ErrorMultipleArtifacts indicates more than one executable artifact.
	ErrorMultipleArtifacts ErrorKind = iota
	// ErrorNoArtifact indicates the build produced no executable artifact.
	ErrorNoArtifact
	// ErrorSymbolParse indicates a malformed symbol listing.
	ErrorSymbolParse
	// ErrorIncompleteSymbolTable indicates missing entry points in strict mode.
	ErrorIncompleteSymbolTable
	// ErrorExternalTool indicates an external program failed to run, exited
	// non-zero or produced undecodable output.
	ErrorExternalTool
	// ErrorIO indicates an output file could not be written or build
	// diagnostics could not be relayed.
	ErrorIO
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorMultipleArtifacts:
		return "multiple artifacts"
	case ErrorNoArtifact:
		return "no artifact"
	case ErrorSymbolParse:
		return "symbol parse error"
	case ErrorIncompleteSymbolTable:
		return "incomplete symbol table"
	case ErrorExternalTool:
		return "external tool failure"
	case ErrorIO:
		return "io failure"
	default:
		return fmt.Sprintf("error kind %d", int(k))
	}
}

// ExportError is the error returned for every failed export stage.
type ExportError struct {
	// Kind classifies the failure.
	Kind ErrorKind
	// State is the stage that failed.
	State types.ExportState
	// Err is the underlying error.
	Err error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.State, e.Kind, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, state types.ExportState, err error) *ExportError {
	return &ExportError{Kind: kind, State: state, Err: err}
}

// KindOf returns the kind of an export error.
func KindOf(err error) (ErrorKind, bool) {
	var exportErr *ExportError
	if errors.As(err, &exportErr) {
		return exportErr.Kind, true
	}
	return 0, false
}

// IsKind returns true if err is an export error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
