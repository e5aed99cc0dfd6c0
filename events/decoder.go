// Package events decodes the build tool's structured message stream and
// records decoded events into a framed journal.
//
// The stream is line oriented: one JSON object per line, discriminated by
// its "reason" field. Lines that are not JSON objects are kept as
// text-line events instead of being rejected, because build scripts may
// print arbitrary text to the same channel.
package events

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"github.com/pithecene-io/flashgen/types"
)

// Message reasons emitted by cargo with --message-format=json*.
const (
	ReasonCompilerArtifact = "compiler-artifact"
	ReasonCompilerMessage  = "compiler-message"
	ReasonBuildFinished    = "build-finished"
	ReasonTextLine         = ""
)

// MaxLineSize is the longest accepted stream line (16 MiB).
// Rendered diagnostics with ANSI colour codes can be long, but never this long.
const MaxLineSize = 16 * 1024 * 1024

// StreamErrorKind classifies stream decoding errors.
type StreamErrorKind int

const (
	// StreamErrorRead indicates the underlying reader failed.
	StreamErrorRead StreamErrorKind = iota
	// StreamErrorLineTooLong indicates a line exceeding MaxLineSize.
	StreamErrorLineTooLong
)

// StreamError represents a build event stream error.
// Both kinds are fatal: the stream cannot be resynchronised.
type StreamError struct {
	Kind StreamErrorKind
	Line int64
	Err  error
}

func (e *StreamError) Error() string {
	switch e.Kind {
	case StreamErrorLineTooLong:
		return fmt.Sprintf("build event stream line %d exceeds %d bytes", e.Line, MaxLineSize)
	default:
		return fmt.Sprintf("build event stream read failed after line %d: %v", e.Line, e.Err)
	}
}

func (e *StreamError) Unwrap() error {
	return e.Err
}

// IsStreamError returns true if err is a *StreamError.
func IsStreamError(err error) bool {
	var streamErr *StreamError
	return errors.As(err, &streamErr)
}

// cargoMessage is the subset of a cargo JSON message the pipeline reads.
type cargoMessage struct {
	Reason     string  `json:"reason"`
	PackageID  string  `json:"package_id"`
	Executable *string `json:"executable"`
	Target     *struct {
		Name string `json:"name"`
	} `json:"target"`
	Message *struct {
		Rendered *string `json:"rendered"`
		Level    string  `json:"level"`
	} `json:"message"`
}

// Decoder decodes build events from a line-oriented stream.
type Decoder struct {
	scanner *bufio.Scanner
	line    int64
	seq     int64
}

// NewDecoder creates a new decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)
	return &Decoder{scanner: scanner}
}

// Next returns the next build event.
// Blank lines are skipped and do not consume a sequence number.
//
// Errors:
//   - io.EOF: stream ended cleanly
//   - *StreamError: the stream could not be read (fatal)
func (d *Decoder) Next() (*types.BuildEvent, error) {
	for d.scanner.Scan() {
		d.line++
		line := bytes.TrimSpace(d.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		d.seq++
		event := DecodeLine(line)
		event.Seq = d.seq
		return event, nil
	}

	if err := d.scanner.Err(); err != nil {
		kind := StreamErrorRead
		if errors.Is(err, bufio.ErrTooLong) {
			kind = StreamErrorLineTooLong
		}
		return nil, &StreamError{Kind: kind, Line: d.line, Err: err}
	}
	return nil, io.EOF
}

// Line returns the number of lines consumed so far.
func (d *Decoder) Line() int64 {
	return d.line
}

// DecodeLine classifies a single stream line. It never fails: a line that
// is not a JSON object becomes an EventOther text-line event.
// The returned event has Seq unset.
func DecodeLine(line []byte) *types.BuildEvent {
	if len(line) == 0 || line[0] != '{' {
		return textLine(line)
	}

	var msg cargoMessage
	if err := json.Unmarshal(line, &msg); err != nil {
		return textLine(line)
	}

	event := &types.BuildEvent{
		Reason:    msg.Reason,
		PackageID: msg.PackageID,
	}
	if msg.Target != nil {
		event.Target = msg.Target.Name
	}

	switch msg.Reason {
	case ReasonCompilerArtifact:
		event.Kind = types.EventArtifactProduced
		event.Executable = msg.Executable
	case ReasonCompilerMessage:
		event.Kind = types.EventCompilerDiagnostic
		if msg.Message != nil {
			event.Rendered = msg.Message.Rendered
			event.Level = msg.Message.Level
		}
	default:
		event.Kind = types.EventOther
	}

	return event
}

func textLine(line []byte) *types.BuildEvent {
	return &types.BuildEvent{
		Kind:   types.EventOther,
		Reason: ReasonTextLine,
		Text:   string(line),
	}
}
