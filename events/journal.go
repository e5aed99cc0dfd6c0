package events

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/pithecene-io/flashgen/types"
)

// Journal frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// Journal record type discriminants.
const (
	RecordTypeHeader = "header"
	RecordTypeEvent  = "event"
)

// FrameErrorKind classifies journal frame errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorSequence indicates a header that is missing or out of place.
	FrameErrorSequence
)

// FrameError represents a journal frame error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the journal cannot be read past this error.
// Decode errors affect a single frame; the length prefix still lets a
// reader skip to the next one.
func (e *FrameError) IsFatal() bool {
	return e.Kind != FrameErrorDecode
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// JournalHeader is the first record of every journal.
type JournalHeader struct {
	Version   string `msgpack:"version" json:"version" yaml:"version"`
	ExportID  string `msgpack:"export_id" json:"export_id" yaml:"export_id"`
	Algorithm string `msgpack:"algorithm,omitempty" json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
}

// journalRecord is the msgpack shape of one frame payload.
type journalRecord struct {
	Type   string            `msgpack:"type"`
	Header *JournalHeader    `msgpack:"header,omitempty"`
	Event  *types.BuildEvent `msgpack:"event,omitempty"`
}

// JournalWriter writes length-prefixed msgpack frames.
type JournalWriter struct {
	w io.Writer
}

// NewJournalWriter writes the header frame and returns a writer for events.
func NewJournalWriter(w io.Writer, meta types.ExportMeta) (*JournalWriter, error) {
	jw := &JournalWriter{w: w}
	header := &JournalHeader{
		Version:   types.JournalVersion,
		ExportID:  meta.ExportID,
		Algorithm: meta.Name,
	}
	if err := jw.writeRecord(&journalRecord{Type: RecordTypeHeader, Header: header}); err != nil {
		return nil, fmt.Errorf("failed to write journal header: %w", err)
	}
	return jw, nil
}

// WriteEvent appends an event frame.
func (jw *JournalWriter) WriteEvent(event *types.BuildEvent) error {
	return jw.writeRecord(&journalRecord{Type: RecordTypeEvent, Event: event})
}

func (jw *JournalWriter) writeRecord(rec *journalRecord) error {
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return err
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	frame := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame[:LengthPrefixSize], uint32(len(payload)))
	copy(frame[LengthPrefixSize:], payload)

	_, err = jw.w.Write(frame)
	return err
}

// JournalReader reads frames written by JournalWriter.
type JournalReader struct {
	reader io.Reader
	header *JournalHeader
}

// NewJournalReader reads and validates the header frame.
func NewJournalReader(r io.Reader) (*JournalReader, error) {
	jr := &JournalReader{reader: r}

	rec, err := jr.readRecord()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &FrameError{Kind: FrameErrorSequence, Msg: "empty journal"}
		}
		return nil, err
	}
	if rec.Type != RecordTypeHeader || rec.Header == nil {
		return nil, &FrameError{
			Kind: FrameErrorSequence,
			Msg:  fmt.Sprintf("journal must start with a header record, got %q", rec.Type),
		}
	}
	jr.header = rec.Header
	return jr, nil
}

// Header returns the journal header.
func (jr *JournalReader) Header() *JournalHeader {
	return jr.header
}

// Next returns the next recorded event.
//
// Errors:
//   - io.EOF: journal ended cleanly
//   - *FrameError: see FrameErrorKind
func (jr *JournalReader) Next() (*types.BuildEvent, error) {
	rec, err := jr.readRecord()
	if err != nil {
		return nil, err
	}
	switch {
	case rec.Type == RecordTypeEvent && rec.Event != nil:
		return rec.Event, nil
	case rec.Type == RecordTypeHeader:
		return nil, &FrameError{Kind: FrameErrorSequence, Msg: "unexpected second header record"}
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown journal record type %q", rec.Type),
		}
	}
}

// ReadAll returns every remaining event, stopping at the first fatal error.
// Non-fatal decode errors skip the affected frame.
func (jr *JournalReader) ReadAll() ([]*types.BuildEvent, error) {
	var out []*types.BuildEvent
	for {
		event, err := jr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			if IsFatalFrameError(err) {
				return out, err
			}
			continue
		}
		out = append(out, event)
	}
}

// readRecord reads and decodes a single frame.
func (jr *JournalReader) readRecord() (*journalRecord, error) {
	var lengthBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(jr.reader, lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	if _, err := io.ReadFull(jr.reader, payload); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	var rec journalRecord
	if err := msgpack.Unmarshal(payload, &rec); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode journal record",
			Err:  err,
		}
	}
	return &rec, nil
}
