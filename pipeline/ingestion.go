package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pithecene-io/flashgen/events"
	"github.com/pithecene-io/flashgen/log"
	"github.com/pithecene-io/flashgen/metrics"
	"github.com/pithecene-io/flashgen/types"
)

// Ingestion consumes the build event stream.
//   - Events are decoded in arrival order
//   - Rendered diagnostics are written to the sink as they arrive
//   - The first artifact with an executable becomes the candidate; a
//     second one fails the stream immediately
//   - Every other event is counted and ignored
type Ingestion struct {
	decoder   *events.Decoder
	sink      io.Writer
	journal   *events.JournalWriter
	logger    *log.Logger
	collector *metrics.Collector

	artifact    string
	eventCount  int64
	diagnostics int64
}

// NewIngestion creates an ingestion loop over r. The journal is optional.
func NewIngestion(
	r io.Reader,
	sink io.Writer,
	journal *events.JournalWriter,
	logger *log.Logger,
	collector *metrics.Collector,
) *Ingestion {
	if sink == nil {
		sink = io.Discard
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Ingestion{
		decoder:   events.NewDecoder(r),
		sink:      sink,
		journal:   journal,
		logger:    logger,
		collector: collector,
	}
}

// Run reads the stream until EOF or the first fatal error.
// Returns:
//   - nil: stream ended cleanly; see Artifact
//   - *ExportError with ErrorMultipleArtifacts: second executable artifact
//   - *ExportError with ErrorExternalTool: the stream could not be read
//   - *ExportError with ErrorIO: the sink or journal could not be written
//   - context error: ctx was canceled
func (e *Ingestion) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("build event ingestion canceled: %w", err)
		}

		event, err := e.decoder.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			e.logger.Error("build event stream error", map[string]any{
				"error": err.Error(),
				"line":  e.decoder.Line(),
			})
			return newError(ErrorExternalTool, types.StateParsingEvents, err)
		}

		if err := e.process(event); err != nil {
			return err
		}
	}
}

func (e *Ingestion) process(event *types.BuildEvent) error {
	e.eventCount++
	e.collector.IncEventDecoded(string(event.Kind))

	if e.journal != nil {
		if err := e.journal.WriteEvent(event); err != nil {
			return newError(ErrorIO, types.StateParsingEvents, fmt.Errorf("failed to record event %d: %w", event.Seq, err))
		}
	}

	switch event.Kind {
	case types.EventArtifactProduced:
		path, ok := event.ExecutablePath()
		if !ok {
			return nil
		}
		e.collector.IncArtifactSeen()
		if e.artifact != "" {
			e.logger.Error("multiple executable artifacts", map[string]any{
				"first":  e.artifact,
				"second": path,
			})
			return newError(ErrorMultipleArtifacts, types.StateParsingEvents,
				fmt.Errorf("build produced %s after %s; expected a single executable", path, e.artifact))
		}
		e.artifact = path
		e.logger.Debug("artifact located", map[string]any{
			"artifact": path,
			"target":   event.Target,
			"seq":      event.Seq,
		})

	case types.EventCompilerDiagnostic:
		rendered, ok := event.RenderedText()
		if !ok {
			return nil
		}
		if _, err := io.WriteString(e.sink, rendered); err != nil {
			return newError(ErrorIO, types.StateParsingEvents, fmt.Errorf("failed to relay diagnostic: %w", err))
		}
		e.diagnostics++
		e.collector.IncDiagnosticRelayed()
	}
	return nil
}

// Artifact returns the located artifact.
// Returns an *ExportError with ErrorNoArtifact if none was seen.
func (e *Ingestion) Artifact() (string, error) {
	if e.artifact == "" {
		return "", newError(ErrorNoArtifact, types.StateParsingEvents,
			errors.New("build produced no executable artifact"))
	}
	return e.artifact, nil
}

// EventCount returns the number of decoded events.
func (e *Ingestion) EventCount() int64 {
	return e.eventCount
}

// DiagnosticCount returns the number of relayed diagnostics.
func (e *Ingestion) DiagnosticCount() int64 {
	return e.diagnostics
}
