package publish

import (
	"context"
	"sync"

	"github.com/pithecene-io/flashgen/log"
	"github.com/pithecene-io/flashgen/metrics"
)

// InstrumentedPublisher wraps a Publisher and records every upload in the
// metrics collector and the log.
type InstrumentedPublisher struct {
	inner     Publisher
	collector *metrics.Collector
	logger    *log.Logger
}

// NewInstrumentedPublisher wraps a publisher with metrics and logging.
func NewInstrumentedPublisher(inner Publisher, collector *metrics.Collector, logger *log.Logger) *InstrumentedPublisher {
	if logger == nil {
		logger = log.Nop()
	}
	return &InstrumentedPublisher{inner: inner, collector: collector, logger: logger}
}

// PutFile delegates to the inner publisher and records the outcome.
func (p *InstrumentedPublisher) PutFile(ctx context.Context, filename, contentType string, data []byte) error {
	if err := p.inner.PutFile(ctx, filename, contentType, data); err != nil {
		p.collector.IncPublishFailure()
		p.logger.Error("publish failed", map[string]any{
			"file":  filename,
			"error": err.Error(),
		})
		return err
	}
	p.collector.IncPublishSuccess()
	p.logger.Debug("published", map[string]any{
		"file":  filename,
		"bytes": len(data),
	})
	return nil
}

// StubPublisher records PutFile calls for testing.
type StubPublisher struct {
	mu    sync.Mutex
	Files []StubFile
	// Err, when set, is returned by every PutFile call.
	Err error
}

// StubFile is a recorded upload.
type StubFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// PutFile implements Publisher by recording the call.
func (s *StubPublisher) PutFile(_ context.Context, filename, contentType string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Files = append(s.Files, StubFile{Filename: filename, ContentType: contentType, Data: data})
	return nil
}

// Verify implementations.
var (
	_ Publisher = (*InstrumentedPublisher)(nil)
	_ Publisher = (*StubPublisher)(nil)
)
