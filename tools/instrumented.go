package tools

import (
	"context"

	"github.com/pithecene-io/flashgen/log"
	"github.com/pithecene-io/flashgen/metrics"
)

// InstrumentedRunner wraps a Runner and records every invocation in the
// metrics collector and the debug log.
type InstrumentedRunner struct {
	inner     Runner
	collector *metrics.Collector
	logger    *log.Logger
}

// NewInstrumentedRunner wraps a runner with metrics and logging.
func NewInstrumentedRunner(inner Runner, collector *metrics.Collector, logger *log.Logger) *InstrumentedRunner {
	if logger == nil {
		logger = log.Nop()
	}
	return &InstrumentedRunner{inner: inner, collector: collector, logger: logger}
}

// Run delegates to the inner runner and records the outcome.
func (r *InstrumentedRunner) Run(ctx context.Context, inv Invocation) (int, error) {
	r.collector.IncToolInvocation()
	logger := r.logger.With(map[string]any{"tool": inv.Name})
	logger.Debug("invoking tool", map[string]any{
		"command": inv.String(),
	})

	code, err := r.inner.Run(ctx, inv)
	if err != nil || code != 0 {
		r.collector.IncToolFailure()
		fields := map[string]any{
			"command":   inv.String(),
			"exit_code": code,
		}
		if err != nil {
			fields["error"] = err.Error()
		}
		logger.Debug("tool failed", fields)
	}
	return code, err
}

// Verify InstrumentedRunner implements Runner.
var _ Runner = (*InstrumentedRunner)(nil)
