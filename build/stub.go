package build

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// StubProcess is an in-memory Process for tests.
// Start writes Diagnostics to the sink and serves Events as stdout.
// A sink write failure is reported by Wait, as Manager does.
type StubProcess struct {
	Events      string
	Diagnostics string
	ExitCode    int
	StartErr    error
	WaitErr     error

	mu      sync.Mutex
	started bool
	killed   bool
	waited   bool
	relayErr error
}

// Start implements Process.
func (s *StubProcess) Start(_ context.Context, diag io.Writer) error {
	if s.StartErr != nil {
		return s.StartErr
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
	if diag != nil && s.Diagnostics != "" {
		if _, err := io.WriteString(diag, s.Diagnostics); err != nil {
			s.mu.Lock()
			s.relayErr = err
			s.mu.Unlock()
		}
	}
	return nil
}

// Stdout implements Process.
func (s *StubProcess) Stdout() io.Reader {
	return strings.NewReader(s.Events)
}

// Wait implements Process.
func (s *StubProcess) Wait() (*Result, error) {
	s.mu.Lock()
	s.waited = true
	relayErr := s.relayErr
	s.mu.Unlock()
	if relayErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiagnosticRelay, relayErr)
	}
	if s.WaitErr != nil {
		return nil, s.WaitErr
	}
	return &Result{ExitCode: s.ExitCode, DiagnosticBytes: int64(len(s.Diagnostics))}, nil
}

// Kill implements Process.
func (s *StubProcess) Kill() error {
	s.mu.Lock()
	s.killed = true
	s.mu.Unlock()
	return nil
}

// Killed reports whether Kill was called.
func (s *StubProcess) Killed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.killed
}

// Waited reports whether Wait was called.
func (s *StubProcess) Waited() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waited
}

// Factory returns a Factory that always yields s.
func (s *StubProcess) Factory() Factory {
	return func(*Config) Process { return s }
}

// Verify StubProcess implements Process.
var _ Process = (*StubProcess)(nil)
