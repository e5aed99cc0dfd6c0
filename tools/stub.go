package tools

import (
	"context"
	"io"
	"sync"
)

// StubResponse is the canned outcome of a stubbed invocation.
type StubResponse struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

// StubHandler computes a response for an invocation. Handlers may create
// files named in the invocation arguments (objcopy output, for example).
type StubHandler func(inv Invocation) StubResponse

// StubRunner records invocations and answers them from per-program
// handlers. Programs without a handler exit 0 with no output.
type StubRunner struct {
	mu       sync.Mutex
	handlers map[string]StubHandler
	Calls    []Invocation
}

// NewStubRunner creates an empty stub runner.
func NewStubRunner() *StubRunner {
	return &StubRunner{handlers: make(map[string]StubHandler)}
}

// Handle registers the handler for program name.
func (s *StubRunner) Handle(name string, h StubHandler) *StubRunner {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
	return s
}

// Respond registers a fixed response for program name.
func (s *StubRunner) Respond(name string, resp StubResponse) *StubRunner {
	return s.Handle(name, func(Invocation) StubResponse { return resp })
}

// Run implements Runner.
func (s *StubRunner) Run(_ context.Context, inv Invocation) (int, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, inv)
	h := s.handlers[inv.Name]
	s.mu.Unlock()

	var resp StubResponse
	if h != nil {
		resp = h(inv)
	}
	if resp.Err != nil {
		return -1, resp.Err
	}
	if inv.Stdout != nil && resp.Stdout != "" {
		_, _ = io.WriteString(inv.Stdout, resp.Stdout)
	}
	if inv.Stderr != nil && resp.Stderr != "" {
		_, _ = io.WriteString(inv.Stderr, resp.Stderr)
	}
	return resp.ExitCode, nil
}

// Commands returns the rendered command lines of all recorded calls.
func (s *StubRunner) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Calls))
	for i, c := range s.Calls {
		out[i] = c.String()
	}
	return out
}

// Verify StubRunner implements Runner.
var _ Runner = (*StubRunner)(nil)
