// Package build starts the firmware build and exposes its two output
// channels: structured build events on stdout and diagnostic text on stderr.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/pithecene-io/flashgen/tools"
)

// DefaultCommand builds the release profile and requests cargo's JSON
// message stream with pre-rendered diagnostics.
var DefaultCommand = []string{
	"cargo", "build", "--release", "--message-format=json-diagnostic-rendered-ansi",
}

// Config configures a build invocation.
type Config struct {
	// Command is the build program and its arguments.
	// Empty uses DefaultCommand.
	Command []string
	// Dir is the crate directory. Empty uses the current directory.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
}

// Argv returns the effective command line.
func (c *Config) Argv() []string {
	if len(c.Command) == 0 {
		return DefaultCommand
	}
	return c.Command
}

// ErrDiagnosticRelay reports that build diagnostics could not be written
// to the diagnostic sink.
var ErrDiagnosticRelay = errors.New("diagnostic relay failed")

// Result represents the outcome of a finished build process.
type Result struct {
	// ExitCode is the process exit code.
	// A non-zero code is reported, never treated as an error here.
	ExitCode int
	// DiagnosticBytes is the number of stderr bytes relayed to the sink.
	DiagnosticBytes int64
}

// Process abstracts the build process lifecycle for testing.
type Process interface {
	// Start launches the build. Stderr is relayed to diag as it arrives.
	Start(ctx context.Context, diag io.Writer) error
	// Stdout returns the structured event stream.
	Stdout() io.Reader
	// Wait reaps the process. The event stream must be drained first.
	Wait() (*Result, error)
	// Kill terminates the process.
	Kill() error
}

// Factory creates a Process. Used for test injection.
type Factory func(config *Config) Process

// Manager manages one build process.
type Manager struct {
	config    *Config
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    io.ReadCloser
	killed    bool
	relayDone chan struct{}
	relayed   int64
	relayErr  error
}

// NewManager creates a build manager. It satisfies Factory.
func NewManager(config *Config) Process {
	return &Manager{config: config}
}

// Start starts the build process.
// The stderr relay runs until the process closes its stderr.
func (m *Manager) Start(ctx context.Context, diag io.Writer) error {
	argv := m.config.Argv()
	m.cmd = exec.CommandContext(ctx, argv[0], argv[1:]...)
	m.cmd.Dir = m.config.Dir
	if len(m.config.Env) > 0 {
		m.cmd.Env = append(m.cmd.Environ(), m.config.Env...)
	}

	stdout, err := m.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	m.stdout = stdout

	stderr, err := m.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	m.stderr = stderr

	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start build %q: %w", argv[0], err)
	}

	if diag == nil {
		diag = io.Discard
	}
	m.relayDone = make(chan struct{})
	go func() {
		defer close(m.relayDone)
		m.relayed, m.relayErr = io.Copy(diag, stderr)
		if m.relayErr != nil {
			// The build blocks on a full stderr pipe unless it is drained.
			_, _ = io.Copy(io.Discard, stderr)
		}
	}()

	return nil
}

// Stdout returns the stdout reader for build event decoding.
func (m *Manager) Stdout() io.Reader {
	return m.stdout
}

// Wait waits for the build to exit and returns the result.
// Must be called after Start, once Stdout has been drained or abandoned.
func (m *Manager) Wait() (*Result, error) {
	if m.cmd == nil || m.relayDone == nil {
		return nil, errors.New("build not started")
	}

	// cmd.Wait closes the stderr pipe; the relay must see EOF first.
	<-m.relayDone

	code, err := tools.ExitCode(m.cmd.Wait())
	if err != nil {
		return nil, fmt.Errorf("build wait failed: %w", err)
	}
	if m.relayErr != nil && !m.killed {
		return nil, fmt.Errorf("%w: %w", ErrDiagnosticRelay, m.relayErr)
	}

	return &Result{ExitCode: code, DiagnosticBytes: m.relayed}, nil
}

// Kill terminates the build process.
// The stderr pipe is closed as well: compiler subprocesses may outlive the
// build driver and would otherwise hold the relay open.
func (m *Manager) Kill() error {
	if m.cmd == nil || m.cmd.Process == nil {
		return nil
	}
	m.killed = true
	err := m.cmd.Process.Kill()
	if m.stderr != nil {
		_ = m.stderr.Close()
	}
	return err
}

// Verify Manager implements Process.
var _ Process = (*Manager)(nil)
