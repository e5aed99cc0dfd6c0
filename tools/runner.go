// Package tools runs external toolchain programs (nm, objdump, objcopy and
// the build tool itself) as scoped, blocking invocations.
//
// Every invocation owns its process and pipes for the duration of Run and
// releases them before Run returns, on success and on failure.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"syscall"
)

// Invocation describes one external program run.
type Invocation struct {
	// Name is the program name or path.
	Name string
	// Args are the program arguments.
	Args []string
	// Dir is the working directory. Empty uses the current directory.
	Dir string
	// Env is appended to the inherited environment.
	Env []string
	// Stdout receives standard output. Nil discards it.
	Stdout io.Writer
	// Stderr receives standard error. Nil discards it.
	Stderr io.Writer
}

// String renders the invocation as a shell-like command line for logs.
func (inv Invocation) String() string {
	return strings.Join(append([]string{inv.Name}, inv.Args...), " ")
}

// Runner runs an invocation to completion and reports its exit code.
// A non-zero exit code is not an error; failing to start or wait is.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (exitCode int, err error)
}

// ExecRunner runs invocations as operating system processes.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run starts the program, waits for it to exit and returns its exit code.
// Output is copied to the invocation writers until the process exits.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (int, error) {
	cmd := exec.CommandContext(ctx, inv.Name, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = append(cmd.Environ(), inv.Env...)
	}
	cmd.Stdout = inv.Stdout
	cmd.Stderr = inv.Stderr

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", inv.Name, err)
	}

	// Wait releases the pipes os/exec created for Stdout/Stderr.
	return ExitCode(cmd.Wait())
}

// ExitCode maps an exec wait error to a process exit code.
// Errors other than *exec.ExitError are returned unchanged.
func ExitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus(), nil
		}
		return -1, nil
	}
	return -1, fmt.Errorf("wait failed: %w", err)
}

// Output runs inv and returns its standard output.
// A non-zero exit code is returned as a *ToolError carrying the captured
// standard error.
func Output(ctx context.Context, runner Runner, inv Invocation) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	inv.Stdout = &stdout
	inv.Stderr = &stderr

	code, err := runner.Run(ctx, inv)
	if err != nil {
		return nil, &ToolError{Command: inv.String(), ExitCode: -1, Err: err}
	}
	if code != 0 {
		return nil, &ToolError{Command: inv.String(), ExitCode: code, Stderr: stderr.String()}
	}
	return stdout.Bytes(), nil
}

// ToolError reports an external program that could not run or failed.
type ToolError struct {
	// Command is the rendered command line.
	Command string
	// ExitCode is the process exit code, or -1 if it never ran.
	ExitCode int
	// Stderr is the captured standard error, if any.
	Stderr string
	// Err is the start/wait error, if any.
	Err error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	msg := fmt.Sprintf("%s: exit status %d", e.Command, e.ExitCode)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

func (e *ToolError) Unwrap() error {
	return e.Err
}
