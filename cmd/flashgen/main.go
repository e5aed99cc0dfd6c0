// Package main provides the flashgen CLI entrypoint.
//
// Usage:
//
//	flashgen <command> [options]
//
// Exit codes for `export`:
//   - 0: success
//   - 1: unexpected error (bad flags, config)
//   - 2: build outcome (no artifact, multiple artifacts)
//   - 3: symbol error (malformed listing, missing entry point in strict mode)
//   - 4: external tool failure
//   - 5: I/O failure
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flashgen/cli/cmd"
	"github.com/pithecene-io/flashgen/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func newApp() *cli.App {
	return &cli.App{
		Name:           "flashgen",
		Usage:          "Build a flash algorithm and export its probe descriptor",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.ExportCommand(),
			cmd.InspectCommand(),
			cmd.EventsCommand(),
			cmd.VersionCommand(commit),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// ExitErrHandler already handled the exit for cli.ExitCoder errors.
		// This branch handles unexpected errors that weren't wrapped.
		os.Exit(1)
	}
}

// exitErrHandler prints the error and exits with the code carried by
// cli.Exit, or 1 for any other error.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	code := reportError(os.Stderr, err)
	os.Exit(code)
}

// reportError writes err to w and returns the process exit code.
// cli.Exit("", N) carries no message and prints nothing.
func reportError(w io.Writer, err error) int {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg != "" && msg != fmt.Sprintf("exit status %d", code) {
			fmt.Fprintln(w, msg)
		}
		return code
	}

	fmt.Fprintf(w, "Error: %v\n", err)
	return 1
}
