// Package cmd provides CLI commands for the flashgen binary.
package cmd

import (
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flashgen/log"
	"github.com/pithecene-io/flashgen/types"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, events).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, events only)",
	}
)

// Logging flags shared by commands that run the pipeline.
var (
	// LogLevelFlag selects the minimum log level.
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "Log level: debug, info, warn, error",
		Value: "info",
	}

	// QuietLogFlag discards structured logs.
	QuietLogFlag = &cli.BoolFlag{
		Name:  "quiet-log",
		Usage: "Discard structured logs (diagnostics are still relayed)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// LoggingFlags returns the structured logging flags.
func LoggingFlags() []cli.Flag {
	return []cli.Flag{
		LogLevelFlag,
		QuietLogFlag,
	}
}

// errWriter returns the app's error writer, defaulting to os.Stderr.
func errWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// newLogger builds the export logger from --log-level and --quiet-log.
func newLogger(c *cli.Context, meta types.ExportMeta) (*log.Logger, error) {
	level, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return nil, err
	}
	if c.Bool("quiet-log") {
		return log.NewLoggerWithWriter(meta, level, io.Discard), nil
	}
	return log.NewLoggerWithWriter(meta, level, errWriter(c)), nil
}
