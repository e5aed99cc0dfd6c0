package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flashgen/cli/render"
	"github.com/pithecene-io/flashgen/types"
)

// VersionResponse is the response for the version command.
// The CLI and the event journal format share a single version.
type VersionResponse struct {
	Version        string `json:"version"`
	JournalVersion string `json:"journal_version"`
	Commit         string `json:"commit"`
}

// VersionCommand returns the version command.
// It never builds or runs any tool.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", exitUnexpected)
		}

		return r.Render(VersionResponse{
			Version:        types.Version,
			JournalVersion: types.JournalVersion,
			Commit:         commit,
		})
	}
}
