package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flashgen/cli/render"
	"github.com/pithecene-io/flashgen/cli/tui"
	"github.com/pithecene-io/flashgen/events"
	"github.com/pithecene-io/flashgen/iox"
	"github.com/pithecene-io/flashgen/types"
)

// EventsCommand returns the events command.
// It decodes a journal written by export --record-events.
func EventsCommand() *cli.Command {
	return &cli.Command{
		Name:      "events",
		Usage:     "Show build events recorded by export --record-events",
		ArgsUsage: "<journal>",
		Flags: append(ReadOnlyFlags(),
			&cli.BoolFlag{
				Name:  "summary",
				Usage: "Show counts instead of individual events",
			},
			&cli.StringFlag{
				Name:  "kind",
				Usage: "Only show events of this kind: artifact_produced, compiler_diagnostic, other",
			},
		),
		Action: eventsAction,
	}
}

func eventsAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("journal path required", exitUnexpected)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	evs, err := readJournal(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), exitIOFailure)
	}
	evs, err = filterEvents(evs, c.String("kind"))
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsEvents, events.Summarize(evs))
	}
	if c.Bool("summary") {
		return r.Render(events.Summarize(evs))
	}
	return r.Render(evs)
}

// readJournal reads every event of a journal file. Frames that fail to
// decode are skipped; a truncated journal is an error.
func readJournal(path string) ([]*types.BuildEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer iox.DiscardClose(f)

	jr, err := events.NewJournalReader(f)
	if err != nil {
		return nil, fmt.Errorf("invalid journal %s: %w", path, err)
	}
	evs, err := jr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid journal %s: %w", path, err)
	}
	return evs, nil
}

func filterEvents(evs []*types.BuildEvent, kind string) ([]*types.BuildEvent, error) {
	if kind == "" {
		return evs, nil
	}
	switch types.EventKind(kind) {
	case types.EventArtifactProduced, types.EventCompilerDiagnostic, types.EventOther:
	default:
		return nil, fmt.Errorf("invalid --kind %q (must be artifact_produced, compiler_diagnostic or other)", kind)
	}
	out := make([]*types.BuildEvent, 0, len(evs))
	for _, e := range evs {
		if e.Kind == types.EventKind(kind) {
			out = append(out, e)
		}
	}
	return out, nil
}
