package cmd

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/flashgen/cli/render"
	"github.com/pithecene-io/flashgen/cli/tui"
	"github.com/pithecene-io/flashgen/descriptor"
)

// InspectCommand returns the inspect command.
// It decodes a standalone descriptor or every flash algorithm of a target
// definition.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a descriptor or target definition",
		ArgsUsage: "<descriptor.yaml>",
		Flags: append(ReadOnlyFlags(),
			&cli.StringFlag{
				Name:  "algorithm",
				Usage: "Only show the flash algorithm with this name",
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("descriptor path required", exitUnexpected)
	}
	path := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read descriptor: %v", err), exitIOFailure)
	}
	ds, err := descriptor.DecodeBytes(data)
	if err != nil {
		return fmt.Errorf("invalid descriptor %s: %w", path, err)
	}

	if name := c.String("algorithm"); name != "" {
		ds = filterDescriptors(ds, name)
		if len(ds) == 0 {
			return fmt.Errorf("no flash algorithm named %q in %s", name, path)
		}
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectDescriptor, ds)
	}
	return r.Render(ds)
}

func filterDescriptors(ds []*descriptor.Descriptor, name string) []*descriptor.Descriptor {
	var out []*descriptor.Descriptor
	for _, d := range ds {
		if d.Name == name {
			out = append(out, d)
		}
	}
	return out
}
