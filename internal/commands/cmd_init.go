package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/core/styles"
	"github.com/colonyops/trunkreview/internal/trunkreview"
)

type InitCmd struct {
	flags *Flags
	app   *trunkreview.App

	layout string
}

// NewInitCmd creates a new init command.
func NewInitCmd(flags *Flags, app *trunkreview.App) *InitCmd {
	return &InitCmd{flags: flags, app: app}
}

// Register adds the init command to the application.
func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "init",
		Usage:     "Enable review for the current workspace",
		UsageText: "trunkreview init [--layout split|legacy]",
		Description: `Creates the review directory with empty review files.

Review is opt-in per workspace: until this runs, comments are never written.
The split layout keeps open threads in unresolved.json and resolved ones in
resolved.json; the legacy layout uses a single review.json.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "layout",
				Usage:       "file layout (split, legacy); defaults to the configured layout",
				Destination: &cmd.layout,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *InitCmd) run(ctx context.Context, c *cli.Command) error {
	layout := review.Layout(cmd.layout)
	if layout == "" {
		layout = cmd.app.Config.Layout
	}

	if _, err := cmd.app.Threads.Init(ctx, layout); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.Root().Writer, "%s %s (%s layout)\n",
		styles.ResolvedStyle.Render("Review enabled in"), cmd.app.Threads.Dir(), layout)
	return nil
}
