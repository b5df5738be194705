package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/trunkreview/internal/core/styles"
	"github.com/colonyops/trunkreview/internal/trunkreview"
	"github.com/colonyops/trunkreview/pkg/iojson"
)

type WhoamiCmd struct {
	flags *Flags
	app   *trunkreview.App

	jsonOutput bool
	timeout    time.Duration
}

// NewWhoamiCmd creates a new whoami command.
func NewWhoamiCmd(flags *Flags, app *trunkreview.App) *WhoamiCmd {
	return &WhoamiCmd{flags: flags, app: app}
}

// Register adds the whoami command to the application.
func (cmd *WhoamiCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "whoami",
		Usage:     "Show the author attached to new comments",
		UsageText: "trunkreview whoami [--json]",
		Description: `Resolves the comment author the same way note commands do and prints it.
When no provider answers in time the placeholder name is shown.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "how long to wait for the identity provider",
				Value:       10 * time.Second,
				Destination: &cmd.timeout,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *WhoamiCmd) run(ctx context.Context, c *cli.Command) error {
	resolver := cmd.app.Identity
	resolver.Start(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, cmd.timeout)
	waitErr := resolver.Wait(waitCtx)
	cancel()

	id := resolver.Current()
	out := c.Root().Writer

	if cmd.jsonOutput {
		result := struct {
			Name     string `json:"name"`
			IconPath string `json:"iconPath,omitempty"`
			Resolved bool   `json:"resolved"`
			Error    string `json:"error,omitempty"`
		}{
			Name:     id.Name,
			IconPath: id.IconPath,
			Resolved: resolver.Resolved(),
		}
		if waitErr != nil {
			result.Error = waitErr.Error()
		}
		return iojson.WriteLine(out, result)
	}

	_, _ = fmt.Fprintln(out, styles.AuthorStyle(id.Name).Render(id.Name))
	if id.IconPath != "" {
		_, _ = fmt.Fprintln(out, styles.MutedStyle.Render(id.IconPath))
	}
	if !resolver.Resolved() {
		_, _ = fmt.Fprintln(out, styles.PendingStyle.Render("(placeholder)"))
	}
	return nil
}
