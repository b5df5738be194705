package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/trunkreview/internal/trunkreview"
)

type MigrateCmd struct {
	flags *Flags
	app   *trunkreview.App
}

// NewMigrateCmd creates a new migrate command.
func NewMigrateCmd(flags *Flags, app *trunkreview.App) *MigrateCmd {
	return &MigrateCmd{flags: flags, app: app}
}

// Register adds the migrate command to the application.
func (cmd *MigrateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "migrate",
		Usage:     "Convert a legacy review.json to the split layout",
		UsageText: "trunkreview migrate",
		Description: `Moves every thread from review.json into unresolved.json, writes an
empty resolved.json and renames the legacy file to review.json.migrated.

Workspaces that already use the split layout are left untouched.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *MigrateCmd) run(ctx context.Context, c *cli.Command) error {
	rec, err := cmd.app.Threads.Migrate(ctx)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(c.Root().Writer, "Migrated %d thread(s) to the split layout\n", len(rec.Unresolved.Threads))
	return nil
}
