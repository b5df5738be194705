package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/trunkreview/internal/trunkreview"
	"github.com/colonyops/trunkreview/pkg/iojson"
)

type ExecCmd struct {
	flags  *Flags
	app    *trunkreview.App
	script *iojson.FileReader[[]trunkreview.Step]

	// stdin and interactive are swapped out in tests.
	stdin       io.Reader
	interactive bool
}

// NewExecCmd creates a new exec command.
func NewExecCmd(flags *Flags, app *trunkreview.App) *ExecCmd {
	return &ExecCmd{
		flags:       flags,
		app:         app,
		script:      iojson.NewFileReader[[]trunkreview.Step]("script", "path to a JSON step list (reads from stdin if not provided)"),
		stdin:       os.Stdin,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Register adds the exec command to the application.
func (cmd *ExecCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "exec",
		Usage:     "Run a list of comment commands in one session",
		UsageText: "trunkreview exec [-f script.json]",
		Description: `Runs a JSON array of steps in order, then waits for every write.

Each step names a command (create, reply, start-draft, finish-draft, edit,
delete, delete-comment) and its target, using the same fields as the note
flags:

  [
    {"command": "start-draft", "file": "main.go", "range": "10-12", "text": "first"},
    {"command": "reply", "thread": "$1", "text": "second"},
    {"command": "finish-draft", "thread": "$1", "text": "done"}
  ]

A thread of "$N" refers to the thread of step N. Execution stops at the
first failing step. The result of every step that ran is printed as JSON.`,
		Flags:  []cli.Flag{cmd.script.Flag()},
		Action: cmd.run,
	})

	return app
}

func (cmd *ExecCmd) run(ctx context.Context, c *cli.Command) error {
	steps, err := cmd.script.ReadFrom(cmd.stdin, cmd.interactive)
	if err != nil {
		return err
	}

	results, execErr := cmd.app.Notes.Exec(ctx, steps)

	if err := cmd.app.Notes.Sync(ctx); err != nil {
		return fmt.Errorf("write review files: %w", err)
	}

	if results == nil {
		results = []trunkreview.StepResult{}
	}
	if err := iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, results); err != nil {
		return err
	}

	return execErr
}
