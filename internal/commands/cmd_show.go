package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/core/styles"
	"github.com/colonyops/trunkreview/internal/trunkreview"
	"github.com/colonyops/trunkreview/pkg/iojson"
)

type ShowCmd struct {
	flags *Flags
	app   *trunkreview.App

	raw   bool
	width int
}

// NewShowCmd creates a new show command.
func NewShowCmd(flags *Flags, app *trunkreview.App) *ShowCmd {
	return &ShowCmd{flags: flags, app: app}
}

// Register adds the show command to the application.
func (cmd *ShowCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "show",
		Usage:     "Show a thread and its comments",
		UsageText: "trunkreview show <thread-id> [--raw]",
		Description: `Prints one thread, resolved or not. Any unique prefix of the thread ID
is accepted.

On a terminal comment text is rendered as markdown. Use --raw for the
thread exactly as stored, as JSON.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "raw",
				Usage:       "print the stored JSON",
				Destination: &cmd.raw,
			},
			&cli.IntFlag{
				Name:        "width",
				Usage:       "wrap width for rendered comments",
				Value:       80,
				Destination: &cmd.width,
			},
		},
		ShellComplete: ThreadIDCompleter(cmd.app),
		Action:        cmd.run,
	})

	return app
}

func (cmd *ShowCmd) run(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("thread id is required")
	}

	entry, err := cmd.app.Threads.Get(ctx, id)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	if cmd.raw {
		return iojson.WriteWith(out, c.Root().ErrWriter, entry)
	}

	render := plainText
	if isTerminal(out) {
		r, err := glamour.NewTermRenderer(
			glamour.WithStyles(styles.GlamourStyle()),
			glamour.WithWordWrap(cmd.width),
		)
		if err != nil {
			return fmt.Errorf("create markdown renderer: %w", err)
		}
		render = func(text string) string {
			rendered, err := r.Render(text)
			if err != nil {
				return plainText(text)
			}
			return strings.TrimRight(rendered, "\n") + "\n"
		}
	}

	status := styles.PendingStyle.Render(entry.Status.String())
	if entry.Status == review.ListResolved {
		status = styles.ResolvedStyle.Render(entry.Status.String())
	}

	_, _ = fmt.Fprintf(out, "%s %s  %s\n", styles.HeaderStyle.Render(entry.File), styles.LocationStyle.Render(entry.Range.String()), status)
	_, _ = fmt.Fprintln(out, styles.MutedStyle.Render(entry.ID))

	for i, cm := range entry.Comments {
		_, _ = fmt.Fprintln(out, styles.DividerStyle.Render(strings.Repeat("─", 40)))
		_, _ = fmt.Fprintf(out, "%s %s\n", styles.MutedStyle.Render(fmt.Sprintf("#%d", i+1)), styles.AuthorStyle(cm.Owner.Name).Render(cm.Owner.Name))
		_, _ = fmt.Fprint(out, render(cm.Text))
	}

	return nil
}

func plainText(text string) string {
	return strings.TrimRight(text, "\n") + "\n"
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
