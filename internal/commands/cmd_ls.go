package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/trunkreview"
	"github.com/colonyops/trunkreview/pkg/iojson"
)

type LsCmd struct {
	flags *Flags
	app   *trunkreview.App

	// flags
	resolved   bool
	fileGlob   string
	jsonOutput bool
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags, app *trunkreview.App) *LsCmd {
	return &LsCmd{flags: flags, app: app}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List review threads",
		UsageText: "trunkreview ls [--resolved] [--file <glob>] [--json]",
		Description: `Displays a table of unresolved threads with their location, comment count
and latest comment.

Use --resolved to list resolved threads instead, --file to filter by a glob
such as 'internal/**/*.go', and --json for one JSON object per line.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "resolved",
				Usage:       "list resolved threads",
				Destination: &cmd.resolved,
			},
			&cli.StringFlag{
				Name:        "file",
				Usage:       "only threads whose file matches the glob",
				Destination: &cmd.fileGlob,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	kind := review.ListUnresolved
	if cmd.resolved {
		kind = review.ListResolved
	}

	threads, err := cmd.app.Threads.List(ctx, kind, cmd.fileGlob)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, t := range threads {
			if err := iojson.WriteLine(out, t); err != nil {
				return fmt.Errorf("encode thread: %w", err)
			}
		}
		return nil
	}

	if len(threads) == 0 {
		_, _ = fmt.Fprintf(c.Root().ErrWriter, "No %s threads found\n", kind)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFILE\tRANGE\tCOMMENTS\tLATEST")

	for _, t := range threads {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", shortID(t.ID), t.File, t.Range, len(t.Comments), latest(t.Comments))
	}

	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// latest summarizes the last comment as "author: first line".
func latest(comments []review.CommentRecord) string {
	if len(comments) == 0 {
		return ""
	}

	c := comments[len(comments)-1]
	line, _, _ := strings.Cut(c.Text, "\n")
	if r := []rune(line); len(r) > 50 {
		line = string(r[:47]) + "..."
	}

	if c.Owner.Name == "" {
		return line
	}
	return c.Owner.Name + ": " + line
}
