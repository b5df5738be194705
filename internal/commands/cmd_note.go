package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/core/validate"
	"github.com/colonyops/trunkreview/internal/trunkreview"
	"github.com/colonyops/trunkreview/pkg/iojson"
)

// noteAction runs one comment command against the resolved target.
type noteAction func(ctx context.Context, target trunkreview.Target, text string) (*review.Thread, error)

// textMode says where a subcommand takes its comment text from.
type textMode int

const (
	textNone     textMode = iota // no text
	textRequired                 // args, then prompt or stdin
	textOptional                 // args only
)

type NoteCmd struct {
	flags *Flags
	app   *trunkreview.App

	// flags
	thread     string
	file       string
	rng        string
	comment    int
	jsonOutput bool

	// stdin and interactive are swapped out in tests.
	stdin       io.Reader
	interactive bool
}

// NewNoteCmd creates a new note command.
func NewNoteCmd(flags *Flags, app *trunkreview.App) *NoteCmd {
	return &NoteCmd{
		flags:       flags,
		app:         app,
		stdin:       os.Stdin,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Register adds the note command and its subcommands to the application.
func (cmd *NoteCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "note",
		Usage: "Add, edit and delete review comments",
		Description: `Comment commands operate on a thread chosen by --thread (an ID or unique
ID prefix) or by --file and --range. Ranges are written as
"startLine:startChar-endLine:endChar" with 0-based positions, or "line" and
"start-end" for whole lines.

Comment text is taken from the arguments. Without arguments the text is read
from stdin, or prompted for on a terminal.

Drafts only live for the duration of one command. Use 'trunkreview exec' to
start and finish a draft in one session.`,
		Commands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Start a new thread",
				UsageText: "trunkreview note create --file <path> --range <range> [text]",
				Flags:     cmd.targetFlags(false),
				Action:    cmd.action(textRequired, cmd.notes(func(n *trunkreview.NoteService) noteAction { return n.Create })),
			},
			{
				Name:          "reply",
				Usage:         "Reply to a thread",
				UsageText:     "trunkreview note reply (--thread <id> | --file <path> --range <range>) [text]",
				Flags:         cmd.targetFlags(false),
				ShellComplete: ThreadIDCompleter(cmd.app),
				Action:        cmd.action(textRequired, cmd.notes(func(n *trunkreview.NoteService) noteAction { return n.Reply })),
			},
			{
				Name:      "start-draft",
				Usage:     "Add a pending comment",
				UsageText: "trunkreview note start-draft (--thread <id> | --file <path> --range <range>) [text]",
				Flags:     cmd.targetFlags(false),
				Action:    cmd.action(textRequired, cmd.notes(func(n *trunkreview.NoteService) noteAction { return n.StartDraft })),
			},
			{
				Name:      "finish-draft",
				Usage:     "Finish a draft, optionally with a final comment",
				UsageText: "trunkreview note finish-draft (--thread <id> | --file <path> --range <range>) [text]",
				Flags:     cmd.targetFlags(false),
				Action:    cmd.action(textOptional, cmd.notes(func(n *trunkreview.NoteService) noteAction { return n.FinishDraft })),
			},
			{
				Name:      "edit",
				Usage:     "Replace the text of a comment",
				UsageText: "trunkreview note edit --thread <id> --comment <n> [text]",
				Flags:     cmd.targetFlags(true),
				Action:    cmd.action(textRequired, cmd.notes(func(n *trunkreview.NoteService) noteAction { return n.Edit })),
			},
			{
				Name:          "delete",
				Usage:         "Resolve a whole thread",
				UsageText:     "trunkreview note delete (--thread <id> | --file <path> --range <range>)",
				Flags:         cmd.targetFlags(false),
				ShellComplete: ThreadIDCompleter(cmd.app),
				Action: cmd.action(textNone, func(ctx context.Context, target trunkreview.Target, _ string) (*review.Thread, error) {
					return cmd.app.Notes.Delete(ctx, target)
				}),
			},
			{
				Name:      "delete-comment",
				Usage:     "Remove one comment; removing the last resolves the thread",
				UsageText: "trunkreview note delete-comment --thread <id> --comment <n>",
				Flags:     cmd.targetFlags(true),
				Action: cmd.action(textNone, func(ctx context.Context, target trunkreview.Target, _ string) (*review.Thread, error) {
					return cmd.app.Notes.DeleteComment(ctx, target)
				}),
			},
		},
	})

	return app
}

// notes defers the method lookup until the command runs, after the app is
// populated by the Before hook.
func (cmd *NoteCmd) notes(pick func(*trunkreview.NoteService) noteAction) noteAction {
	return func(ctx context.Context, target trunkreview.Target, text string) (*review.Thread, error) {
		return pick(cmd.app.Notes)(ctx, target, text)
	}
}

func (cmd *NoteCmd) targetFlags(withComment bool) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "thread",
			Aliases:     []string{"t"},
			Usage:       "thread ID or unique ID prefix",
			Destination: &cmd.thread,
		},
		&cli.StringFlag{
			Name:        "file",
			Usage:       "file path, relative to the workspace root",
			Destination: &cmd.file,
		},
		&cli.StringFlag{
			Name:        "range",
			Aliases:     []string{"r"},
			Usage:       "range within the file",
			Destination: &cmd.rng,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "output the resulting thread as JSON",
			Destination: &cmd.jsonOutput,
		},
	}

	if withComment {
		flags = append(flags, &cli.IntFlag{
			Name:        "comment",
			Aliases:     []string{"n"},
			Usage:       "comment number, starting at 1",
			Required:    true,
			Destination: &cmd.comment,
		})
	}

	return flags
}

func (cmd *NoteCmd) action(mode textMode, fn noteAction) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		text, err := cmd.text(mode, c)
		if err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			return err
		}

		target := trunkreview.Target{
			Thread:  cmd.thread,
			File:    cmd.file,
			Range:   cmd.rng,
			Comment: cmd.comment,
		}

		t, err := fn(ctx, target, text)
		if err != nil {
			return err
		}

		if err := cmd.app.Notes.Sync(ctx); err != nil {
			return fmt.Errorf("write review files: %w", err)
		}

		return cmd.print(c, t)
	}
}

// text collects the comment text for mode.
func (cmd *NoteCmd) text(mode textMode, c *cli.Command) (string, error) {
	if mode == textNone {
		return "", nil
	}

	text := strings.Join(c.Args().Slice(), " ")
	if text != "" || mode == textOptional {
		return text, nil
	}

	if cmd.interactive {
		err := huh.NewForm(
			huh.NewGroup(
				huh.NewText().
					Title("Comment").
					Description("Markdown is supported").
					Validate(validate.CommentText).
					Value(&text),
			),
		).Run()
		return text, err
	}

	data, err := io.ReadAll(cmd.stdin)
	if err != nil {
		return "", fmt.Errorf("read comment from stdin: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

type noteResult struct {
	Thread   string          `json:"thread"`
	File     string          `json:"file"`
	Range    review.Range    `json:"range"`
	Status   review.ListKind `json:"status"`
	Comments int             `json:"comments"`
	Draft    bool            `json:"draft,omitempty"`
}

func (cmd *NoteCmd) print(c *cli.Command, t *review.Thread) error {
	out := c.Root().Writer

	if !cmd.jsonOutput {
		_, _ = fmt.Fprintln(out, t.ID)
		return nil
	}

	status := review.ListUnresolved
	if t.Disposed() {
		status = review.ListResolved
	}

	return iojson.WriteLine(out, noteResult{
		Thread:   t.ID,
		File:     t.File,
		Range:    t.Range,
		Status:   status,
		Comments: len(t.Comments),
		Draft:    t.IsDraft(),
	})
}
