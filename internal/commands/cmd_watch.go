package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/trunkreview/internal/core/logging"
	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/core/styles"
	"github.com/colonyops/trunkreview/internal/store/jsonfile"
	"github.com/colonyops/trunkreview/internal/trunkreview"
	"github.com/colonyops/trunkreview/pkg/iojson"
)

type WatchCmd struct {
	flags *Flags
	app   *trunkreview.App

	jsonOutput bool
	count      int

	// ready is closed once the watcher is listening; used by tests.
	ready chan struct{}
}

// NewWatchCmd creates a new watch command.
func NewWatchCmd(flags *Flags, app *trunkreview.App) *WatchCmd {
	return &WatchCmd{flags: flags, app: app}
}

// Register adds the watch command to the application.
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Print a line whenever the review files change",
		UsageText: "trunkreview watch [--json] [--count N]",
		Description: `Watches the review directory and reloads it after every change, printing
the changed file and the current thread counts. Runs until interrupted, or
until --count changes have been seen.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
			&cli.IntFlag{
				Name:        "count",
				Usage:       "exit after this many changes (0 runs forever)",
				Destination: &cmd.count,
			},
		},
		Action: cmd.run,
	})

	return app
}

type watchEvent struct {
	Time       time.Time `json:"time"`
	File       string    `json:"file"`
	Unresolved int       `json:"unresolved"`
	Resolved   int       `json:"resolved"`
	Error      string    `json:"error,omitempty"`
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	if _, err := cmd.app.Threads.Load(ctx); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := jsonfile.NewReviewWatcher(cmd.app.Root, cmd.app.Threads.Dir(), logging.Component("watcher"))
	if err != nil {
		return fmt.Errorf("watch review files: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	events := watcher.Watch(ctx)
	if cmd.ready != nil {
		close(cmd.ready)
	}

	seen := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := cmd.report(ctx, c, ev); err != nil {
				return err
			}
			seen++
			if cmd.count > 0 && seen >= cmd.count {
				return nil
			}
		}
	}
}

func (cmd *WatchCmd) report(ctx context.Context, c *cli.Command, ev review.ChangeEvent) error {
	out := watchEvent{Time: time.Now(), File: ev.File}

	rec, err := cmd.app.Threads.Load(ctx)
	switch {
	case err == nil:
		out.Unresolved = len(rec.Unresolved.Threads)
		out.Resolved = len(rec.Resolved.Threads)
	case errors.Is(err, review.ErrCorrupt), errors.Is(err, review.ErrDisabled):
		out.Error = err.Error()
	default:
		return err
	}

	w := c.Root().Writer
	if cmd.jsonOutput {
		return iojson.WriteLine(w, out)
	}

	if out.Error != "" {
		_, _ = fmt.Fprintf(w, "%s %s %s\n", styles.MutedStyle.Render(out.Time.Format(time.TimeOnly)), out.File, styles.ErrorStyle.Render(out.Error))
		return nil
	}

	_, _ = fmt.Fprintf(w, "%s %s %d unresolved, %d resolved\n",
		styles.MutedStyle.Render(out.Time.Format(time.TimeOnly)), out.File, out.Unresolved, out.Resolved)
	return nil
}
