package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/trunkreview/internal/trunkreview"
)

// ThreadIDCompleter returns a ShellCompleteFunc that suggests unresolved
// thread IDs as positional completions.
//
// When the user's last typed argument starts with "-", it falls back to the
// default flag completion behavior.
func ThreadIDCompleter(app *trunkreview.App) cli.ShellCompleteFunc {
	return func(ctx context.Context, cmd *cli.Command) {
		// Delegate to default flag completion when typing a flag
		if args := cmd.Args(); args.Present() {
			last := args.Slice()[args.Len()-1]
			if len(last) > 0 && last[0] == '-' {
				cli.DefaultCompleteWithFlags(ctx, cmd)
				return
			}
		}

		if app.Threads == nil {
			return
		}

		w := cmd.Root().Writer
		for _, id := range app.Threads.IDs(ctx) {
			_, _ = fmt.Fprintln(w, id)
		}
	}
}
