package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/trunkreview/internal/commands"
	"github.com/colonyops/trunkreview/internal/core/config"
	"github.com/colonyops/trunkreview/internal/core/logging"
	"github.com/colonyops/trunkreview/internal/core/styles"
	"github.com/colonyops/trunkreview/internal/core/workspace"
	"github.com/colonyops/trunkreview/internal/store/jsonfile"
	"github.com/colonyops/trunkreview/internal/trunkreview"
	"github.com/colonyops/trunkreview/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		reviewApp = &trunkreview.App{}
	)

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "trunkreview",
		Usage:     "Leave review comments on files in a workspace",
		UsageText: "trunkreview [global options] command [command options]",
		Description: `trunkreview keeps code review threads next to the code they discuss.

Threads are anchored to a file range and stored as JSON in the workspace's
review directory: open threads in unresolved.json, finished ones in
resolved.json. Older workspaces with a single review.json keep working.

Run 'trunkreview init' to enable review for a workspace.
Run 'trunkreview note create --file <path> --range <range> <text>' to comment.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("TRUNKREVIEW_LOG_LEVEL"),
				Value:       "warn",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "append logs to this file instead of stderr",
				Sources:     cli.EnvVars("TRUNKREVIEW_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("TRUNKREVIEW_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"C"},
				Usage:       "run as if started in this directory",
				Sources:     cli.EnvVars("TRUNKREVIEW_DIR"),
				Destination: &flags.Dir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			logging.Setup(logger)
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			// Apply configured theme (validation ensures name is valid)
			palette, _ := styles.GetPalette(cfg.Theme)
			styles.SetTheme(palette)

			dir := flags.Dir
			if dir == "" {
				dir, err = os.Getwd()
				if err != nil {
					return ctx, fmt.Errorf("get working directory: %w", err)
				}
			}

			root, err := workspace.DetectRoot(dir)
			if err != nil {
				return ctx, fmt.Errorf("detect workspace root: %w", err)
			}

			store := jsonfile.NewReviewStore(cfg.ReviewDir, logging.Component("store"))
			resolver := trunkreview.NewResolver(cfg.Identity, root, logging.Component("identity"))

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*reviewApp = *trunkreview.NewApp(root, cfg, store, resolver)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			var err error
			if reviewApp.Store != nil {
				if err = reviewApp.Close(ctx); err != nil {
					log.Error().Err(err).Msg("failed to flush review files")
				}
			}

			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return err
		},
	}

	app = commands.NewInitCmd(flags, reviewApp).Register(app)
	app = commands.NewMigrateCmd(flags, reviewApp).Register(app)
	app = commands.NewLsCmd(flags, reviewApp).Register(app)
	app = commands.NewShowCmd(flags, reviewApp).Register(app)
	app = commands.NewNoteCmd(flags, reviewApp).Register(app)
	app = commands.NewExecCmd(flags, reviewApp).Register(app)
	app = commands.NewWatchCmd(flags, reviewApp).Register(app)
	app = commands.NewWhoamiCmd(flags, reviewApp).Register(app)
	app = commands.NewConfigValidateCmd(flags).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Fprintln(os.Stderr, runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
