package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/hay-kot/criterio"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/trunkreview/internal/core/config"
	"github.com/colonyops/trunkreview/internal/core/styles"
	"github.com/colonyops/trunkreview/pkg/iojson"
)

type ConfigValidateCmd struct {
	flags  *Flags
	format string
}

// NewConfigValidateCmd creates a new config validate command.
func NewConfigValidateCmd(flags *Flags) *ConfigValidateCmd {
	return &ConfigValidateCmd{flags: flags}
}

// Register adds the config validate command to the application.
func (cmd *ConfigValidateCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Commands: []*cli.Command{
			{
				Name:        "validate",
				Usage:       "Validate configuration file",
				UsageText:   "trunkreview config validate [options]",
				Description: "Validates the configuration file, checking the review directory, layout, theme and identity settings.",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "format",
						Usage:       "output format (text, json)",
						Value:       "text",
						Destination: &cmd.format,
					},
				},
				Action: cmd.run,
			},
		},
	})

	return app
}

type validationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (cmd *ConfigValidateCmd) run(ctx context.Context, c *cli.Command) error {
	cfg := cmd.flags.Config
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	errs := collectErrors(cfg.ValidateDeep(cmd.flags.ConfigPath))
	warnings := cfg.Warnings()

	if cmd.format == "json" {
		out := struct {
			Valid    bool                       `json:"valid"`
			Errors   []validationError          `json:"errors,omitempty"`
			Warnings []config.ValidationWarning `json:"warnings,omitempty"`
		}{
			Valid:    len(errs) == 0,
			Errors:   errs,
			Warnings: warnings,
		}
		if err := iojson.WriteWith(c.Root().Writer, c.Root().ErrWriter, out); err != nil {
			return err
		}
		if len(errs) > 0 {
			return cli.Exit("", 1)
		}
		return nil
	}

	w := c.Root().Writer

	for _, warn := range warnings {
		_, _ = fmt.Fprintf(w, "%s %s: %s\n", styles.PendingStyle.Render("warning"), warn.Category, warn.Message)
		if warn.Item != "" {
			_, _ = fmt.Fprintf(w, "  Item: %s\n", warn.Item)
		}
	}

	for _, e := range errs {
		if e.Field != "" {
			_, _ = fmt.Fprintf(w, "%s %s: %s\n", styles.ErrorStyle.Render("error"), e.Field, e.Message)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s %s\n", styles.ErrorStyle.Render("error"), e.Message)
	}

	if len(errs) == 0 {
		_, _ = fmt.Fprintln(w, styles.ResolvedStyle.Render("Configuration is valid"))
		return nil
	}

	_, _ = fmt.Fprintf(w, "%d error(s) found\n", len(errs))
	return cli.Exit("", 1)
}

// collectErrors flattens field errors into one entry per field.
func collectErrors(err error) []validationError {
	if err == nil {
		return nil
	}

	var fieldErrs criterio.FieldErrors
	if !errors.As(err, &fieldErrs) {
		return []validationError{{Message: err.Error()}}
	}

	out := make([]validationError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, validationError{Field: fe.Field, Message: fe.Err.Error()})
	}
	return out
}
