// Package logging holds the process-wide logger conventions: component tags
// and workspace/thread fields carried on the context.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup installs l as the global logger with ContextHook attached, so every
// event logged with a context picks up its root and thread ID.
func Setup(l zerolog.Logger) {
	log.Logger = l.Hook(ContextHook{})
}

// Component returns a child of the global logger tagged with name under the
// "cmp" key. Call it after Setup; the child keeps the hook.
func Component(name string) zerolog.Logger {
	return log.With().Str("cmp", name).Logger()
}
