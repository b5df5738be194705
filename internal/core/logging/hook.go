package logging

import (
	"context"

	"github.com/rs/zerolog"
)

// ContextHook extracts root and thread_id from context and adds them to log events.
type ContextHook struct{}

// Run adds contextual fields to the zerolog event.
func (h ContextHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == context.Background() || ctx == nil {
		return
	}

	if root := GetRoot(ctx); root != "" {
		e.Str("root", root)
	}

	if threadID := GetThreadID(ctx); threadID != "" {
		e.Str("thread_id", threadID)
	}
}
