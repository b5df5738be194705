package logging

import "context"

type contextKey string

const (
	rootKey     contextKey = "root"
	threadIDKey contextKey = "thread_id"
)

// WithRoot adds a workspace root to the context.
func WithRoot(ctx context.Context, root string) context.Context {
	return context.WithValue(ctx, rootKey, root)
}

// WithThreadID adds a thread ID to the context.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadIDKey, threadID)
}

// GetRoot retrieves the workspace root from the context.
// Returns empty string if not present.
func GetRoot(ctx context.Context) string {
	if root, ok := ctx.Value(rootKey).(string); ok {
		return root
	}
	return ""
}

// GetThreadID retrieves the thread ID from the context.
// Returns empty string if not present.
func GetThreadID(ctx context.Context) string {
	if id, ok := ctx.Value(threadIDKey).(string); ok {
		return id
	}
	return ""
}
