package review

import (
	"context"
	"errors"
)

// Sentinel errors for review operations.
var (
	// ErrDisabled means the workspace root has no review files; review is
	// opt-in per folder.
	ErrDisabled = errors.New("review not enabled for folder")
	// ErrCorrupt means review files exist but could not be read or parsed.
	ErrCorrupt = errors.New("review data is corrupt")
	// ErrThreadNotFound is returned when a thread lookup misses.
	ErrThreadNotFound = errors.New("thread not found")
	// ErrCommentNotFound is returned when a comment index is out of range.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrNotLoaded is returned when a root has not been loaded into the store.
	ErrNotLoaded = errors.New("workspace root not loaded")
	// ErrAlreadyEnabled is returned when initializing a root that has review files.
	ErrAlreadyEnabled = errors.New("review already enabled for folder")
	// ErrNotLegacy is returned when migrating a root that has no legacy file.
	ErrNotLegacy = errors.New("folder has no legacy review file")
)

// Store keeps per-workspace review records and persists them.
type Store interface {
	// Load reads the review files of root. Returns ErrDisabled when none exist
	// and an error wrapping ErrCorrupt when they cannot be parsed.
	Load(ctx context.Context, root string) (*Record, error)

	// Get returns the loaded record for root.
	Get(root string) (*Record, bool)

	// Flush writes the dirty lists of root's record. The returned channel
	// receives the write result once the files are on disk.
	Flush(ctx context.Context, root string) <-chan error

	// Unload drains pending writes for root and forgets its record.
	Unload(root string) error

	// Close drains every writer and releases resources.
	Close() error
}
