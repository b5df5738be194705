// Package commenting translates editor comment commands into thread
// mutations and persists the result through a review.Store.
package commenting

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/trunkreview/internal/core/logging"
	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/core/workspace"
)

// Author supplies the identity attached to new comments.
type Author interface {
	Current() review.Identity
}

// Reply is the payload the host passes to reply-style commands.
type Reply struct {
	Thread *review.Thread
	Text   string
}

// FolderState describes how a workspace root participates in review.
type FolderState int

const (
	FolderUnknown FolderState = iota
	// FolderEnabled has review files and is persisted on every change.
	FolderEnabled
	// FolderDisabled has no review files; threads live in memory only.
	FolderDisabled
	// FolderCorrupt has unreadable review files and is never written.
	FolderCorrupt
)

func (s FolderState) String() string {
	switch s {
	case FolderEnabled:
		return "enabled"
	case FolderDisabled:
		return "disabled"
	case FolderCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

type folder struct {
	state   FolderState
	threads []*review.Thread
}

// Controller owns the live threads of every open workspace root. All
// commands are serialized; persistence is asynchronous and ordered per root.
type Controller struct {
	store  review.Store
	author Author
	log    zerolog.Logger

	mu       sync.Mutex
	folders  map[string]*folder
	pending  []<-chan error
	errs     []error
	disposed bool
}

// New creates a controller.
func New(store review.Store, author Author, logger zerolog.Logger) *Controller {
	return &Controller{
		store:   store,
		author:  author,
		log:     logger,
		folders: make(map[string]*folder),
	}
}

// OpenFolder loads root's review data and builds its unresolved threads.
// A folder without review files opens as FolderDisabled with no error; a
// corrupt one opens as FolderCorrupt and returns the load error.
func (c *Controller) OpenFolder(ctx context.Context, root string) ([]*review.Thread, error) {
	ctx = logging.WithRoot(ctx, root)

	rec, err := c.store.Load(ctx, root)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.folders[root]; ok {
		for _, t := range old.threads {
			t.Dispose()
		}
	}

	switch {
	case errors.Is(err, review.ErrDisabled):
		c.folders[root] = &folder{state: FolderDisabled}
		c.log.Debug().Ctx(ctx).Msg("review not enabled for folder")
		return nil, nil
	case err != nil:
		c.folders[root] = &folder{state: FolderCorrupt}
		return nil, err
	}

	f := &folder{state: FolderEnabled}
	for _, tr := range rec.Unresolved.Threads {
		f.threads = append(f.threads, threadFromRecord(root, tr))
	}
	c.folders[root] = f

	c.log.Debug().Ctx(ctx).Int("threads", len(f.threads)).Msg("folder opened")
	return slices.Clone(f.threads), nil
}

// CloseFolder disposes root's threads, waits for its writes and unloads it.
func (c *Controller) CloseFolder(root string) error {
	c.mu.Lock()
	if f, ok := c.folders[root]; ok {
		for _, t := range f.threads {
			t.Dispose()
		}
		delete(c.folders, root)
	}
	c.mu.Unlock()

	return c.store.Unload(root)
}

// State reports how root participates in review.
func (c *Controller) State(root string) FolderState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.folders[root]; ok {
		return f.state
	}
	return FolderUnknown
}

// Threads returns the live threads of root.
func (c *Controller) Threads(root string) []*review.Thread {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.folders[root]; ok {
		return slices.Clone(f.threads)
	}
	return nil
}

// Thread finds a live thread by ID.
func (c *Controller) Thread(id string) (*review.Thread, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range c.folders {
		for _, t := range f.threads {
			if t.ID == id {
				return t, true
			}
		}
	}
	return nil, false
}

// ThreadAt finds the first live thread anchored at (file, rng) in root.
func (c *Controller) ThreadAt(root, file string, rng review.Range) (*review.Thread, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if f, ok := c.folders[root]; ok {
		for _, t := range f.threads {
			if t.File == file && t.Range == rng {
				return t, true
			}
		}
	}
	return nil, false
}

// CreateThread starts an empty thread at (file, rng), the way the host does
// when a user picks a commenting range. Nothing is persisted until a comment
// is committed.
func (c *Controller) CreateThread(root, file string, rng review.Range) *review.Thread {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.folders[root]
	if !ok {
		f = &folder{state: FolderDisabled}
		c.folders[root] = f
	}

	t := review.NewThread(root, file, rng)
	if c.disposed {
		t.Dispose()
		return t
	}

	f.threads = append(f.threads, t)
	return t
}

// CommentingRanges answers the host's commenting range query: the whole document.
func (c *Controller) CommentingRanges(lineCount int) []review.Range {
	return []review.Range{workspace.FullDocument(lineCount)}
}

// Sync waits for every write issued so far and returns their combined errors.
func (c *Controller) Sync(ctx context.Context) error {
	c.mu.Lock()
	pending := c.pending
	errs := c.errs
	c.pending = nil
	c.errs = nil
	c.mu.Unlock()

	for i, done := range pending {
		select {
		case err := <-done:
			if err != nil {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			// keep the rest so a later Sync can still observe them
			c.mu.Lock()
			c.pending = append(pending[i:], c.pending...)
			c.mu.Unlock()
			return ctx.Err()
		}
	}

	return errors.Join(errs...)
}

// Dispose detaches every thread. Subsequent commands are no-ops.
func (c *Controller) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disposed = true
	for _, f := range c.folders {
		for _, t := range f.threads {
			t.Dispose()
		}
		f.threads = nil
	}
	c.log.Debug().Msg("comment controller disposed")
}

// live reports whether t can still be mutated. Caller holds c.mu.
func (c *Controller) live(ctx context.Context, t *review.Thread, command string) bool {
	if c.disposed || t == nil || t.Disposed() {
		c.log.Debug().Ctx(ctx).Str("command", command).Msg("ignoring command on detached thread")
		return false
	}
	return true
}

// persist writes t's current comments. Caller holds c.mu.
func (c *Controller) persist(ctx context.Context, t *review.Thread) {
	rec, ok := c.record(ctx, t.Root)
	if !ok {
		return
	}
	rec.UpsertComments(t)
	c.flush(ctx, t.Root)
}

// record returns the persisted record for root if it accepts writes.
// Caller holds c.mu.
func (c *Controller) record(ctx context.Context, root string) (*review.Record, bool) {
	f, ok := c.folders[root]
	if !ok || f.state != FolderEnabled {
		c.log.Debug().Ctx(ctx).Msg("folder not persisted, keeping change in memory")
		return nil, false
	}

	rec, ok := c.store.Get(root)
	if !ok {
		c.log.Warn().Ctx(ctx).Msg("folder record missing from store")
		return nil, false
	}
	return rec, true
}

// flush queues a write for root and remembers its completion. Caller holds c.mu.
func (c *Controller) flush(ctx context.Context, root string) {
	done := c.store.Flush(context.WithoutCancel(ctx), root)

	// collect writes that already finished so the list stays short
	remaining := c.pending[:0]
	for _, p := range c.pending {
		select {
		case err := <-p:
			if err != nil {
				c.errs = append(c.errs, err)
			}
		default:
			remaining = append(remaining, p)
		}
	}
	c.pending = append(remaining, done)
}

// forget removes t from its folder. Caller holds c.mu.
func (c *Controller) forget(t *review.Thread) {
	f, ok := c.folders[t.Root]
	if !ok {
		return
	}
	f.threads = slices.DeleteFunc(f.threads, func(x *review.Thread) bool { return x == t })
}

func threadFromRecord(root string, tr review.ThreadRecord) *review.Thread {
	t := &review.Thread{
		ID:    tr.ID,
		Root:  root,
		File:  tr.File,
		Range: tr.Range,
	}
	for i, cr := range tr.Comments {
		cm := review.NewComment(cr.Text, review.Identity(cr.Owner))
		if i > 0 {
			cm.ContextValue = review.ContextCanDelete
		}
		t.Append(cm)
	}
	return t
}
