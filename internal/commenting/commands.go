package commenting

import (
	"context"

	"github.com/colonyops/trunkreview/internal/core/logging"
	"github.com/colonyops/trunkreview/internal/core/review"
)

func threadCtx(ctx context.Context, t *review.Thread) context.Context {
	if t == nil {
		return ctx
	}
	return logging.WithThreadID(logging.WithRoot(ctx, t.Root), t.ID)
}

// CreateNote adds the first comment of a thread. It behaves exactly like
// ReplyNote.
func (c *Controller) CreateNote(ctx context.Context, reply Reply) {
	c.reply(ctx, reply, "createNote")
}

// ReplyNote appends a comment by the current identity. Outside a draft the
// thread is persisted; inside a draft the comment is staged as pending.
func (c *Controller) ReplyNote(ctx context.Context, reply Reply) {
	c.reply(ctx, reply, "replyNote")
}

func (c *Controller) reply(ctx context.Context, reply Reply, command string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := reply.Thread
	ctx = threadCtx(ctx, t)
	if !c.live(ctx, t, command) {
		return
	}

	cm := review.NewComment(reply.Text, c.author.Current())
	if t.IsDraft() {
		cm.Label = review.LabelPending
	}
	t.Append(cm)
	markDeletable(t)

	if t.IsDraft() {
		c.log.Debug().Ctx(ctx).Msg("reply staged in draft")
		return
	}
	c.persist(ctx, t)
}

// StartDraft puts the thread in draft mode and stages the reply as pending.
// Nothing is persisted.
func (c *Controller) StartDraft(ctx context.Context, reply Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := reply.Thread
	ctx = threadCtx(ctx, t)
	if !c.live(ctx, t, "startDraft") {
		return
	}

	t.ContextValue = review.ContextDraft
	cm := review.NewComment(reply.Text, c.author.Current())
	cm.Label = review.LabelPending
	t.Append(cm)
	markDeletable(t)
}

// FinishDraft leaves draft mode, collapses the thread and clears pending
// labels. A non-empty reply is appended and the thread persisted; an empty
// one finishes the draft without writing.
func (c *Controller) FinishDraft(ctx context.Context, reply Reply) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := reply.Thread
	ctx = threadCtx(ctx, t)
	if !c.live(ctx, t, "finishDraft") {
		return
	}

	t.ContextValue = ""
	t.Collapsed = true

	if reply.Text != "" {
		t.Append(review.NewComment(reply.Text, c.author.Current()))
		markDeletable(t)
	}

	for _, cm := range t.Comments {
		cm.Label = ""
	}

	if reply.Text == "" {
		return
	}
	c.persist(ctx, t)
}

// DeleteNoteComment removes one comment. When the thread still has comments
// they are persisted; when it becomes empty the thread is disposed and its
// full conversation moves to the resolved list.
func (c *Controller) DeleteNoteComment(ctx context.Context, comment *review.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := comment.Thread()
	ctx = threadCtx(ctx, t)
	if !c.live(ctx, t, "deleteNoteComment") {
		return
	}

	t.Remove(comment.ID)

	if len(t.Comments) > 0 {
		if t.IsDraft() {
			return
		}
		c.persist(ctx, t)
		return
	}

	t.Dispose()
	c.forget(t)

	rec, ok := c.record(ctx, t.Root)
	if !ok {
		return
	}
	if rec.Archive(t) {
		c.flush(ctx, t.Root)
	}
	c.log.Debug().Ctx(ctx).Msg("thread emptied and resolved")
}

// DeleteNote resolves the whole thread and disposes it.
func (c *Controller) DeleteNote(ctx context.Context, thread *review.Thread) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx = threadCtx(ctx, thread)
	if !c.live(ctx, thread, "deleteNote") {
		return
	}

	thread.Dispose()
	c.forget(thread)

	rec, ok := c.record(ctx, thread.Root)
	if !ok {
		return
	}
	if rec.Resolve(thread) {
		c.flush(ctx, thread.Root)
	}
	c.log.Debug().Ctx(ctx).Msg("thread resolved")
}

// EditNote switches a comment into editing mode.
func (c *Controller) EditNote(ctx context.Context, comment *review.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := comment.Thread()
	if !c.live(threadCtx(ctx, t), t, "editNote") {
		return
	}
	comment.Edit()
}

// UpdateText replaces the working text of a comment being edited. Comments
// in preview are left untouched.
func (c *Controller) UpdateText(ctx context.Context, comment *review.Comment, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := comment.Thread()
	if !c.live(threadCtx(ctx, t), t, "updateText") || comment.Mode != review.ModeEditing {
		return
	}
	comment.Text = text
}

// CancelSaveNote restores a comment's last committed text.
func (c *Controller) CancelSaveNote(ctx context.Context, comment *review.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := comment.Thread()
	if !c.live(threadCtx(ctx, t), t, "cancelsaveNote") {
		return
	}
	comment.Cancel()
}

// SaveNote commits a comment's text and returns it to preview. Threads
// outside a draft are persisted.
func (c *Controller) SaveNote(ctx context.Context, comment *review.Comment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := comment.Thread()
	ctx = threadCtx(ctx, t)
	if !c.live(ctx, t, "saveNote") {
		return
	}

	comment.Save()
	if t.IsDraft() {
		return
	}
	c.persist(ctx, t)
}

// markDeletable tags every comment after the first as deletable.
func markDeletable(t *review.Thread) {
	for i, cm := range t.Comments {
		if i == 0 {
			continue
		}
		cm.ContextValue = review.ContextCanDelete
	}
}
