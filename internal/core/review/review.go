// Package review defines the comment thread model and its persisted form.
package review

import (
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/google/uuid"
)

// Context values and labels understood by the host's comment UI.
const (
	ContextDraft     = "draft"
	ContextCanDelete = "canDelete"
	LabelPending     = "pending"
)

// Mode is the edit state of a single comment.
type Mode int

const (
	ModePreview Mode = iota
	ModeEditing
)

func (m Mode) String() string {
	switch m {
	case ModeEditing:
		return "editing"
	default:
		return "preview"
	}
}

// Range is a text span inside a file. It is only ever compared by exact
// field equality.
type Range struct {
	StartLine      int `json:"startLine"`
	StartCharacter int `json:"startCharacter"`
	EndLine        int `json:"endLine"`
	EndCharacter   int `json:"endCharacter"`
}

// NewRange is a convenience constructor mirroring the editor's argument order.
func NewRange(startLine, startChar, endLine, endChar int) Range {
	return Range{StartLine: startLine, StartCharacter: startChar, EndLine: endLine, EndCharacter: endChar}
}

func (r Range) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", r.StartLine, r.StartCharacter, r.EndLine, r.EndCharacter)
}

// Identity is the author attached to a comment.
type Identity struct {
	Name     string `json:"name"`
	IconPath string `json:"iconPath,omitempty"`
}

var lastCommentID atomic.Int64

// Comment is a single note inside a thread. SavedText holds the last
// committed text so an edit can be cancelled.
type Comment struct {
	ID           int64
	Text         string
	SavedText    string
	Author       Identity
	Mode         Mode
	Label        string
	ContextValue string

	thread *Thread
}

// NewComment creates a comment in preview mode with a process-unique ID.
func NewComment(text string, author Identity) *Comment {
	return &Comment{
		ID:        lastCommentID.Add(1),
		Text:      text,
		SavedText: text,
		Author:    author,
		Mode:      ModePreview,
	}
}

// Thread returns the owning thread, or nil when the comment is detached.
func (c *Comment) Thread() *Thread {
	if c == nil || c.thread == nil || c.thread.disposed {
		return nil
	}
	return c.thread
}

// Edit switches the comment into editing mode.
func (c *Comment) Edit() {
	c.Mode = ModeEditing
}

// Save commits the current text and returns to preview.
func (c *Comment) Save() {
	c.SavedText = c.Text
	c.Mode = ModePreview
}

// Cancel restores the last committed text and returns to preview.
func (c *Comment) Cancel() {
	c.Text = c.SavedText
	c.Mode = ModePreview
}

// Thread is a set of comments anchored to a file range within a workspace root.
type Thread struct {
	ID           string
	Root         string
	File         string
	Range        Range
	Comments     []*Comment
	ContextValue string
	Collapsed    bool

	// history holds every comment ever attached, in append order, so an
	// emptied thread can be archived with its full conversation.
	history  []*Comment
	disposed bool
}

// NewThread creates an empty thread with a fresh ID.
func NewThread(root, file string, rng Range) *Thread {
	return &Thread{
		ID:    uuid.NewString(),
		Root:  root,
		File:  file,
		Range: rng,
	}
}

// IsDraft reports whether the thread is staging a draft review.
func (t *Thread) IsDraft() bool {
	return t.ContextValue == ContextDraft
}

// Disposed reports whether the thread was removed from the UI.
func (t *Thread) Disposed() bool {
	return t.disposed
}

// Dispose detaches the thread and all of its comments.
func (t *Thread) Dispose() {
	t.disposed = true
}

// Append attaches c to the end of the thread.
func (t *Thread) Append(c *Comment) {
	c.thread = t
	t.Comments = append(t.Comments, c)
	t.history = append(t.history, c)
}

// Remove detaches the comment with the given ID and reports whether it was found.
func (t *Thread) Remove(id int64) bool {
	idx := slices.IndexFunc(t.Comments, func(c *Comment) bool { return c.ID == id })
	if idx < 0 {
		return false
	}
	t.Comments[idx].thread = nil
	t.Comments = slices.Delete(t.Comments, idx, idx+1)
	return true
}

// Find returns the comment with the given ID.
func (t *Thread) Find(id int64) (*Comment, bool) {
	for _, c := range t.Comments {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

// Snapshot returns the persisted form of the current comments.
func (t *Thread) Snapshot() []CommentRecord {
	return snapshot(t.Comments)
}

// HistorySnapshot returns the persisted form of every comment the thread
// has held, in the order they were added. Comments removed while still
// pending in a draft were never published and are left out.
func (t *Thread) HistorySnapshot() []CommentRecord {
	published := make([]*Comment, 0, len(t.history))
	for _, c := range t.history {
		if c.Label == LabelPending {
			continue
		}
		published = append(published, c)
	}
	return snapshot(published)
}

func snapshot(comments []*Comment) []CommentRecord {
	out := make([]CommentRecord, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentRecord{
			Owner: Owner(c.Author),
			Text:  c.Text,
		})
	}
	return out
}

// ChangeEvent reports that a review file under a workspace root changed on disk.
type ChangeEvent struct {
	Root string
	File string
}
