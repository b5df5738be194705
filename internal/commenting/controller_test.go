package commenting

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/trunkreview/internal/core/logging"
	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/store/jsonfile"
)

type staticAuthor review.Identity

func (a staticAuthor) Current() review.Identity { return review.Identity(a) }

var placeholder = staticAuthor{Name: "vs-code"}

type fixture struct {
	root  string
	store *jsonfile.ReviewStore
	ctrl  *Controller
}

func newFixture(t *testing.T, layout review.Layout) *fixture {
	t.Helper()

	root := t.TempDir()
	store := jsonfile.NewReviewStore("", zerolog.Nop())
	t.Cleanup(func() { _ = store.Close() })

	if layout != "" {
		_, err := store.Init(context.Background(), root, layout)
		require.NoError(t, err)
	}

	return &fixture{
		root:  root,
		store: store,
		ctrl:  New(store, placeholder, zerolog.Nop()),
	}
}

func (f *fixture) open(t *testing.T) []*review.Thread {
	t.Helper()
	threads, err := f.ctrl.OpenFolder(context.Background(), f.root)
	require.NoError(t, err)
	return threads
}

func (f *fixture) readList(t *testing.T, name string) review.ThreadList {
	t.Helper()
	require.NoError(t, f.ctrl.Sync(context.Background()))

	data, err := os.ReadFile(filepath.Join(f.root, jsonfile.DefaultDir, name))
	require.NoError(t, err)

	var list review.ThreadList
	require.NoError(t, json.Unmarshal(data, &list))
	return list
}

type fileState struct {
	data    []byte
	modTime time.Time
}

// fileStates returns contents and modification times of the review files.
func (f *fixture) fileStates(t *testing.T) map[string]fileState {
	t.Helper()
	require.NoError(t, f.ctrl.Sync(context.Background()))

	out := make(map[string]fileState)
	for _, name := range []string{jsonfile.UnresolvedFile, jsonfile.ResolvedFile} {
		path := filepath.Join(f.root, jsonfile.DefaultDir, name)
		info, err := os.Stat(path)
		require.NoError(t, err)
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		out[name] = fileState{data: data, modTime: info.ModTime()}
	}
	return out
}

func texts(comments []review.CommentRecord) []string {
	out := make([]string, 0, len(comments))
	for _, c := range comments {
		out = append(out, c.Text)
	}
	return out
}

func TestController_ReplyDeleteLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)
	require.Empty(t, f.open(t))

	rng := review.NewRange(4, 0, 4, 10)
	thread := f.ctrl.CreateThread(f.root, "src/a.ts", rng)

	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "first"})

	list := f.readList(t, jsonfile.UnresolvedFile)
	require.Len(t, list.Threads, 1)
	assert.Equal(t, thread.ID, list.Threads[0].ID)
	assert.Equal(t, "src/a.ts", list.Threads[0].File)
	assert.Equal(t, rng, list.Threads[0].Range)
	assert.Equal(t, []review.CommentRecord{{Owner: review.Owner{Name: "vs-code"}, Text: "first"}}, list.Threads[0].Comments)

	raw, err := os.ReadFile(filepath.Join(f.root, jsonfile.DefaultDir, jsonfile.UnresolvedFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"iconPath": null`)

	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "second"})

	list = f.readList(t, jsonfile.UnresolvedFile)
	require.Len(t, list.Threads, 1)
	assert.Equal(t, []string{"first", "second"}, texts(list.Threads[0].Comments))

	require.Len(t, thread.Comments, 2)
	assert.Empty(t, thread.Comments[0].ContextValue)
	assert.Equal(t, review.ContextCanDelete, thread.Comments[1].ContextValue)

	first := thread.Comments[0]
	f.ctrl.DeleteNoteComment(ctx, first)

	list = f.readList(t, jsonfile.UnresolvedFile)
	require.Len(t, list.Threads, 1)
	assert.Equal(t, []string{"second"}, texts(list.Threads[0].Comments))
	assert.Nil(t, first.Thread())

	f.ctrl.DeleteNoteComment(ctx, thread.Comments[0])

	assert.True(t, thread.Disposed())
	assert.Empty(t, f.ctrl.Threads(f.root))
	assert.Empty(t, f.readList(t, jsonfile.UnresolvedFile).Threads)

	resolved := f.readList(t, jsonfile.ResolvedFile)
	require.Len(t, resolved.Threads, 1)
	assert.Equal(t, thread.ID, resolved.Threads[0].ID)
	assert.Equal(t, []string{"first", "second"}, texts(resolved.Threads[0].Comments))
}

func TestController_FailedResolveIsWrittenLater(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)
	f.open(t)

	done := f.ctrl.CreateThread(f.root, "done.go", review.NewRange(1, 0, 1, 0))
	f.ctrl.CreateNote(ctx, Reply{Thread: done, Text: "fixed"})
	active := f.ctrl.CreateThread(f.root, "open.go", review.NewRange(2, 0, 2, 0))
	f.ctrl.CreateNote(ctx, Reply{Thread: active, Text: "still open"})
	require.NoError(t, f.ctrl.Sync(ctx))

	blocker := filepath.Join(f.root, jsonfile.DefaultDir, jsonfile.ResolvedFile+".tmp")
	require.NoError(t, os.Mkdir(blocker, 0o755))

	f.ctrl.DeleteNote(ctx, done)
	require.Error(t, f.ctrl.Sync(ctx))
	require.NoError(t, os.Remove(blocker))

	// this change dirties only the unresolved list
	f.ctrl.ReplyNote(ctx, Reply{Thread: active, Text: "follow up"})

	resolved := f.readList(t, jsonfile.ResolvedFile)
	require.Len(t, resolved.Threads, 1)
	assert.Equal(t, done.ID, resolved.Threads[0].ID)

	unresolved := f.readList(t, jsonfile.UnresolvedFile)
	require.Len(t, unresolved.Threads, 1)
	assert.Equal(t, []string{"still open", "follow up"}, texts(unresolved.Threads[0].Comments))
}

func TestController_ArchiveSkipsAbandonedDraft(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)
	f.open(t)

	thread := f.ctrl.CreateThread(f.root, "main.go", review.NewRange(3, 0, 3, 0))
	f.ctrl.CreateNote(ctx, Reply{Thread: thread, Text: "published"})
	f.ctrl.StartDraft(ctx, Reply{Thread: thread, Text: "never sent"})
	require.Len(t, thread.Comments, 2)

	staged := thread.Comments[1]
	first := thread.Comments[0]
	f.ctrl.DeleteNoteComment(ctx, staged)
	f.ctrl.DeleteNoteComment(ctx, first)

	assert.Empty(t, f.readList(t, jsonfile.UnresolvedFile).Threads)
	resolved := f.readList(t, jsonfile.ResolvedFile)
	require.Len(t, resolved.Threads, 1)
	assert.Equal(t, []string{"published"}, texts(resolved.Threads[0].Comments))
}

func TestController_DraftIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)
	f.open(t)

	thread := f.ctrl.CreateThread(f.root, "main.go", review.NewRange(1, 0, 1, 5))
	before := f.fileStates(t)
	time.Sleep(10 * time.Millisecond)

	f.ctrl.StartDraft(ctx, Reply{Thread: thread, Text: "draft one"})
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "draft two"})

	assert.True(t, thread.IsDraft())
	require.Len(t, thread.Comments, 2)
	for _, cm := range thread.Comments {
		assert.Equal(t, review.LabelPending, cm.Label)
	}
	assert.Empty(t, f.readList(t, jsonfile.UnresolvedFile).Threads)

	f.ctrl.FinishDraft(ctx, Reply{Thread: thread, Text: ""})

	assert.False(t, thread.IsDraft())
	assert.True(t, thread.Collapsed)
	for _, cm := range thread.Comments {
		assert.Empty(t, cm.Label)
	}
	assert.Equal(t, before, f.fileStates(t), "empty finish must not write")

	f.ctrl.StartDraft(ctx, Reply{Thread: thread, Text: "draft three"})
	f.ctrl.FinishDraft(ctx, Reply{Thread: thread, Text: "final"})

	list := f.readList(t, jsonfile.UnresolvedFile)
	require.Len(t, list.Threads, 1)
	assert.Equal(t, []string{"draft one", "draft two", "draft three", "final"}, texts(list.Threads[0].Comments))
	for _, cm := range thread.Comments {
		assert.Empty(t, cm.Label)
	}
}

func TestController_DeleteNoteResolvesAsIs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)
	f.open(t)

	thread := f.ctrl.CreateThread(f.root, "a.go", review.NewRange(0, 0, 0, 1))
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "one"})
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "two"})

	f.ctrl.DeleteNote(ctx, thread)

	assert.True(t, thread.Disposed())
	assert.Empty(t, f.readList(t, jsonfile.UnresolvedFile).Threads)
	resolved := f.readList(t, jsonfile.ResolvedFile)
	require.Len(t, resolved.Threads, 1)
	assert.Equal(t, []string{"one", "two"}, texts(resolved.Threads[0].Comments))

	// detached thread: commands are ignored
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "late"})
	f.ctrl.DeleteNote(ctx, thread)
	assert.Len(t, thread.Comments, 2)
	assert.Len(t, f.readList(t, jsonfile.ResolvedFile).Threads, 1)
}

func TestController_LegacyResolveDropsThread(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutLegacy)
	f.open(t)

	keep := f.ctrl.CreateThread(f.root, "a.go", review.NewRange(1, 0, 1, 0))
	drop := f.ctrl.CreateThread(f.root, "b.go", review.NewRange(2, 0, 2, 0))
	f.ctrl.ReplyNote(ctx, Reply{Thread: keep, Text: "keep"})
	f.ctrl.ReplyNote(ctx, Reply{Thread: drop, Text: "drop"})

	f.ctrl.DeleteNote(ctx, drop)

	list := f.readList(t, jsonfile.LegacyFile)
	require.Len(t, list.Threads, 1)
	assert.Equal(t, "a.go", list.Threads[0].File)
	assert.NoFileExists(t, filepath.Join(f.root, jsonfile.DefaultDir, jsonfile.ResolvedFile))
}

func TestController_EditCancelSave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)
	f.open(t)

	thread := f.ctrl.CreateThread(f.root, "a.go", review.NewRange(3, 0, 3, 2))
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "original"})
	cm := thread.Comments[0]

	f.ctrl.UpdateText(ctx, cm, "ignored in preview")
	assert.Equal(t, "original", cm.Text)

	f.ctrl.EditNote(ctx, cm)
	assert.Equal(t, review.ModeEditing, cm.Mode)
	f.ctrl.UpdateText(ctx, cm, "changed")
	f.ctrl.CancelSaveNote(ctx, cm)

	assert.Equal(t, review.ModePreview, cm.Mode)
	assert.Equal(t, "original", cm.Text)

	f.ctrl.EditNote(ctx, cm)
	f.ctrl.UpdateText(ctx, cm, "edited")
	f.ctrl.SaveNote(ctx, cm)

	assert.Equal(t, review.ModePreview, cm.Mode)
	assert.Equal(t, "edited", cm.SavedText)

	list := f.readList(t, jsonfile.UnresolvedFile)
	require.Len(t, list.Threads, 1)
	assert.Equal(t, []string{"edited"}, texts(list.Threads[0].Comments))

	// a second save in preview changes nothing
	f.ctrl.SaveNote(ctx, cm)
	assert.Equal(t, "edited", cm.Text)
}

func TestController_OpenFolderRebuildsThreads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)
	f.open(t)

	thread := f.ctrl.CreateThread(f.root, "a.go", review.NewRange(1, 0, 1, 4))
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "one"})
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "two"})
	require.NoError(t, f.ctrl.Sync(ctx))

	threads := f.open(t)
	require.Len(t, threads, 1)
	assert.True(t, thread.Disposed(), "reopening replaces live threads")

	got := threads[0]
	assert.Equal(t, thread.ID, got.ID)
	assert.Equal(t, "a.go", got.File)
	require.Len(t, got.Comments, 2)
	assert.Equal(t, "vs-code", got.Comments[0].Author.Name)
	assert.Empty(t, got.Comments[0].ContextValue)
	assert.Equal(t, review.ContextCanDelete, got.Comments[1].ContextValue)

	found, ok := f.ctrl.Thread(thread.ID)
	require.True(t, ok)
	assert.Same(t, got, found)

	at, ok := f.ctrl.ThreadAt(f.root, "a.go", review.NewRange(1, 0, 1, 4))
	require.True(t, ok)
	assert.Same(t, got, at)
}

func TestController_ThreadsSharingRangeStayDistinct(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)
	f.open(t)

	rng := review.NewRange(5, 0, 5, 3)
	a := f.ctrl.CreateThread(f.root, "a.go", rng)
	b := f.ctrl.CreateThread(f.root, "a.go", rng)
	f.ctrl.ReplyNote(ctx, Reply{Thread: a, Text: "from a"})
	f.ctrl.ReplyNote(ctx, Reply{Thread: b, Text: "from b"})

	f.ctrl.DeleteNote(ctx, a)

	unresolved := f.readList(t, jsonfile.UnresolvedFile)
	require.Len(t, unresolved.Threads, 1)
	assert.Equal(t, b.ID, unresolved.Threads[0].ID)
	assert.Equal(t, []string{"from b"}, texts(unresolved.Threads[0].Comments))

	resolved := f.readList(t, jsonfile.ResolvedFile)
	require.Len(t, resolved.Threads, 1)
	assert.Equal(t, a.ID, resolved.Threads[0].ID)
}

func TestController_DisabledFolderStaysInMemory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	threads, err := f.ctrl.OpenFolder(ctx, f.root)
	require.NoError(t, err)
	assert.Empty(t, threads)
	assert.Equal(t, FolderDisabled, f.ctrl.State(f.root))

	thread := f.ctrl.CreateThread(f.root, "a.go", review.NewRange(0, 0, 0, 0))
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "hello"})
	require.NoError(t, f.ctrl.Sync(ctx))

	assert.Len(t, thread.Comments, 1)
	assert.NoDirExists(t, filepath.Join(f.root, jsonfile.DefaultDir))
}

func TestController_CorruptFolderIsNeverWritten(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "")

	dir := filepath.Join(f.root, jsonfile.DefaultDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, jsonfile.UnresolvedFile)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := f.ctrl.OpenFolder(ctx, f.root)
	require.ErrorIs(t, err, review.ErrCorrupt)
	assert.Equal(t, FolderCorrupt, f.ctrl.State(f.root))

	thread := f.ctrl.CreateThread(f.root, "a.go", review.NewRange(0, 0, 0, 0))
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "hello"})
	require.NoError(t, f.ctrl.Sync(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(data))
}

func TestController_DisposeDetachesEverything(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)
	f.open(t)

	thread := f.ctrl.CreateThread(f.root, "a.go", review.NewRange(0, 0, 0, 0))
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "one"})
	cm := thread.Comments[0]

	f.ctrl.Dispose()

	assert.True(t, thread.Disposed())
	assert.Nil(t, cm.Thread())

	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "two"})
	f.ctrl.EditNote(ctx, cm)
	f.ctrl.DeleteNoteComment(ctx, cm)

	assert.Len(t, thread.Comments, 1)
	assert.Equal(t, review.ModePreview, cm.Mode)

	late := f.ctrl.CreateThread(f.root, "b.go", review.NewRange(0, 0, 0, 0))
	assert.True(t, late.Disposed())
}

func TestController_NilReferencesAreIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)
	f.open(t)

	assert.NotPanics(t, func() {
		f.ctrl.ReplyNote(ctx, Reply{})
		f.ctrl.StartDraft(ctx, Reply{})
		f.ctrl.FinishDraft(ctx, Reply{})
		f.ctrl.DeleteNote(ctx, nil)
		f.ctrl.DeleteNoteComment(ctx, nil)
		f.ctrl.EditNote(ctx, nil)
		f.ctrl.SaveNote(ctx, nil)
		f.ctrl.CancelSaveNote(ctx, nil)
	})
}

func TestController_CloseFolder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)
	f.open(t)

	thread := f.ctrl.CreateThread(f.root, "a.go", review.NewRange(0, 0, 0, 0))
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "one"})

	require.NoError(t, f.ctrl.CloseFolder(f.root))
	assert.True(t, thread.Disposed())
	assert.Equal(t, FolderUnknown, f.ctrl.State(f.root))

	_, ok := f.store.Get(f.root)
	assert.False(t, ok)

	data, err := os.ReadFile(filepath.Join(f.root, jsonfile.DefaultDir, jsonfile.UnresolvedFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"one"`)
}

func TestController_CommentingRanges(t *testing.T) {
	f := newFixture(t, "")
	assert.Equal(t, []review.Range{review.NewRange(0, 0, 41, 0)}, f.ctrl.CommentingRanges(42))
}

func TestFolderState_String(t *testing.T) {
	assert.Equal(t, "enabled", FolderEnabled.String())
	assert.Equal(t, "disabled", FolderDisabled.String())
	assert.Equal(t, "corrupt", FolderCorrupt.String())
	assert.Equal(t, "unknown", FolderUnknown.String())
}

func logEntries(t *testing.T, buf *bytes.Buffer) map[string]map[string]any {
	t.Helper()

	out := make(map[string]map[string]any)
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		msg, _ := entry["message"].(string)
		out[msg] = entry
	}
	require.NoError(t, sc.Err())
	return out
}

func TestController_LogsCarryThreadContext(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, review.LayoutSplit)

	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel).Hook(logging.ContextHook{})
	f.ctrl = New(f.store, placeholder, logger)
	f.open(t)

	thread := f.ctrl.CreateThread(f.root, "main.go", review.NewRange(1, 0, 1, 0))
	f.ctrl.StartDraft(ctx, Reply{Thread: thread, Text: "staged"})
	f.ctrl.DeleteNote(ctx, thread)
	f.ctrl.ReplyNote(ctx, Reply{Thread: thread, Text: "too late"})
	require.NoError(t, f.ctrl.Sync(ctx))

	entries := logEntries(t, &buf)
	for _, msg := range []string{"thread resolved", "ignoring command on detached thread"} {
		entry, ok := entries[msg]
		require.True(t, ok, "missing log %q", msg)
		assert.Equal(t, f.root, entry["root"], msg)
		assert.Equal(t, thread.ID, entry["thread_id"], msg)
	}
	assert.Equal(t, "replyNote", entries["ignoring command on detached thread"]["command"])
}
