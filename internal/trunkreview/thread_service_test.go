package trunkreview

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/store/jsonfile"
)

func seedThreads(t *testing.T, app *App) (goThread, tsThread *review.Thread) {
	t.Helper()
	ctx := context.Background()

	goThread, err := app.Notes.Create(ctx, Target{File: filepath.Join(app.Root, "pkg", "a.go"), Range: "1"}, "go")
	require.NoError(t, err)
	tsThread, err = app.Notes.Create(ctx, Target{File: filepath.Join(app.Root, "web", "b.ts"), Range: "2"}, "ts")
	require.NoError(t, err)

	_, err = app.Notes.Delete(ctx, Target{Thread: tsThread.ID})
	require.NoError(t, err)
	require.NoError(t, app.Notes.Sync(ctx))
	return goThread, tsThread
}

func TestThreadService_List(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, review.LayoutSplit)
	goThread, tsThread := seedThreads(t, app)

	unresolved, err := app.Threads.List(ctx, review.ListUnresolved, "")
	require.NoError(t, err)
	require.Len(t, unresolved, 1)
	assert.Equal(t, goThread.ID, unresolved[0].ID)
	assert.Equal(t, review.ListUnresolved, unresolved[0].Status)

	resolved, err := app.Threads.List(ctx, review.ListResolved, "web/**/*.ts")
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, tsThread.ID, resolved[0].ID)

	none, err := app.Threads.List(ctx, review.ListUnresolved, "**/*.ts")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = app.Threads.List(ctx, review.ListUnresolved, "[")
	require.Error(t, err)
}

func TestThreadService_Get(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, review.LayoutSplit)
	goThread, tsThread := seedThreads(t, app)

	got, err := app.Threads.Get(ctx, goThread.ID)
	require.NoError(t, err)
	assert.Equal(t, "pkg/a.go", got.File)

	got, err = app.Threads.Get(ctx, tsThread.ID[:6])
	require.NoError(t, err)
	assert.Equal(t, review.ListResolved, got.Status)

	_, err = app.Threads.Get(ctx, "zzzz")
	require.ErrorIs(t, err, review.ErrThreadNotFound)

	_, err = app.Threads.Get(ctx, "")
	require.ErrorIs(t, err, review.ErrThreadNotFound)
}

func TestThreadService_Disabled(t *testing.T) {
	app := newTestApp(t, "")

	_, err := app.Threads.List(context.Background(), review.ListUnresolved, "")
	require.ErrorIs(t, err, review.ErrDisabled)
	assert.Empty(t, app.Threads.IDs(context.Background()))
}

func TestThreadService_Migrate(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, review.LayoutLegacy)

	_, err := app.Notes.Create(ctx, Target{File: filepath.Join(app.Root, "a.go"), Range: "1"}, "legacy")
	require.NoError(t, err)
	require.NoError(t, app.Notes.Sync(ctx))

	rec, err := app.Threads.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, review.LayoutSplit, rec.Layout)

	list, err := app.Threads.List(ctx, review.ListUnresolved, "")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "legacy", list[0].Comments[0].Text)
}

func TestThreadService_IDsWithoutStoredIDsAreStable(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, review.LayoutSplit)

	data := `{"threads":[
		{"file":"a.go","range":{"startLine":1,"startCharacter":0,"endLine":1,"endCharacter":0},"comments":[{"owner":"alice","text":"one"}]},
		{"file":"a.go","range":{"startLine":1,"startCharacter":0,"endLine":1,"endCharacter":0},"comments":[{"owner":"bob","text":"two"}]}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(app.Threads.Dir(), jsonfile.UnresolvedFile), []byte(data), 0o644))

	listed, err := app.Threads.List(ctx, review.ListUnresolved, "")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.NotEqual(t, listed[0].ID, listed[1].ID)

	for _, entry := range listed {
		got, err := app.Threads.Get(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, entry.Comments, got.Comments)

		got, err = app.Threads.Get(ctx, entry.ID[:8])
		require.NoError(t, err)
		assert.Equal(t, entry.ID, got.ID)
	}

	assert.ElementsMatch(t, []string{listed[0].ID, listed[1].ID}, app.Threads.IDs(ctx))
}
