package trunkreview

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/trunkreview/internal/core/config"
	"github.com/colonyops/trunkreview/internal/core/identity"
	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/store/jsonfile"
)

func newTestApp(t *testing.T, layout review.Layout) *App {
	t.Helper()

	root := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Identity.Provider = config.ProviderNone

	store := jsonfile.NewReviewStore(cfg.ReviewDir, zerolog.Nop())
	resolver := identity.NewResolver(review.Identity{Name: cfg.Identity.Placeholder}, nil, zerolog.Nop())

	app := NewApp(root, &cfg, store, resolver)
	t.Cleanup(func() { _ = app.Close(context.Background()) })

	if layout != "" {
		_, err := app.Threads.Init(context.Background(), layout)
		require.NoError(t, err)
	}
	return app
}

func readThreads(t *testing.T, app *App, name string) []review.ThreadRecord {
	t.Helper()
	require.NoError(t, app.Notes.Sync(context.Background()))

	data, err := os.ReadFile(filepath.Join(app.Threads.Dir(), name))
	require.NoError(t, err)

	var list review.ThreadList
	require.NoError(t, json.Unmarshal(data, &list))
	return list.Threads
}
