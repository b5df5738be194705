// Package trunkreview wires the thread store, the comment controller and
// identity resolution into the services the CLI consumes.
package trunkreview

import (
	"context"
	"errors"

	"github.com/colonyops/trunkreview/internal/commenting"
	"github.com/colonyops/trunkreview/internal/core/config"
	"github.com/colonyops/trunkreview/internal/core/identity"
	"github.com/colonyops/trunkreview/internal/core/logging"
	"github.com/colonyops/trunkreview/internal/store/jsonfile"
)

// App is the central entry point for all trunkreview operations.
// Commands consume App instead of cherry-picking raw dependencies.
type App struct {
	Root     string
	Config   *config.Config
	Store    *jsonfile.ReviewStore
	Comments *commenting.Controller
	Identity *identity.Resolver

	Threads *ThreadService
	Notes   *NoteService
}

// NewApp constructs an App for the workspace at root.
func NewApp(root string, cfg *config.Config, store *jsonfile.ReviewStore, resolver *identity.Resolver) *App {
	ctrl := commenting.New(store, resolver, logging.Component("commenting"))

	return &App{
		Root:     root,
		Config:   cfg,
		Store:    store,
		Comments: ctrl,
		Identity: resolver,
		Threads:  NewThreadService(root, store),
		Notes:    NewNoteService(root, ctrl, resolver, cfg.Identity.GitHub.Timeout),
	}
}

// Close waits for pending writes, detaches every thread and stops the store.
func (a *App) Close(ctx context.Context) error {
	err := a.Comments.Sync(ctx)
	a.Comments.Dispose()
	return errors.Join(err, a.Store.Close())
}
