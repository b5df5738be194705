package trunkreview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/colonyops/trunkreview/internal/core/review"
	"github.com/colonyops/trunkreview/internal/store/jsonfile"
)

// ErrAmbiguousID is returned when a thread ID prefix matches several threads.
var ErrAmbiguousID = errors.New("thread id prefix is ambiguous")

// ThreadService answers read-only questions about persisted threads and
// manages the review files of the workspace.
type ThreadService struct {
	root  string
	store *jsonfile.ReviewStore
}

// NewThreadService creates a ThreadService for root.
func NewThreadService(root string, store *jsonfile.ReviewStore) *ThreadService {
	return &ThreadService{root: root, store: store}
}

// ThreadEntry is a persisted thread together with the list it lives in.
type ThreadEntry struct {
	review.ThreadRecord
	Status review.ListKind `json:"status"`
}

// Init enables review for the workspace.
func (s *ThreadService) Init(ctx context.Context, layout review.Layout) (*review.Record, error) {
	return s.store.Init(ctx, s.root, layout)
}

// Migrate converts a legacy review file to the split layout.
func (s *ThreadService) Migrate(ctx context.Context) (*review.Record, error) {
	return s.store.Migrate(ctx, s.root)
}

// Dir returns the review directory of the workspace.
func (s *ThreadService) Dir() string {
	return s.store.ReviewDir(s.root)
}

// Load reads the review files of the workspace.
func (s *ThreadService) Load(ctx context.Context) (*review.Record, error) {
	rec, err := s.store.Load(ctx, s.root)
	if errors.Is(err, review.ErrDisabled) {
		return nil, fmt.Errorf("%w: run 'trunkreview init' first", err)
	}
	return rec, err
}

// List returns the threads of one list whose file matches glob. An empty
// glob matches every file.
func (s *ThreadService) List(ctx context.Context, kind review.ListKind, glob string) ([]ThreadEntry, error) {
	if glob != "" && !doublestar.ValidatePattern(glob) {
		return nil, fmt.Errorf("invalid file pattern %q", glob)
	}

	rec, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}

	var out []ThreadEntry
	for _, tr := range rec.List(kind) {
		if glob != "" {
			ok, _ := doublestar.Match(glob, tr.File)
			if !ok {
				continue
			}
		}
		out = append(out, ThreadEntry{ThreadRecord: tr, Status: kind})
	}
	return out, nil
}

// Get finds a thread in either list by ID or unique ID prefix.
func (s *ThreadService) Get(ctx context.Context, id string) (ThreadEntry, error) {
	rec, err := s.Load(ctx)
	if err != nil {
		return ThreadEntry{}, err
	}

	if tr, kind, ok := rec.FindByID(id); ok {
		return ThreadEntry{ThreadRecord: tr, Status: kind}, nil
	}

	var matches []ThreadEntry
	for _, kind := range []review.ListKind{review.ListUnresolved, review.ListResolved} {
		for _, tr := range rec.List(kind) {
			if id != "" && strings.HasPrefix(tr.ID, id) {
				matches = append(matches, ThreadEntry{ThreadRecord: tr, Status: kind})
			}
		}
	}

	switch len(matches) {
	case 0:
		return ThreadEntry{}, fmt.Errorf("%q: %w", id, review.ErrThreadNotFound)
	case 1:
		return matches[0], nil
	default:
		return ThreadEntry{}, fmt.Errorf("%q matches %d threads: %w", id, len(matches), ErrAmbiguousID)
	}
}

// IDs returns the IDs of every unresolved thread, for shell completion.
func (s *ThreadService) IDs(ctx context.Context) []string {
	rec, err := s.store.Load(ctx, s.root)
	if err != nil {
		return nil
	}

	ids := make([]string, 0, len(rec.Unresolved.Threads))
	for _, tr := range rec.Unresolved.Threads {
		ids = append(ids, tr.ID)
	}
	return ids
}
