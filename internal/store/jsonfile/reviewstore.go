// Package jsonfile persists review records as JSON files inside each
// workspace root.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/colonyops/trunkreview/internal/core/review"
)

// File names inside the review directory.
const (
	UnresolvedFile = "unresolved.json"
	ResolvedFile   = "resolved.json"
	LegacyFile     = "review.json"

	migratedSuffix = ".migrated"
)

// DefaultDir is the review directory created inside each workspace root.
const DefaultDir = ".review"

// ReviewStore implements review.Store with one set of JSON files per
// workspace root. Records handed out by the store are not safe for
// concurrent mutation; callers serialize access to them.
type ReviewStore struct {
	dir string
	log zerolog.Logger

	mu      sync.Mutex
	records map[string]*review.Record
	corrupt map[string]error
	writers map[string]*writer
	unsaved map[string]unsavedLists
	closed  bool
}

// unsavedLists remembers lists whose last write failed so the next flush
// writes them again.
type unsavedLists struct {
	unresolved bool
	resolved   bool
}

var _ review.Store = (*ReviewStore)(nil)

// NewReviewStore creates a store that keeps review files in <root>/<dir>.
// An empty dir uses DefaultDir.
func NewReviewStore(dir string, logger zerolog.Logger) *ReviewStore {
	if dir == "" {
		dir = DefaultDir
	}
	return &ReviewStore{
		dir:     dir,
		log:     logger,
		records: make(map[string]*review.Record),
		corrupt: make(map[string]error),
		writers: make(map[string]*writer),
		unsaved: make(map[string]unsavedLists),
	}
}

// ReviewDir returns the directory holding the review files of root.
func (s *ReviewStore) ReviewDir(root string) string {
	return filepath.Join(root, s.dir)
}

// Load reads the review files of root, replacing any record already loaded.
// Split files take precedence over the legacy file; layouts are never
// converted implicitly.
func (s *ReviewStore) Load(ctx context.Context, root string) (*review.Record, error) {
	rec, err := s.read(root)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case errors.Is(err, review.ErrCorrupt):
		s.corrupt[root] = err
		delete(s.records, root)
		s.log.Error().Err(err).Str("root", root).Msg("review data is corrupt, folder is read-only")
		return nil, err
	case err != nil:
		delete(s.corrupt, root)
		delete(s.records, root)
		s.log.Debug().Err(err).Str("root", root).Msg("review not enabled")
		return nil, err
	}

	delete(s.corrupt, root)
	delete(s.unsaved, root)
	s.records[root] = rec
	s.log.Debug().
		Str("root", root).
		Str("layout", string(rec.Layout)).
		Int("unresolved", len(rec.Unresolved.Threads)).
		Int("resolved", len(rec.Resolved.Threads)).
		Msg("review data loaded")

	return rec, nil
}

// Get returns the loaded record for root.
func (s *ReviewStore) Get(root string) (*review.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[root]
	return rec, ok
}

// Flush serializes the dirty lists of root's record and queues them on the
// root's writer. The returned channel receives exactly one value.
func (s *ReviewStore) Flush(ctx context.Context, root string) <-chan error {
	done := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		finish(done, fmt.Errorf("flush %s: %w", root, errWriterClosed))
		return done
	}

	if err, ok := s.corrupt[root]; ok {
		s.mu.Unlock()
		finish(done, fmt.Errorf("flush %s: %w", root, err))
		return done
	}

	rec, ok := s.records[root]
	if !ok {
		s.mu.Unlock()
		finish(done, fmt.Errorf("flush %s: %w", root, review.ErrNotLoaded))
		return done
	}

	if u, ok := s.unsaved[root]; ok {
		rec.RestoreDirty(u.unresolved, u.resolved)
		delete(s.unsaved, root)
	}

	files, err := s.encode(rec)
	if err != nil {
		s.mu.Unlock()
		finish(done, fmt.Errorf("flush %s: %w", root, err))
		return done
	}
	dirtyUnresolved, dirtyResolved := rec.Dirty()
	rec.ClearDirty()

	if len(files) == 0 {
		s.mu.Unlock()
		finish(done, nil)
		return done
	}

	w := s.writerFor(root)
	s.mu.Unlock()

	w.enqueue(writeJob{
		ctx:   ctx,
		files: files,
		done:  done,
		failed: func() {
			s.markUnsaved(root, rec, dirtyUnresolved, dirtyResolved)
		},
	})
	return done
}

// markUnsaved records that rec's lists were not written. The next Flush
// applies the flags to rec, so rec itself is only touched by the goroutine
// that changes it.
func (s *ReviewStore) markUnsaved(root string, rec *review.Record, unresolved, resolved bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[root] != rec {
		return
	}
	u := s.unsaved[root]
	s.unsaved[root] = unsavedLists{
		unresolved: u.unresolved || unresolved,
		resolved:   u.resolved || resolved,
	}
}

// Init enables review for root by writing empty review files.
func (s *ReviewStore) Init(ctx context.Context, root string, layout review.Layout) (*review.Record, error) {
	if !layout.IsValid() {
		return nil, fmt.Errorf("unknown layout %q", layout)
	}

	if existing := s.existingFiles(root); len(existing) > 0 {
		return nil, fmt.Errorf("init %s: %w", root, review.ErrAlreadyEnabled)
	}

	rec := review.NewRecord(root, layout)
	rec.MarkDirty()

	s.mu.Lock()
	delete(s.corrupt, root)
	delete(s.unsaved, root)
	s.records[root] = rec
	s.mu.Unlock()

	if err := <-s.Flush(ctx, root); err != nil {
		return nil, err
	}
	return rec, nil
}

// Migrate converts root from the legacy single file to the split layout.
// Every legacy thread becomes unresolved, and the legacy file is renamed so
// it is not picked up again.
func (s *ReviewStore) Migrate(ctx context.Context, root string) (*review.Record, error) {
	legacyPath := filepath.Join(s.ReviewDir(root), LegacyFile)

	if s.hasSplitFiles(root) {
		return nil, fmt.Errorf("migrate %s: %w", root, review.ErrNotLegacy)
	}

	list, err := readList(legacyPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("migrate %s: %w", root, review.ErrNotLegacy)
		}
		return nil, fmt.Errorf("migrate %s: %w", root, err)
	}

	rec := review.NewRecord(root, review.LayoutSplit)
	rec.Unresolved = list
	rec.EnsureIDs()
	rec.MarkDirty()

	s.mu.Lock()
	delete(s.corrupt, root)
	delete(s.unsaved, root)
	s.records[root] = rec
	s.mu.Unlock()

	if err := <-s.Flush(ctx, root); err != nil {
		return nil, err
	}

	if err := os.Rename(legacyPath, legacyPath+migratedSuffix); err != nil {
		return nil, fmt.Errorf("retire legacy file: %w", err)
	}

	s.log.Info().Str("root", root).Int("threads", len(rec.Unresolved.Threads)).Msg("migrated legacy review file")
	return rec, nil
}

// Unload waits for root's pending writes and forgets its record.
func (s *ReviewStore) Unload(root string) error {
	s.mu.Lock()
	w := s.writers[root]
	delete(s.writers, root)
	delete(s.records, root)
	delete(s.corrupt, root)
	delete(s.unsaved, root)
	s.mu.Unlock()

	if w != nil {
		w.close()
	}
	return nil
}

// Close drains all writers. Flushes after Close fail.
func (s *ReviewStore) Close() error {
	s.mu.Lock()
	s.closed = true
	writers := s.writers
	s.writers = make(map[string]*writer)
	s.mu.Unlock()

	for _, w := range writers {
		w.close()
	}
	return nil
}

// writerFor returns root's writer, starting it on first use. Caller holds s.mu.
func (s *ReviewStore) writerFor(root string) *writer {
	w, ok := s.writers[root]
	if !ok {
		w = newWriter(root, s.log)
		s.writers[root] = w
	}
	return w
}

// encode renders the dirty lists of rec as pretty-printed JSON.
func (s *ReviewStore) encode(rec *review.Record) ([]fileWrite, error) {
	dir := s.ReviewDir(rec.Root)
	dirtyUnresolved, dirtyResolved := rec.Dirty()

	var files []fileWrite
	add := func(name string, list review.ThreadList) error {
		if list.Threads == nil {
			list.Threads = []review.ThreadRecord{}
		}
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		files = append(files, fileWrite{path: filepath.Join(dir, name), data: data})
		return nil
	}

	if rec.Layout == review.LayoutLegacy {
		if dirtyUnresolved {
			if err := add(LegacyFile, rec.Unresolved); err != nil {
				return nil, err
			}
		}
		return files, nil
	}

	// resolved first: a failure between the two writes leaves a resolved
	// thread in both files rather than in neither
	if dirtyResolved {
		if err := add(ResolvedFile, rec.Resolved); err != nil {
			return nil, err
		}
	}
	if dirtyUnresolved {
		if err := add(UnresolvedFile, rec.Unresolved); err != nil {
			return nil, err
		}
	}
	return files, nil
}

// read loads root's record from disk.
func (s *ReviewStore) read(root string) (*review.Record, error) {
	dir := s.ReviewDir(root)

	if s.hasSplitFiles(root) {
		rec := review.NewRecord(root, review.LayoutSplit)

		unresolved, err := readListOptional(filepath.Join(dir, UnresolvedFile))
		if err != nil {
			return nil, err
		}
		resolved, err := readListOptional(filepath.Join(dir, ResolvedFile))
		if err != nil {
			return nil, err
		}

		rec.Unresolved = unresolved
		rec.Resolved = resolved
		rec.EnsureIDs()
		return rec, nil
	}

	legacy, err := readList(filepath.Join(dir, LegacyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("load %s: %w", root, review.ErrDisabled)
		}
		return nil, err
	}

	rec := review.NewRecord(root, review.LayoutLegacy)
	rec.Unresolved = legacy
	rec.EnsureIDs()
	return rec, nil
}

func (s *ReviewStore) hasSplitFiles(root string) bool {
	dir := s.ReviewDir(root)
	return fileExists(filepath.Join(dir, UnresolvedFile)) || fileExists(filepath.Join(dir, ResolvedFile))
}

func (s *ReviewStore) existingFiles(root string) []string {
	dir := s.ReviewDir(root)

	var found []string
	for _, name := range []string{UnresolvedFile, ResolvedFile, LegacyFile} {
		if fileExists(filepath.Join(dir, name)) {
			found = append(found, name)
		}
	}
	return found
}

// readList parses a review file. A missing file returns the os error
// untouched; anything else unreadable wraps review.ErrCorrupt.
func readList(path string) (review.ThreadList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return review.ThreadList{}, err
		}
		return review.ThreadList{}, fmt.Errorf("%w: read %s: %v", review.ErrCorrupt, path, err)
	}

	list := review.ThreadList{Threads: []review.ThreadRecord{}}
	if len(data) == 0 {
		return list, nil
	}

	if err := json.Unmarshal(data, &list); err != nil {
		return review.ThreadList{}, fmt.Errorf("%w: parse %s: %v", review.ErrCorrupt, path, err)
	}
	if list.Threads == nil {
		list.Threads = []review.ThreadRecord{}
	}

	return list, nil
}

// readListOptional treats a missing file as an empty list.
func readListOptional(path string) (review.ThreadList, error) {
	list, err := readList(path)
	if os.IsNotExist(err) {
		return review.ThreadList{Threads: []review.ThreadRecord{}}, nil
	}
	return list, err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
