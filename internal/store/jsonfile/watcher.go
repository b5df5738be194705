package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/colonyops/trunkreview/internal/core/review"
)

const (
	debounceDelay   = 50 * time.Millisecond
	eventBufferSize = 100
)

// ReviewWatcher reports changes to the review files of one workspace root.
type ReviewWatcher struct {
	root    string
	dir     string
	watcher *fsnotify.Watcher
	log     zerolog.Logger

	mu          sync.Mutex
	subscribers []chan review.ChangeEvent
	debounce    map[string]*time.Timer // file name -> pending notification

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReviewWatcher watches reviewDir (usually <root>/.review). The directory
// is created if it doesn't exist.
func NewReviewWatcher(root, reviewDir string, logger zerolog.Logger) (*ReviewWatcher, error) {
	if err := os.MkdirAll(reviewDir, 0o755); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(reviewDir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rw := &ReviewWatcher{
		root:     root,
		dir:      reviewDir,
		watcher:  watcher,
		log:      logger,
		debounce: make(map[string]*time.Timer),
		ctx:      ctx,
		cancel:   cancel,
	}

	rw.wg.Add(1)
	go rw.run()

	return rw, nil
}

// Watch returns a channel of change events. It is closed when ctx is done or
// the watcher is closed.
func (rw *ReviewWatcher) Watch(ctx context.Context) <-chan review.ChangeEvent {
	ch := make(chan review.ChangeEvent, eventBufferSize)

	rw.mu.Lock()
	rw.subscribers = append(rw.subscribers, ch)
	rw.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			rw.unsubscribe(ch)
		case <-rw.ctx.Done():
		}
	}()

	return ch
}

// Close stops watching and closes all subscriber channels.
func (rw *ReviewWatcher) Close() error {
	rw.cancel()

	rw.mu.Lock()
	for _, timer := range rw.debounce {
		timer.Stop()
	}
	for _, ch := range rw.subscribers {
		close(ch)
	}
	rw.subscribers = nil
	rw.mu.Unlock()

	err := rw.watcher.Close()
	rw.wg.Wait()
	return err
}

func (rw *ReviewWatcher) unsubscribe(ch chan review.ChangeEvent) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	for i, sub := range rw.subscribers {
		if sub == ch {
			rw.subscribers = append(rw.subscribers[:i], rw.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

func (rw *ReviewWatcher) run() {
	defer rw.wg.Done()

	for {
		select {
		case <-rw.ctx.Done():
			return
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			rw.handleEvent(event)
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.log.Warn().Err(err).Str("root", rw.root).Msg("review watcher error")
		}
	}
}

func (rw *ReviewWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}

	name := filepath.Base(event.Name)
	if !isReviewFile(name) {
		return
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if timer, exists := rw.debounce[name]; exists {
		timer.Stop()
	}
	rw.debounce[name] = time.AfterFunc(debounceDelay, func() {
		rw.notify(name)
	})
}

func (rw *ReviewWatcher) notify(name string) {
	event := review.ChangeEvent{Root: rw.root, File: name}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	for _, ch := range rw.subscribers {
		select {
		case ch <- event:
		default:
			// subscriber is behind, drop
		}
	}

	delete(rw.debounce, name)
}

func isReviewFile(name string) bool {
	switch name {
	case UnresolvedFile, ResolvedFile, LegacyFile:
		return true
	default:
		return false
	}
}
